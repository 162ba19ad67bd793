package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/dental-verify/internal/config"
	"github.com/jwalitptl/dental-verify/internal/datasource"
	adminHandler "github.com/jwalitptl/dental-verify/internal/handler/admin"
	authHandler "github.com/jwalitptl/dental-verify/internal/handler/auth"
	clinicHandler "github.com/jwalitptl/dental-verify/internal/handler/clinic"
	geographyHandler "github.com/jwalitptl/dental-verify/internal/handler/geography"
	"github.com/jwalitptl/dental-verify/internal/handler/health"
	prometheusHandler "github.com/jwalitptl/dental-verify/internal/handler/prometheus"
	settingHandler "github.com/jwalitptl/dental-verify/internal/handler/setting"
	specializationHandler "github.com/jwalitptl/dental-verify/internal/handler/specialization"
	verificationHandler "github.com/jwalitptl/dental-verify/internal/handler/verification"
	"github.com/jwalitptl/dental-verify/internal/middleware"
	"github.com/jwalitptl/dental-verify/internal/router"
	auditService "github.com/jwalitptl/dental-verify/internal/service/audit"
	authService "github.com/jwalitptl/dental-verify/internal/service/auth"
	clinicService "github.com/jwalitptl/dental-verify/internal/service/clinic"
	"github.com/jwalitptl/dental-verify/internal/service/expiry"
	geographyService "github.com/jwalitptl/dental-verify/internal/service/geography"
	settingService "github.com/jwalitptl/dental-verify/internal/service/setting"
	specializationService "github.com/jwalitptl/dental-verify/internal/service/specialization"
	verificationService "github.com/jwalitptl/dental-verify/internal/service/verification"
	"github.com/jwalitptl/dental-verify/pkg/auth"
	"github.com/jwalitptl/dental-verify/pkg/logger"
	"github.com/jwalitptl/dental-verify/pkg/messaging/redis"
	"github.com/jwalitptl/dental-verify/pkg/security"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.NewLogger(nil).Fatal(err, "failed to load configuration")
	}

	log := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Console:    cfg.Log.Console,
	})
	log.SetGlobal()
	gin.SetMode(gin.ReleaseMode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	prom := prometheusHandler.New("dental_verify")
	m := prom.Metrics()

	selector, store, err := datasource.Bootstrap(ctx, cfg.DataSource, datasource.WithMetrics(m))
	if err != nil {
		log.Fatal(err, "failed to open data source")
	}
	defer store.Close()
	backend := selector.Describe()
	log.Info("data source ready", "backend", string(backend.Kind))

	var auditOpts []auditService.Option
	auditOpts = append(auditOpts, auditService.WithLogger(log))
	if cfg.RedisEnabled() {
		client, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			// Events are best effort; the API runs without them.
			log.Error(err, "redis unavailable, verification events disabled")
		} else {
			broker := redis.NewRedisBroker(client, log.Zerolog())
			defer broker.Close()
			auditOpts = append(auditOpts, auditService.WithPublisher(broker))
		}
	}

	if !security.ValidHash(cfg.Auth.AdminPasswordHash) {
		log.Warn("auth.admin_password_hash is not a bcrypt hash, admin login disabled")
	}
	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		log.Fatal(err, "invalid auth configuration")
	}

	// Services
	auditSvc := auditService.NewService(store, auditOpts...)
	verificationSvc := verificationService.NewService(store.Clinics(), auditSvc, m, log)
	clinicSvc := clinicService.NewService(store.Clinics(), log)
	geographySvc := geographyService.NewService(store, log)
	specializationSvc := specializationService.NewService(store)
	settingSvc := settingService.NewService(store.Settings(), log)
	expirySvc := expiry.NewService(store.Clinics(), m, log)
	authSvc := authService.NewService(authService.Admin{
		Email:        cfg.Auth.AdminEmail,
		PasswordHash: cfg.Auth.AdminPasswordHash,
	}, security.NewBcryptHasher(cfg.Auth.BcryptCost), tokens, log)

	handlers := router.Handlers{
		Health:         health.NewHandler(string(backend.Kind), store),
		Auth:           authHandler.NewHandler(authSvc),
		Verification:   verificationHandler.NewHandler(verificationSvc, auditSvc),
		Clinic:         clinicHandler.NewHandler(clinicSvc),
		Geography:      geographyHandler.NewHandler(geographySvc),
		Specialization: specializationHandler.NewHandler(specializationSvc),
		Setting:        settingHandler.NewHandler(settingSvc),
		Admin:          adminHandler.NewHandler(expirySvc, selector),
	}
	if cfg.Server.MetricsEnabled {
		handlers.Metrics = prom
	}

	r := router.NewRouter(middleware.NewAuthMiddleware(authSvc), handlers, router.RouterConfig{
		CORS:          cfg.CORS,
		Security:      middleware.DefaultSecurityConfig(),
		RateLimit:     cfg.RateLimit,
		Timeout:       cfg.Server.RequestTimeout,
		MaxBodySize:   cfg.Server.MaxBodySize,
		MaxUploadSize: cfg.Server.MaxUploadSize,
	})
	r.Setup()

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err, "failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "server forced to shutdown")
	}

	log.Info("server exited properly")
}
