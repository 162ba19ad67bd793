// Command gateway is the REST facade the remote backend talks to. It maps
// /api/db requests onto PostgreSQL, either the database named in the
// X-DB-* headers or its own configured one.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/dental-verify/internal/config"
	"github.com/jwalitptl/dental-verify/internal/handler/gateway"
	prometheusHandler "github.com/jwalitptl/dental-verify/internal/handler/prometheus"
	"github.com/jwalitptl/dental-verify/internal/middleware"
	"github.com/jwalitptl/dental-verify/internal/repository"
	"github.com/jwalitptl/dental-verify/internal/repository/postgres"
	"github.com/jwalitptl/dental-verify/pkg/logger"
	"github.com/jwalitptl/dental-verify/pkg/validator"
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
	validator.RegisterGin()

	ctx := context.Background()

	// The default database is optional; without it every request must
	// carry connection headers.
	var fallback repository.Store
	if cfg.Database.User != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		db, err := postgres.NewDB(connectCtx, cfg.Database)
		cancel()
		if err != nil {
			log.Error(err, "default database unavailable, header routing only", "host", cfg.Database.Host)
		} else {
			store := postgres.NewStore(db)
			defer store.Close()
			if err := store.Migrate(ctx); err != nil {
				log.Error(err, "failed to migrate default database")
			}
			fallback = store
		}
	}

	pools := gateway.NewPoolResolver(fallback, cfg.Gateway.Pool)
	defer pools.Close()

	prom := prometheusHandler.New("dental_gateway")
	engine := gin.New()
	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.ErrorHandler(),
		prom.Middleware(),
		middleware.Timeout(middleware.TimeoutConfig{Duration: cfg.Server.RequestTimeout}),
		middleware.CORS(cfg.CORS),
		middleware.SizeLimit(cfg.Server.MaxBodySize),
	)
	engine.GET("/metrics", prom.Handler())
	gateway.NewHandler(pools).RegisterRoutes(engine.Group("/api"))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Gateway.Port),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		log.Info("gateway listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err, "failed to start gateway")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down gateway...")

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "gateway forced to shutdown")
	}
}
