package router

import (
	"time"

	"github.com/gin-gonic/gin"

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
	"github.com/jwalitptl/dental-verify/pkg/validator"
)

// Handlers groups everything the API mounts. Metrics is optional.
type Handlers struct {
	Health         *health.Handler
	Metrics        *prometheusHandler.Handler
	Auth           *authHandler.Handler
	Verification   *verificationHandler.Handler
	Clinic         *clinicHandler.Handler
	Geography      *geographyHandler.Handler
	Specialization *specializationHandler.Handler
	Setting        *settingHandler.Handler
	Admin          *adminHandler.Handler
}

type RouterConfig struct {
	CORS          middleware.CORSConfig
	Security      middleware.SecurityConfig
	RateLimit     middleware.RateLimiterConfig
	Timeout       time.Duration
	MaxBodySize   int64
	MaxUploadSize int64
}

func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		CORS:          middleware.DefaultCORSConfig(),
		Security:      middleware.DefaultSecurityConfig(),
		RateLimit:     middleware.DefaultRateLimiterConfig(),
		Timeout:       30 * time.Second,
		MaxBodySize:   middleware.DefaultMaxBodySize,
		MaxUploadSize: middleware.DefaultMaxUploadSize,
	}
}

type Router struct {
	engine  *gin.Engine
	auth    *middleware.AuthMiddleware
	limiter *middleware.RateLimiter
	h       Handlers
	config  RouterConfig
}

func NewRouter(auth *middleware.AuthMiddleware, h Handlers, config RouterConfig) *Router {
	validator.RegisterGin()

	if config.MaxBodySize <= 0 {
		config.MaxBodySize = middleware.DefaultMaxBodySize
	}
	if config.MaxUploadSize <= 0 {
		config.MaxUploadSize = middleware.DefaultMaxUploadSize
	}

	engine := gin.New()
	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.ErrorHandler(),
	)
	if h.Metrics != nil {
		engine.Use(h.Metrics.Middleware())
	}
	engine.Use(
		middleware.Timeout(middleware.TimeoutConfig{Duration: config.Timeout}),
		middleware.CORS(config.CORS),
		middleware.SecurityHeaders(config.Security),
	)

	return &Router{
		engine:  engine,
		auth:    auth,
		limiter: middleware.NewRateLimiter(config.RateLimit),
		h:       h,
		config:  config,
	}
}

func (r *Router) Setup() {
	if r.h.Metrics != nil {
		r.engine.GET("/metrics", r.h.Metrics.Handler())
	}
	r.h.Health.RegisterRoutes(r.engine.Group(""))

	api := r.engine.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	r.setupPublicRoutes(api)

	admin := api.Group("/admin")
	admin.Use(
		r.auth.Authenticate(),
		middleware.Cache(middleware.NoStoreCache()),
		middleware.SizeLimit(r.config.MaxBodySize),
	)
	r.setupAdminRoutes(admin)
}

func (r *Router) setupPublicRoutes(rg *gin.RouterGroup) {
	limited := []gin.HandlerFunc{
		r.limiter.RateLimit(),
		middleware.Cache(middleware.NoStoreCache()),
		middleware.SizeLimit(r.config.MaxUploadSize),
	}
	r.h.Verification.RegisterRoutes(rg, limited...)
	r.h.Auth.RegisterRoutes(rg, r.limiter.RateLimit(), middleware.SizeLimit(r.config.MaxBodySize))

	reference := rg.Group("", middleware.Cache(middleware.PublicReferenceCache()))
	r.h.Geography.RegisterRoutes(reference)
	r.h.Specialization.RegisterRoutes(reference)
	r.h.Setting.RegisterRoutes(reference)
}

func (r *Router) setupAdminRoutes(rg *gin.RouterGroup) {
	r.h.Auth.RegisterAdminRoutes(rg)
	r.h.Clinic.RegisterRoutes(rg, middleware.SizeLimit(r.config.MaxUploadSize))
	r.h.Verification.RegisterAdminRoutes(rg)
	r.h.Geography.RegisterAdminRoutes(rg)
	r.h.Specialization.RegisterAdminRoutes(rg)
	r.h.Setting.RegisterAdminRoutes(rg)
	r.h.Admin.RegisterAdminRoutes(rg)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
