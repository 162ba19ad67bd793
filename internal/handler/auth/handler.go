package auth

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/dental-verify/internal/handler"
	"github.com/jwalitptl/dental-verify/internal/middleware"
	authService "github.com/jwalitptl/dental-verify/internal/service/auth"
)

type Handler struct {
	svc *authService.Service
}

func NewHandler(svc *authService.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, mw ...gin.HandlerFunc) {
	auth := r.Group("/auth", mw...)
	{
		auth.POST("/login", h.Login)
	}
}

// RegisterAdminRoutes mounts endpoints that need a valid token.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.GET("/auth/me", h.Me)
}

func (h *Handler) Login(c *gin.Context) {
	var req authService.LoginRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	resp, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, resp)
}

func (h *Handler) Me(c *gin.Context) {
	handler.OK(c, gin.H{
		"subject": c.GetString(middleware.ContextSubject),
		"email":   c.GetString(middleware.ContextEmail),
	})
}
