package setting

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/dental-verify/internal/handler"
	settingService "github.com/jwalitptl/dental-verify/internal/service/setting"
)

type Handler struct {
	service *settingService.Service
}

func NewHandler(service *settingService.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/settings/public", h.Public)
}

func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	settings := r.Group("/settings")
	{
		settings.GET("", h.List)
		settings.GET("/:key", h.Get)
		settings.PUT("/:key", h.Set)
		settings.DELETE("/:key", h.Delete)
	}
}

func (h *Handler) Public(c *gin.Context) {
	values, err := h.service.Public(c.Request.Context())
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, values)
}

func (h *Handler) List(c *gin.Context) {
	list, err := h.service.List(c.Request.Context())
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, list)
}

func (h *Handler) Get(c *gin.Context) {
	st, err := h.service.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, st)
}

func (h *Handler) Set(c *gin.Context) {
	var in settingService.Input
	if !handler.BindJSON(c, &in) {
		return
	}
	st, err := h.service.Set(c.Request.Context(), c.Param("key"), in)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, st)
}

func (h *Handler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("key")); err != nil {
		handler.Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
