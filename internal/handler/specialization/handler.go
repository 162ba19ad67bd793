package specialization

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/dental-verify/internal/handler"
	"github.com/jwalitptl/dental-verify/internal/model"
	specializationService "github.com/jwalitptl/dental-verify/internal/service/specialization"
)

type Handler struct {
	service *specializationService.Service
}

func NewHandler(service *specializationService.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the public list, which only shows active entries.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/specializations", h.ListActive)
}

func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	specializations := r.Group("/specializations")
	{
		specializations.GET("", h.ListAll)
		specializations.POST("", h.Create)
		specializations.PUT("/:id", h.Update)
		specializations.PUT("/:id/active", h.SetActive)
		specializations.DELETE("/:id", h.Delete)
	}
}

func (h *Handler) ListActive(c *gin.Context) {
	h.list(c, true)
}

func (h *Handler) ListAll(c *gin.Context) {
	h.list(c, false)
}

func (h *Handler) list(c *gin.Context, activeOnly bool) {
	list, err := h.service.List(c.Request.Context(), activeOnly)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, list)
}

func (h *Handler) Create(c *gin.Context) {
	var in specializationService.Input
	if !handler.BindJSON(c, &in) {
		return
	}
	sp, err := h.service.Create(c.Request.Context(), in)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Created(c, sp)
}

func (h *Handler) Update(c *gin.Context) {
	var patch model.SpecializationPatch
	if !handler.BindJSON(c, &patch) {
		return
	}
	sp, err := h.service.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, sp)
}

type activeRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

func (h *Handler) SetActive(c *gin.Context) {
	var req activeRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	sp, err := h.service.SetActive(c.Request.Context(), c.Param("id"), *req.IsActive)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, sp)
}

// Delete answers 409 while clinics still use the specialization.
func (h *Handler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		handler.Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
