package geography

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/dental-verify/internal/handler"
	"github.com/jwalitptl/dental-verify/internal/model"
	geographyService "github.com/jwalitptl/dental-verify/internal/service/geography"
)

type Handler struct {
	service *geographyService.Service
}

func NewHandler(service *geographyService.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the read-only lists the clinic form cascades
// through: pick a governorate, then one of its cities.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/governorates", h.ListGovernorates)
	r.GET("/governorates/:id/cities", h.ListGovernorateCities)
	r.GET("/cities", h.ListCities)
}

func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	governorates := r.Group("/governorates")
	{
		governorates.POST("", h.CreateGovernorate)
		governorates.POST("/seed", h.Seed)
		governorates.PUT("/:id", h.UpdateGovernorate)
		governorates.DELETE("/:id", h.DeleteGovernorate)
	}
	cities := r.Group("/cities")
	{
		cities.POST("", h.CreateCity)
		cities.PUT("/:id", h.UpdateCity)
		cities.DELETE("/:id", h.DeleteCity)
	}
}

func (h *Handler) ListGovernorates(c *gin.Context) {
	list, err := h.service.ListGovernorates(c.Request.Context())
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, list)
}

func (h *Handler) ListGovernorateCities(c *gin.Context) {
	list, err := h.service.ListCities(c.Request.Context(), c.Param("id"))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, list)
}

func (h *Handler) ListCities(c *gin.Context) {
	list, err := h.service.ListCities(c.Request.Context(), c.Query("governorate_id"))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, list)
}

func (h *Handler) CreateGovernorate(c *gin.Context) {
	var in geographyService.GovernorateInput
	if !handler.BindJSON(c, &in) {
		return
	}
	g, err := h.service.CreateGovernorate(c.Request.Context(), in)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Created(c, g)
}

func (h *Handler) UpdateGovernorate(c *gin.Context) {
	var in geographyService.GovernorateInput
	if !handler.BindJSON(c, &in) {
		return
	}
	g, err := h.service.UpdateGovernorate(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, g)
}

func (h *Handler) DeleteGovernorate(c *gin.Context) {
	if err := h.service.DeleteGovernorate(c.Request.Context(), c.Param("id")); err != nil {
		handler.Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Seed(c *gin.Context) {
	res, err := h.service.Seed(c.Request.Context())
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, res)
}

func (h *Handler) CreateCity(c *gin.Context) {
	var in geographyService.CityInput
	if !handler.BindJSON(c, &in) {
		return
	}
	city, err := h.service.CreateCity(c.Request.Context(), in)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Created(c, city)
}

func (h *Handler) UpdateCity(c *gin.Context) {
	var patch model.CityPatch
	if !handler.BindJSON(c, &patch) {
		return
	}
	city, err := h.service.UpdateCity(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, city)
}

func (h *Handler) DeleteCity(c *gin.Context) {
	if err := h.service.DeleteCity(c.Request.Context(), c.Param("id")); err != nil {
		handler.Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
