// Package gateway serves the REST facade the remote backend talks to. Every
// request is answered from the store its resolver picks, so one gateway can
// front several databases.
package gateway

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/dental-verify/internal/handler"
	"github.com/jwalitptl/dental-verify/internal/model"
	"github.com/jwalitptl/dental-verify/internal/repository"
	apperrors "github.com/jwalitptl/dental-verify/pkg/errors"
)

// StoreResolver picks the store that serves a request.
type StoreResolver interface {
	StoreFor(c *gin.Context) (repository.Store, error)
}

// StaticResolver always answers with the same store.
type StaticResolver struct {
	Store repository.Store
}

func (r StaticResolver) StoreFor(*gin.Context) (repository.Store, error) {
	return r.Store, nil
}

// migrator is implemented by stores that own a schema.
type migrator interface {
	Migrate(ctx context.Context) error
}

type Handler struct {
	stores StoreResolver
}

func NewHandler(stores StoreResolver) *Handler {
	return &Handler{stores: stores}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/health", h.Health)

	db := r.Group("/db")
	{
		db.POST("/create-tables", h.CreateTables)

		db.GET("/clinics", h.ListClinics)
		db.POST("/clinics", h.CreateClinic)
		db.DELETE("/clinics", h.ClearClinics)
		db.GET("/clinics/:id", h.GetClinic)
		db.PUT("/clinics/:id", h.UpdateClinic)
		db.DELETE("/clinics/:id", h.DeleteClinic)
		db.POST("/clinics/:id/verification-count", h.IncrementVerificationCount)
		db.GET("/clinic-licenses", h.FindClinicByLicense)

		db.GET("/governorates", h.ListGovernorates)
		db.POST("/governorates", h.CreateGovernorate)
		db.GET("/governorates/:id", h.GetGovernorate)
		db.PUT("/governorates/:id", h.UpdateGovernorate)
		db.DELETE("/governorates/:id", h.DeleteGovernorate)
		db.GET("/governorates/:id/cities", h.ListCitiesByGovernorate)

		db.GET("/cities", h.ListCities)
		db.POST("/cities", h.CreateCity)
		db.GET("/cities/:id", h.GetCity)
		db.PUT("/cities/:id", h.UpdateCity)
		db.DELETE("/cities/:id", h.DeleteCity)

		db.GET("/specializations", h.ListSpecializations)
		db.POST("/specializations", h.CreateSpecialization)
		db.GET("/specializations/:id", h.GetSpecialization)
		db.PUT("/specializations/:id", h.UpdateSpecialization)
		db.DELETE("/specializations/:id", h.DeleteSpecialization)

		db.GET("/settings", h.ListSettings)
		db.GET("/settings/:key", h.GetSetting)
		db.PUT("/settings/:key", h.UpsertSetting)
		db.DELETE("/settings/:key", h.DeleteSetting)

		db.GET("/verifications", h.ListVerifications)
		db.POST("/verifications", h.CreateVerification)
	}
}

// store resolves the request's store or writes the error and returns nil.
func (h *Handler) store(c *gin.Context) repository.Store {
	store, err := h.stores.StoreFor(c)
	if err != nil {
		handler.Fail(c, err)
		return nil
	}
	return store
}

func bind(c *gin.Context, v interface{}) bool {
	return handler.BindJSON(c, v)
}

func respond(c *gin.Context, status int, data interface{}, err error) {
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(status, handler.NewSuccessResponse(data))
}

func (h *Handler) Health(c *gin.Context) {
	store := h.store(c)
	if store == nil {
		return
	}
	if err := store.Ping(c.Request.Context()); err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"status": "ok"}))
}

func (h *Handler) CreateTables(c *gin.Context) {
	store := h.store(c)
	if store == nil {
		return
	}
	m, ok := store.(migrator)
	if !ok {
		c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"migrated": false}))
		return
	}
	respond(c, http.StatusOK, gin.H{"migrated": true}, m.Migrate(c.Request.Context()))
}

func (h *Handler) ListClinics(c *gin.Context) {
	if store := h.store(c); store != nil {
		clinics, err := store.Clinics().List(c.Request.Context())
		respond(c, http.StatusOK, clinics, err)
	}
}

func (h *Handler) GetClinic(c *gin.Context) {
	if store := h.store(c); store != nil {
		clinic, err := store.Clinics().Get(c.Request.Context(), c.Param("id"))
		respond(c, http.StatusOK, clinic, err)
	}
}

// FindClinicByLicense takes the license as a query parameter since license
// numbers may contain slashes.
func (h *Handler) FindClinicByLicense(c *gin.Context) {
	if store := h.store(c); store != nil {
		clinic, err := store.Clinics().FindByLicense(c.Request.Context(), c.Query("license_number"))
		respond(c, http.StatusOK, clinic, err)
	}
}

func (h *Handler) CreateClinic(c *gin.Context) {
	store := h.store(c)
	if store == nil {
		return
	}
	var clinic model.Clinic
	if !bind(c, &clinic) {
		return
	}
	err := store.Clinics().Create(c.Request.Context(), &clinic)
	respond(c, http.StatusCreated, &clinic, err)
}

func (h *Handler) UpdateClinic(c *gin.Context) {
	store := h.store(c)
	if store == nil {
		return
	}
	var patch model.ClinicPatch
	if !bind(c, &patch) {
		return
	}
	err := store.Clinics().Update(c.Request.Context(), c.Param("id"), patch)
	respond(c, http.StatusOK, gin.H{"id": c.Param("id")}, err)
}

func (h *Handler) DeleteClinic(c *gin.Context) {
	if store := h.store(c); store != nil {
		err := store.Clinics().Delete(c.Request.Context(), c.Param("id"))
		respond(c, http.StatusOK, gin.H{"id": c.Param("id")}, err)
	}
}

func (h *Handler) ClearClinics(c *gin.Context) {
	if store := h.store(c); store != nil {
		respond(c, http.StatusOK, gin.H{"cleared": true}, store.Clinics().Clear(c.Request.Context()))
	}
}

func (h *Handler) IncrementVerificationCount(c *gin.Context) {
	if store := h.store(c); store != nil {
		err := store.Clinics().IncrementVerificationCount(c.Request.Context(), c.Param("id"))
		respond(c, http.StatusOK, gin.H{"id": c.Param("id")}, err)
	}
}

func (h *Handler) ListGovernorates(c *gin.Context) {
	if store := h.store(c); store != nil {
		list, err := store.Governorates().List(c.Request.Context())
		respond(c, http.StatusOK, list, err)
	}
}

func (h *Handler) GetGovernorate(c *gin.Context) {
	if store := h.store(c); store != nil {
		g, err := store.Governorates().Get(c.Request.Context(), c.Param("id"))
		respond(c, http.StatusOK, g, err)
	}
}

func (h *Handler) CreateGovernorate(c *gin.Context) {
	store := h.store(c)
	if store == nil {
		return
	}
	var g model.Governorate
	if !bind(c, &g) {
		return
	}
	err := store.Governorates().Create(c.Request.Context(), &g)
	respond(c, http.StatusCreated, &g, err)
}

func (h *Handler) UpdateGovernorate(c *gin.Context) {
	store := h.store(c)
	if store == nil {
		return
	}
	var patch model.GovernoratePatch
	if !bind(c, &patch) {
		return
	}
	err := store.Governorates().Update(c.Request.Context(), c.Param("id"), patch)
	respond(c, http.StatusOK, gin.H{"id": c.Param("id")}, err)
}

func (h *Handler) DeleteGovernorate(c *gin.Context) {
	if store := h.store(c); store != nil {
		err := store.Governorates().Delete(c.Request.Context(), c.Param("id"))
		respond(c, http.StatusOK, gin.H{"id": c.Param("id")}, err)
	}
}

func (h *Handler) ListCitiesByGovernorate(c *gin.Context) {
	if store := h.store(c); store != nil {
		list, err := store.Cities().ListByGovernorate(c.Request.Context(), c.Param("id"))
		respond(c, http.StatusOK, list, err)
	}
}

func (h *Handler) ListCities(c *gin.Context) {
	if store := h.store(c); store != nil {
		list, err := store.Cities().List(c.Request.Context())
		respond(c, http.StatusOK, list, err)
	}
}

func (h *Handler) GetCity(c *gin.Context) {
	if store := h.store(c); store != nil {
		city, err := store.Cities().Get(c.Request.Context(), c.Param("id"))
		respond(c, http.StatusOK, city, err)
	}
}

func (h *Handler) CreateCity(c *gin.Context) {
	store := h.store(c)
	if store == nil {
		return
	}
	var city model.City
	if !bind(c, &city) {
		return
	}
	err := store.Cities().Create(c.Request.Context(), &city)
	respond(c, http.StatusCreated, &city, err)
}

func (h *Handler) UpdateCity(c *gin.Context) {
	store := h.store(c)
	if store == nil {
		return
	}
	var patch model.CityPatch
	if !bind(c, &patch) {
		return
	}
	err := store.Cities().Update(c.Request.Context(), c.Param("id"), patch)
	respond(c, http.StatusOK, gin.H{"id": c.Param("id")}, err)
}

func (h *Handler) DeleteCity(c *gin.Context) {
	if store := h.store(c); store != nil {
		err := store.Cities().Delete(c.Request.Context(), c.Param("id"))
		respond(c, http.StatusOK, gin.H{"id": c.Param("id")}, err)
	}
}

func (h *Handler) ListSpecializations(c *gin.Context) {
	if store := h.store(c); store != nil {
		list, err := store.Specializations().List(c.Request.Context())
		respond(c, http.StatusOK, list, err)
	}
}

func (h *Handler) GetSpecialization(c *gin.Context) {
	if store := h.store(c); store != nil {
		sp, err := store.Specializations().Get(c.Request.Context(), c.Param("id"))
		respond(c, http.StatusOK, sp, err)
	}
}

func (h *Handler) CreateSpecialization(c *gin.Context) {
	store := h.store(c)
	if store == nil {
		return
	}
	var sp model.Specialization
	if !bind(c, &sp) {
		return
	}
	err := store.Specializations().Create(c.Request.Context(), &sp)
	respond(c, http.StatusCreated, &sp, err)
}

func (h *Handler) UpdateSpecialization(c *gin.Context) {
	store := h.store(c)
	if store == nil {
		return
	}
	var patch model.SpecializationPatch
	if !bind(c, &patch) {
		return
	}
	err := store.Specializations().Update(c.Request.Context(), c.Param("id"), patch)
	respond(c, http.StatusOK, gin.H{"id": c.Param("id")}, err)
}

func (h *Handler) DeleteSpecialization(c *gin.Context) {
	if store := h.store(c); store != nil {
		err := store.Specializations().Delete(c.Request.Context(), c.Param("id"))
		respond(c, http.StatusOK, gin.H{"id": c.Param("id")}, err)
	}
}

func (h *Handler) ListSettings(c *gin.Context) {
	if store := h.store(c); store != nil {
		list, err := store.Settings().List(c.Request.Context())
		respond(c, http.StatusOK, list, err)
	}
}

func (h *Handler) GetSetting(c *gin.Context) {
	if store := h.store(c); store != nil {
		s, err := store.Settings().Get(c.Request.Context(), c.Param("key"))
		respond(c, http.StatusOK, s, err)
	}
}

func (h *Handler) UpsertSetting(c *gin.Context) {
	store := h.store(c)
	if store == nil {
		return
	}
	var setting model.SiteSetting
	if !bind(c, &setting) {
		return
	}
	setting.Key = c.Param("key")
	err := store.Settings().Upsert(c.Request.Context(), &setting)
	respond(c, http.StatusOK, &setting, err)
}

func (h *Handler) DeleteSetting(c *gin.Context) {
	if store := h.store(c); store != nil {
		err := store.Settings().Delete(c.Request.Context(), c.Param("key"))
		respond(c, http.StatusOK, gin.H{"key": c.Param("key")}, err)
	}
}

func (h *Handler) CreateVerification(c *gin.Context) {
	store := h.store(c)
	if store == nil {
		return
	}
	var attempt model.VerificationAttempt
	if !bind(c, &attempt) {
		return
	}
	err := store.Verifications().Create(c.Request.Context(), &attempt)
	respond(c, http.StatusCreated, &attempt, err)
}

func (h *Handler) ListVerifications(c *gin.Context) {
	store := h.store(c)
	if store == nil {
		return
	}
	filter, err := parseFilter(c)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	list, err := store.Verifications().List(c.Request.Context(), filter)
	respond(c, http.StatusOK, list, err)
}

// parseFilter reads clinic_id, license_number, since (RFC 3339) and limit.
func parseFilter(c *gin.Context) (model.VerificationFilter, error) {
	filter := model.VerificationFilter{
		ClinicID:      c.Query("clinic_id"),
		LicenseNumber: c.Query("license_number"),
	}
	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return filter, apperrors.NewBadRequest("invalid since timestamp", err)
		}
		filter.Since = &since
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return filter, apperrors.NewBadRequest("invalid limit", err)
		}
		filter.Limit = limit
	}
	return filter, nil
}
