package clinic

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/dental-verify/internal/handler"
	"github.com/jwalitptl/dental-verify/internal/middleware"
	"github.com/jwalitptl/dental-verify/internal/model"
	clinicService "github.com/jwalitptl/dental-verify/internal/service/clinic"
	apperrors "github.com/jwalitptl/dental-verify/pkg/errors"
	"github.com/jwalitptl/dental-verify/pkg/qr"
)

// Service is the clinic registry as the admin dashboard uses it.
type Service interface {
	clinicService.ClinicServicer
	ImportCSV(ctx context.Context, r io.Reader) (*clinicService.ImportResult, error)
	ExportCSV(ctx context.Context, w io.Writer) (int, error)
	ExportXLSX(ctx context.Context) ([]byte, error)
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	service Service
	now     func() time.Time
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service, now: time.Now}
}

// RegisterRoutes mounts the admin clinic routes. uploadLimit guards the
// import endpoint.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, uploadLimit gin.HandlerFunc) {
	clinics := r.Group("/clinics")
	{
		clinics.GET("", h.ListClinics)
		clinics.POST("", h.CreateClinic)
		clinics.DELETE("", h.ClearClinics)
		clinics.POST("/import", uploadLimit, h.ImportClinics)
		clinics.GET("/export", middleware.Compress(gzip.DefaultCompression), h.ExportClinics)
		clinics.GET("/:id", h.GetClinic)
		clinics.PUT("/:id", h.UpdateClinic)
		clinics.DELETE("/:id", h.DeleteClinic)
		clinics.GET("/:id/qrcode", h.QRCode)
	}
	r.GET("/analytics", h.Analytics)
}

func (h *Handler) ListClinics(c *gin.Context) {
	var filter clinicService.ListFilter
	if !handler.BindQuery(c, &filter) {
		return
	}
	clinics, err := h.service.ListClinics(c.Request.Context(), filter)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, clinics)
}

func (h *Handler) CreateClinic(c *gin.Context) {
	var clinic model.Clinic
	if !handler.BindJSON(c, &clinic) {
		return
	}
	clinic.ID = ""
	if err := h.service.CreateClinic(c.Request.Context(), &clinic); err != nil {
		handler.Fail(c, err)
		return
	}
	handler.Created(c, clinic)
}

func (h *Handler) GetClinic(c *gin.Context) {
	clinic, err := h.service.GetClinic(c.Request.Context(), c.Param("id"))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, clinic)
}

func (h *Handler) UpdateClinic(c *gin.Context) {
	var patch model.ClinicPatch
	if !handler.BindJSON(c, &patch) {
		return
	}
	// Counts only move through verification.
	patch.VerificationCount = nil
	clinic, err := h.service.UpdateClinic(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, clinic)
}

func (h *Handler) DeleteClinic(c *gin.Context) {
	if err := h.service.DeleteClinic(c.Request.Context(), c.Param("id")); err != nil {
		handler.Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ClearClinics wipes the registry. The caller must confirm with
// ?confirm=true.
func (h *Handler) ClearClinics(c *gin.Context) {
	if c.Query("confirm") != "true" {
		handler.Fail(c, apperrors.NewBadRequest("add confirm=true to delete every clinic", nil))
		return
	}
	if err := h.service.ClearClinics(c.Request.Context()); err != nil {
		handler.Fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ImportClinics accepts a CSV either as the multipart field "file" or as the
// raw request body.
func (h *Handler) ImportClinics(c *gin.Context) {
	var body io.Reader = c.Request.Body
	if file, err := c.FormFile("file"); err == nil {
		f, err := file.Open()
		if err != nil {
			handler.Fail(c, apperrors.NewBadRequest("failed to read upload", err))
			return
		}
		defer f.Close()
		body = f
	}

	result, err := h.service.ImportCSV(c.Request.Context(), body)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, result)
}

func (h *Handler) ExportClinics(c *gin.Context) {
	ctx := c.Request.Context()
	switch format := c.DefaultQuery("format", "csv"); format {
	case "csv":
		var buf bytes.Buffer
		if _, err := h.service.ExportCSV(ctx, &buf); err != nil {
			handler.Fail(c, err)
			return
		}
		h.attachment(c, "csv", "text/csv; charset=utf-8", buf.Bytes())
	case "xlsx":
		data, err := h.service.ExportXLSX(ctx)
		if err != nil {
			handler.Fail(c, err)
			return
		}
		h.attachment(c, "xlsx", xlsxContentType, data)
	default:
		handler.Fail(c, apperrors.NewBadRequest(fmt.Sprintf("unsupported export format %q", format), nil))
	}
}

func (h *Handler) attachment(c *gin.Context, ext, contentType string, data []byte) {
	name := clinicService.ExportFilename(ext, h.now())
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, contentType, data)
}

// QRCode serves the clinic's verification code as PNG.
func (h *Handler) QRCode(c *gin.Context) {
	size := qr.DefaultSize
	if v := c.Query("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			handler.Fail(c, apperrors.NewBadRequest("size must be a positive integer", err))
			return
		}
		size = n
	}
	png, clinic, err := h.service.QRCode(c.Request.Context(), c.Param("id"), size)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	if c.Query("download") == "true" {
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="qr_%s.png"`, clinic.ID))
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (h *Handler) Analytics(c *gin.Context) {
	analytics, err := h.service.Analytics(c.Request.Context())
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, analytics)
}
