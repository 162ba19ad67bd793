package verification

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/dental-verify/internal/handler"
	"github.com/jwalitptl/dental-verify/internal/model"
	verificationService "github.com/jwalitptl/dental-verify/internal/service/verification"
	apperrors "github.com/jwalitptl/dental-verify/pkg/errors"
	"github.com/jwalitptl/dental-verify/pkg/qr"
)

type Verifier interface {
	Verify(ctx context.Context, req verificationService.Request) (*verificationService.Result, error)
}

type AuditLog interface {
	List(ctx context.Context, filter model.VerificationFilter) ([]*model.VerificationAttempt, error)
	Stats(ctx context.Context, since *time.Time) (*model.VerificationStats, error)
}

type Handler struct {
	verifier Verifier
	audit    AuditLog
}

func NewHandler(verifier Verifier, audit AuditLog) *Handler {
	return &Handler{verifier: verifier, audit: audit}
}

// RegisterRoutes mounts the public verification endpoints. Extra handlers,
// such as a rate limiter, run before each of them.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, mw ...gin.HandlerFunc) {
	verifications := r.Group("/verifications", mw...)
	{
		verifications.POST("", h.Verify)
		verifications.POST("/qr", h.VerifyQR)
		verifications.POST("/image", h.VerifyImage)
	}
	// License numbers may contain slashes, hence the catch-all.
	r.GET("/verify/*license", append(mw, h.VerifyLicense)...)
}

func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.GET("/verifications", h.ListAttempts)
	r.GET("/verifications/stats", h.Stats)
}

type qrRequest struct {
	Payload string `json:"payload" binding:"required"`
}

func (h *Handler) Verify(c *gin.Context) {
	var req verificationService.Request
	if !handler.BindJSON(c, &req) {
		return
	}
	h.verify(c, req)
}

// VerifyQR takes the text a scanner read from a code.
func (h *Handler) VerifyQR(c *gin.Context) {
	var req qrRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	h.verify(c, verificationService.Request{
		LicenseNumber: qr.ParseLicense(req.Payload),
		Method:        model.VerificationMethodQRScan,
	})
}

// VerifyImage decodes an uploaded photo of a code.
func (h *Handler) VerifyImage(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		handler.Fail(c, apperrors.NewBadRequest("image file is required", err))
		return
	}
	f, err := file.Open()
	if err != nil {
		handler.Fail(c, apperrors.NewBadRequest("failed to read image", err))
		return
	}
	defer f.Close()

	text, err := qr.DecodeImage(f)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	h.verify(c, verificationService.Request{
		LicenseNumber: qr.ParseLicense(text),
		Method:        model.VerificationMethodImageUpload,
	})
}

func (h *Handler) VerifyLicense(c *gin.Context) {
	h.verify(c, verificationService.Request{
		LicenseNumber: strings.TrimPrefix(c.Param("license"), "/"),
		Method:        model.VerificationMethodManualEntry,
	})
}

// verify answers every outcome, not_found included, with 200. Only system
// failures produce an error status.
func (h *Handler) verify(c *gin.Context, req verificationService.Request) {
	if req.LicenseNumber == "" {
		handler.Fail(c, apperrors.NewBadRequest("license number is required", nil))
		return
	}
	req.IPAddress = c.ClientIP()
	req.UserAgent = c.Request.UserAgent()

	result, err := h.verifier.Verify(c.Request.Context(), req)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, result)
}

func (h *Handler) ListAttempts(c *gin.Context) {
	filter := model.VerificationFilter{
		ClinicID:      c.Query("clinic_id"),
		LicenseNumber: c.Query("license_number"),
		Limit:         100,
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			handler.Fail(c, apperrors.NewBadRequest("limit must be a non-negative integer", err))
			return
		}
		filter.Limit = n
	}
	since, ok := parseSince(c)
	if !ok {
		return
	}
	filter.Since = since

	attempts, err := h.audit.List(c.Request.Context(), filter)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, attempts)
}

func (h *Handler) Stats(c *gin.Context) {
	since, ok := parseSince(c)
	if !ok {
		return
	}
	stats, err := h.audit.Stats(c.Request.Context(), since)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, stats)
}

// parseSince reads ?since= as RFC 3339 or a plain date.
func parseSince(c *gin.Context) (*time.Time, bool) {
	v := c.Query("since")
	if v == "" {
		return nil, true
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, true
	}
	d, err := model.ParseDate(v)
	if err != nil {
		handler.Fail(c, apperrors.NewBadRequest("since must be RFC 3339 or YYYY-MM-DD", err))
		return nil, false
	}
	t := d.Time()
	return &t, true
}
