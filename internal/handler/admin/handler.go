// Package admin serves the operational endpoints of the dashboard: which
// backend is in use and the on-demand license recompute.
package admin

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/dental-verify/internal/datasource"
	"github.com/jwalitptl/dental-verify/internal/handler"
	"github.com/jwalitptl/dental-verify/internal/model"
	"github.com/jwalitptl/dental-verify/pkg/httputil"
)

type Recomputer interface {
	Recompute(ctx context.Context, now time.Time) (*model.RecomputeResult, error)
}

type BackendDescriber interface {
	Describe() datasource.Backend
}

type Handler struct {
	recomputer Recomputer
	backend    BackendDescriber
	now        func() time.Time
}

func NewHandler(recomputer Recomputer, backend BackendDescriber) *Handler {
	return &Handler{recomputer: recomputer, backend: backend, now: time.Now}
}

func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.GET("/data-source", h.DataSource)
	r.POST("/licenses/recompute", h.Recompute)
}

func (h *Handler) DataSource(c *gin.Context) {
	handler.OK(c, h.backend.Describe())
}

// Recompute runs the expiry sweep. A sweep that stops part way still
// reports the rows it committed alongside the error.
func (h *Handler) Recompute(c *gin.Context) {
	result, err := h.recomputer.Recompute(c.Request.Context(), h.now())
	if err != nil {
		if result == nil {
			handler.Fail(c, err)
			return
		}
		_ = c.Error(err)
		c.JSON(httputil.StatusCode(err), httputil.Response{
			Status:  "error",
			Message: "license recompute incomplete",
			Data:    result,
		})
		return
	}
	handler.OK(c, result)
}
