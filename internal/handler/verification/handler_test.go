package verification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/dental-verify/internal/model"
	verificationService "github.com/jwalitptl/dental-verify/internal/service/verification"
	apperrors "github.com/jwalitptl/dental-verify/pkg/errors"
	"github.com/jwalitptl/dental-verify/pkg/validator"
)

type stubVerifier struct {
	result *verificationService.Result
	err    error
	last   verificationService.Request
}

func (s *stubVerifier) Verify(_ context.Context, req verificationService.Request) (*verificationService.Result, error) {
	s.last = req
	return s.result, s.err
}

type stubAudit struct {
	filter model.VerificationFilter
	since  *time.Time
}

func (s *stubAudit) List(_ context.Context, filter model.VerificationFilter) ([]*model.VerificationAttempt, error) {
	s.filter = filter
	return []*model.VerificationAttempt{}, nil
}

func (s *stubAudit) Stats(_ context.Context, since *time.Time) (*model.VerificationStats, error) {
	s.since = since
	return &model.VerificationStats{}, nil
}

func setup(v *stubVerifier, a *stubAudit) *gin.Engine {
	gin.SetMode(gin.TestMode)
	validator.RegisterGin()
	r := gin.New()
	h := NewHandler(v, a)
	h.RegisterRoutes(r.Group("/api/v1"))
	h.RegisterAdminRoutes(r.Group("/api/v1/admin"))
	return r
}

func post(r *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestOutcomeVersusSystemError(t *testing.T) {
	tests := []struct {
		name       string
		result     *verificationService.Result
		err        error
		wantStatus int
	}{
		{
			name:       "not found is a result",
			result:     &verificationService.Result{Outcome: verificationService.OutcomeNotFound, LicenseNumber: "X"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "expired is a result",
			result:     &verificationService.Result{Outcome: verificationService.OutcomeExpired, LicenseNumber: "X"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "backend down",
			err:        apperrors.NewUnavailable("data source unreachable", errors.New("dial tcp")),
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "backend misconfigured",
			err:        apperrors.NewConfiguration("remote backend needs api_base_url", nil),
			wantStatus: http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := setup(&stubVerifier{result: tt.result, err: tt.err}, &stubAudit{})
			w := post(r, "/api/v1/verifications", map[string]string{"license_number": "X"})
			assert.Equal(t, tt.wantStatus, w.Code)

			var resp struct {
				Status string `json:"status"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			if tt.err == nil {
				assert.Equal(t, "success", resp.Status)
			} else {
				assert.Equal(t, "error", resp.Status)
			}
		})
	}
}

func TestVerifyRequestShapes(t *testing.T) {
	v := &stubVerifier{result: &verificationService.Result{Outcome: verificationService.OutcomeValid}}
	r := setup(v, &stubAudit{})

	w := get(r, "/api/v1/verify/JOR/DEN/7")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "JOR/DEN/7", v.last.LicenseNumber)
	assert.Equal(t, model.VerificationMethodManualEntry, v.last.Method)

	w = post(r, "/api/v1/verifications/qr", map[string]string{"payload": `{"type":"clinic","license":"JOR-DEN-001"}`})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "JOR-DEN-001", v.last.LicenseNumber)
	assert.Equal(t, model.VerificationMethodQRScan, v.last.Method)

	w = post(r, "/api/v1/verifications/qr", map[string]string{"payload": "JOR-DEN-002"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "JOR-DEN-002", v.last.LicenseNumber)

	w = post(r, "/api/v1/verifications", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(r, "/api/v1/verifications", map[string]string{"license_number": "X", "method": "fax"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = get(r, "/api/v1/verify/")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListAttemptsQuery(t *testing.T) {
	a := &stubAudit{}
	r := setup(&stubVerifier{}, a)

	w := get(r, "/api/v1/admin/verifications?license_number=JOR-DEN-001&limit=5&since=2024-06-01")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "JOR-DEN-001", a.filter.LicenseNumber)
	assert.Equal(t, 5, a.filter.Limit)
	require.NotNil(t, a.filter.Since)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), a.filter.Since.UTC())

	w = get(r, "/api/v1/admin/verifications")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 100, a.filter.Limit)

	w = get(r, "/api/v1/admin/verifications?limit=-1")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = get(r, "/api/v1/admin/verifications/stats?since=yesterday")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
