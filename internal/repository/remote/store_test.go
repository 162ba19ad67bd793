package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/dental-verify/internal/handler/gateway"
	"github.com/jwalitptl/dental-verify/internal/repository"
	"github.com/jwalitptl/dental-verify/internal/repository/local"
	"github.com/jwalitptl/dental-verify/internal/repository/storetest"
	"github.com/jwalitptl/dental-verify/pkg/circuitbreaker"
	apperrors "github.com/jwalitptl/dental-verify/pkg/errors"
	"github.com/jwalitptl/dental-verify/pkg/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newGateway(t *testing.T) *httptest.Server {
	t.Helper()
	backing, err := local.Open(filepath.Join(t.TempDir(), "gateway.db"))
	require.NoError(t, err)
	t.Cleanup(func() { backing.Close() })

	r := gin.New()
	gateway.NewHandler(gateway.StaticResolver{Store: backing}).RegisterRoutes(r.Group("/api"))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) repository.Store {
		srv := newGateway(t)
		store, err := New(Config{BaseURL: srv.URL})
		require.NoError(t, err)
		return store
	})
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New(Config{})
	assert.True(t, apperrors.Is(err, apperrors.ErrConfiguration))
}

func TestConnectionHeadersForwarded(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"success","data":{"status":"ok"}}`))
	}))
	defer srv.Close()

	store, err := New(Config{
		BaseURL:  srv.URL,
		Host:     "db.example.com",
		Port:     "3306",
		Database: "dental",
		User:     "clinic",
		Password: "secret",
	})
	require.NoError(t, err)
	require.NoError(t, store.Ping(context.Background()))

	assert.Equal(t, "db.example.com", got.Get("X-DB-Host"))
	assert.Equal(t, "3306", got.Get("X-DB-Port"))
	assert.Equal(t, "dental", got.Get("X-DB-Name"))
	assert.Equal(t, "clinic", got.Get("X-DB-User"))
	assert.Equal(t, "secret", got.Get("X-DB-Password"))
}

func TestReadsRetryWritesDoNot(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"error","message":"database unavailable"}`))
	}))
	defer srv.Close()

	breaker := circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{Name: "test", MaxFailures: 100})
	store, err := New(Config{BaseURL: srv.URL, RetryAttempts: 3, RetryDelay: time.Millisecond}, WithBreaker(breaker))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Clinics().List(ctx)
	assert.True(t, apperrors.IsUnavailable(err), "got %v", err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))

	atomic.StoreInt32(&calls, 0)
	err = store.Clinics().IncrementVerificationCount(ctx, "c1")
	assert.True(t, apperrors.IsUnavailable(err), "got %v", err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestUnreachableGateway(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	store, err := New(Config{BaseURL: url, RetryAttempts: 1, Timeout: time.Second})
	require.NoError(t, err)

	_, err = store.Clinics().FindByLicense(context.Background(), "JOR-DEN-001")
	assert.True(t, apperrors.IsUnavailable(err), "got %v", err)
}

func TestStoreMetrics(t *testing.T) {
	srv := newGateway(t)
	m := metrics.NewMetrics(prometheus.NewRegistry(), "test")
	store, err := New(Config{BaseURL: srv.URL}, WithMetrics(m))
	require.NoError(t, err)

	_, err = store.Clinics().Get(context.Background(), "missing")
	assert.True(t, apperrors.IsNotFound(err))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreOperations.WithLabelValues("remote", "clinics.get", "not_found")))
}
