package gateway

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/dental-verify/internal/repository/local"
	apperrors "github.com/jwalitptl/dental-verify/pkg/errors"
)

func contextWithHeaders(headers map[string]string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	req := httptest.NewRequest(http.MethodGet, "/api/db/clinics", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	c.Request = req
	return c
}

func TestPoolResolverFallback(t *testing.T) {
	fallback, err := local.Open(filepath.Join(t.TempDir(), "fallback.db"))
	require.NoError(t, err)
	defer fallback.Close()

	r := NewPoolResolver(fallback, DefaultPoolConfig())
	defer r.Close()

	store, err := r.StoreFor(contextWithHeaders(nil))
	require.NoError(t, err)
	assert.Same(t, fallback, store)
}

func TestPoolResolverRejectsIncompleteHeaders(t *testing.T) {
	r := NewPoolResolver(nil, DefaultPoolConfig())
	defer r.Close()

	_, err := r.StoreFor(contextWithHeaders(nil))
	assert.True(t, apperrors.Is(err, apperrors.ErrConfiguration))

	_, err = r.StoreFor(contextWithHeaders(map[string]string{HeaderDBHost: "db"}))
	assert.True(t, apperrors.Is(err, apperrors.ErrConfiguration))

	_, err = r.StoreFor(contextWithHeaders(map[string]string{
		HeaderDBHost: "db",
		HeaderDBPort: "five",
		HeaderDBName: "dental",
		HeaderDBUser: "clinic",
	}))
	assert.True(t, apperrors.Is(err, apperrors.ErrConfiguration))
}

func mockPool(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestPoolResolverKeepsFirstPool(t *testing.T) {
	r := NewPoolResolver(nil, DefaultPoolConfig())

	first, _ := mockPool(t)
	second, mock := mockPool(t)
	mock.ExpectClose()

	assert.Same(t, first, r.keep("dsn", first))
	assert.Same(t, first, r.keep("dsn", second))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// evictingCache reports an existing entry on Add that is gone by the time
// Get runs.
type evictingCache struct {
	*cache.Cache
}

func (evictingCache) Add(string, interface{}, time.Duration) error {
	return errors.New("item already exists")
}

func (e evictingCache) Get(string) (interface{}, bool) {
	return nil, false
}

func TestPoolResolverKeepsPoolAfterEviction(t *testing.T) {
	pools := evictingCache{Cache: cache.New(time.Minute, time.Minute)}
	r := &PoolResolver{cfg: DefaultPoolConfig(), pools: pools}

	db, mock := mockPool(t)
	assert.Same(t, db, r.keep("dsn", db))

	_, found := pools.Cache.Get("dsn")
	assert.True(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}
