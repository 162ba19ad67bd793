package gateway

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/dental-verify/internal/repository"
	"github.com/jwalitptl/dental-verify/internal/repository/postgres"
	apperrors "github.com/jwalitptl/dental-verify/pkg/errors"
)

// Connection headers sent by the remote backend. Requests without
// HeaderDBHost use the gateway's own database.
const (
	HeaderDBHost     = "X-DB-Host"
	HeaderDBPort     = "X-DB-Port"
	HeaderDBName     = "X-DB-Name"
	HeaderDBUser     = "X-DB-User"
	HeaderDBPassword = "X-DB-Password"
)

type PoolConfig struct {
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	SSLMode         string        `mapstructure:"sslmode"`
}

func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		IdleTimeout:     30 * time.Minute,
		CleanupInterval: 5 * time.Minute,
		MaxOpenConns:    5,
		SSLMode:         "disable",
	}
}

// poolCache is the subset of *cache.Cache the resolver uses.
type poolCache interface {
	Get(k string) (interface{}, bool)
	Set(k string, x interface{}, d time.Duration)
	Add(k string, x interface{}, d time.Duration) error
	Delete(k string)
	Items() map[string]cache.Item
}

// PoolResolver keeps one connection pool per distinct set of connection
// headers. Pools idle for longer than IdleTimeout are closed.
type PoolResolver struct {
	fallback repository.Store
	cfg      PoolConfig
	pools    poolCache
}

func NewPoolResolver(fallback repository.Store, cfg PoolConfig) *PoolResolver {
	pools := cache.New(cfg.IdleTimeout, cfg.CleanupInterval)
	pools.OnEvicted(func(dsn string, v interface{}) {
		if db, ok := v.(*sqlx.DB); ok {
			if err := db.Close(); err != nil {
				log.Warn().Err(err).Msg("failed to close evicted pool")
			}
		}
	})
	return &PoolResolver{fallback: fallback, cfg: cfg, pools: pools}
}

func (r *PoolResolver) StoreFor(c *gin.Context) (repository.Store, error) {
	host := c.GetHeader(HeaderDBHost)
	if host == "" {
		if r.fallback == nil {
			return nil, apperrors.NewConfiguration("no database configured", nil)
		}
		return r.fallback, nil
	}

	dbCfg := postgres.Config{
		Host:         host,
		Name:         c.GetHeader(HeaderDBName),
		User:         c.GetHeader(HeaderDBUser),
		Password:     c.GetHeader(HeaderDBPassword),
		SSLMode:      r.cfg.SSLMode,
		MaxOpenConns: r.cfg.MaxOpenConns,
	}
	if raw := c.GetHeader(HeaderDBPort); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return nil, apperrors.NewConfiguration("invalid database port", err)
		}
		dbCfg.Port = port
	}
	if dbCfg.Name == "" || dbCfg.User == "" {
		return nil, apperrors.NewConfiguration("database name and user are required", nil)
	}

	dsn := dbCfg.DSN()
	if v, found := r.pools.Get(dsn); found {
		db := v.(*sqlx.DB)
		r.pools.Set(dsn, db, cache.DefaultExpiration)
		return postgres.NewStore(db), nil
	}

	db, err := postgres.NewDB(c.Request.Context(), dbCfg)
	if err != nil {
		return nil, err
	}
	return postgres.NewStore(r.keep(dsn, db)), nil
}

// keep caches a freshly opened pool and returns the pool to use. When another
// request cached one for dsn first, that one wins and db is closed; if it was
// evicted in the meantime, db takes its place.
func (r *PoolResolver) keep(dsn string, db *sqlx.DB) *sqlx.DB {
	if err := r.pools.Add(dsn, db, cache.DefaultExpiration); err == nil {
		return db
	}
	if v, found := r.pools.Get(dsn); found {
		if existing, ok := v.(*sqlx.DB); ok && existing != db {
			db.Close()
			return existing
		}
	}
	r.pools.Set(dsn, db, cache.DefaultExpiration)
	return db
}

// Close closes every cached pool.
func (r *PoolResolver) Close() {
	for dsn := range r.pools.Items() {
		r.pools.Delete(dsn)
	}
}
