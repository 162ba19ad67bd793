// Package config loads process configuration from config.yml, a .env file
// and DENTAL_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/jwalitptl/dental-verify/internal/datasource"
	"github.com/jwalitptl/dental-verify/internal/email"
	"github.com/jwalitptl/dental-verify/internal/handler/gateway"
	"github.com/jwalitptl/dental-verify/internal/middleware"
	"github.com/jwalitptl/dental-verify/internal/repository/postgres"
	"github.com/jwalitptl/dental-verify/internal/worker"
	"github.com/jwalitptl/dental-verify/pkg/messaging/redis"
)

const envPrefix = "DENTAL"

type Config struct {
	Server     ServerConfig                 `mapstructure:"server"`
	Log        LogConfig                    `mapstructure:"log"`
	DataSource datasource.Config            `mapstructure:"data_source"`
	Database   postgres.Config              `mapstructure:"database"`
	Gateway    GatewayConfig                `mapstructure:"gateway"`
	Auth       AuthConfig                   `mapstructure:"auth"`
	Redis      redis.Config                 `mapstructure:"redis"`
	Worker     worker.SweeperConfig         `mapstructure:"worker"`
	SMTP       email.Config                 `mapstructure:"smtp"`
	RateLimit  middleware.RateLimiterConfig `mapstructure:"rate_limit"`
	CORS       middleware.CORSConfig        `mapstructure:"cors"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	MaxUploadSize   int64         `mapstructure:"max_upload_size"`
	MetricsEnabled  bool          `mapstructure:"metrics_enabled"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

type LogConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

type GatewayConfig struct {
	Port int                `mapstructure:"port"`
	Pool gateway.PoolConfig `mapstructure:"pool"`
}

type AuthConfig struct {
	JWTSecret         string        `mapstructure:"jwt_secret"`
	Issuer            string        `mapstructure:"issuer"`
	TokenTTL          time.Duration `mapstructure:"token_ttl"`
	AdminEmail        string        `mapstructure:"admin_email"`
	AdminPasswordHash string        `mapstructure:"admin_password_hash"`
	BcryptCost        int           `mapstructure:"bcrypt_cost"`
}

// overrides are the deployment knobs most often set per environment. Empty
// values leave the file configuration alone.
type overrides struct {
	Port              int    `envconfig:"PORT"`
	LogLevel          string `envconfig:"LOG_LEVEL"`
	DataSource        string `envconfig:"DATA_SOURCE"`
	LocalPath         string `envconfig:"LOCAL_PATH"`
	APIBaseURL        string `envconfig:"API_BASE_URL"`
	HostedURL         string `envconfig:"HOSTED_URL"`
	HostedAPIKey      string `envconfig:"HOSTED_API_KEY"`
	DBHost            string `envconfig:"DB_HOST"`
	DBPort            int    `envconfig:"DB_PORT"`
	DBUser            string `envconfig:"DB_USER"`
	DBPassword        string `envconfig:"DB_PASSWORD"`
	DBName            string `envconfig:"DB_NAME"`
	JWTSecret         string `envconfig:"JWT_SECRET"`
	AdminEmail        string `envconfig:"ADMIN_EMAIL"`
	AdminPasswordHash string `envconfig:"ADMIN_PASSWORD_HASH"`
	RedisURL          string `envconfig:"REDIS_URL"`
	SMTPHost          string `envconfig:"SMTP_HOST"`
	SMTPPassword      string `envconfig:"SMTP_PASSWORD"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_body_size", middleware.DefaultMaxBodySize)
	v.SetDefault("server.max_upload_size", middleware.DefaultMaxUploadSize)
	v.SetDefault("server.metrics_enabled", true)

	v.SetDefault("log.level", "info")

	v.SetDefault("data_source.preference", string(datasource.KindLocal))
	v.SetDefault("data_source.timeout", 10*time.Second)
	v.SetDefault("data_source.retry_attempts", 3)
	v.SetDefault("data_source.retry_delay", 200*time.Millisecond)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "dental_verify")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)

	pool := gateway.DefaultPoolConfig()
	v.SetDefault("gateway.port", 3001)
	v.SetDefault("gateway.pool.idle_timeout", pool.IdleTimeout)
	v.SetDefault("gateway.pool.cleanup_interval", pool.CleanupInterval)
	v.SetDefault("gateway.pool.max_open_conns", pool.MaxOpenConns)
	v.SetDefault("gateway.pool.sslmode", pool.SSLMode)

	v.SetDefault("auth.issuer", "dental-verify")
	v.SetDefault("auth.token_ttl", 12*time.Hour)
	v.SetDefault("auth.bcrypt_cost", 12)

	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)

	sweep := worker.DefaultSweeperConfig()
	v.SetDefault("worker.interval", sweep.Interval)
	v.SetDefault("worker.lock_key", sweep.LockKey)
	v.SetDefault("worker.lock_ttl", sweep.LockTTL)
	v.SetDefault("worker.run_on_start", sweep.RunOnStart)

	v.SetDefault("smtp.port", 587)

	limits := middleware.DefaultRateLimiterConfig()
	v.SetDefault("rate_limit.rate", limits.Rate)
	v.SetDefault("rate_limit.burst", limits.Burst)
	v.SetDefault("rate_limit.idle", limits.Idle)

	cors := middleware.DefaultCORSConfig()
	v.SetDefault("cors.allow_origins", cors.AllowOrigins)
	v.SetDefault("cors.allow_methods", cors.AllowMethods)
	v.SetDefault("cors.allow_headers", cors.AllowHeaders)
	v.SetDefault("cors.expose_headers", cors.ExposeHeaders)
	v.SetDefault("cors.max_age", cors.MaxAge)
}

// LoadConfig reads config.yml from the usual locations. A missing file is
// not an error; defaults and the environment still apply.
func LoadConfig() (*Config, error) {
	return Load("")
}

// Load is LoadConfig with an explicit file, used by the CLI's --config flag.
func Load(file string) (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/app")
		v.AddConfigPath("/app/config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var ov overrides
	if err := envconfig.Process(envPrefix, &ov); err != nil {
		return nil, fmt.Errorf("failed to read %s_* environment: %w", envPrefix, err)
	}
	ov.apply(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (ov overrides) apply(cfg *Config) {
	setString := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, v int) {
		if v != 0 {
			*dst = v
		}
	}
	setInt(&cfg.Server.Port, ov.Port)
	setString(&cfg.Log.Level, ov.LogLevel)
	setString(&cfg.DataSource.Preference, ov.DataSource)
	setString(&cfg.DataSource.LocalPath, ov.LocalPath)
	setString(&cfg.DataSource.Remote.APIBaseURL, ov.APIBaseURL)
	setString(&cfg.DataSource.Hosted.ProjectURL, ov.HostedURL)
	setString(&cfg.DataSource.Hosted.APIKey, ov.HostedAPIKey)
	setString(&cfg.Database.Host, ov.DBHost)
	setInt(&cfg.Database.Port, ov.DBPort)
	setString(&cfg.Database.User, ov.DBUser)
	setString(&cfg.Database.Password, ov.DBPassword)
	setString(&cfg.Database.Name, ov.DBName)
	setString(&cfg.Auth.JWTSecret, ov.JWTSecret)
	setString(&cfg.Auth.AdminEmail, ov.AdminEmail)
	setString(&cfg.Auth.AdminPasswordHash, ov.AdminPasswordHash)
	setString(&cfg.Redis.URL, ov.RedisURL)
	setString(&cfg.SMTP.Host, ov.SMTPHost)
	setString(&cfg.SMTP.Password, ov.SMTPPassword)
}

// Validate catches settings that would only fail later at first use.
func (c *Config) Validate() error {
	var problems []string
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if c.DataSource.Preference != "" && !datasource.KnownKind(c.DataSource.Preference) {
		problems = append(problems, fmt.Sprintf("data_source.preference %q is not local, remote or hosted", c.DataSource.Preference))
	}
	if c.RateLimit.Rate < 0 {
		problems = append(problems, "rate_limit.rate must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// RedisEnabled reports whether a Redis URL was configured.
func (c *Config) RedisEnabled() bool {
	return c.Redis.URL != ""
}
