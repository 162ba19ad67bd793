// Package datasource decides which backend a process talks to and opens it.
// The choice is made once per process from an explicit Config.
package datasource

import (
	"context"
	"strings"
	"time"

	"github.com/jwalitptl/dental-verify/internal/model"
	"github.com/jwalitptl/dental-verify/internal/repository"
	"github.com/jwalitptl/dental-verify/internal/repository/hosted"
	"github.com/jwalitptl/dental-verify/internal/repository/local"
	"github.com/jwalitptl/dental-verify/internal/repository/remote"
	apperrors "github.com/jwalitptl/dental-verify/pkg/errors"
	"github.com/jwalitptl/dental-verify/pkg/metrics"
)

type Kind string

const (
	KindLocal  Kind = "local"
	KindRemote Kind = "remote"
	KindHosted Kind = "hosted"
)

type RemoteConfig struct {
	APIBaseURL string `mapstructure:"api_base_url" json:"api_base_url"`
	Host       string `mapstructure:"host" json:"host"`
	Port       string `mapstructure:"port" json:"port"`
	Database   string `mapstructure:"database" json:"database"`
	User       string `mapstructure:"user" json:"user"`
	Password   string `mapstructure:"password" json:"-"`
}

type HostedConfig struct {
	ProjectURL string `mapstructure:"project_url" json:"project_url"`
	APIKey     string `mapstructure:"api_key" json:"-"`
}

type Config struct {
	Preference    string        `mapstructure:"preference"`
	LocalPath     string        `mapstructure:"local_path"`
	Remote        RemoteConfig  `mapstructure:"remote"`
	Hosted        HostedConfig  `mapstructure:"hosted"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
}

// Backend is the resolved choice. Exactly one of the kind specific fields
// is meaningful, selected by Kind.
type Backend struct {
	Kind      Kind          `json:"kind"`
	LocalPath string        `json:"local_path,omitempty"`
	Remote    *RemoteConfig `json:"remote,omitempty"`
	Hosted    *HostedConfig `json:"hosted,omitempty"`
}

type Option func(*Selector)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Selector) { s.metrics = m }
}

type Selector struct {
	cfg     Config
	metrics *metrics.Metrics
}

func NewSelector(cfg Config, opts ...Option) *Selector {
	s := &Selector{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ParseKind maps a stored preference onto a Kind. The legacy names mysql and
// supabase are accepted; anything unrecognized means local.
func ParseKind(preference string) Kind {
	switch strings.ToLower(strings.TrimSpace(preference)) {
	case "remote", "mysql":
		return KindRemote
	case "hosted", "supabase":
		return KindHosted
	default:
		return KindLocal
	}
}

// KnownKind reports whether preference names a backend, legacy names
// included.
func KnownKind(preference string) bool {
	switch strings.ToLower(strings.TrimSpace(preference)) {
	case "local", "remote", "mysql", "hosted", "supabase":
		return true
	}
	return false
}

func (s *Selector) Resolve() Backend {
	switch ParseKind(s.cfg.Preference) {
	case KindRemote:
		rc := s.cfg.Remote
		return Backend{Kind: KindRemote, Remote: &rc}
	case KindHosted:
		hc := s.cfg.Hosted
		return Backend{Kind: KindHosted, Hosted: &hc}
	default:
		path := s.cfg.LocalPath
		if path == "" {
			path = local.DefaultPath
		}
		return Backend{Kind: KindLocal, LocalPath: path}
	}
}

// Open builds the store for the resolved backend. A backend that is chosen
// but incompletely configured is an error; it never falls back to local.
func (s *Selector) Open(ctx context.Context) (repository.Store, error) {
	b := s.Resolve()
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch b.Kind {
	case KindRemote:
		store, err := remote.New(remote.Config{
			BaseURL:       b.Remote.APIBaseURL,
			Host:          b.Remote.Host,
			Port:          b.Remote.Port,
			Database:      b.Remote.Database,
			User:          b.Remote.User,
			Password:      b.Remote.Password,
			Timeout:       s.cfg.Timeout,
			RetryAttempts: s.cfg.RetryAttempts,
			RetryDelay:    s.cfg.RetryDelay,
		}, remote.WithMetrics(s.metrics))
		if err != nil {
			return nil, err
		}
		return store, nil
	case KindHosted:
		store, err := hosted.New(hosted.Config{
			URL:           b.Hosted.ProjectURL,
			AnonKey:       b.Hosted.APIKey,
			Timeout:       s.cfg.Timeout,
			RetryAttempts: s.cfg.RetryAttempts,
			RetryDelay:    s.cfg.RetryDelay,
		}, hosted.WithMetrics(s.metrics))
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		store, err := local.Open(b.LocalPath)
		if err != nil {
			return nil, apperrors.NewConfiguration("cannot open local store "+b.LocalPath, err)
		}
		return store, nil
	}
}

// Validate reports the missing fields of a remote or hosted backend.
func (b Backend) Validate() error {
	var missing []string
	require := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	switch b.Kind {
	case KindRemote:
		if b.Remote == nil {
			return apperrors.NewConfiguration("remote backend is not configured", nil)
		}
		require("api_base_url", b.Remote.APIBaseURL)
		require("host", b.Remote.Host)
		require("database", b.Remote.Database)
		require("user", b.Remote.User)
	case KindHosted:
		if b.Hosted == nil {
			return apperrors.NewConfiguration("hosted backend is not configured", nil)
		}
		require("project_url", b.Hosted.ProjectURL)
		require("api_key", b.Hosted.APIKey)
	}
	if len(missing) > 0 {
		return apperrors.NewConfiguration(string(b.Kind)+" backend is missing "+strings.Join(missing, ", "), nil)
	}
	return nil
}

// Describe is the resolved backend with credentials removed.
func (s *Selector) Describe() Backend {
	b := s.Resolve()
	if b.Remote != nil {
		b.Remote.Password = ""
	}
	if b.Hosted != nil {
		b.Hosted.APIKey = ""
	}
	return b
}

// ConfigFromSettings overlays persisted site settings on base. Settings that
// are absent or empty leave the base value alone.
func ConfigFromSettings(base Config, settings []*model.SiteSetting) Config {
	values := make(map[string]string, len(settings))
	for _, st := range settings {
		if st != nil && st.Value != "" {
			values[st.Key] = st.Value
		}
	}
	set := func(dst *string, key string) {
		if v, ok := values[key]; ok {
			*dst = v
		}
	}
	cfg := base
	set(&cfg.Preference, model.SettingDataSource)
	set(&cfg.Remote.APIBaseURL, model.SettingAPIBaseURL)
	set(&cfg.Remote.Host, model.SettingMySQLHost)
	set(&cfg.Remote.Port, model.SettingMySQLPort)
	set(&cfg.Remote.Database, model.SettingMySQLDatabase)
	set(&cfg.Remote.User, model.SettingMySQLUser)
	set(&cfg.Remote.Password, model.SettingMySQLPassword)
	set(&cfg.Hosted.ProjectURL, model.SettingSupabaseURL)
	set(&cfg.Hosted.APIKey, model.SettingSupabaseAnonKey)
	return cfg
}

// Bootstrap opens the configured backend. When that backend is the local
// store, data source settings saved in it from the admin dashboard take
// precedence, and the backend they name is opened instead.
func Bootstrap(ctx context.Context, base Config, opts ...Option) (*Selector, repository.Store, error) {
	sel := NewSelector(base, opts...)
	store, err := sel.Open(ctx)
	if err != nil {
		return nil, nil, err
	}
	if sel.Resolve().Kind != KindLocal {
		return sel, store, nil
	}

	settings, err := store.Settings().List(ctx)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	overlay := ConfigFromSettings(base, settings)
	if ParseKind(overlay.Preference) == KindLocal {
		return sel, store, nil
	}
	store.Close()

	sel = NewSelector(overlay, opts...)
	store, err = sel.Open(ctx)
	if err != nil {
		return nil, nil, err
	}
	return sel, store, nil
}
