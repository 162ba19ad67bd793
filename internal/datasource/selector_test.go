package datasource

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/dental-verify/internal/model"
	"github.com/jwalitptl/dental-verify/internal/repository/hosted"
	"github.com/jwalitptl/dental-verify/internal/repository/local"
	"github.com/jwalitptl/dental-verify/internal/repository/remote"
	apperrors "github.com/jwalitptl/dental-verify/pkg/errors"
)

func TestParseKind(t *testing.T) {
	tests := map[string]Kind{
		"":         KindLocal,
		"local":    KindLocal,
		"remote":   KindRemote,
		"mysql":    KindRemote,
		" MySQL ":  KindRemote,
		"hosted":   KindHosted,
		"supabase": KindHosted,
		"oracle":   KindLocal,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseKind(in), "preference %q", in)
	}
}

func TestResolveDefaultsToLocal(t *testing.T) {
	b := NewSelector(Config{}).Resolve()
	assert.Equal(t, KindLocal, b.Kind)
	assert.Equal(t, local.DefaultPath, b.LocalPath)
	assert.Nil(t, b.Remote)
	assert.Nil(t, b.Hosted)
}

func TestOpenLocal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clinics.db")
	store, err := NewSelector(Config{Preference: "local", LocalPath: path}).Open(context.Background())
	require.NoError(t, err)
	defer store.Close()
	assert.IsType(t, &local.Store{}, store)
	assert.NoError(t, store.Ping(context.Background()))
}

func TestOpenRemoteRequiresFields(t *testing.T) {
	sel := NewSelector(Config{
		Preference: "mysql",
		LocalPath:  filepath.Join(t.TempDir(), "unused.db"),
		Remote:     RemoteConfig{APIBaseURL: "http://gateway:8081", Host: "db"},
	})
	store, err := sel.Open(context.Background())
	assert.Nil(t, store)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrConfiguration))
	assert.Contains(t, err.Error(), "database")
	assert.Contains(t, err.Error(), "user")
}

func TestOpenHostedRequiresKey(t *testing.T) {
	sel := NewSelector(Config{Preference: "supabase", Hosted: HostedConfig{ProjectURL: "https://x.supabase.co"}})
	_, err := sel.Open(context.Background())
	assert.True(t, apperrors.Is(err, apperrors.ErrConfiguration))
	assert.Contains(t, err.Error(), "api_key")
}

func TestOpenConfiguredBackends(t *testing.T) {
	ctx := context.Background()

	store, err := NewSelector(Config{
		Preference: "remote",
		Remote:     RemoteConfig{APIBaseURL: "http://gateway:8081", Host: "db", Database: "dental", User: "clinic"},
	}).Open(ctx)
	require.NoError(t, err)
	assert.IsType(t, &remote.Store{}, store)

	store, err = NewSelector(Config{
		Preference: "hosted",
		Hosted:     HostedConfig{ProjectURL: "https://x.supabase.co", APIKey: "anon"},
	}).Open(ctx)
	require.NoError(t, err)
	assert.IsType(t, &hosted.Store{}, store)
}

func TestDescribeHidesSecrets(t *testing.T) {
	sel := NewSelector(Config{
		Preference: "remote",
		Remote:     RemoteConfig{APIBaseURL: "http://gateway", Host: "db", Database: "d", User: "u", Password: "p4ss"},
	})
	b := sel.Describe()
	require.NotNil(t, b.Remote)
	assert.Empty(t, b.Remote.Password)
	assert.Equal(t, "db", b.Remote.Host)

	assert.Equal(t, "p4ss", sel.Resolve().Remote.Password, "Describe must not mutate the selector")
}

func TestConfigFromSettings(t *testing.T) {
	base := Config{LocalPath: "data/x.db", Remote: RemoteConfig{Port: "3306"}}
	settings := []*model.SiteSetting{
		{Key: model.SettingDataSource, Value: "mysql"},
		{Key: model.SettingAPIBaseURL, Value: "http://gateway:8081"},
		{Key: model.SettingMySQLHost, Value: "db.internal"},
		{Key: model.SettingMySQLPort, Value: ""},
		{Key: model.SettingMySQLDatabase, Value: "dental"},
		{Key: model.SettingMySQLUser, Value: "clinic"},
		{Key: model.SettingMySQLPassword, Value: "secret"},
		{Key: model.SettingFooterText, Value: "ignored"},
	}

	cfg := ConfigFromSettings(base, settings)
	assert.Equal(t, "mysql", cfg.Preference)
	assert.Equal(t, "data/x.db", cfg.LocalPath)
	assert.Equal(t, RemoteConfig{
		APIBaseURL: "http://gateway:8081",
		Host:       "db.internal",
		Port:       "3306",
		Database:   "dental",
		User:       "clinic",
		Password:   "secret",
	}, cfg.Remote)
	assert.Equal(t, KindRemote, NewSelector(cfg).Resolve().Kind)
}

func TestBootstrapFollowsSavedSettings(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "clinics.db")

	seed, err := local.Open(path)
	require.NoError(t, err)
	for key, value := range map[string]string{
		model.SettingDataSource:      "supabase",
		model.SettingSupabaseURL:     "https://x.supabase.co",
		model.SettingSupabaseAnonKey: "anon",
	} {
		require.NoError(t, seed.Settings().Upsert(ctx, &model.SiteSetting{Key: key, Value: value}))
	}
	require.NoError(t, seed.Close())

	sel, store, err := Bootstrap(ctx, Config{Preference: "local", LocalPath: path})
	require.NoError(t, err)
	defer store.Close()
	assert.IsType(t, &hosted.Store{}, store)
	assert.Equal(t, KindHosted, sel.Describe().Kind)
	assert.Empty(t, sel.Describe().Hosted.APIKey)
}

func TestBootstrapStaysLocal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clinics.db")
	sel, store, err := Bootstrap(context.Background(), Config{LocalPath: path})
	require.NoError(t, err)
	defer store.Close()
	assert.IsType(t, &local.Store{}, store)
	assert.Equal(t, KindLocal, sel.Resolve().Kind)
}
