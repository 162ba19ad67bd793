package setting

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/dental-verify/internal/datasource"
	"github.com/jwalitptl/dental-verify/internal/model"
	"github.com/jwalitptl/dental-verify/internal/repository/local"
	apperrors "github.com/jwalitptl/dental-verify/pkg/errors"
)

func newService(t *testing.T) *Service {
	t.Helper()
	store, err := local.Open(filepath.Join(t.TempDir(), "settings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewService(store.Settings(), nil)
}

func TestPublicHidesSecretsAndDataSource(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	for key, value := range map[string]string{
		model.SettingFooterText:      "وزارة الصحة",
		model.SettingContactPhone:    "065200230",
		model.SettingDataSource:      "remote",
		model.SettingMySQLHost:       "db.internal",
		model.SettingMySQLPassword:   "s3cret",
		model.SettingSupabaseAnonKey: "anon",
	} {
		_, err := svc.Set(ctx, key, Input{Value: value})
		require.NoError(t, err)
	}

	public, err := svc.Public(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		model.SettingFooterText:   "وزارة الصحة",
		model.SettingContactPhone: "065200230",
	}, public)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 6)
}

func TestSet(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.Set(ctx, " ", Input{Value: "x"})
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))

	_, err = svc.Set(ctx, model.SettingDataSource, Input{Value: "oracle"})
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))

	_, err = svc.Set(ctx, model.SettingDataSource, Input{Value: "supabase"})
	assert.NoError(t, err)

	first, err := svc.Set(ctx, model.SettingFooterText, Input{Value: "a", Description: "footer"})
	require.NoError(t, err)
	second, err := svc.Set(ctx, model.SettingFooterText, Input{Value: "b"})
	require.NoError(t, err)
	assert.False(t, second.UpdatedAt.Before(first.UpdatedAt))

	got, err := svc.Get(ctx, model.SettingFooterText)
	require.NoError(t, err)
	assert.Equal(t, "b", got.Value)

	require.NoError(t, svc.Delete(ctx, model.SettingFooterText))
	require.NoError(t, svc.Delete(ctx, model.SettingFooterText))
	_, err = svc.Get(ctx, model.SettingFooterText)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestDataSourceConfig(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	base := datasource.Config{Preference: "local", LocalPath: "data/dental.db"}
	cfg, err := svc.DataSourceConfig(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, base, cfg)

	for key, value := range map[string]string{
		model.SettingDataSource:    "mysql",
		model.SettingAPIBaseURL:    "http://gateway:8081",
		model.SettingMySQLHost:     "db",
		model.SettingMySQLUser:     "clinic",
		model.SettingMySQLDatabase: "dental",
	} {
		_, err := svc.Set(ctx, key, Input{Value: value})
		require.NoError(t, err)
	}
	cfg, err = svc.DataSourceConfig(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, datasource.KindRemote, datasource.ParseKind(cfg.Preference))
	assert.Equal(t, "http://gateway:8081", cfg.Remote.APIBaseURL)
	assert.Equal(t, "dental", cfg.Remote.Database)
	assert.Equal(t, "data/dental.db", cfg.LocalPath)
}
