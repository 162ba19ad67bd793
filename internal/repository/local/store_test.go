package local

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/dental-verify/internal/model"
	"github.com/jwalitptl/dental-verify/internal/repository"
	"github.com/jwalitptl/dental-verify/internal/repository/storetest"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) repository.Store {
		return openTestStore(t)
	})
}

func TestStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reopen.db")

	store, err := Open(path)
	require.NoError(t, err)
	clinic := &model.Clinic{LicenseNumber: "JOR-DEN-001", LicenseStatus: model.LicenseStatusActive}
	require.NoError(t, store.Clinics().Create(ctx, clinic))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Clinics().FindByLicense(ctx, "JOR-DEN-001")
	require.NoError(t, err)
	assert.Equal(t, clinic.ID, got.ID)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestCreateRejectsDuplicateID(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.Clinics().Create(ctx, &model.Clinic{ID: "dup", LicenseNumber: "A"}))
	err := store.Clinics().Create(ctx, &model.Clinic{ID: "dup", LicenseNumber: "B"})
	assert.Error(t, err)
}

func TestCanceledContext(t *testing.T) {
	store := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Clinics().List(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
