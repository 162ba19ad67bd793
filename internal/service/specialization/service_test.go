package specialization

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/dental-verify/internal/model"
	"github.com/jwalitptl/dental-verify/internal/repository"
	"github.com/jwalitptl/dental-verify/internal/repository/local"
	apperrors "github.com/jwalitptl/dental-verify/pkg/errors"
)

func newService(t *testing.T) (*Service, repository.Store) {
	t.Helper()
	store, err := local.Open(filepath.Join(t.TempDir(), "specializations.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewService(store), store
}

func TestCreateAppendsToOrder(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, Input{NameAr: "طب الأسنان العام", NameEn: "General Dentistry"})
	require.NoError(t, err)
	second, err := svc.Create(ctx, Input{NameAr: "تقويم الأسنان"})
	require.NoError(t, err)
	assert.Equal(t, first.SortOrder+1, second.SortOrder)
	assert.True(t, second.IsActive)

	zero := 0
	hidden := false
	top, err := svc.Create(ctx, Input{NameAr: "جراحة الفم", SortOrder: &zero, IsActive: &hidden})
	require.NoError(t, err)

	all, err := svc.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{first.ID, top.ID, second.ID}, []string{all[0].ID, all[1].ID, all[2].ID})

	active, err := svc.List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	_, err = svc.Create(ctx, Input{NameAr: "تقويم الأسنان"})
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict), "got %v", err)
}

func TestDeleteRefusedWhileReferenced(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	sp, err := svc.Create(ctx, Input{NameAr: "طب الأسنان العام"})
	require.NoError(t, err)
	clinic := &model.Clinic{LicenseNumber: "JOR-DEN-001", Specialization: sp.NameAr, LicenseStatus: model.LicenseStatusActive}
	require.NoError(t, store.Clinics().Create(ctx, clinic))

	err = svc.Delete(ctx, sp.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict), "got %v", err)

	updated, err := svc.SetActive(ctx, sp.ID, false)
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	require.NoError(t, store.Clinics().Delete(ctx, clinic.ID))
	require.NoError(t, svc.Delete(ctx, sp.ID))
	require.NoError(t, svc.Delete(ctx, sp.ID))

	all, err := svc.List(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestUpdate(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	sp, err := svc.Create(ctx, Input{NameAr: "x"})
	require.NoError(t, err)

	blank := " "
	_, err = svc.Update(ctx, sp.ID, model.SpecializationPatch{NameAr: &blank})
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))

	en := "Orthodontics"
	got, err := svc.Update(ctx, sp.ID, model.SpecializationPatch{NameEn: &en})
	require.NoError(t, err)
	assert.Equal(t, en, got.NameEn)

	_, err = svc.Update(ctx, "missing", model.SpecializationPatch{NameEn: &en})
	assert.True(t, apperrors.IsNotFound(err))
}
