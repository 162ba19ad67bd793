package geography

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
	store, err := local.Open(filepath.Join(t.TempDir(), "geo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewService(store, nil), store
}

func TestDeleteGovernorateCascades(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	amman, err := svc.CreateGovernorate(ctx, GovernorateInput{Name: "عمان"})
	require.NoError(t, err)
	irbid, err := svc.CreateGovernorate(ctx, GovernorateInput{Name: "إربد"})
	require.NoError(t, err)
	for _, name := range []string{"خلدا", "صويلح"} {
		_, err := svc.CreateCity(ctx, CityInput{Name: name, GovernorateID: amman.ID})
		require.NoError(t, err)
	}
	_, err = svc.CreateCity(ctx, CityInput{Name: "الحصن", GovernorateID: irbid.ID})
	require.NoError(t, err)

	clinic := &model.Clinic{LicenseNumber: "JOR-DEN-001", Governorate: "عمان", City: "خلدا", LicenseStatus: model.LicenseStatusActive}
	require.NoError(t, store.Clinics().Create(ctx, clinic))

	require.NoError(t, svc.DeleteGovernorate(ctx, amman.ID))

	cities, err := svc.ListCities(ctx, amman.ID)
	require.NoError(t, err)
	assert.Empty(t, cities)

	all, err := svc.ListCities(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "الحصن", all[0].Name)

	got, err := store.Clinics().Get(ctx, clinic.ID)
	require.NoError(t, err)
	assert.Equal(t, "عمان", got.Governorate)
	assert.Equal(t, "خلدا", got.City)
}

func TestGovernorateNamesAreUnique(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	g, err := svc.CreateGovernorate(ctx, GovernorateInput{Name: " الزرقاء "})
	require.NoError(t, err)
	assert.Equal(t, "الزرقاء", g.Name)

	_, err = svc.CreateGovernorate(ctx, GovernorateInput{Name: "الزرقاء"})
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict), "got %v", err)

	renamed, err := svc.UpdateGovernorate(ctx, g.ID, GovernorateInput{Name: "الزرقاء"})
	require.NoError(t, err)
	assert.Equal(t, g.ID, renamed.ID)

	_, err = svc.CreateGovernorate(ctx, GovernorateInput{Name: "  "})
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
}

func TestCityNeedsGovernorate(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.CreateCity(ctx, CityInput{Name: "خلدا", GovernorateID: "missing"})
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest), "got %v", err)

	g, err := svc.CreateGovernorate(ctx, GovernorateInput{Name: "عمان"})
	require.NoError(t, err)
	c, err := svc.CreateCity(ctx, CityInput{Name: "خلدا", GovernorateID: g.ID})
	require.NoError(t, err)

	missing := "missing"
	_, err = svc.UpdateCity(ctx, c.ID, model.CityPatch{GovernorateID: &missing})
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest), "got %v", err)

	name := "خلدا الشمالية"
	updated, err := svc.UpdateCity(ctx, c.ID, model.CityPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)

	_, err = svc.UpdateCity(ctx, "nope", model.CityPatch{Name: &name})
	assert.True(t, apperrors.IsNotFound(err), "got %v", err)
}

func TestSeed(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	data, err := Jordan()
	require.NoError(t, err)
	require.Len(t, data, 12)
	wantCities := 0
	for _, g := range data {
		wantCities += len(g.Cities)
	}

	_, err = svc.CreateGovernorate(ctx, GovernorateInput{Name: "عمان"})
	require.NoError(t, err)

	res, err := svc.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 11, res.Governorates)
	assert.Equal(t, wantCities, res.Cities)

	again, err := svc.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, &SeedResult{}, again)

	govs, err := svc.ListGovernorates(ctx)
	require.NoError(t, err)
	assert.Len(t, govs, 12)
}
