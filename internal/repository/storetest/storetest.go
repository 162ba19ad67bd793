// Package storetest is the behavioural contract every repository.Store
// backend must satisfy. Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/dental-verify/internal/model"
	"github.com/jwalitptl/dental-verify/internal/repository"
	apperrors "github.com/jwalitptl/dental-verify/pkg/errors"
)

// Factory returns a fresh, empty store. It is called once per subtest.
type Factory func(t *testing.T) repository.Store

var base = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func at(hours int) time.Time {
	return base.Add(time.Duration(hours) * time.Hour)
}

func str(s string) *string { return &s }

func status(s model.LicenseStatus) *model.LicenseStatus { return &s }

func Run(t *testing.T, newStore Factory) {
	t.Run("ClinicLifecycle", func(t *testing.T) { testClinicLifecycle(t, newStore(t)) })
	t.Run("ClinicListOrder", func(t *testing.T) { testClinicListOrder(t, newStore(t)) })
	t.Run("FindByLicense", func(t *testing.T) { testFindByLicense(t, newStore(t)) })
	t.Run("ClearClinics", func(t *testing.T) { testClear(t, newStore(t)) })
	t.Run("IncrementVerificationCount", func(t *testing.T) { testIncrement(t, newStore(t)) })
	t.Run("GovernorateCascade", func(t *testing.T) { testGovernorateCascade(t, newStore(t)) })
	t.Run("ReferenceOrdering", func(t *testing.T) { testReferenceOrdering(t, newStore(t)) })
	t.Run("Settings", func(t *testing.T) { testSettings(t, newStore(t)) })
	t.Run("Verifications", func(t *testing.T) { testVerifications(t, newStore(t)) })
	t.Run("Equivalence", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		require.NoError(t, Scenario(ctx, store))
		snap, err := TakeSnapshot(ctx, store)
		require.NoError(t, err)
		assert.Equal(t, ExpectedSnapshot(), snap)
	})
}

func newClinic(license string, created time.Time) *model.Clinic {
	return &model.Clinic{
		ClinicName:     "عيادة " + license,
		DoctorName:     "د. أحمد",
		LicenseNumber:  license,
		Specialization: "طب الأسنان العام",
		Phone:          "0791234567",
		Governorate:    "عمان",
		City:           "خلدا",
		Address:        "عمان، خلدا",
		LicenseStatus:  model.LicenseStatusActive,
		IssueDate:      model.DatePtr(model.NewDate(2023, 1, 1)),
		ExpiryDate:     model.DatePtr(model.NewDate(2025, 1, 1)),
		CreatedAt:      created,
		UpdatedAt:      created,
	}
}

func testClinicLifecycle(t *testing.T, store repository.Store) {
	ctx := context.Background()
	clinics := store.Clinics()

	withID := newClinic("JOR-DEN-001", at(0))
	withID.ID = "11111111-1111-1111-1111-111111111111"
	require.NoError(t, clinics.Create(ctx, withID))
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", withID.ID)

	generated := newClinic("JOR-DEN-002", at(1))
	require.NoError(t, clinics.Create(ctx, generated))
	assert.NotEmpty(t, generated.ID)

	got, err := clinics.Get(ctx, withID.ID)
	require.NoError(t, err)
	assert.Equal(t, "JOR-DEN-001", got.LicenseNumber)
	assert.Equal(t, "عيادة JOR-DEN-001", got.ClinicName)
	assert.Equal(t, model.LicenseStatusActive, got.LicenseStatus)
	require.NotNil(t, got.ExpiryDate)
	assert.Equal(t, "2025-01-01", got.ExpiryDate.String())
	assert.True(t, got.CreatedAt.Equal(at(0)))

	updatedAt := at(5)
	err = clinics.Update(ctx, withID.ID, model.ClinicPatch{
		LicenseStatus: status(model.LicenseStatusSuspended),
		ExpiryDate:    model.DatePtr(model.NewDate(2026, 6, 30)),
		IssueDate:     &model.Date{},
		UpdatedAt:     &updatedAt,
	})
	require.NoError(t, err)

	got, err = clinics.Get(ctx, withID.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LicenseStatusSuspended, got.LicenseStatus)
	assert.Equal(t, "2026-06-30", got.ExpiryDate.String())
	assert.Nil(t, got.IssueDate)
	assert.Equal(t, "عيادة JOR-DEN-001", got.ClinicName)
	assert.True(t, got.UpdatedAt.Equal(updatedAt))

	err = clinics.Update(ctx, "00000000-0000-0000-0000-00000000beef", model.ClinicPatch{ClinicName: str("x")})
	assert.True(t, apperrors.IsNotFound(err), "expected not found, got %v", err)

	require.NoError(t, clinics.Delete(ctx, withID.ID))
	_, err = clinics.Get(ctx, withID.ID)
	assert.True(t, apperrors.IsNotFound(err), "expected not found, got %v", err)
	assert.NoError(t, clinics.Delete(ctx, withID.ID), "delete must be idempotent")
}

func testClinicListOrder(t *testing.T, store repository.Store) {
	ctx := context.Background()
	for i, license := range []string{"A-1", "A-2", "A-3"} {
		require.NoError(t, store.Clinics().Create(ctx, newClinic(license, at(i))))
	}

	list, err := store.Clinics().List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"A-3", "A-2", "A-1"}, licenses(list))
}

func testFindByLicense(t *testing.T, store repository.Store) {
	ctx := context.Background()
	older := newClinic("JOR-DEN-001", at(0))
	older.ClinicName = "older"
	newer := newClinic("JOR-DEN-001", at(3))
	newer.ClinicName = "newer"
	require.NoError(t, store.Clinics().Create(ctx, older))
	require.NoError(t, store.Clinics().Create(ctx, newer))

	found, err := store.Clinics().FindByLicense(ctx, "JOR-DEN-001")
	require.NoError(t, err)
	assert.Equal(t, "newer", found.ClinicName)

	_, err = store.Clinics().FindByLicense(ctx, "jor-den-001")
	assert.True(t, apperrors.IsNotFound(err), "lookup must be case sensitive, got %v", err)

	_, err = store.Clinics().FindByLicense(ctx, " JOR-DEN-001")
	assert.True(t, apperrors.IsNotFound(err), "lookup must not trim, got %v", err)
}

func testClear(t *testing.T, store repository.Store) {
	ctx := context.Background()
	require.NoError(t, store.Clinics().Create(ctx, newClinic("C-1", at(0))))
	require.NoError(t, store.Clinics().Create(ctx, newClinic("C-2", at(1))))

	require.NoError(t, store.Clinics().Clear(ctx))

	list, err := store.Clinics().List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func testIncrement(t *testing.T, store repository.Store) {
	ctx := context.Background()
	c := newClinic("INC-1", at(0))
	require.NoError(t, store.Clinics().Create(ctx, c))

	require.NoError(t, store.Clinics().IncrementVerificationCount(ctx, c.ID))
	require.NoError(t, store.Clinics().IncrementVerificationCount(ctx, c.ID))

	got, err := store.Clinics().Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.VerificationCount)

	err = store.Clinics().IncrementVerificationCount(ctx, "missing")
	assert.True(t, apperrors.IsNotFound(err), "expected not found, got %v", err)
}

func testGovernorateCascade(t *testing.T, store repository.Store) {
	ctx := context.Background()
	amman := &model.Governorate{Name: "عمان", CreatedAt: at(0)}
	irbid := &model.Governorate{Name: "إربد", CreatedAt: at(1)}
	require.NoError(t, store.Governorates().Create(ctx, amman))
	require.NoError(t, store.Governorates().Create(ctx, irbid))

	for i, name := range []string{"خلدا", "صويلح"} {
		require.NoError(t, store.Cities().Create(ctx, &model.City{Name: name, GovernorateID: amman.ID, CreatedAt: at(i)}))
	}
	require.NoError(t, store.Cities().Create(ctx, &model.City{Name: "الرمثا", GovernorateID: irbid.ID, CreatedAt: at(3)}))

	clinic := newClinic("CAS-1", at(0))
	require.NoError(t, store.Clinics().Create(ctx, clinic))

	require.NoError(t, store.Governorates().Delete(ctx, amman.ID))

	_, err := store.Governorates().Get(ctx, amman.ID)
	assert.True(t, apperrors.IsNotFound(err), "expected not found, got %v", err)

	cities, err := store.Cities().ListByGovernorate(ctx, amman.ID)
	require.NoError(t, err)
	assert.Empty(t, cities)

	all, err := store.Cities().List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "الرمثا", all[0].Name)

	kept, err := store.Clinics().Get(ctx, clinic.ID)
	require.NoError(t, err)
	assert.Equal(t, "عمان", kept.Governorate)
}

func testReferenceOrdering(t *testing.T, store repository.Store) {
	ctx := context.Background()
	for i, name := range []string{"مادبا", "إربد", "الكرك"} {
		require.NoError(t, store.Governorates().Create(ctx, &model.Governorate{Name: name, CreatedAt: at(i)}))
	}
	govs, err := store.Governorates().List(ctx)
	require.NoError(t, err)
	names := make([]string, 0, len(govs))
	for _, g := range govs {
		names = append(names, g.Name)
	}
	want := []string{"مادبا", "إربد", "الكرك"}
	sort.Strings(want)
	assert.Equal(t, want, names)

	specs := []*model.Specialization{
		{NameAr: "تقويم", NameEn: "Orthodontics", IsActive: true, SortOrder: 2, CreatedAt: at(0)},
		{NameAr: "عام", NameEn: "General", IsActive: true, SortOrder: 1, CreatedAt: at(1)},
		{NameAr: "جراحة", NameEn: "Surgery", IsActive: false, SortOrder: 1, CreatedAt: at(2)},
	}
	for _, sp := range specs {
		require.NoError(t, store.Specializations().Create(ctx, sp))
	}

	list, err := store.Specializations().List(ctx)
	require.NoError(t, err)
	got := make([]string, 0, len(list))
	for _, sp := range list {
		got = append(got, sp.NameEn)
	}
	assert.Equal(t, []string{"General", "Surgery", "Orthodontics"}, got)
	assert.False(t, list[1].IsActive)

	err = store.Specializations().Update(ctx, specs[2].ID, model.SpecializationPatch{IsActive: boolPtr(true)})
	require.NoError(t, err)
	sp, err := store.Specializations().Get(ctx, specs[2].ID)
	require.NoError(t, err)
	assert.True(t, sp.IsActive)
}

func boolPtr(b bool) *bool { return &b }

func testSettings(t *testing.T, store repository.Store) {
	ctx := context.Background()
	settings := store.Settings()

	require.NoError(t, settings.Upsert(ctx, &model.SiteSetting{Key: "footer_text", Value: "v1", Description: "footer"}))
	require.NoError(t, settings.Upsert(ctx, &model.SiteSetting{Key: "contact_phone", Value: "0791234567"}))
	require.NoError(t, settings.Upsert(ctx, &model.SiteSetting{Key: "footer_text", Value: "v2", Description: "footer"}))

	got, err := settings.Get(ctx, "footer_text")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Value)

	list, err := settings.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "contact_phone", list[0].Key)
	assert.Equal(t, "footer_text", list[1].Key)

	require.NoError(t, settings.Delete(ctx, "footer_text"))
	require.NoError(t, settings.Delete(ctx, "footer_text"))
	_, err = settings.Get(ctx, "footer_text")
	assert.True(t, apperrors.IsNotFound(err), "expected not found, got %v", err)
}

func testVerifications(t *testing.T, store repository.Store) {
	ctx := context.Background()
	attempts := []*model.VerificationAttempt{
		{LicenseNumber: "JOR-DEN-001", ClinicID: "c1", VerificationMethod: model.VerificationMethodManualEntry, VerificationStatus: model.VerificationStatusSuccess, CreatedAt: at(0)},
		{LicenseNumber: "NOPE", VerificationMethod: model.VerificationMethodQRScan, VerificationStatus: model.VerificationStatusNotFound, CreatedAt: at(1)},
		{LicenseNumber: "JOR-DEN-001", ClinicID: "c1", VerificationMethod: model.VerificationMethodQRScan, VerificationStatus: model.VerificationStatusSuccess, CreatedAt: at(2)},
	}
	for _, a := range attempts {
		require.NoError(t, store.Verifications().Create(ctx, a))
		assert.NotEmpty(t, a.ID)
	}

	all, err := store.Verifications().List(ctx, model.VerificationFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, attempts[2].ID, all[0].ID)

	byLicense, err := store.Verifications().List(ctx, model.VerificationFilter{LicenseNumber: "JOR-DEN-001", Limit: 1})
	require.NoError(t, err)
	require.Len(t, byLicense, 1)
	assert.Equal(t, model.VerificationMethodQRScan, byLicense[0].VerificationMethod)

	since := at(1)
	recent, err := store.Verifications().List(ctx, model.VerificationFilter{Since: &since})
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func licenses(list []*model.Clinic) []string {
	out := make([]string, 0, len(list))
	for _, c := range list {
		out = append(out, c.LicenseNumber)
	}
	return out
}

// Scenario applies one fixed sequence of writes. Every backend must end up
// with ExpectedSnapshot afterwards.
func Scenario(ctx context.Context, store repository.Store) error {
	amman := &model.Governorate{Name: "عمان", CreatedAt: at(0)}
	irbid := &model.Governorate{Name: "إربد", CreatedAt: at(1)}
	for _, g := range []*model.Governorate{amman, irbid} {
		if err := store.Governorates().Create(ctx, g); err != nil {
			return fmt.Errorf("create governorate: %w", err)
		}
	}
	cities := []*model.City{
		{Name: "خلدا", GovernorateID: amman.ID, CreatedAt: at(0)},
		{Name: "صويلح", GovernorateID: amman.ID, CreatedAt: at(1)},
		{Name: "الرمثا", GovernorateID: irbid.ID, CreatedAt: at(2)},
	}
	for _, c := range cities {
		if err := store.Cities().Create(ctx, c); err != nil {
			return fmt.Errorf("create city: %w", err)
		}
	}

	for _, sp := range []*model.Specialization{
		{NameAr: "تقويم الأسنان", NameEn: "Orthodontics", IsActive: true, SortOrder: 2, CreatedAt: at(0)},
		{NameAr: "طب الأسنان العام", NameEn: "General Dentistry", IsActive: true, SortOrder: 1, CreatedAt: at(1)},
	} {
		if err := store.Specializations().Create(ctx, sp); err != nil {
			return fmt.Errorf("create specialization: %w", err)
		}
	}

	a := newClinic("JOR-DEN-001", at(0))
	b := newClinic("JOR-DEN-002", at(1))
	b.LicenseStatus = model.LicenseStatusSuspended
	c := newClinic("JOR-DEN-003", at(2))
	c.ExpiryDate = nil
	for _, clinic := range []*model.Clinic{a, b, c} {
		if err := store.Clinics().Create(ctx, clinic); err != nil {
			return fmt.Errorf("create clinic: %w", err)
		}
	}

	updated := at(10)
	if err := store.Clinics().Update(ctx, b.ID, model.ClinicPatch{
		LicenseStatus: status(model.LicenseStatusActive),
		ExpiryDate:    model.DatePtr(model.NewDate(2024, 1, 1)),
		UpdatedAt:     &updated,
	}); err != nil {
		return fmt.Errorf("update clinic: %w", err)
	}
	for i := 0; i < 2; i++ {
		if err := store.Clinics().IncrementVerificationCount(ctx, a.ID); err != nil {
			return fmt.Errorf("increment: %w", err)
		}
	}
	if err := store.Clinics().Delete(ctx, c.ID); err != nil {
		return fmt.Errorf("delete clinic: %w", err)
	}
	if err := store.Governorates().Delete(ctx, irbid.ID); err != nil {
		return fmt.Errorf("delete governorate: %w", err)
	}
	if err := store.Settings().Upsert(ctx, &model.SiteSetting{Key: "footer_text", Value: "نقابة أطباء الأسنان"}); err != nil {
		return fmt.Errorf("upsert setting: %w", err)
	}
	return nil
}

// Snapshot is a backend state with ids and server timestamps removed.
type Snapshot struct {
	Clinics         []string
	Governorates    []string
	Specializations []string
	Settings        []string
}

func TakeSnapshot(ctx context.Context, store repository.Store) (Snapshot, error) {
	var snap Snapshot

	clinics, err := store.Clinics().List(ctx)
	if err != nil {
		return snap, err
	}
	for _, c := range clinics {
		snap.Clinics = append(snap.Clinics, fmt.Sprintf("%s|%s|%s|%d|%s",
			c.LicenseNumber, c.LicenseStatus, dateString(c.ExpiryDate), c.VerificationCount, c.Address))
	}

	govs, err := store.Governorates().List(ctx)
	if err != nil {
		return snap, err
	}
	for _, g := range govs {
		cities, err := store.Cities().ListByGovernorate(ctx, g.ID)
		if err != nil {
			return snap, err
		}
		names := make([]string, 0, len(cities))
		for _, c := range cities {
			names = append(names, c.Name)
		}
		snap.Governorates = append(snap.Governorates, fmt.Sprintf("%s:%v", g.Name, names))
	}

	specs, err := store.Specializations().List(ctx)
	if err != nil {
		return snap, err
	}
	for _, sp := range specs {
		snap.Specializations = append(snap.Specializations, fmt.Sprintf("%d|%s|%t", sp.SortOrder, sp.NameEn, sp.IsActive))
	}

	settings, err := store.Settings().List(ctx)
	if err != nil {
		return snap, err
	}
	for _, s := range settings {
		snap.Settings = append(snap.Settings, s.Key+"="+s.Value)
	}
	return snap, nil
}

func ExpectedSnapshot() Snapshot {
	cities := []string{"خلدا", "صويلح"}
	sort.Strings(cities)
	return Snapshot{
		Clinics: []string{
			"JOR-DEN-002|active|2024-01-01|0|عمان، خلدا",
			"JOR-DEN-001|active|2025-01-01|2|عمان، خلدا",
		},
		Governorates: []string{fmt.Sprintf("عمان:%v", cities)},
		Specializations: []string{
			"1|General Dentistry|true",
			"2|Orthodontics|true",
		},
		Settings: []string{"footer_text=نقابة أطباء الأسنان"},
	}
}

func dateString(d *model.Date) string {
	if d == nil {
		return "-"
	}
	return d.String()
}
