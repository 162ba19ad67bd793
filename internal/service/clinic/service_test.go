package clinic

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/jwalitptl/dental-verify/internal/model"
	"github.com/jwalitptl/dental-verify/internal/repository"
	"github.com/jwalitptl/dental-verify/internal/repository/local"
	apperrors "github.com/jwalitptl/dental-verify/pkg/errors"
	"github.com/jwalitptl/dental-verify/pkg/qr"
)

func newService(t *testing.T) (*Service, repository.Store) {
	t.Helper()
	store, err := local.Open(filepath.Join(t.TempDir(), "clinics.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svc := NewService(store.Clinics(), nil)
	clock := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return svc, store
}

func sample() *model.Clinic {
	return &model.Clinic{
		ClinicName:     "عيادة الابتسامة",
		LicenseNumber:  "JOR-DEN-001",
		DoctorName:     "د. أحمد علي",
		Specialization: "طب الأسنان العام",
		Phone:          "0791234567",
		Governorate:    "عمان",
		City:           "تلاع العلي",
		AddressDetails: "شارع المدينة المنورة",
		ExpiryDate:     model.DatePtr(model.NewDate(2025, 1, 1)),
	}
}

func TestFormatAddress(t *testing.T) {
	assert.Equal(t, "عمان، تلاع العلي، شارع المدينة", FormatAddress("عمان", "تلاع العلي", "شارع المدينة"))
	assert.Equal(t, "إربد، الحصن", FormatAddress("إربد", "الحصن", "  "))
	assert.Equal(t, "الحصن", FormatAddress("", "الحصن", ""))
	assert.Equal(t, "", FormatAddress("", "", ""))
}

func TestCreateClinic(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	c := sample()
	c.ClinicName = "  " + c.ClinicName + " "
	require.NoError(t, svc.CreateClinic(ctx, c))

	got, err := store.Clinics().Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "عيادة الابتسامة", got.ClinicName)
	assert.Equal(t, model.LicenseStatusActive, got.LicenseStatus)
	assert.Equal(t, "عمان، تلاع العلي، شارع المدينة المنورة", got.Address)
}

func TestCreateClinicValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*model.Clinic)
	}{
		{"missing name", func(c *model.Clinic) { c.ClinicName = "" }},
		{"missing license", func(c *model.Clinic) { c.LicenseNumber = " " }},
		{"missing specialization", func(c *model.Clinic) { c.Specialization = "" }},
		{"missing city", func(c *model.Clinic) { c.City = "" }},
		{"bad status", func(c *model.Clinic) { c.LicenseStatus = "revoked" }},
		{"bad phone", func(c *model.Clinic) { c.Phone = "123" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := sample()
			tt.mutate(c)
			err := svc.CreateClinic(ctx, c)
			assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest), "got %v", err)
		})
	}
}

func TestCreateClinicRejectsDuplicateLicense(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	require.NoError(t, svc.CreateClinic(ctx, sample()))

	err := svc.CreateClinic(ctx, sample())
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict), "got %v", err)
}

func TestUpdateClinicRebuildsAddress(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	c := sample()
	require.NoError(t, svc.CreateClinic(ctx, c))

	city := "خلدا"
	details := ""
	bogus := "ignored"
	updated, err := svc.UpdateClinic(ctx, c.ID, model.ClinicPatch{City: &city, AddressDetails: &details, Address: &bogus})
	require.NoError(t, err)
	assert.Equal(t, "عمان، خلدا", updated.Address)

	got, err := store.Clinics().Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "عمان، خلدا", got.Address)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))

	name := "عيادة جديدة"
	_, err = svc.UpdateClinic(ctx, c.ID, model.ClinicPatch{ClinicName: &name})
	require.NoError(t, err)
	got, err = store.Clinics().Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "عمان، خلدا", got.Address)
	assert.Equal(t, name, got.ClinicName)
}

func TestUpdateClinicClearsExpiry(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	c := sample()
	require.NoError(t, svc.CreateClinic(ctx, c))

	_, err := svc.UpdateClinic(ctx, c.ID, model.ClinicPatch{ExpiryDate: &model.Date{}})
	require.NoError(t, err)
	got, err := store.Clinics().Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ExpiryDate)
}

func TestUpdateClinicErrors(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	name := "x"
	_, err := svc.UpdateClinic(ctx, "missing", model.ClinicPatch{ClinicName: &name})
	assert.True(t, apperrors.IsNotFound(err), "got %v", err)

	first := sample()
	require.NoError(t, svc.CreateClinic(ctx, first))
	second := sample()
	second.LicenseNumber = "JOR-DEN-002"
	require.NoError(t, svc.CreateClinic(ctx, second))

	taken := "JOR-DEN-001"
	_, err = svc.UpdateClinic(ctx, second.ID, model.ClinicPatch{LicenseNumber: &taken})
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict), "got %v", err)

	status := model.LicenseStatus("gone")
	_, err = svc.UpdateClinic(ctx, second.ID, model.ClinicPatch{LicenseStatus: &status})
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest), "got %v", err)

	same := "JOR-DEN-002"
	_, err = svc.UpdateClinic(ctx, second.ID, model.ClinicPatch{LicenseNumber: &same})
	assert.NoError(t, err)
}

func TestListClinicsFilter(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	a := sample()
	b := sample()
	b.LicenseNumber = "JOR-ORTH-7"
	b.ClinicName = "Smile Orthodontics"
	b.Specialization = "تقويم الأسنان"
	b.LicenseStatus = model.LicenseStatusSuspended
	require.NoError(t, svc.CreateClinic(ctx, a))
	require.NoError(t, svc.CreateClinic(ctx, b))

	all, err := svc.ListClinics(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, b.ID, all[0].ID)

	got, err := svc.ListClinics(ctx, ListFilter{Search: "smile"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, b.ID, got[0].ID)

	got, err = svc.ListClinics(ctx, ListFilter{Search: "jor-den"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0].ID)

	got, err = svc.ListClinics(ctx, ListFilter{Status: "suspended"})
	require.NoError(t, err)
	require.Len(t, got, 1)

	got, err = svc.ListClinics(ctx, ListFilter{Specialization: "طب الأسنان العام"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0].ID)
}

func TestAnalytics(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	soon := sample()
	soon.ExpiryDate = model.DatePtr(model.NewDate(2024, 6, 20))
	soon.VerificationCount = 4
	later := sample()
	later.LicenseNumber = "JOR-DEN-002"
	later.City = "خلدا"
	pending := sample()
	pending.LicenseNumber = "JOR-DEN-003"
	pending.LicenseStatus = model.LicenseStatusPending
	pending.Governorate = "إربد"
	pending.City = "الحصن"
	for _, c := range []*model.Clinic{soon, later, pending} {
		require.NoError(t, svc.CreateClinic(ctx, c))
	}
	require.NoError(t, store.Clinics().IncrementVerificationCount(ctx, later.ID))

	a, err := svc.Analytics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, a.Total)
	assert.Equal(t, 2, a.Active)
	assert.Equal(t, 1, a.Pending)
	assert.Equal(t, 1, a.ExpiringSoon)
	assert.Equal(t, 5, a.TotalVerified)
	assert.Equal(t, map[string]int{"عمان": 2, "إربد": 1}, a.ByGovernorate)
	assert.Equal(t, 3, a.BySpecialization["طب الأسنان العام"])
}

func TestQRCode(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	c := sample()
	require.NoError(t, svc.CreateClinic(ctx, c))

	png, got, err := svc.QRCode(ctx, c.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, c.LicenseNumber, got.LicenseNumber)

	text, err := qr.DecodeImage(bytes.NewReader(png))
	require.NoError(t, err)
	assert.Equal(t, "JOR-DEN-001", qr.ParseLicense(text))

	_, _, err = svc.QRCode(ctx, "missing", 0)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestCSVRoundTrip(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	a := sample()
	a.IssueDate = model.DatePtr(model.NewDate(2020, 1, 1))
	a.VerificationCount = 3
	b := sample()
	b.LicenseNumber = "JOR-DEN-002"
	b.Phone = ""
	b.AddressDetails = ""
	b.ExpiryDate = nil
	b.LicenseStatus = model.LicenseStatusSuspended
	require.NoError(t, svc.CreateClinic(ctx, a))
	require.NoError(t, svc.CreateClinic(ctx, b))

	var buf bytes.Buffer
	n, err := svc.ExportCSV(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, strings.HasPrefix(buf.String(), "\ufeffاسم العيادة,رقم الترخيص,اسم الطبيب,"))

	target, _ := newService(t)
	res, err := target.ImportCSV(ctx, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	assert.Empty(t, res.Errors)

	exported, err := svc.ListClinics(ctx, ListFilter{})
	require.NoError(t, err)
	imported, err := target.ListClinics(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, imported, 2)

	byLicense := map[string]*model.Clinic{}
	for _, c := range imported {
		byLicense[c.LicenseNumber] = c
	}
	for _, want := range exported {
		got := byLicense[want.LicenseNumber]
		require.NotNil(t, got, want.LicenseNumber)
		assert.Equal(t, clinicRow(want), clinicRow(got))
	}
}

func TestImportCSVReportsRowErrors(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	input := strings.Join([]string{
		"license_number,clinic_name,specialization,governorate,city,expiry_date,verification_count",
		"JOR-1,A,عام,عمان,خلدا,2025-01-01,2",
		"JOR-2,B,عام,عمان,خلدا,not-a-date,",
		",C,عام,عمان,خلدا,,",
		"",
		"JOR-1,D,عام,عمان,خلدا,,",
		"JOR-3,E,عام,عمان,خلدا,,x",
	}, "\n")

	res, err := svc.ImportCSV(ctx, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, 4, res.Failed)
	rows := make([]int, 0, len(res.Errors))
	for _, e := range res.Errors {
		rows = append(rows, e.Row)
	}
	assert.Equal(t, []int{3, 4, 6, 7}, rows)

	c, err := svc.repo.FindByLicense(ctx, "JOR-1")
	require.NoError(t, err)
	assert.Equal(t, 2, c.VerificationCount)
	assert.Equal(t, model.LicenseStatusActive, c.LicenseStatus)
	assert.Equal(t, "عمان، خلدا", c.Address)
}

func TestImportCSVAcceptsSparseRows(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	input := strings.Join([]string{
		"رقم الترخيص,اسم العيادة,رقم الهاتف,حالة الترخيص",
		"JOR-10,عيادة الندى,,",
		"JOR-11,عيادة الشفاء,12345,suspended",
		"JOR-12,عيادة النور,,retired",
	}, "\n")

	res, err := svc.ImportCSV(ctx, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 4, res.Errors[0].Row)

	c, err := svc.repo.FindByLicense(ctx, "JOR-10")
	require.NoError(t, err)
	assert.Equal(t, model.LicenseStatusActive, c.LicenseStatus)
	assert.Empty(t, c.Specialization)
	assert.Empty(t, c.Governorate)
	assert.Empty(t, c.Address)
	assert.Nil(t, c.ExpiryDate)

	c, err = svc.repo.FindByLicense(ctx, "JOR-11")
	require.NoError(t, err)
	assert.Equal(t, "12345", c.Phone)
	assert.Equal(t, model.LicenseStatusSuspended, c.LicenseStatus)
}

func TestImportCSVWithoutLicenseColumn(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.ImportCSV(context.Background(), strings.NewReader("name\nx\n"))
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))

	_, err = svc.ImportCSV(context.Background(), strings.NewReader(""))
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
}

func TestExportXLSX(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	c := sample()
	c.VerificationCount = 9
	require.NoError(t, svc.CreateClinic(ctx, c))

	data, err := svc.ExportXLSX(ctx)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(xlsxSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, headerRow(), rows[0])
	assert.Equal(t, "JOR-DEN-001", rows[1][1])
	assert.Equal(t, "9", rows[1][12])
}

func TestExportFilename(t *testing.T) {
	assert.Equal(t, "clinics_export_2024-06-01.csv", ExportFilename("csv", time.Date(2024, 6, 1, 23, 0, 0, 0, time.UTC)))
}
