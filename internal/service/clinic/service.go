package clinic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jwalitptl/dental-verify/internal/model"
	"github.com/jwalitptl/dental-verify/internal/repository"
	apperrors "github.com/jwalitptl/dental-verify/pkg/errors"
	"github.com/jwalitptl/dental-verify/pkg/logger"
	"github.com/jwalitptl/dental-verify/pkg/qr"
	"github.com/jwalitptl/dental-verify/pkg/validator"
)

type ClinicServicer interface {
	CreateClinic(ctx context.Context, clinic *model.Clinic) error
	GetClinic(ctx context.Context, id string) (*model.Clinic, error)
	UpdateClinic(ctx context.Context, id string, patch model.ClinicPatch) (*model.Clinic, error)
	DeleteClinic(ctx context.Context, id string) error
	ClearClinics(ctx context.Context) error
	ListClinics(ctx context.Context, filter ListFilter) ([]*model.Clinic, error)
	Analytics(ctx context.Context) (*model.Analytics, error)
	QRCode(ctx context.Context, id string, size int) ([]byte, *model.Clinic, error)
}

// ListFilter narrows the admin clinic list. Search matches clinic name,
// license number, doctor name or specialization, case insensitively.
type ListFilter struct {
	Search         string `form:"search"`
	Status         string `form:"status"`
	Specialization string `form:"specialization"`
}

// ExpiringSoonDays bounds the analytics "expiring soon" bucket.
const ExpiringSoonDays = 30

const addressSeparator = "، "

type Service struct {
	repo      repository.ClinicRepository
	validator validator.Validator
	logger    *logger.Logger
	now       func() time.Time
}

func NewService(repo repository.ClinicRepository, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:      repo,
		validator: validator.New(),
		logger:    log,
		now:       time.Now,
	}
}

// FormatAddress joins the address components the way the registry displays
// them. Empty components are left out.
func FormatAddress(governorate, city, details string) string {
	var parts []string
	for _, p := range []string{governorate, city, details} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, addressSeparator)
}

func (s *Service) CreateClinic(ctx context.Context, clinic *model.Clinic) error {
	normalize(clinic)
	if clinic.LicenseStatus == "" {
		clinic.LicenseStatus = model.LicenseStatusActive
	}
	if err := s.validator.Validate(clinic); err != nil {
		return fmt.Errorf("invalid clinic data: %w", err)
	}
	if err := s.ensureLicenseFree(ctx, clinic.LicenseNumber, ""); err != nil {
		return err
	}

	now := s.now().UTC()
	clinic.Address = FormatAddress(clinic.Governorate, clinic.City, clinic.AddressDetails)
	clinic.CreatedAt = now
	clinic.UpdatedAt = now

	if err := s.repo.Create(ctx, clinic); err != nil {
		return fmt.Errorf("failed to create clinic: %w", err)
	}
	s.logger.Info("clinic created", "clinic_id", clinic.ID, "license_number", clinic.LicenseNumber)
	return nil
}

func (s *Service) GetClinic(ctx context.Context, id string) (*model.Clinic, error) {
	clinic, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get clinic: %w", err)
	}
	return clinic, nil
}

// UpdateClinic applies patch and returns the stored result. The address is
// rebuilt whenever a component changes; a caller supplied address is
// ignored.
func (s *Service) UpdateClinic(ctx context.Context, id string, patch model.ClinicPatch) (*model.Clinic, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get clinic: %w", err)
	}

	patch.Address = nil
	patch.UpdatedAt = nil
	trimPatch(&patch)

	next := *current
	patch.Apply(&next)
	if err := s.validator.Validate(&next); err != nil {
		return nil, fmt.Errorf("invalid clinic data: %w", err)
	}
	if patch.LicenseNumber != nil && *patch.LicenseNumber != current.LicenseNumber {
		if err := s.ensureLicenseFree(ctx, *patch.LicenseNumber, id); err != nil {
			return nil, err
		}
	}
	if patch.TouchesAddress() {
		address := FormatAddress(next.Governorate, next.City, next.AddressDetails)
		patch.Address = &address
		next.Address = address
	}

	now := s.now().UTC()
	patch.UpdatedAt = &now
	next.UpdatedAt = now

	if err := s.repo.Update(ctx, id, patch); err != nil {
		return nil, fmt.Errorf("failed to update clinic: %w", err)
	}
	return &next, nil
}

func (s *Service) DeleteClinic(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete clinic: %w", err)
	}
	return nil
}

func (s *Service) ClearClinics(ctx context.Context) error {
	if err := s.repo.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear clinics: %w", err)
	}
	s.logger.Warn("all clinics cleared")
	return nil
}

func (s *Service) ListClinics(ctx context.Context, filter ListFilter) ([]*model.Clinic, error) {
	clinics, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list clinics: %w", err)
	}
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	if search == "" && filter.Status == "" && filter.Specialization == "" {
		return clinics, nil
	}

	out := make([]*model.Clinic, 0, len(clinics))
	for _, c := range clinics {
		if filter.Status != "" && string(c.LicenseStatus) != filter.Status {
			continue
		}
		if filter.Specialization != "" && c.Specialization != filter.Specialization {
			continue
		}
		if search != "" && !matches(c, search) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func matches(c *model.Clinic, search string) bool {
	for _, field := range []string{c.ClinicName, c.LicenseNumber, c.DoctorName, c.Specialization} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

// Analytics summarizes the registry for the admin dashboard.
func (s *Service) Analytics(ctx context.Context) (*model.Analytics, error) {
	clinics, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list clinics: %w", err)
	}
	today := model.DateOf(s.now())
	horizon := today.AddDays(ExpiringSoonDays)

	a := &model.Analytics{
		ByGovernorate:    map[string]int{},
		ByCity:           map[string]int{},
		BySpecialization: map[string]int{},
	}
	for _, c := range clinics {
		a.Total++
		a.TotalVerified += c.VerificationCount
		switch c.LicenseStatus {
		case model.LicenseStatusActive:
			a.Active++
			if c.ExpiryDate != nil && !c.ExpiryDate.IsZero() &&
				!c.ExpiryDate.Before(today) && !c.ExpiryDate.After(horizon) {
				a.ExpiringSoon++
			}
		case model.LicenseStatusExpired:
			a.Expired++
		case model.LicenseStatusSuspended:
			a.Suspended++
		case model.LicenseStatusPending:
			a.Pending++
		}
		if c.Governorate != "" {
			a.ByGovernorate[c.Governorate]++
		}
		if c.City != "" {
			a.ByCity[c.City]++
		}
		if c.Specialization != "" {
			a.BySpecialization[c.Specialization]++
		}
	}
	return a, nil
}

// QRCode renders the verification QR for a clinic as PNG.
func (s *Service) QRCode(ctx context.Context, id string, size int) ([]byte, *model.Clinic, error) {
	clinic, err := s.GetClinic(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if size <= 0 {
		size = qr.DefaultSize
	}
	if size > 2048 {
		return nil, nil, apperrors.NewBadRequest("size must be at most 2048", nil)
	}
	png, err := qr.RenderPNG(clinic.LicenseNumber, size)
	if err != nil {
		return nil, nil, apperrors.NewInternal(err)
	}
	return png, clinic, nil
}

func (s *Service) ensureLicenseFree(ctx context.Context, license, selfID string) error {
	existing, err := s.repo.FindByLicense(ctx, license)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to check license number: %w", err)
	}
	if existing.ID == selfID {
		return nil
	}
	return apperrors.NewConflict(fmt.Sprintf("license number %s is already registered", license), nil)
}

func normalize(c *model.Clinic) {
	for _, f := range []*string{
		&c.ClinicName, &c.DoctorName, &c.LicenseNumber, &c.Specialization,
		&c.Phone, &c.Governorate, &c.City, &c.AddressDetails,
	} {
		*f = strings.TrimSpace(*f)
	}
}

func trimPatch(p *model.ClinicPatch) {
	for _, f := range []*string{
		p.ClinicName, p.DoctorName, p.LicenseNumber, p.Specialization,
		p.Phone, p.Governorate, p.City, p.AddressDetails,
	} {
		if f != nil {
			*f = strings.TrimSpace(*f)
		}
	}
}
