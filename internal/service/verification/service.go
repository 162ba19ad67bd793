package verification

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/dental-verify/internal/model"
	"github.com/jwalitptl/dental-verify/internal/repository"
	apperrors "github.com/jwalitptl/dental-verify/pkg/errors"
	"github.com/jwalitptl/dental-verify/pkg/logger"
	"github.com/jwalitptl/dental-verify/pkg/metrics"
)

// Recorder appends verification attempts to the audit log.
type Recorder interface {
	Record(ctx context.Context, attempt *model.VerificationAttempt) error
}

type Request struct {
	LicenseNumber string                   `json:"license_number" binding:"required"`
	Method        model.VerificationMethod `json:"method" binding:"omitempty,verification_method"`
	IPAddress     string                   `json:"-"`
	UserAgent     string                   `json:"-"`
}

type Result struct {
	Outcome       Outcome             `json:"outcome"`
	Status        model.LicenseStatus `json:"status,omitempty"`
	LicenseNumber string              `json:"license_number"`
	Clinic        *model.Clinic       `json:"clinic,omitempty"`
	VerifiedAt    time.Time           `json:"verified_at"`
	NearExpiry    bool                `json:"near_expiry,omitempty"`
	DaysRemaining *int                `json:"days_remaining,omitempty"`
}

// NearExpiryWindow is how close to expiry a valid license is flagged.
const NearExpiryWindow = 30

type Service struct {
	clinics  repository.ClinicRepository
	recorder Recorder
	metrics  *metrics.Metrics
	logger   *logger.Logger
	now      func() time.Time
}

func NewService(clinics repository.ClinicRepository, recorder Recorder, m *metrics.Metrics, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		clinics:  clinics,
		recorder: recorder,
		metrics:  m,
		logger:   log,
		now:      time.Now,
	}
}

// Lookup finds the clinic holding license. The match is exact: no trimming,
// case sensitive. A missing clinic is (nil, nil), not an error.
func (s *Service) Lookup(ctx context.Context, license string) (*model.Clinic, error) {
	clinic, err := s.clinics.FindByLicense(ctx, license)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up license: %w", err)
	}
	return clinic, nil
}

func (s *Service) Verify(ctx context.Context, req Request) (*Result, error) {
	return s.VerifyAt(ctx, req, s.now())
}

// VerifyAt looks the license up, resolves it at now and records exactly one
// attempt. The attempt is written before returning but a failed write is
// only logged. A lookup error records a failed attempt and is returned.
func (s *Service) VerifyAt(ctx context.Context, req Request, now time.Time) (*Result, error) {
	if req.Method == "" {
		req.Method = model.VerificationMethodManualEntry
	}
	attempt := &model.VerificationAttempt{
		LicenseNumber:      req.LicenseNumber,
		VerificationMethod: req.Method,
		IPAddress:          req.IPAddress,
		UserAgent:          req.UserAgent,
		CreatedAt:          now.UTC(),
	}

	clinic, err := s.Lookup(ctx, req.LicenseNumber)
	if err != nil {
		attempt.VerificationStatus = model.VerificationStatusFailed
		s.record(ctx, attempt)
		s.metrics.ObserveVerification(string(req.Method), string(model.VerificationStatusFailed))
		return nil, err
	}

	outcome := Resolve(clinic, now)
	result := &Result{
		Outcome:       outcome,
		LicenseNumber: req.LicenseNumber,
		Clinic:        clinic,
		VerifiedAt:    now.UTC(),
	}
	if clinic == nil {
		attempt.VerificationStatus = model.VerificationStatusNotFound
	} else {
		attempt.ClinicID = clinic.ID
		attempt.VerificationStatus = model.VerificationStatusSuccess
		result.Status = clinic.LicenseStatus
		if outcome == OutcomeValid && clinic.ExpiryDate != nil && !clinic.ExpiryDate.IsZero() {
			days := daysBetween(model.DateOf(now), *clinic.ExpiryDate)
			result.DaysRemaining = &days
			result.NearExpiry = days <= NearExpiryWindow
		}
	}

	s.record(ctx, attempt)
	s.metrics.ObserveVerification(string(req.Method), string(outcome))
	return result, nil
}

func (s *Service) record(ctx context.Context, attempt *model.VerificationAttempt) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, attempt); err != nil {
		s.metrics.AuditFailed()
		s.logger.Error(err, "failed to record verification attempt",
			"license_number", attempt.LicenseNumber,
			"method", string(attempt.VerificationMethod),
			"status", string(attempt.VerificationStatus),
		)
	}
}

func daysBetween(from, to model.Date) int {
	return int(to.Time().Sub(from.Time()).Hours() / 24)
}
