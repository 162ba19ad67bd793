// Package expiry moves active licenses whose expiry date has passed to the
// expired status.
package expiry

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/dental-verify/internal/model"
	"github.com/jwalitptl/dental-verify/internal/repository"
	"github.com/jwalitptl/dental-verify/pkg/logger"
	"github.com/jwalitptl/dental-verify/pkg/metrics"
)

// NearExpiryDays is the warning window counted by Recompute.
const NearExpiryDays = 30

type Service struct {
	clinics repository.ClinicRepository
	metrics *metrics.Metrics
	logger  *logger.Logger
}

func NewService(clinics repository.ClinicRepository, m *metrics.Metrics, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{clinics: clinics, metrics: m, logger: log}
}

// Recompute expires every active clinic whose expiry date is before the day
// of now. Rows are updated one at a time; when an update fails the sweep
// stops and the result counts only the rows already written. Running it
// twice with the same now changes nothing the second time.
func (s *Service) Recompute(ctx context.Context, now time.Time) (*model.RecomputeResult, error) {
	started := time.Now()
	result := &model.RecomputeResult{LastUpdated: now.UTC()}

	clinics, err := s.clinics.List(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to list clinics: %w", err)
	}

	today := model.DateOf(now)
	horizon := today.AddDays(NearExpiryDays)
	stamp := now.UTC()
	expired := model.LicenseStatusExpired

	for _, c := range clinics {
		if c.LicenseStatus == model.LicenseStatusExpired {
			result.TotalExpired++
			continue
		}
		if c.LicenseStatus != model.LicenseStatusActive || c.ExpiryDate == nil || c.ExpiryDate.IsZero() {
			continue
		}
		if c.ExpiryDate.Before(today) {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			err := s.clinics.Update(ctx, c.ID, model.ClinicPatch{LicenseStatus: &expired, UpdatedAt: &stamp})
			if err != nil {
				s.logger.Error(err, "license recompute stopped", "clinic_id", c.ID, "updated", result.UpdatedCount)
				return result, fmt.Errorf("failed to expire clinic %s: %w", c.ID, err)
			}
			result.UpdatedCount++
			result.TotalExpired++
			continue
		}
		if !c.ExpiryDate.After(horizon) {
			result.NearExpiryCount++
		}
	}

	result.Success = true
	s.metrics.ObserveRecompute(result.UpdatedCount, result.NearExpiryCount, started)
	s.logger.Info("license recompute finished",
		"updated", result.UpdatedCount,
		"total_expired", result.TotalExpired,
		"near_expiry", result.NearExpiryCount,
	)
	return result, nil
}
