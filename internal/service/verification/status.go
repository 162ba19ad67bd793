package verification

import (
	"time"

	"github.com/jwalitptl/dental-verify/internal/model"
)

// Outcome is what a verification tells the user about a license.
type Outcome string

const (
	OutcomeValid         Outcome = "valid"
	OutcomeInvalidStatus Outcome = "invalid_status"
	OutcomeExpired       Outcome = "expired"
	OutcomeNotFound      Outcome = "not_found"
)

// Resolve decides the outcome for clinic at now. It has no side effects.
// Expiry is compared by calendar day in UTC, so a license expiring today is
// still valid.
func Resolve(clinic *model.Clinic, now time.Time) Outcome {
	if clinic == nil {
		return OutcomeNotFound
	}
	if clinic.LicenseStatus != model.LicenseStatusActive {
		return OutcomeInvalidStatus
	}
	if clinic.ExpiryDate != nil && !clinic.ExpiryDate.IsZero() && clinic.ExpiryDate.Before(model.DateOf(now)) {
		return OutcomeExpired
	}
	return OutcomeValid
}
