package model

import "time"

type VerificationMethod string

const (
	VerificationMethodQRScan      VerificationMethod = "qr_scan"
	VerificationMethodManualEntry VerificationMethod = "manual_entry"
	VerificationMethodImageUpload VerificationMethod = "image_upload"
)

func (m VerificationMethod) Valid() bool {
	switch m {
	case VerificationMethodQRScan, VerificationMethodManualEntry, VerificationMethodImageUpload:
		return true
	}
	return false
}

type VerificationStatus string

const (
	VerificationStatusSuccess  VerificationStatus = "success"
	VerificationStatusFailed   VerificationStatus = "failed"
	VerificationStatusNotFound VerificationStatus = "not_found"
)

// VerificationAttempt is one append-only audit record. LicenseNumber is kept
// exactly as submitted.
type VerificationAttempt struct {
	ID                 string             `json:"id" db:"id"`
	ClinicID           string             `json:"clinic_id" db:"clinic_id"`
	LicenseNumber      string             `json:"license_number" db:"license_number"`
	VerificationMethod VerificationMethod `json:"verification_method" db:"verification_method"`
	VerificationStatus VerificationStatus `json:"verification_status" db:"verification_status"`
	IPAddress          string             `json:"ip_address" db:"ip_address"`
	UserAgent          string             `json:"user_agent" db:"user_agent"`
	CreatedAt          time.Time          `json:"created_at" db:"created_at"`
}

type VerificationFilter struct {
	ClinicID      string
	LicenseNumber string
	Since         *time.Time
	Limit         int
}

// Match reports whether a satisfies every set criterion of f.
func (f VerificationFilter) Match(a *VerificationAttempt) bool {
	if f.ClinicID != "" && a.ClinicID != f.ClinicID {
		return false
	}
	if f.LicenseNumber != "" && a.LicenseNumber != f.LicenseNumber {
		return false
	}
	if f.Since != nil && a.CreatedAt.Before(*f.Since) {
		return false
	}
	return true
}

type VerificationStats struct {
	Total    int                        `json:"total"`
	ByMethod map[VerificationMethod]int `json:"by_method"`
	ByStatus map[VerificationStatus]int `json:"by_status"`
}
