package model

import (
	"encoding/json"
	"sort"
	"time"
)

type LicenseStatus string

const (
	LicenseStatusActive    LicenseStatus = "active"
	LicenseStatusExpired   LicenseStatus = "expired"
	LicenseStatusSuspended LicenseStatus = "suspended"
	LicenseStatusPending   LicenseStatus = "pending"
)

func (s LicenseStatus) Valid() bool {
	switch s {
	case LicenseStatusActive, LicenseStatusExpired, LicenseStatusSuspended, LicenseStatusPending:
		return true
	}
	return false
}

// Clinic is a licensed dental clinic. Address is derived from Governorate,
// City and AddressDetails and is rewritten whenever one of them changes.
type Clinic struct {
	ID                string        `json:"id" db:"id"`
	ClinicName        string        `json:"clinic_name" db:"clinic_name" validate:"required"`
	DoctorName        string        `json:"doctor_name" db:"doctor_name"`
	LicenseNumber     string        `json:"license_number" db:"license_number" validate:"required"`
	Specialization    string        `json:"specialization" db:"specialization" validate:"required"`
	Phone             string        `json:"phone" db:"phone" validate:"omitempty,jo_phone"`
	Governorate       string        `json:"governorate" db:"governorate" validate:"required"`
	City              string        `json:"city" db:"city" validate:"required"`
	AddressDetails    string        `json:"address_details" db:"address_details"`
	Address           string        `json:"address" db:"address"`
	IssueDate         *Date         `json:"issue_date" db:"issue_date"`
	ExpiryDate        *Date         `json:"expiry_date" db:"expiry_date"`
	VerificationCount int           `json:"verification_count" db:"verification_count" validate:"min=0"`
	LicenseStatus     LicenseStatus `json:"license_status" db:"license_status" validate:"required,license_status"`
	CreatedAt         time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at" db:"updated_at"`
}

// ClinicPatch carries the fields of an update. Nil fields are left alone; a
// non-nil zero Date clears the stored date.
type ClinicPatch struct {
	ClinicName        *string        `json:"clinic_name,omitempty"`
	DoctorName        *string        `json:"doctor_name,omitempty"`
	LicenseNumber     *string        `json:"license_number,omitempty"`
	Specialization    *string        `json:"specialization,omitempty"`
	Phone             *string        `json:"phone,omitempty"`
	Governorate       *string        `json:"governorate,omitempty"`
	City              *string        `json:"city,omitempty"`
	AddressDetails    *string        `json:"address_details,omitempty"`
	Address           *string        `json:"address,omitempty"`
	IssueDate         *Date          `json:"issue_date,omitempty"`
	ExpiryDate        *Date          `json:"expiry_date,omitempty"`
	VerificationCount *int           `json:"verification_count,omitempty"`
	LicenseStatus     *LicenseStatus `json:"license_status,omitempty"`
	UpdatedAt         *time.Time     `json:"updated_at,omitempty"`
}

// UnmarshalJSON treats an explicit null date as a request to clear it,
// mirroring how a zero Date marshals.
func (p *ClinicPatch) UnmarshalJSON(b []byte) error {
	type plain ClinicPatch
	var v plain
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if r, ok := raw["issue_date"]; ok && string(r) == "null" {
		v.IssueDate = &Date{}
	}
	if r, ok := raw["expiry_date"]; ok && string(r) == "null" {
		v.ExpiryDate = &Date{}
	}
	*p = ClinicPatch(v)
	return nil
}

// Columns returns the set fields keyed by column name.
func (p ClinicPatch) Columns() map[string]interface{} {
	cols := map[string]interface{}{}
	setString := func(name string, v *string) {
		if v != nil {
			cols[name] = *v
		}
	}
	setString("clinic_name", p.ClinicName)
	setString("doctor_name", p.DoctorName)
	setString("license_number", p.LicenseNumber)
	setString("specialization", p.Specialization)
	setString("phone", p.Phone)
	setString("governorate", p.Governorate)
	setString("city", p.City)
	setString("address_details", p.AddressDetails)
	setString("address", p.Address)
	if p.IssueDate != nil {
		cols["issue_date"] = *p.IssueDate
	}
	if p.ExpiryDate != nil {
		cols["expiry_date"] = *p.ExpiryDate
	}
	if p.VerificationCount != nil {
		cols["verification_count"] = *p.VerificationCount
	}
	if p.LicenseStatus != nil {
		cols["license_status"] = string(*p.LicenseStatus)
	}
	if p.UpdatedAt != nil {
		cols["updated_at"] = *p.UpdatedAt
	}
	return cols
}

func (p ClinicPatch) IsEmpty() bool {
	return len(p.Columns()) == 0
}

// TouchesAddress reports whether the patch changes a component of the
// derived address.
func (p ClinicPatch) TouchesAddress() bool {
	return p.Governorate != nil || p.City != nil || p.AddressDetails != nil
}

// Apply copies the set fields onto c.
func (p ClinicPatch) Apply(c *Clinic) {
	assign := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	assign(&c.ClinicName, p.ClinicName)
	assign(&c.DoctorName, p.DoctorName)
	assign(&c.LicenseNumber, p.LicenseNumber)
	assign(&c.Specialization, p.Specialization)
	assign(&c.Phone, p.Phone)
	assign(&c.Governorate, p.Governorate)
	assign(&c.City, p.City)
	assign(&c.AddressDetails, p.AddressDetails)
	assign(&c.Address, p.Address)
	c.IssueDate = applyDate(c.IssueDate, p.IssueDate)
	c.ExpiryDate = applyDate(c.ExpiryDate, p.ExpiryDate)
	if p.VerificationCount != nil {
		c.VerificationCount = *p.VerificationCount
	}
	if p.LicenseStatus != nil {
		c.LicenseStatus = *p.LicenseStatus
	}
	if p.UpdatedAt != nil {
		c.UpdatedAt = *p.UpdatedAt
	}
}

func applyDate(current, patch *Date) *Date {
	if patch == nil {
		return current
	}
	if patch.IsZero() {
		return nil
	}
	d := *patch
	return &d
}

// SortClinics orders clinics newest first, the order every backend lists in.
func SortClinics(clinics []*Clinic) {
	sort.SliceStable(clinics, func(i, j int) bool {
		return clinics[i].CreatedAt.After(clinics[j].CreatedAt)
	})
}

// RecomputeResult summarizes one bulk expiry sweep.
type RecomputeResult struct {
	UpdatedCount    int       `json:"updated_count"`
	TotalExpired    int       `json:"total_expired"`
	NearExpiryCount int       `json:"near_expiry_count"`
	LastUpdated     time.Time `json:"last_updated"`
	Success         bool      `json:"success"`
}

// Analytics is the dashboard breakdown of the clinic registry.
type Analytics struct {
	Total            int            `json:"total"`
	Active           int            `json:"active"`
	Expired          int            `json:"expired"`
	Suspended        int            `json:"suspended"`
	Pending          int            `json:"pending"`
	ExpiringSoon     int            `json:"expiring_soon"`
	TotalVerified    int            `json:"total_verifications"`
	ByGovernorate    map[string]int `json:"by_governorate"`
	ByCity           map[string]int `json:"by_city"`
	BySpecialization map[string]int `json:"by_specialization"`
}
