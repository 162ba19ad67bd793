package repository

import (
	"context"

	"github.com/jwalitptl/dental-verify/internal/model"
)

// ClinicRepository lists newest first. Lookups by license are exact and
// case sensitive; when several clinics share a license the most recently
// created one wins.
type ClinicRepository interface {
	List(ctx context.Context) ([]*model.Clinic, error)
	Get(ctx context.Context, id string) (*model.Clinic, error)
	FindByLicense(ctx context.Context, licenseNumber string) (*model.Clinic, error)
	Create(ctx context.Context, clinic *model.Clinic) error
	Update(ctx context.Context, id string, patch model.ClinicPatch) error
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
	IncrementVerificationCount(ctx context.Context, id string) error
}

// GovernorateRepository lists by name. Delete removes the governorate's
// cities too.
type GovernorateRepository interface {
	List(ctx context.Context) ([]*model.Governorate, error)
	Get(ctx context.Context, id string) (*model.Governorate, error)
	Create(ctx context.Context, governorate *model.Governorate) error
	Update(ctx context.Context, id string, patch model.GovernoratePatch) error
	Delete(ctx context.Context, id string) error
}

type CityRepository interface {
	List(ctx context.Context) ([]*model.City, error)
	ListByGovernorate(ctx context.Context, governorateID string) ([]*model.City, error)
	Get(ctx context.Context, id string) (*model.City, error)
	Create(ctx context.Context, city *model.City) error
	Update(ctx context.Context, id string, patch model.CityPatch) error
	Delete(ctx context.Context, id string) error
}

// SpecializationRepository lists by sort order, then creation time.
type SpecializationRepository interface {
	List(ctx context.Context) ([]*model.Specialization, error)
	Get(ctx context.Context, id string) (*model.Specialization, error)
	Create(ctx context.Context, specialization *model.Specialization) error
	Update(ctx context.Context, id string, patch model.SpecializationPatch) error
	Delete(ctx context.Context, id string) error
}

type SettingRepository interface {
	List(ctx context.Context) ([]*model.SiteSetting, error)
	Get(ctx context.Context, key string) (*model.SiteSetting, error)
	Upsert(ctx context.Context, setting *model.SiteSetting) error
	Delete(ctx context.Context, key string) error
}

// VerificationRepository is append only.
type VerificationRepository interface {
	Create(ctx context.Context, attempt *model.VerificationAttempt) error
	List(ctx context.Context, filter model.VerificationFilter) ([]*model.VerificationAttempt, error)
}

// Store is one opened backend. Every backend honours the same contract, so
// callers never branch on which one they hold.
type Store interface {
	Clinics() ClinicRepository
	Governorates() GovernorateRepository
	Cities() CityRepository
	Specializations() SpecializationRepository
	Settings() SettingRepository
	Verifications() VerificationRepository
	Ping(ctx context.Context) error
	Close() error
}
