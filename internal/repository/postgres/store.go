package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/dental-verify/internal/repository"
	apperrors "github.com/jwalitptl/dental-verify/pkg/errors"
)

// Store is the relational backend behind the gateway.
type Store struct {
	base            BaseRepository
	clinics         repository.ClinicRepository
	governorates    repository.GovernorateRepository
	cities          repository.CityRepository
	specializations repository.SpecializationRepository
	settings        repository.SettingRepository
	verifications   repository.VerificationRepository
}

func NewStore(db *sqlx.DB) *Store {
	base := NewBaseRepository(db)
	return &Store{
		base:            base,
		clinics:         NewClinicRepository(base),
		governorates:    NewGovernorateRepository(base),
		cities:          NewCityRepository(base),
		specializations: NewSpecializationRepository(base),
		settings:        NewSettingRepository(base),
		verifications:   NewVerificationRepository(base),
	}
}

func (s *Store) Clinics() repository.ClinicRepository                 { return s.clinics }
func (s *Store) Governorates() repository.GovernorateRepository       { return s.governorates }
func (s *Store) Cities() repository.CityRepository                    { return s.cities }
func (s *Store) Specializations() repository.SpecializationRepository { return s.specializations }
func (s *Store) Settings() repository.SettingRepository               { return s.settings }
func (s *Store) Verifications() repository.VerificationRepository     { return s.verifications }

func (s *Store) Ping(ctx context.Context) error {
	if err := s.base.db.PingContext(ctx); err != nil {
		return apperrors.NewUnavailable("database unavailable", err)
	}
	return nil
}

// Close is a no-op: the pool is owned by whoever opened it.
func (s *Store) Close() error {
	return nil
}

// DB exposes the pool for migrations.
func (s *Store) DB() *sqlx.DB {
	return s.base.db
}

func (s *Store) Migrate(ctx context.Context) error {
	return Migrate(ctx, s.base.db)
}
