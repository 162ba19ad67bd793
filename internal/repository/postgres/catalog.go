package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/dental-verify/internal/model"
	"github.com/jwalitptl/dental-verify/internal/repository"
	apperrors "github.com/jwalitptl/dental-verify/pkg/errors"
)

type specializationRepository struct {
	BaseRepository
}

func NewSpecializationRepository(base BaseRepository) repository.SpecializationRepository {
	return &specializationRepository{base}
}

const specializationColumns = `id, name_ar, name_en, is_active, sort_order, created_at`

func (r *specializationRepository) List(ctx context.Context) ([]*model.Specialization, error) {
	list := make([]*model.Specialization, 0)
	err := r.db.SelectContext(ctx, &list, `SELECT `+specializationColumns+`
		FROM specializations
		ORDER BY sort_order ASC, created_at ASC`)
	if err != nil {
		return nil, mapError(err, "specialization")
	}
	return list, nil
}

func (r *specializationRepository) Get(ctx context.Context, id string) (*model.Specialization, error) {
	var sp model.Specialization
	err := r.db.GetContext(ctx, &sp, `SELECT `+specializationColumns+` FROM specializations WHERE id = $1`, id)
	if err != nil {
		return nil, mapError(err, "specialization")
	}
	return &sp, nil
}

func (r *specializationRepository) Create(ctx context.Context, sp *model.Specialization) error {
	if sp.ID == "" {
		sp.ID = uuid.New().String()
	}
	if sp.CreatedAt.IsZero() {
		sp.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO specializations (`+specializationColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		sp.ID, sp.NameAr, sp.NameEn, sp.IsActive, sp.SortOrder, sp.CreatedAt)
	return mapError(err, "specialization")
}

func (r *specializationRepository) Update(ctx context.Context, id string, patch model.SpecializationPatch) error {
	return r.updateByKey(ctx, "specializations", "specialization", "id", id, patch.Columns())
}

func (r *specializationRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM specializations WHERE id = $1`, id)
	return mapError(err, "specialization")
}

type settingRepository struct {
	BaseRepository
}

func NewSettingRepository(base BaseRepository) repository.SettingRepository {
	return &settingRepository{base}
}

func (r *settingRepository) List(ctx context.Context) ([]*model.SiteSetting, error) {
	list := make([]*model.SiteSetting, 0)
	err := r.db.SelectContext(ctx, &list,
		`SELECT key, value, description, updated_at FROM site_settings ORDER BY key COLLATE "C"`)
	if err != nil {
		return nil, mapError(err, "site setting")
	}
	return list, nil
}

func (r *settingRepository) Get(ctx context.Context, key string) (*model.SiteSetting, error) {
	var s model.SiteSetting
	err := r.db.GetContext(ctx, &s,
		`SELECT key, value, description, updated_at FROM site_settings WHERE key = $1`, key)
	if err != nil {
		return nil, mapError(err, "site setting")
	}
	return &s, nil
}

func (r *settingRepository) Upsert(ctx context.Context, s *model.SiteSetting) error {
	if s.Key == "" {
		return apperrors.NewBadRequest("setting key is required", nil)
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO site_settings (key, value, description, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value,
			description = EXCLUDED.description,
			updated_at = EXCLUDED.updated_at`
	_, err := r.db.ExecContext(ctx, query, s.Key, s.Value, s.Description, s.UpdatedAt)
	return mapError(err, "site setting")
}

func (r *settingRepository) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM site_settings WHERE key = $1`, key)
	return mapError(err, "site setting")
}

type verificationRepository struct {
	BaseRepository
}

func NewVerificationRepository(base BaseRepository) repository.VerificationRepository {
	return &verificationRepository{base}
}

const verificationColumns = `id, clinic_id, license_number, verification_method,
	verification_status, ip_address, user_agent, created_at`

func (r *verificationRepository) Create(ctx context.Context, a *model.VerificationAttempt) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO verifications (`+verificationColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.ClinicID, a.LicenseNumber, a.VerificationMethod,
		a.VerificationStatus, a.IPAddress, a.UserAgent, a.CreatedAt)
	return mapError(err, "verification")
}

func (r *verificationRepository) List(ctx context.Context, filter model.VerificationFilter) ([]*model.VerificationAttempt, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.ClinicID != "" {
		add("clinic_id = $%d", filter.ClinicID)
	}
	if filter.LicenseNumber != "" {
		add("license_number = $%d", filter.LicenseNumber)
	}
	if filter.Since != nil {
		add("created_at >= $%d", *filter.Since)
	}

	query := `SELECT ` + verificationColumns + ` FROM verifications`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	list := make([]*model.VerificationAttempt, 0)
	if err := r.db.SelectContext(ctx, &list, query, args...); err != nil {
		return nil, mapError(err, "verification")
	}
	return list, nil
}
