package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/dental-verify/internal/model"
	"github.com/jwalitptl/dental-verify/internal/repository"
	apperrors "github.com/jwalitptl/dental-verify/pkg/errors"
)

const clinicColumns = `
	id, clinic_name, doctor_name, license_number, specialization, phone,
	governorate, city, address_details, address, issue_date, expiry_date,
	verification_count, license_status, created_at, updated_at`

type clinicRepository struct {
	BaseRepository
}

func NewClinicRepository(base BaseRepository) repository.ClinicRepository {
	return &clinicRepository{base}
}

func (r *clinicRepository) List(ctx context.Context) ([]*model.Clinic, error) {
	query := `SELECT ` + clinicColumns + ` FROM clinics ORDER BY created_at DESC`

	clinics := make([]*model.Clinic, 0)
	if err := r.db.SelectContext(ctx, &clinics, query); err != nil {
		return nil, mapError(err, "clinic")
	}
	return clinics, nil
}

func (r *clinicRepository) Get(ctx context.Context, id string) (*model.Clinic, error) {
	query := `SELECT ` + clinicColumns + ` FROM clinics WHERE id = $1`

	var clinic model.Clinic
	if err := r.db.GetContext(ctx, &clinic, query, id); err != nil {
		return nil, mapError(err, "clinic")
	}
	return &clinic, nil
}

func (r *clinicRepository) FindByLicense(ctx context.Context, licenseNumber string) (*model.Clinic, error) {
	query := `SELECT ` + clinicColumns + `
		FROM clinics
		WHERE license_number = $1
		ORDER BY created_at DESC
		LIMIT 1`

	var clinic model.Clinic
	if err := r.db.GetContext(ctx, &clinic, query, licenseNumber); err != nil {
		return nil, mapError(err, "clinic")
	}
	return &clinic, nil
}

func (r *clinicRepository) Create(ctx context.Context, clinic *model.Clinic) error {
	query := `INSERT INTO clinics (` + clinicColumns + `) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
	)`

	if clinic.ID == "" {
		clinic.ID = uuid.New().String()
	}
	if clinic.CreatedAt.IsZero() {
		clinic.CreatedAt = time.Now().UTC()
	}
	if clinic.UpdatedAt.IsZero() {
		clinic.UpdatedAt = clinic.CreatedAt
	}

	_, err := r.db.ExecContext(ctx, query,
		clinic.ID,
		clinic.ClinicName,
		clinic.DoctorName,
		clinic.LicenseNumber,
		clinic.Specialization,
		clinic.Phone,
		clinic.Governorate,
		clinic.City,
		clinic.AddressDetails,
		clinic.Address,
		clinic.IssueDate,
		clinic.ExpiryDate,
		clinic.VerificationCount,
		clinic.LicenseStatus,
		clinic.CreatedAt,
		clinic.UpdatedAt,
	)
	if err != nil {
		return mapError(err, "clinic")
	}
	return nil
}

func (r *clinicRepository) Update(ctx context.Context, id string, patch model.ClinicPatch) error {
	if patch.UpdatedAt == nil {
		now := time.Now().UTC()
		patch.UpdatedAt = &now
	}
	return r.updateByKey(ctx, "clinics", "clinic", "id", id, patch.Columns())
}

func (r *clinicRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM clinics WHERE id = $1`, id); err != nil {
		return mapError(err, "clinic")
	}
	return nil
}

func (r *clinicRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM clinics`); err != nil {
		return fmt.Errorf("failed to clear clinics: %w", mapError(err, "clinic"))
	}
	return nil
}

func (r *clinicRepository) IncrementVerificationCount(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE clinics SET verification_count = verification_count + 1 WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "clinic")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NewNotFound("clinic", nil)
	}
	return nil
}
