package local

import (
	"context"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/jwalitptl/dental-verify/internal/model"
	apperrors "github.com/jwalitptl/dental-verify/pkg/errors"
)

type clinicRepository struct {
	s *Store
}

func (r *clinicRepository) List(ctx context.Context) ([]*model.Clinic, error) {
	var clinics []*model.Clinic
	err := r.s.view(ctx, func(tx *bolt.Tx) error {
		var err error
		clinics, err = allRows[model.Clinic](tx, bucketClinics)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list clinics: %w", err)
	}
	model.SortClinics(clinics)
	return clinics, nil
}

func (r *clinicRepository) Get(ctx context.Context, id string) (*model.Clinic, error) {
	var clinic *model.Clinic
	err := r.s.view(ctx, func(tx *bolt.Tx) error {
		var err error
		clinic, err = getRow[model.Clinic](tx, bucketClinics, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get clinic: %w", err)
	}
	if clinic == nil {
		return nil, apperrors.NewNotFound("clinic", nil)
	}
	return clinic, nil
}

func (r *clinicRepository) FindByLicense(ctx context.Context, licenseNumber string) (*model.Clinic, error) {
	clinics, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	// List is newest first, so the first match is the most recent one.
	for _, c := range clinics {
		if c.LicenseNumber == licenseNumber {
			return c, nil
		}
	}
	return nil, apperrors.NewNotFound("clinic", nil)
}

func (r *clinicRepository) Create(ctx context.Context, clinic *model.Clinic) error {
	if clinic.ID == "" {
		clinic.ID = newID()
	}
	if clinic.CreatedAt.IsZero() {
		clinic.CreatedAt = r.s.now().UTC()
	}
	if clinic.UpdatedAt.IsZero() {
		clinic.UpdatedAt = clinic.CreatedAt
	}

	return r.s.update(ctx, func(tx *bolt.Tx) error {
		if exists(tx, bucketClinics, clinic.ID) {
			return apperrors.NewConflict(fmt.Sprintf("clinic %s already exists", clinic.ID), nil)
		}
		return putRow(tx, bucketClinics, clinic.ID, clinic)
	})
}

func (r *clinicRepository) Update(ctx context.Context, id string, patch model.ClinicPatch) error {
	if patch.UpdatedAt == nil {
		now := r.s.now().UTC()
		patch.UpdatedAt = &now
	}
	return r.s.update(ctx, func(tx *bolt.Tx) error {
		clinic, err := getRow[model.Clinic](tx, bucketClinics, id)
		if err != nil {
			return err
		}
		if clinic == nil {
			return apperrors.NewNotFound("clinic", nil)
		}
		patch.Apply(clinic)
		return putRow(tx, bucketClinics, id, clinic)
	})
}

func (r *clinicRepository) Delete(ctx context.Context, id string) error {
	return r.s.update(ctx, func(tx *bolt.Tx) error {
		return tx.Bucket(bucketClinics).Delete([]byte(id))
	})
}

func (r *clinicRepository) Clear(ctx context.Context) error {
	return r.s.update(ctx, func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketClinics); err != nil {
			return fmt.Errorf("failed to clear clinics: %w", err)
		}
		_, err := tx.CreateBucket(bucketClinics)
		return err
	})
}

func (r *clinicRepository) IncrementVerificationCount(ctx context.Context, id string) error {
	return r.s.update(ctx, func(tx *bolt.Tx) error {
		clinic, err := getRow[model.Clinic](tx, bucketClinics, id)
		if err != nil {
			return err
		}
		if clinic == nil {
			return apperrors.NewNotFound("clinic", nil)
		}
		clinic.VerificationCount++
		return putRow(tx, bucketClinics, id, clinic)
	})
}
