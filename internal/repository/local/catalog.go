package local

import (
	"context"
	"fmt"
	"sort"

	bolt "go.etcd.io/bbolt"

	"github.com/jwalitptl/dental-verify/internal/model"
	apperrors "github.com/jwalitptl/dental-verify/pkg/errors"
)

type specializationRepository struct {
	s *Store
}

func (r *specializationRepository) List(ctx context.Context) ([]*model.Specialization, error) {
	var list []*model.Specialization
	err := r.s.view(ctx, func(tx *bolt.Tx) error {
		var err error
		list, err = allRows[model.Specialization](tx, bucketSpecializations)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list specializations: %w", err)
	}
	model.SortSpecializations(list)
	return list, nil
}

func (r *specializationRepository) Get(ctx context.Context, id string) (*model.Specialization, error) {
	var sp *model.Specialization
	err := r.s.view(ctx, func(tx *bolt.Tx) error {
		var err error
		sp, err = getRow[model.Specialization](tx, bucketSpecializations, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get specialization: %w", err)
	}
	if sp == nil {
		return nil, apperrors.NewNotFound("specialization", nil)
	}
	return sp, nil
}

func (r *specializationRepository) Create(ctx context.Context, sp *model.Specialization) error {
	if sp.ID == "" {
		sp.ID = newID()
	}
	if sp.CreatedAt.IsZero() {
		sp.CreatedAt = r.s.now().UTC()
	}
	return r.s.update(ctx, func(tx *bolt.Tx) error {
		if exists(tx, bucketSpecializations, sp.ID) {
			return apperrors.NewConflict(fmt.Sprintf("specialization %s already exists", sp.ID), nil)
		}
		return putRow(tx, bucketSpecializations, sp.ID, sp)
	})
}

func (r *specializationRepository) Update(ctx context.Context, id string, patch model.SpecializationPatch) error {
	return r.s.update(ctx, func(tx *bolt.Tx) error {
		sp, err := getRow[model.Specialization](tx, bucketSpecializations, id)
		if err != nil {
			return err
		}
		if sp == nil {
			return apperrors.NewNotFound("specialization", nil)
		}
		patch.Apply(sp)
		return putRow(tx, bucketSpecializations, id, sp)
	})
}

func (r *specializationRepository) Delete(ctx context.Context, id string) error {
	return r.s.update(ctx, func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSpecializations).Delete([]byte(id))
	})
}

type settingRepository struct {
	s *Store
}

func (r *settingRepository) List(ctx context.Context) ([]*model.SiteSetting, error) {
	var list []*model.SiteSetting
	err := r.s.view(ctx, func(tx *bolt.Tx) error {
		var err error
		list, err = allRows[model.SiteSetting](tx, bucketSettings)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list site settings: %w", err)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Key < list[j].Key })
	return list, nil
}

func (r *settingRepository) Get(ctx context.Context, key string) (*model.SiteSetting, error) {
	var setting *model.SiteSetting
	err := r.s.view(ctx, func(tx *bolt.Tx) error {
		var err error
		setting, err = getRow[model.SiteSetting](tx, bucketSettings, key)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get site setting: %w", err)
	}
	if setting == nil {
		return nil, apperrors.NewNotFound("site setting", nil)
	}
	return setting, nil
}

func (r *settingRepository) Upsert(ctx context.Context, setting *model.SiteSetting) error {
	if setting.Key == "" {
		return apperrors.NewBadRequest("setting key is required", nil)
	}
	if setting.UpdatedAt.IsZero() {
		setting.UpdatedAt = r.s.now().UTC()
	}
	return r.s.update(ctx, func(tx *bolt.Tx) error {
		return putRow(tx, bucketSettings, setting.Key, setting)
	})
}

func (r *settingRepository) Delete(ctx context.Context, key string) error {
	return r.s.update(ctx, func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSettings).Delete([]byte(key))
	})
}

type verificationRepository struct {
	s *Store
}

func (r *verificationRepository) Create(ctx context.Context, attempt *model.VerificationAttempt) error {
	if attempt.ID == "" {
		attempt.ID = newID()
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = r.s.now().UTC()
	}
	return r.s.update(ctx, func(tx *bolt.Tx) error {
		if exists(tx, bucketVerifications, attempt.ID) {
			return apperrors.NewConflict(fmt.Sprintf("verification %s already exists", attempt.ID), nil)
		}
		return putRow(tx, bucketVerifications, attempt.ID, attempt)
	})
}

func (r *verificationRepository) List(ctx context.Context, filter model.VerificationFilter) ([]*model.VerificationAttempt, error) {
	var all []*model.VerificationAttempt
	err := r.s.view(ctx, func(tx *bolt.Tx) error {
		var err error
		all, err = allRows[model.VerificationAttempt](tx, bucketVerifications)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list verifications: %w", err)
	}

	attempts := make([]*model.VerificationAttempt, 0, len(all))
	for _, a := range all {
		if filter.Match(a) {
			attempts = append(attempts, a)
		}
	}
	sort.SliceStable(attempts, func(i, j int) bool {
		return attempts[i].CreatedAt.After(attempts[j].CreatedAt)
	})
	if filter.Limit > 0 && len(attempts) > filter.Limit {
		attempts = attempts[:filter.Limit]
	}
	return attempts, nil
}
