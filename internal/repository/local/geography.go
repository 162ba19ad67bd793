package local

import (
	"context"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/jwalitptl/dental-verify/internal/model"
	apperrors "github.com/jwalitptl/dental-verify/pkg/errors"
)

type governorateRepository struct {
	s *Store
}

func (r *governorateRepository) List(ctx context.Context) ([]*model.Governorate, error) {
	var list []*model.Governorate
	err := r.s.view(ctx, func(tx *bolt.Tx) error {
		var err error
		list, err = allRows[model.Governorate](tx, bucketGovernorates)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list governorates: %w", err)
	}
	model.SortGovernorates(list)
	return list, nil
}

func (r *governorateRepository) Get(ctx context.Context, id string) (*model.Governorate, error) {
	var g *model.Governorate
	err := r.s.view(ctx, func(tx *bolt.Tx) error {
		var err error
		g, err = getRow[model.Governorate](tx, bucketGovernorates, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get governorate: %w", err)
	}
	if g == nil {
		return nil, apperrors.NewNotFound("governorate", nil)
	}
	return g, nil
}

func (r *governorateRepository) Create(ctx context.Context, g *model.Governorate) error {
	if g.ID == "" {
		g.ID = newID()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = r.s.now().UTC()
	}
	return r.s.update(ctx, func(tx *bolt.Tx) error {
		if exists(tx, bucketGovernorates, g.ID) {
			return apperrors.NewConflict(fmt.Sprintf("governorate %s already exists", g.ID), nil)
		}
		return putRow(tx, bucketGovernorates, g.ID, g)
	})
}

func (r *governorateRepository) Update(ctx context.Context, id string, patch model.GovernoratePatch) error {
	return r.s.update(ctx, func(tx *bolt.Tx) error {
		g, err := getRow[model.Governorate](tx, bucketGovernorates, id)
		if err != nil {
			return err
		}
		if g == nil {
			return apperrors.NewNotFound("governorate", nil)
		}
		patch.Apply(g)
		return putRow(tx, bucketGovernorates, id, g)
	})
}

// Delete removes the governorate and its cities in one transaction.
func (r *governorateRepository) Delete(ctx context.Context, id string) error {
	return r.s.update(ctx, func(tx *bolt.Tx) error {
		cities, err := allRows[model.City](tx, bucketCities)
		if err != nil {
			return err
		}
		b := tx.Bucket(bucketCities)
		for _, c := range cities {
			if c.GovernorateID != id {
				continue
			}
			if err := b.Delete([]byte(c.ID)); err != nil {
				return fmt.Errorf("failed to delete city %s: %w", c.ID, err)
			}
		}
		return tx.Bucket(bucketGovernorates).Delete([]byte(id))
	})
}

type cityRepository struct {
	s *Store
}

func (r *cityRepository) List(ctx context.Context) ([]*model.City, error) {
	var list []*model.City
	err := r.s.view(ctx, func(tx *bolt.Tx) error {
		var err error
		list, err = allRows[model.City](tx, bucketCities)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list cities: %w", err)
	}
	model.SortCities(list)
	return list, nil
}

func (r *cityRepository) ListByGovernorate(ctx context.Context, governorateID string) ([]*model.City, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	cities := make([]*model.City, 0, len(all))
	for _, c := range all {
		if c.GovernorateID == governorateID {
			cities = append(cities, c)
		}
	}
	return cities, nil
}

func (r *cityRepository) Get(ctx context.Context, id string) (*model.City, error) {
	var c *model.City
	err := r.s.view(ctx, func(tx *bolt.Tx) error {
		var err error
		c, err = getRow[model.City](tx, bucketCities, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get city: %w", err)
	}
	if c == nil {
		return nil, apperrors.NewNotFound("city", nil)
	}
	return c, nil
}

func (r *cityRepository) Create(ctx context.Context, c *model.City) error {
	if c.ID == "" {
		c.ID = newID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = r.s.now().UTC()
	}
	return r.s.update(ctx, func(tx *bolt.Tx) error {
		if exists(tx, bucketCities, c.ID) {
			return apperrors.NewConflict(fmt.Sprintf("city %s already exists", c.ID), nil)
		}
		return putRow(tx, bucketCities, c.ID, c)
	})
}

func (r *cityRepository) Update(ctx context.Context, id string, patch model.CityPatch) error {
	return r.s.update(ctx, func(tx *bolt.Tx) error {
		c, err := getRow[model.City](tx, bucketCities, id)
		if err != nil {
			return err
		}
		if c == nil {
			return apperrors.NewNotFound("city", nil)
		}
		patch.Apply(c)
		return putRow(tx, bucketCities, id, c)
	})
}

func (r *cityRepository) Delete(ctx context.Context, id string) error {
	return r.s.update(ctx, func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCities).Delete([]byte(id))
	})
}
