package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/dental-verify/internal/model"
	"github.com/jwalitptl/dental-verify/internal/repository"
)

type governorateRepository struct {
	BaseRepository
}

func NewGovernorateRepository(base BaseRepository) repository.GovernorateRepository {
	return &governorateRepository{base}
}

func (r *governorateRepository) List(ctx context.Context) ([]*model.Governorate, error) {
	list := make([]*model.Governorate, 0)
	err := r.db.SelectContext(ctx, &list, `SELECT id, name, created_at FROM governorates ORDER BY name COLLATE "C"`)
	if err != nil {
		return nil, mapError(err, "governorate")
	}
	return list, nil
}

func (r *governorateRepository) Get(ctx context.Context, id string) (*model.Governorate, error) {
	var g model.Governorate
	err := r.db.GetContext(ctx, &g, `SELECT id, name, created_at FROM governorates WHERE id = $1`, id)
	if err != nil {
		return nil, mapError(err, "governorate")
	}
	return &g, nil
}

func (r *governorateRepository) Create(ctx context.Context, g *model.Governorate) error {
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO governorates (id, name, created_at) VALUES ($1, $2, $3)`,
		g.ID, g.Name, g.CreatedAt)
	return mapError(err, "governorate")
}

func (r *governorateRepository) Update(ctx context.Context, id string, patch model.GovernoratePatch) error {
	return r.updateByKey(ctx, "governorates", "governorate", "id", id, patch.Columns())
}

// Delete removes the cities first so the cascade does not depend on the
// foreign key having been created with ON DELETE CASCADE.
func (r *governorateRepository) Delete(ctx context.Context, id string) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM cities WHERE governorate_id = $1`, id); err != nil {
			return mapError(err, "city")
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM governorates WHERE id = $1`, id); err != nil {
			return mapError(err, "governorate")
		}
		return nil
	})
}

type cityRepository struct {
	BaseRepository
}

func NewCityRepository(base BaseRepository) repository.CityRepository {
	return &cityRepository{base}
}

func (r *cityRepository) List(ctx context.Context) ([]*model.City, error) {
	list := make([]*model.City, 0)
	err := r.db.SelectContext(ctx, &list,
		`SELECT id, name, governorate_id, created_at FROM cities ORDER BY name COLLATE "C"`)
	if err != nil {
		return nil, mapError(err, "city")
	}
	return list, nil
}

func (r *cityRepository) ListByGovernorate(ctx context.Context, governorateID string) ([]*model.City, error) {
	list := make([]*model.City, 0)
	err := r.db.SelectContext(ctx, &list,
		`SELECT id, name, governorate_id, created_at FROM cities WHERE governorate_id = $1 ORDER BY name COLLATE "C"`,
		governorateID)
	if err != nil {
		return nil, mapError(err, "city")
	}
	return list, nil
}

func (r *cityRepository) Get(ctx context.Context, id string) (*model.City, error) {
	var c model.City
	err := r.db.GetContext(ctx, &c,
		`SELECT id, name, governorate_id, created_at FROM cities WHERE id = $1`, id)
	if err != nil {
		return nil, mapError(err, "city")
	}
	return &c, nil
}

func (r *cityRepository) Create(ctx context.Context, c *model.City) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO cities (id, name, governorate_id, created_at) VALUES ($1, $2, $3, $4)`,
		c.ID, c.Name, c.GovernorateID, c.CreatedAt)
	return mapError(err, "city")
}

func (r *cityRepository) Update(ctx context.Context, id string, patch model.CityPatch) error {
	return r.updateByKey(ctx, "cities", "city", "id", id, patch.Columns())
}

func (r *cityRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cities WHERE id = $1`, id)
	return mapError(err, "city")
}
