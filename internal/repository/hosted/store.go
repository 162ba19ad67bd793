package hosted

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/dental-verify/internal/model"
	"github.com/jwalitptl/dental-verify/internal/repository"
	apperrors "github.com/jwalitptl/dental-verify/pkg/errors"
)

const (
	tableClinics         = "clinics"
	tableGovernorates    = "governorates"
	tableCities          = "cities"
	tableSpecializations = "specializations"
	tableSettings        = "site_settings"
	tableVerifications   = "verifications"

	// nilUUID matches no row, so neq.nilUUID selects every row. PostgREST
	// refuses a DELETE without a filter.
	nilUUID = "00000000-0000-0000-0000-000000000000"
)

type Store struct {
	c   *client
	now func() time.Time
}

func New(cfg Config, opts ...Option) (*Store, error) {
	c, err := newClient(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Store{c: c, now: time.Now}, nil
}

func (s *Store) Clinics() repository.ClinicRepository                 { return clinicRepository{s} }
func (s *Store) Governorates() repository.GovernorateRepository       { return governorateRepository{s} }
func (s *Store) Cities() repository.CityRepository                    { return cityRepository{s} }
func (s *Store) Specializations() repository.SpecializationRepository { return specializationRepository{s} }
func (s *Store) Settings() repository.SettingRepository               { return settingRepository{s} }
func (s *Store) Verifications() repository.VerificationRepository     { return verificationRepository{s} }

// Ping reads one setting row, which proves both reachability and the key.
func (s *Store) Ping(ctx context.Context) error {
	return s.c.do(ctx, request{
		op: "ping", method: http.MethodGet, table: tableSettings,
		query: map[string]string{"select": "key", "limit": "1"},
	})
}

func (s *Store) Close() error {
	s.c.http.GetClient().CloseIdleConnections()
	return nil
}

func (s *Store) stamp() time.Time {
	return s.now().UTC()
}

type clinicRepository struct{ s *Store }

func (r clinicRepository) List(ctx context.Context) ([]*model.Clinic, error) {
	var out []*model.Clinic
	err := r.s.c.selectAll(ctx, "clinics.list", tableClinics, map[string]string{"order": "created_at.desc"}, &out)
	return out, err
}

func (r clinicRepository) Get(ctx context.Context, id string) (*model.Clinic, error) {
	return selectOne[model.Clinic](ctx, r.s.c, "clinics.get", tableClinics, "clinic", "id", id)
}

func (r clinicRepository) FindByLicense(ctx context.Context, licenseNumber string) (*model.Clinic, error) {
	var rows []*model.Clinic
	query := map[string]string{
		"license_number": eq(licenseNumber),
		"order":          "created_at.desc",
		"limit":          "1",
	}
	if err := r.s.c.selectAll(ctx, "clinics.find_by_license", tableClinics, query, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperrors.NewNotFound("clinic", nil)
	}
	return rows[0], nil
}

func (r clinicRepository) Create(ctx context.Context, clinic *model.Clinic) error {
	if clinic.ID == "" {
		clinic.ID = uuid.New().String()
	}
	if clinic.CreatedAt.IsZero() {
		clinic.CreatedAt = r.s.stamp()
	}
	if clinic.UpdatedAt.IsZero() {
		clinic.UpdatedAt = clinic.CreatedAt
	}
	return insert(ctx, r.s.c, "clinics.create", tableClinics, clinic)
}

func (r clinicRepository) Update(ctx context.Context, id string, patch model.ClinicPatch) error {
	if patch.UpdatedAt == nil {
		now := r.s.stamp()
		patch.UpdatedAt = &now
	}
	return r.s.c.update(ctx, "clinics.update", tableClinics, "clinic", "id", id, patch.Columns())
}

func (r clinicRepository) Delete(ctx context.Context, id string) error {
	return r.s.c.remove(ctx, "clinics.delete", tableClinics, map[string]string{"id": eq(id)})
}

func (r clinicRepository) Clear(ctx context.Context) error {
	return r.s.c.remove(ctx, "clinics.clear", tableClinics, map[string]string{"id": neq(nilUUID)})
}

// IncrementVerificationCount reads then writes; concurrent increments may
// be lost, the last write wins.
func (r clinicRepository) IncrementVerificationCount(ctx context.Context, id string) error {
	clinic, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	cols := map[string]interface{}{"verification_count": clinic.VerificationCount + 1}
	return r.s.c.update(ctx, "clinics.increment", tableClinics, "clinic", "id", id, cols)
}

type governorateRepository struct{ s *Store }

func (r governorateRepository) List(ctx context.Context) ([]*model.Governorate, error) {
	var out []*model.Governorate
	err := r.s.c.selectAll(ctx, "governorates.list", tableGovernorates, map[string]string{"order": "name.asc"}, &out)
	// PostgREST sorts with the database collation.
	model.SortGovernorates(out)
	return out, err
}

func (r governorateRepository) Get(ctx context.Context, id string) (*model.Governorate, error) {
	return selectOne[model.Governorate](ctx, r.s.c, "governorates.get", tableGovernorates, "governorate", "id", id)
}

func (r governorateRepository) Create(ctx context.Context, g *model.Governorate) error {
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = r.s.stamp()
	}
	return insert(ctx, r.s.c, "governorates.create", tableGovernorates, g)
}

func (r governorateRepository) Update(ctx context.Context, id string, patch model.GovernoratePatch) error {
	return r.s.c.update(ctx, "governorates.update", tableGovernorates, "governorate", "id", id, patch.Columns())
}

// Delete removes the cities first. The two requests are not atomic; a
// failure between them leaves the governorate without cities.
func (r governorateRepository) Delete(ctx context.Context, id string) error {
	if err := r.s.c.remove(ctx, "cities.delete_by_governorate", tableCities, map[string]string{"governorate_id": eq(id)}); err != nil {
		return err
	}
	return r.s.c.remove(ctx, "governorates.delete", tableGovernorates, map[string]string{"id": eq(id)})
}

type cityRepository struct{ s *Store }

func (r cityRepository) List(ctx context.Context) ([]*model.City, error) {
	var out []*model.City
	err := r.s.c.selectAll(ctx, "cities.list", tableCities, map[string]string{"order": "name.asc"}, &out)
	model.SortCities(out)
	return out, err
}

func (r cityRepository) ListByGovernorate(ctx context.Context, governorateID string) ([]*model.City, error) {
	var out []*model.City
	query := map[string]string{"governorate_id": eq(governorateID), "order": "name.asc"}
	err := r.s.c.selectAll(ctx, "cities.list_by_governorate", tableCities, query, &out)
	model.SortCities(out)
	return out, err
}

func (r cityRepository) Get(ctx context.Context, id string) (*model.City, error) {
	return selectOne[model.City](ctx, r.s.c, "cities.get", tableCities, "city", "id", id)
}

func (r cityRepository) Create(ctx context.Context, city *model.City) error {
	if city.ID == "" {
		city.ID = uuid.New().String()
	}
	if city.CreatedAt.IsZero() {
		city.CreatedAt = r.s.stamp()
	}
	return insert(ctx, r.s.c, "cities.create", tableCities, city)
}

func (r cityRepository) Update(ctx context.Context, id string, patch model.CityPatch) error {
	return r.s.c.update(ctx, "cities.update", tableCities, "city", "id", id, patch.Columns())
}

func (r cityRepository) Delete(ctx context.Context, id string) error {
	return r.s.c.remove(ctx, "cities.delete", tableCities, map[string]string{"id": eq(id)})
}

type specializationRepository struct{ s *Store }

func (r specializationRepository) List(ctx context.Context) ([]*model.Specialization, error) {
	var out []*model.Specialization
	query := map[string]string{"order": "sort_order.asc,created_at.asc"}
	err := r.s.c.selectAll(ctx, "specializations.list", tableSpecializations, query, &out)
	return out, err
}

func (r specializationRepository) Get(ctx context.Context, id string) (*model.Specialization, error) {
	return selectOne[model.Specialization](ctx, r.s.c, "specializations.get", tableSpecializations, "specialization", "id", id)
}

func (r specializationRepository) Create(ctx context.Context, sp *model.Specialization) error {
	if sp.ID == "" {
		sp.ID = uuid.New().String()
	}
	if sp.CreatedAt.IsZero() {
		sp.CreatedAt = r.s.stamp()
	}
	return insert(ctx, r.s.c, "specializations.create", tableSpecializations, sp)
}

func (r specializationRepository) Update(ctx context.Context, id string, patch model.SpecializationPatch) error {
	return r.s.c.update(ctx, "specializations.update", tableSpecializations, "specialization", "id", id, patch.Columns())
}

func (r specializationRepository) Delete(ctx context.Context, id string) error {
	return r.s.c.remove(ctx, "specializations.delete", tableSpecializations, map[string]string{"id": eq(id)})
}

type settingRepository struct{ s *Store }

func (r settingRepository) List(ctx context.Context) ([]*model.SiteSetting, error) {
	var out []*model.SiteSetting
	err := r.s.c.selectAll(ctx, "settings.list", tableSettings, map[string]string{"order": "key.asc"}, &out)
	return out, err
}

func (r settingRepository) Get(ctx context.Context, key string) (*model.SiteSetting, error) {
	return selectOne[model.SiteSetting](ctx, r.s.c, "settings.get", tableSettings, "setting", "key", key)
}

func (r settingRepository) Upsert(ctx context.Context, setting *model.SiteSetting) error {
	if setting.UpdatedAt.IsZero() {
		setting.UpdatedAt = r.s.stamp()
	}
	var rows []*model.SiteSetting
	err := r.s.c.do(ctx, request{
		op: "settings.upsert", method: http.MethodPost, table: tableSettings,
		query:  map[string]string{"on_conflict": "key"},
		prefer: preferUpsert, body: setting, out: &rows,
	})
	if err != nil {
		return err
	}
	if len(rows) > 0 {
		*setting = *rows[0]
	}
	return nil
}

func (r settingRepository) Delete(ctx context.Context, key string) error {
	return r.s.c.remove(ctx, "settings.delete", tableSettings, map[string]string{"key": eq(key)})
}

type verificationRepository struct{ s *Store }

func (r verificationRepository) Create(ctx context.Context, attempt *model.VerificationAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.New().String()
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = r.s.stamp()
	}
	return insert(ctx, r.s.c, "verifications.create", tableVerifications, attempt)
}

func (r verificationRepository) List(ctx context.Context, filter model.VerificationFilter) ([]*model.VerificationAttempt, error) {
	query := map[string]string{"order": "created_at.desc"}
	if filter.ClinicID != "" {
		query["clinic_id"] = eq(filter.ClinicID)
	}
	if filter.LicenseNumber != "" {
		query["license_number"] = eq(filter.LicenseNumber)
	}
	if filter.Since != nil {
		query["created_at"] = gte(filter.Since.UTC().Format(time.RFC3339Nano))
	}
	if filter.Limit > 0 {
		query["limit"] = strconv.Itoa(filter.Limit)
	}
	var out []*model.VerificationAttempt
	err := r.s.c.selectAll(ctx, "verifications.list", tableVerifications, query, &out)
	return out, err
}
