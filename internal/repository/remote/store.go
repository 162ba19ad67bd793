package remote

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jwalitptl/dental-verify/internal/model"
	"github.com/jwalitptl/dental-verify/internal/repository"
)

type Store struct {
	c *client
}

func New(cfg Config, opts ...Option) (*Store, error) {
	c, err := newClient(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Store{c: c}, nil
}

func (s *Store) Clinics() repository.ClinicRepository                 { return clinicRepository{s.c} }
func (s *Store) Governorates() repository.GovernorateRepository       { return governorateRepository{s.c} }
func (s *Store) Cities() repository.CityRepository                    { return cityRepository{s.c} }
func (s *Store) Specializations() repository.SpecializationRepository { return specializationRepository{s.c} }
func (s *Store) Settings() repository.SettingRepository               { return settingRepository{s.c} }
func (s *Store) Verifications() repository.VerificationRepository     { return verificationRepository{s.c} }

func (s *Store) Ping(ctx context.Context) error {
	return s.c.call(ctx, "ping", http.MethodGet, "/health", nil, nil, nil)
}

// Migrate asks the gateway to create any missing tables.
func (s *Store) Migrate(ctx context.Context) error {
	return s.c.call(ctx, "migrate", http.MethodPost, "/db/create-tables", nil, nil, nil)
}

func (s *Store) Close() error {
	s.c.http.GetClient().CloseIdleConnections()
	return nil
}

func item(collection, id string) string {
	return "/db/" + collection + "/" + url.PathEscape(id)
}

type clinicRepository struct{ c *client }

func (r clinicRepository) List(ctx context.Context) ([]*model.Clinic, error) {
	var out []*model.Clinic
	if err := r.c.read(ctx, "clinics.list", "/db/clinics", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r clinicRepository) Get(ctx context.Context, id string) (*model.Clinic, error) {
	var out model.Clinic
	if err := r.c.read(ctx, "clinics.get", item("clinics", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r clinicRepository) FindByLicense(ctx context.Context, licenseNumber string) (*model.Clinic, error) {
	var out model.Clinic
	query := map[string]string{"license_number": licenseNumber}
	if err := r.c.read(ctx, "clinics.find_by_license", "/db/clinic-licenses", query, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r clinicRepository) Create(ctx context.Context, clinic *model.Clinic) error {
	return r.c.call(ctx, "clinics.create", http.MethodPost, "/db/clinics", nil, clinic, clinic)
}

func (r clinicRepository) Update(ctx context.Context, id string, patch model.ClinicPatch) error {
	return r.c.call(ctx, "clinics.update", http.MethodPut, item("clinics", id), nil, patch, nil)
}

func (r clinicRepository) Delete(ctx context.Context, id string) error {
	return r.c.call(ctx, "clinics.delete", http.MethodDelete, item("clinics", id), nil, nil, nil)
}

func (r clinicRepository) Clear(ctx context.Context) error {
	return r.c.call(ctx, "clinics.clear", http.MethodDelete, "/db/clinics", nil, nil, nil)
}

func (r clinicRepository) IncrementVerificationCount(ctx context.Context, id string) error {
	path := item("clinics", id) + "/verification-count"
	return r.c.call(ctx, "clinics.increment", http.MethodPost, path, nil, nil, nil)
}

type governorateRepository struct{ c *client }

func (r governorateRepository) List(ctx context.Context) ([]*model.Governorate, error) {
	var out []*model.Governorate
	if err := r.c.read(ctx, "governorates.list", "/db/governorates", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r governorateRepository) Get(ctx context.Context, id string) (*model.Governorate, error) {
	var out model.Governorate
	if err := r.c.read(ctx, "governorates.get", item("governorates", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r governorateRepository) Create(ctx context.Context, g *model.Governorate) error {
	return r.c.call(ctx, "governorates.create", http.MethodPost, "/db/governorates", nil, g, g)
}

func (r governorateRepository) Update(ctx context.Context, id string, patch model.GovernoratePatch) error {
	return r.c.call(ctx, "governorates.update", http.MethodPut, item("governorates", id), nil, patch, nil)
}

func (r governorateRepository) Delete(ctx context.Context, id string) error {
	return r.c.call(ctx, "governorates.delete", http.MethodDelete, item("governorates", id), nil, nil, nil)
}

type cityRepository struct{ c *client }

func (r cityRepository) List(ctx context.Context) ([]*model.City, error) {
	var out []*model.City
	if err := r.c.read(ctx, "cities.list", "/db/cities", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r cityRepository) ListByGovernorate(ctx context.Context, governorateID string) ([]*model.City, error) {
	var out []*model.City
	path := item("governorates", governorateID) + "/cities"
	if err := r.c.read(ctx, "cities.list_by_governorate", path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r cityRepository) Get(ctx context.Context, id string) (*model.City, error) {
	var out model.City
	if err := r.c.read(ctx, "cities.get", item("cities", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r cityRepository) Create(ctx context.Context, city *model.City) error {
	return r.c.call(ctx, "cities.create", http.MethodPost, "/db/cities", nil, city, city)
}

func (r cityRepository) Update(ctx context.Context, id string, patch model.CityPatch) error {
	return r.c.call(ctx, "cities.update", http.MethodPut, item("cities", id), nil, patch, nil)
}

func (r cityRepository) Delete(ctx context.Context, id string) error {
	return r.c.call(ctx, "cities.delete", http.MethodDelete, item("cities", id), nil, nil, nil)
}

type specializationRepository struct{ c *client }

func (r specializationRepository) List(ctx context.Context) ([]*model.Specialization, error) {
	var out []*model.Specialization
	if err := r.c.read(ctx, "specializations.list", "/db/specializations", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r specializationRepository) Get(ctx context.Context, id string) (*model.Specialization, error) {
	var out model.Specialization
	if err := r.c.read(ctx, "specializations.get", item("specializations", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r specializationRepository) Create(ctx context.Context, sp *model.Specialization) error {
	return r.c.call(ctx, "specializations.create", http.MethodPost, "/db/specializations", nil, sp, sp)
}

func (r specializationRepository) Update(ctx context.Context, id string, patch model.SpecializationPatch) error {
	return r.c.call(ctx, "specializations.update", http.MethodPut, item("specializations", id), nil, patch, nil)
}

func (r specializationRepository) Delete(ctx context.Context, id string) error {
	return r.c.call(ctx, "specializations.delete", http.MethodDelete, item("specializations", id), nil, nil, nil)
}

type settingRepository struct{ c *client }

func (r settingRepository) List(ctx context.Context) ([]*model.SiteSetting, error) {
	var out []*model.SiteSetting
	if err := r.c.read(ctx, "settings.list", "/db/settings", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r settingRepository) Get(ctx context.Context, key string) (*model.SiteSetting, error) {
	var out model.SiteSetting
	if err := r.c.read(ctx, "settings.get", item("settings", key), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r settingRepository) Upsert(ctx context.Context, setting *model.SiteSetting) error {
	return r.c.call(ctx, "settings.upsert", http.MethodPut, item("settings", setting.Key), nil, setting, setting)
}

func (r settingRepository) Delete(ctx context.Context, key string) error {
	return r.c.call(ctx, "settings.delete", http.MethodDelete, item("settings", key), nil, nil, nil)
}

type verificationRepository struct{ c *client }

func (r verificationRepository) Create(ctx context.Context, attempt *model.VerificationAttempt) error {
	return r.c.call(ctx, "verifications.create", http.MethodPost, "/db/verifications", nil, attempt, attempt)
}

func (r verificationRepository) List(ctx context.Context, filter model.VerificationFilter) ([]*model.VerificationAttempt, error) {
	query := map[string]string{}
	if filter.ClinicID != "" {
		query["clinic_id"] = filter.ClinicID
	}
	if filter.LicenseNumber != "" {
		query["license_number"] = filter.LicenseNumber
	}
	if filter.Since != nil {
		query["since"] = filter.Since.UTC().Format(time.RFC3339Nano)
	}
	if filter.Limit > 0 {
		query["limit"] = strconv.Itoa(filter.Limit)
	}
	var out []*model.VerificationAttempt
	if err := r.c.read(ctx, "verifications.list", "/db/verifications", query, &out); err != nil {
		return nil, err
	}
	return out, nil
}
