package geography

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jwalitptl/dental-verify/internal/model"
	"github.com/jwalitptl/dental-verify/internal/repository"
	apperrors "github.com/jwalitptl/dental-verify/pkg/errors"
	"github.com/jwalitptl/dental-verify/pkg/logger"
)

//go:embed jordan.json
var jordanJSON []byte

// SeedGovernorate is one entry of the bundled governorate list.
type SeedGovernorate struct {
	Name   string   `json:"name"`
	Cities []string `json:"cities"`
}

type SeedResult struct {
	Governorates int `json:"governorates_created"`
	Cities       int `json:"cities_created"`
}

// Jordan returns the bundled governorates and their cities.
func Jordan() ([]SeedGovernorate, error) {
	var out []SeedGovernorate
	if err := json.Unmarshal(jordanJSON, &out); err != nil {
		return nil, fmt.Errorf("failed to parse bundled governorates: %w", err)
	}
	return out, nil
}

type GovernorateInput struct {
	Name string `json:"name" binding:"required"`
}

type CityInput struct {
	Name          string `json:"name" binding:"required"`
	GovernorateID string `json:"governorate_id" binding:"required"`
}

type Service struct {
	governorates repository.GovernorateRepository
	cities       repository.CityRepository
	logger       *logger.Logger
}

func NewService(store repository.Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		governorates: store.Governorates(),
		cities:       store.Cities(),
		logger:       log,
	}
}

func (s *Service) ListGovernorates(ctx context.Context) ([]*model.Governorate, error) {
	list, err := s.governorates.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list governorates: %w", err)
	}
	return list, nil
}

func (s *Service) CreateGovernorate(ctx context.Context, in GovernorateInput) (*model.Governorate, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("name is required", nil)
	}
	if err := s.ensureGovernorateNameFree(ctx, name, ""); err != nil {
		return nil, err
	}
	g := &model.Governorate{Name: name}
	if err := s.governorates.Create(ctx, g); err != nil {
		return nil, fmt.Errorf("failed to create governorate: %w", err)
	}
	return g, nil
}

func (s *Service) UpdateGovernorate(ctx context.Context, id string, in GovernorateInput) (*model.Governorate, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("name is required", nil)
	}
	if err := s.ensureGovernorateNameFree(ctx, name, id); err != nil {
		return nil, err
	}
	if err := s.governorates.Update(ctx, id, model.GovernoratePatch{Name: &name}); err != nil {
		return nil, fmt.Errorf("failed to update governorate: %w", err)
	}
	g, err := s.governorates.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get governorate: %w", err)
	}
	return g, nil
}

// DeleteGovernorate removes the governorate and its cities. Clinics that
// name it keep their stored text.
func (s *Service) DeleteGovernorate(ctx context.Context, id string) error {
	if err := s.governorates.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete governorate: %w", err)
	}
	return nil
}

// ListCities lists every city, or only the cities of governorateID when it
// is set.
func (s *Service) ListCities(ctx context.Context, governorateID string) ([]*model.City, error) {
	var (
		list []*model.City
		err  error
	)
	if governorateID == "" {
		list, err = s.cities.List(ctx)
	} else {
		list, err = s.cities.ListByGovernorate(ctx, governorateID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list cities: %w", err)
	}
	return list, nil
}

func (s *Service) CreateCity(ctx context.Context, in CityInput) (*model.City, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("name is required", nil)
	}
	if err := s.ensureGovernorate(ctx, in.GovernorateID); err != nil {
		return nil, err
	}
	c := &model.City{Name: name, GovernorateID: in.GovernorateID}
	if err := s.cities.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create city: %w", err)
	}
	return c, nil
}

func (s *Service) UpdateCity(ctx context.Context, id string, patch model.CityPatch) (*model.City, error) {
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperrors.NewBadRequest("name is required", nil)
		}
		patch.Name = &name
	}
	if patch.GovernorateID != nil {
		if err := s.ensureGovernorate(ctx, *patch.GovernorateID); err != nil {
			return nil, err
		}
	}
	if err := s.cities.Update(ctx, id, patch); err != nil {
		return nil, fmt.Errorf("failed to update city: %w", err)
	}
	c, err := s.cities.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get city: %w", err)
	}
	return c, nil
}

func (s *Service) DeleteCity(ctx context.Context, id string) error {
	if err := s.cities.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete city: %w", err)
	}
	return nil
}

// Seed creates the bundled governorates and cities that are missing,
// matching by name. Running it twice creates nothing the second time.
func (s *Service) Seed(ctx context.Context) (*SeedResult, error) {
	data, err := Jordan()
	if err != nil {
		return nil, err
	}
	existing, err := s.governorates.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list governorates: %w", err)
	}
	byName := make(map[string]*model.Governorate, len(existing))
	for _, g := range existing {
		byName[g.Name] = g
	}

	res := &SeedResult{}
	for _, entry := range data {
		g, ok := byName[entry.Name]
		if !ok {
			g = &model.Governorate{Name: entry.Name}
			if err := s.governorates.Create(ctx, g); err != nil {
				return res, fmt.Errorf("failed to create governorate %s: %w", entry.Name, err)
			}
			res.Governorates++
		}

		cities, err := s.cities.ListByGovernorate(ctx, g.ID)
		if err != nil {
			return res, fmt.Errorf("failed to list cities: %w", err)
		}
		have := make(map[string]bool, len(cities))
		for _, c := range cities {
			have[c.Name] = true
		}
		for _, name := range entry.Cities {
			if have[name] {
				continue
			}
			if err := s.cities.Create(ctx, &model.City{Name: name, GovernorateID: g.ID}); err != nil {
				return res, fmt.Errorf("failed to create city %s: %w", name, err)
			}
			have[name] = true
			res.Cities++
		}
	}
	s.logger.Info("geography seeded", "governorates", res.Governorates, "cities", res.Cities)
	return res, nil
}

func (s *Service) ensureGovernorate(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return apperrors.NewBadRequest("governorate_id is required", nil)
	}
	if _, err := s.governorates.Get(ctx, id); err != nil {
		if apperrors.IsNotFound(err) {
			return apperrors.NewBadRequest(fmt.Sprintf("governorate %s does not exist", id), err)
		}
		return fmt.Errorf("failed to get governorate: %w", err)
	}
	return nil
}

func (s *Service) ensureGovernorateNameFree(ctx context.Context, name, selfID string) error {
	list, err := s.governorates.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list governorates: %w", err)
	}
	for _, g := range list {
		if g.Name == name && g.ID != selfID {
			return apperrors.NewConflict(fmt.Sprintf("governorate %s already exists", name), nil)
		}
	}
	return nil
}
