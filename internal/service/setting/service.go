package setting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jwalitptl/dental-verify/internal/datasource"
	"github.com/jwalitptl/dental-verify/internal/model"
	"github.com/jwalitptl/dental-verify/internal/repository"
	apperrors "github.com/jwalitptl/dental-verify/pkg/errors"
	"github.com/jwalitptl/dental-verify/pkg/logger"
)

type Input struct {
	Value       string `json:"value"`
	Description string `json:"description"`
}

type Service struct {
	repo   repository.SettingRepository
	logger *logger.Logger
	now    func() time.Time
}

func NewService(repo repository.SettingRepository, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{repo: repo, logger: log, now: time.Now}
}

// List returns every setting, secrets included. Admin only.
func (s *Service) List(ctx context.Context) ([]*model.SiteSetting, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list site settings: %w", err)
	}
	return list, nil
}

// Public returns the site content settings as key/value pairs, leaving out
// secrets and data source configuration.
func (s *Service) Public(ctx context.Context) (map[string]string, error) {
	list, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(list))
	for _, st := range list {
		if model.SecretSettings[st.Key] || model.DataSourceSettings[st.Key] {
			continue
		}
		out[st.Key] = st.Value
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, key string) (*model.SiteSetting, error) {
	st, err := s.repo.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get site setting: %w", err)
	}
	return st, nil
}

// Set creates or replaces a setting. A data source change takes effect on
// the next process start.
func (s *Service) Set(ctx context.Context, key string, in Input) (*model.SiteSetting, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, apperrors.NewBadRequest("setting key is required", nil)
	}
	if key == model.SettingDataSource && in.Value != "" && !datasource.KnownKind(in.Value) {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown data source %q", in.Value), nil)
	}
	st := &model.SiteSetting{
		Key:         key,
		Value:       in.Value,
		Description: in.Description,
		UpdatedAt:   s.now().UTC(),
	}
	if err := s.repo.Upsert(ctx, st); err != nil {
		return nil, fmt.Errorf("failed to save site setting: %w", err)
	}
	if model.DataSourceSettings[key] {
		s.logger.Info("data source setting changed; restart to apply", "key", key)
	}
	return st, nil
}

func (s *Service) Delete(ctx context.Context, key string) error {
	if err := s.repo.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete site setting: %w", err)
	}
	return nil
}

// DataSourceConfig overlays the persisted data source settings on base.
func (s *Service) DataSourceConfig(ctx context.Context, base datasource.Config) (datasource.Config, error) {
	list, err := s.List(ctx)
	if err != nil {
		return base, err
	}
	return datasource.ConfigFromSettings(base, list), nil
}
