package specialization

import (
	"context"
	"fmt"
	"strings"

	"github.com/jwalitptl/dental-verify/internal/model"
	"github.com/jwalitptl/dental-verify/internal/repository"
	apperrors "github.com/jwalitptl/dental-verify/pkg/errors"
)

type Input struct {
	NameAr    string `json:"name_ar" binding:"required"`
	NameEn    string `json:"name_en"`
	IsActive  *bool  `json:"is_active"`
	SortOrder *int   `json:"sort_order"`
}

type Service struct {
	specializations repository.SpecializationRepository
	clinics         repository.ClinicRepository
}

func NewService(store repository.Store) *Service {
	return &Service{
		specializations: store.Specializations(),
		clinics:         store.Clinics(),
	}
}

// List returns specializations in display order. Public callers only see
// active ones.
func (s *Service) List(ctx context.Context, activeOnly bool) ([]*model.Specialization, error) {
	list, err := s.specializations.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list specializations: %w", err)
	}
	if !activeOnly {
		return list, nil
	}
	out := list[:0]
	for _, sp := range list {
		if sp.IsActive {
			out = append(out, sp)
		}
	}
	return out, nil
}

// Create appends a specialization. Without an explicit sort order it goes
// after the current last one.
func (s *Service) Create(ctx context.Context, in Input) (*model.Specialization, error) {
	nameAr := strings.TrimSpace(in.NameAr)
	if nameAr == "" {
		return nil, apperrors.NewBadRequest("name_ar is required", nil)
	}
	list, err := s.specializations.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list specializations: %w", err)
	}
	next := 0
	for _, sp := range list {
		if sp.NameAr == nameAr {
			return nil, apperrors.NewConflict(fmt.Sprintf("specialization %s already exists", nameAr), nil)
		}
		if sp.SortOrder >= next {
			next = sp.SortOrder + 1
		}
	}

	sp := &model.Specialization{
		NameAr:    nameAr,
		NameEn:    strings.TrimSpace(in.NameEn),
		IsActive:  true,
		SortOrder: next,
	}
	if in.IsActive != nil {
		sp.IsActive = *in.IsActive
	}
	if in.SortOrder != nil {
		sp.SortOrder = *in.SortOrder
	}
	if err := s.specializations.Create(ctx, sp); err != nil {
		return nil, fmt.Errorf("failed to create specialization: %w", err)
	}
	return sp, nil
}

func (s *Service) Update(ctx context.Context, id string, patch model.SpecializationPatch) (*model.Specialization, error) {
	if patch.NameAr != nil {
		name := strings.TrimSpace(*patch.NameAr)
		if name == "" {
			return nil, apperrors.NewBadRequest("name_ar is required", nil)
		}
		patch.NameAr = &name
	}
	if err := s.specializations.Update(ctx, id, patch); err != nil {
		return nil, fmt.Errorf("failed to update specialization: %w", err)
	}
	sp, err := s.specializations.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get specialization: %w", err)
	}
	return sp, nil
}

// SetActive toggles visibility. Always allowed, even while clinics use it.
func (s *Service) SetActive(ctx context.Context, id string, active bool) (*model.Specialization, error) {
	return s.Update(ctx, id, model.SpecializationPatch{IsActive: &active})
}

// Delete removes a specialization no clinic refers to. Deleting a missing
// one is not an error.
func (s *Service) Delete(ctx context.Context, id string) error {
	sp, err := s.specializations.Get(ctx, id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to get specialization: %w", err)
	}

	clinics, err := s.clinics.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list clinics: %w", err)
	}
	inUse := 0
	for _, c := range clinics {
		if c.Specialization == sp.NameAr {
			inUse++
		}
	}
	if inUse > 0 {
		return apperrors.NewConflict(
			fmt.Sprintf("specialization %s is used by %d clinics; deactivate it instead", sp.NameAr, inUse), nil)
	}

	if err := s.specializations.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete specialization: %w", err)
	}
	return nil
}
