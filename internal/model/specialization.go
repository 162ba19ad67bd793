package model

import (
	"sort"
	"time"
)

type Specialization struct {
	ID        string    `json:"id" db:"id"`
	NameAr    string    `json:"name_ar" db:"name_ar"`
	NameEn    string    `json:"name_en" db:"name_en"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	SortOrder int       `json:"sort_order" db:"sort_order"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type SpecializationPatch struct {
	NameAr    *string `json:"name_ar,omitempty"`
	NameEn    *string `json:"name_en,omitempty"`
	IsActive  *bool   `json:"is_active,omitempty"`
	SortOrder *int    `json:"sort_order,omitempty"`
}

func (p SpecializationPatch) Columns() map[string]interface{} {
	cols := map[string]interface{}{}
	if p.NameAr != nil {
		cols["name_ar"] = *p.NameAr
	}
	if p.NameEn != nil {
		cols["name_en"] = *p.NameEn
	}
	if p.IsActive != nil {
		cols["is_active"] = *p.IsActive
	}
	if p.SortOrder != nil {
		cols["sort_order"] = *p.SortOrder
	}
	return cols
}

func (p SpecializationPatch) Apply(s *Specialization) {
	if p.NameAr != nil {
		s.NameAr = *p.NameAr
	}
	if p.NameEn != nil {
		s.NameEn = *p.NameEn
	}
	if p.IsActive != nil {
		s.IsActive = *p.IsActive
	}
	if p.SortOrder != nil {
		s.SortOrder = *p.SortOrder
	}
}

// SortSpecializations orders by sort_order, then insertion time.
func SortSpecializations(list []*Specialization) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].SortOrder != list[j].SortOrder {
			return list[i].SortOrder < list[j].SortOrder
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
}
