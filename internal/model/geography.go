package model

import (
	"sort"
	"time"
)

type Governorate struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type GovernoratePatch struct {
	Name *string `json:"name,omitempty"`
}

func (p GovernoratePatch) Columns() map[string]interface{} {
	cols := map[string]interface{}{}
	if p.Name != nil {
		cols["name"] = *p.Name
	}
	return cols
}

func (p GovernoratePatch) Apply(g *Governorate) {
	if p.Name != nil {
		g.Name = *p.Name
	}
}

// City belongs to exactly one governorate and is removed with it.
type City struct {
	ID            string    `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	GovernorateID string    `json:"governorate_id" db:"governorate_id"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

type CityPatch struct {
	Name          *string `json:"name,omitempty"`
	GovernorateID *string `json:"governorate_id,omitempty"`
}

func (p CityPatch) Columns() map[string]interface{} {
	cols := map[string]interface{}{}
	if p.Name != nil {
		cols["name"] = *p.Name
	}
	if p.GovernorateID != nil {
		cols["governorate_id"] = *p.GovernorateID
	}
	return cols
}

func (p CityPatch) Apply(c *City) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.GovernorateID != nil {
		c.GovernorateID = *p.GovernorateID
	}
}

// SortGovernorates orders by name, comparing bytes. Every backend lists in
// this order regardless of database collation.
func SortGovernorates(list []*Governorate) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].Name < list[j].Name })
}

func SortCities(list []*City) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].Name < list[j].Name })
}
