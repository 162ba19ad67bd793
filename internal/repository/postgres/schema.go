package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema is idempotent so Migrate can run on every gateway start.
// license_number is indexed but not unique: the clinic service rejects
// duplicates, and lookups resolve any legacy duplicates to the newest row.
// verification_rate_limits is created for parity with the hosted schema and
// is not read or written anywhere.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS governorates (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS cities (
		id             TEXT PRIMARY KEY,
		name           TEXT NOT NULL,
		governorate_id TEXT NOT NULL REFERENCES governorates(id) ON DELETE CASCADE,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_cities_governorate ON cities (governorate_id)`,
	`CREATE TABLE IF NOT EXISTS clinics (
		id                 TEXT PRIMARY KEY,
		clinic_name        TEXT NOT NULL,
		doctor_name        TEXT NOT NULL DEFAULT '',
		license_number     TEXT NOT NULL,
		specialization     TEXT NOT NULL DEFAULT '',
		phone              TEXT NOT NULL DEFAULT '',
		governorate        TEXT NOT NULL DEFAULT '',
		city               TEXT NOT NULL DEFAULT '',
		address_details    TEXT NOT NULL DEFAULT '',
		address            TEXT NOT NULL DEFAULT '',
		issue_date         DATE,
		expiry_date        DATE,
		verification_count INTEGER NOT NULL DEFAULT 0 CHECK (verification_count >= 0),
		license_status     TEXT NOT NULL DEFAULT 'active'
			CHECK (license_status IN ('active', 'expired', 'suspended', 'pending')),
		created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_clinics_license_number ON clinics (license_number)`,
	`CREATE INDEX IF NOT EXISTS idx_clinics_status_expiry ON clinics (license_status, expiry_date)`,
	`CREATE TABLE IF NOT EXISTS specializations (
		id         TEXT PRIMARY KEY,
		name_ar    TEXT NOT NULL,
		name_en    TEXT NOT NULL DEFAULT '',
		is_active  BOOLEAN NOT NULL DEFAULT TRUE,
		sort_order INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS site_settings (
		key         TEXT PRIMARY KEY,
		value       TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS verifications (
		id                  TEXT PRIMARY KEY,
		clinic_id           TEXT NOT NULL DEFAULT '',
		license_number      TEXT NOT NULL,
		verification_method TEXT NOT NULL
			CHECK (verification_method IN ('qr_scan', 'manual_entry', 'image_upload')),
		verification_status TEXT NOT NULL
			CHECK (verification_status IN ('success', 'failed', 'not_found')),
		ip_address          TEXT NOT NULL DEFAULT '',
		user_agent          TEXT NOT NULL DEFAULT '',
		created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_verifications_created ON verifications (created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS verification_rate_limits (
		id            TEXT PRIMARY KEY,
		ip_address    TEXT NOT NULL,
		attempt_count INTEGER NOT NULL DEFAULT 1,
		window_start  TIMESTAMPTZ NOT NULL DEFAULT now(),
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// Migrate creates any missing tables and indexes.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i+1, mapError(err, "schema"))
		}
	}
	return nil
}
