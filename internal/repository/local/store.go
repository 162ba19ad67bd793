// Package local is the embedded single-file backend. Rows are stored as JSON
// documents in one bbolt bucket per entity, keyed by id.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/jwalitptl/dental-verify/internal/repository"
	apperrors "github.com/jwalitptl/dental-verify/pkg/errors"
)

var (
	bucketClinics         = []byte("clinics")
	bucketGovernorates    = []byte("governorates")
	bucketCities          = []byte("cities")
	bucketSpecializations = []byte("specializations")
	bucketSettings        = []byte("site_settings")
	bucketVerifications   = []byte("verifications")

	allBuckets = [][]byte{
		bucketClinics,
		bucketGovernorates,
		bucketCities,
		bucketSpecializations,
		bucketSettings,
		bucketVerifications,
	}
)

const DefaultPath = "data/dental-verify.db"

type Store struct {
	db  *bolt.DB
	now func() time.Time
}

// Open opens or creates the database file at path. bbolt holds an exclusive
// file lock, so a second process opening the same file waits up to a second
// and then fails.
func Open(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, apperrors.NewUnavailable("failed to open local database", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Clinics() repository.ClinicRepository { return &clinicRepository{s} }

func (s *Store) Governorates() repository.GovernorateRepository {
	return &governorateRepository{s}
}

func (s *Store) Cities() repository.CityRepository { return &cityRepository{s} }

func (s *Store) Specializations() repository.SpecializationRepository {
	return &specializationRepository{s}
}

func (s *Store) Settings() repository.SettingRepository { return &settingRepository{s} }

func (s *Store) Verifications() repository.VerificationRepository {
	return &verificationRepository{s}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.view(ctx, func(tx *bolt.Tx) error {
		if tx.Bucket(bucketClinics) == nil {
			return apperrors.NewUnavailable("local database is not initialised", nil)
		}
		return nil
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) view(ctx context.Context, fn func(*bolt.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(fn)
}

func (s *Store) update(ctx context.Context, fn func(*bolt.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(fn)
}

func newID() string {
	return uuid.New().String()
}

func getRow[T any](tx *bolt.Tx, bucket []byte, key string) (*T, error) {
	raw := tx.Bucket(bucket).Get([]byte(key))
	if raw == nil {
		return nil, nil
	}
	var row T
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, fmt.Errorf("failed to decode %s row %s: %w", bucket, key, err)
	}
	return &row, nil
}

func putRow(tx *bolt.Tx, bucket []byte, key string, row interface{}) error {
	raw, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to encode %s row %s: %w", bucket, key, err)
	}
	return tx.Bucket(bucket).Put([]byte(key), raw)
}

func allRows[T any](tx *bolt.Tx, bucket []byte) ([]*T, error) {
	rows := make([]*T, 0)
	err := tx.Bucket(bucket).ForEach(func(k, v []byte) error {
		var row T
		if err := json.Unmarshal(v, &row); err != nil {
			return fmt.Errorf("failed to decode %s row %s: %w", bucket, k, err)
		}
		rows = append(rows, &row)
		return nil
	})
	return rows, err
}

func exists(tx *bolt.Tx, bucket []byte, key string) bool {
	return tx.Bucket(bucket).Get([]byte(key)) != nil
}
