// Package catalog stores the raw service records that service pages are
// opened from.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wolfman30/medspa-booking-flow/internal/servicectx"
	"github.com/wolfman30/medspa-booking-flow/pkg/logging"
)

// ErrNotFound means no record exists for the id.
var ErrNotFound = errors.New("catalog: record not found")

type db interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// StoredRecord is a raw record with its bookkeeping columns.
type StoredRecord struct {
	ID        string            `json:"id"`
	Source    string            `json:"source"`
	Record    servicectx.Record `json:"record"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// Repository reads and writes service_records.
type Repository struct {
	db     db
	logger *logging.Logger
}

// NewRepository creates a repository over a pgx pool (or anything with the
// same query surface).
func NewRepository(db db, logger *logging.Logger) *Repository {
	if db == nil {
		panic("catalog: db cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Repository{db: db, logger: logger}
}

// Get loads one record by id.
func (r *Repository) Get(ctx context.Context, id string) (StoredRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return StoredRecord{}, ErrNotFound
	}

	var (
		out StoredRecord
		raw []byte
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, source, record, updated_at
		FROM service_records
		WHERE id = $1
	`, id).Scan(&out.ID, &out.Source, &raw, &out.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StoredRecord{}, ErrNotFound
		}
		return StoredRecord{}, fmt.Errorf("catalog: load record %s: %w", id, err)
	}
	if err := json.Unmarshal(raw, &out.Record); err != nil {
		return StoredRecord{}, fmt.Errorf("catalog: decode record %s: %w", id, err)
	}
	return out, nil
}

// Upsert stores rec under id, replacing any existing record.
func (r *Repository) Upsert(ctx context.Context, id, source string, rec servicectx.Record) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("catalog: record id required")
	}
	if source == "" {
		source = servicectx.StrategyCatalog
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("catalog: encode record %s: %w", id, err)
	}
	if _, err := r.db.Exec(ctx, `
		INSERT INTO service_records (id, source, record, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE
		SET source = EXCLUDED.source, record = EXCLUDED.record, updated_at = NOW()
	`, id, source, raw); err != nil {
		return fmt.Errorf("catalog: upsert record %s: %w", id, err)
	}
	r.logger.Debug("catalog: record stored", "record_id", id, "source", source)
	return nil
}
