// Package journal is an append-only log of a sale's offline lifecycle.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrConcurrencyConflict = errors.New("concurrency conflict: version mismatch")
	ErrNoEntries           = errors.New("no journal entries to append")
)

// Entry types recorded for a sale.
const (
	SaleQueuedOffline = "SaleQueuedOffline"
	SaleSyncAttempted = "SaleSyncAttempted"
	SaleSynced        = "SaleSynced"
)

// Entry is one recorded fact about a sale.
type Entry struct {
	ID         int64           `json:"id" db:"id"`
	SaleID     uuid.UUID       `json:"sale_id" db:"sale_id"`
	Type       string          `json:"type" db:"entry_type"`
	Data       json.RawMessage `json:"data" db:"data"`
	Version    int             `json:"version" db:"version"`
	RecordedAt time.Time       `json:"recorded_at" db:"recorded_at"`
}

// NewEntry marshals data into an entry of the given type.
func NewEntry(entryType string, data any) (Entry, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal %s: %w", entryType, err)
	}
	return Entry{Type: entryType, Data: raw}, nil
}

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Journal stores entries in the sale_journal table.
type Journal struct {
	db     *sql.DB
	tracer trace.Tracer
}

func New(db *sql.DB) *Journal {
	return &Journal{
		db:     db,
		tracer: otel.Tracer("posnexus/journal"),
	}
}

// Append writes entries inside tx, numbering them after expectedVersion.
// A different current version, or a concurrent writer racing on the same
// version, yields ErrConcurrencyConflict.
func (j *Journal) Append(ctx context.Context, tx Querier, saleID uuid.UUID, expectedVersion int, entries ...Entry) (int, error) {
	ctx, span := j.tracer.Start(ctx, "journal.append",
		trace.WithAttributes(
			attribute.String("sale.id", saleID.String()),
			attribute.Int("expected.version", expectedVersion),
			attribute.Int("entry.count", len(entries)),
		),
	)
	defer span.End()

	if len(entries) == 0 {
		return expectedVersion, ErrNoEntries
	}

	current, err := j.currentVersion(ctx, tx, saleID)
	if err != nil {
		return 0, err
	}
	if current != expectedVersion {
		span.SetAttributes(
			attribute.Int("actual.version", current),
			attribute.Bool("conflict.detected", true),
		)
		return current, ErrConcurrencyConflict
	}

	version := expectedVersion
	for i, e := range entries {
		version++
		var id int64
		err := tx.QueryRowContext(ctx, `
			INSERT INTO sale_journal (sale_id, entry_type, data, version, recorded_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, saleID, e.Type, string(e.Data), version, time.Now().UTC()).Scan(&id)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23505" {
				return current, ErrConcurrencyConflict
			}
			return current, fmt.Errorf("insert entry %d: %w", i, err)
		}
		span.AddEvent("entry.appended", trace.WithAttributes(
			attribute.Int64("entry.id", id),
			attribute.Int("entry.version", version),
			attribute.String("entry.type", e.Type),
		))
	}

	return version, nil
}

// CurrentVersion returns the latest version recorded for a sale, 0 if none.
func (j *Journal) CurrentVersion(ctx context.Context, saleID uuid.UUID) (int, error) {
	return j.currentVersion(ctx, j.db, saleID)
}

// VersionIn reads the current version through q, typically an open transaction.
func (j *Journal) VersionIn(ctx context.Context, q Querier, saleID uuid.UUID) (int, error) {
	return j.currentVersion(ctx, q, saleID)
}

func (j *Journal) currentVersion(ctx context.Context, q Querier, saleID uuid.UUID) (int, error) {
	var version int
	err := q.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version), 0)
		FROM sale_journal
		WHERE sale_id = $1
	`, saleID).Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("query current version: %w", err)
	}
	return version, nil
}

// History returns every entry for a sale in version order.
func (j *Journal) History(ctx context.Context, saleID uuid.UUID) ([]Entry, error) {
	ctx, span := j.tracer.Start(ctx, "journal.history",
		trace.WithAttributes(attribute.String("sale.id", saleID.String())),
	)
	defer span.End()

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, sale_id, entry_type, data, version, recorded_at
		FROM sale_journal
		WHERE sale_id = $1
		ORDER BY version ASC
	`, saleID)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.SaleID, &e.Type, &e.Data, &e.Version, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	span.SetAttributes(attribute.Int("entries.loaded", len(entries)))
	return entries, nil
}
