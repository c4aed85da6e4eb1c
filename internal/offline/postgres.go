// internal/offline/postgres.go
package offline

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"posnexus/internal/checkout"
	"posnexus/internal/journal"
)

// PostgresStore keeps pending sales in pending_sales and records every
// transition in the sale journal.
type PostgresStore struct {
	db      *sqlx.DB
	journal *journal.Journal
	logger  *zap.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

func NewPostgresStore(db *sql.DB, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{
		db:      sqlx.NewDb(db, "postgres"),
		journal: journal.New(db),
		logger:  logger,
		tracer:  otel.Tracer("posnexus/offline"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

type pendingRow struct {
	ID            uuid.UUID       `db:"id"`
	Items         []byte          `db:"items"`
	Total         decimal.Decimal `db:"total"`
	PaymentMethod string          `db:"payment_method"`
	Reason        string          `db:"reason"`
	Attempts      int             `db:"attempts"`
	LastError     string          `db:"last_error"`
	QueuedAt      time.Time       `db:"queued_at"`
}

func (s *PostgresStore) SaveSaleOffline(ctx context.Context, sale checkout.PendingOfflineSale) error {
	ctx, span := s.tracer.Start(ctx, "offline.save",
		trace.WithAttributes(attribute.String("sale.id", sale.ID.String())),
	)
	defer span.End()

	items, err := json.Marshal(sale.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal items: %w", err)
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO pending_sales (id, items, total, payment_method, reason, status, queued_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING
		`, sale.ID, string(items), sale.Total, sale.PaymentMethod, sale.Reason, StatusPending, sale.Timestamp)
		if err != nil {
			return fmt.Errorf("failed to insert pending sale: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			span.SetAttributes(attribute.Bool("sale.duplicate", true))
			return nil
		}

		entry, err := journal.NewEntry(journal.SaleQueuedOffline, sale)
		if err != nil {
			return err
		}
		if _, err := s.journal.Append(ctx, tx, sale.ID, 0, entry); err != nil {
			return fmt.Errorf("failed to journal queued sale: %w", err)
		}
		return nil
	})
}

// Pending returns up to limit unsynced sales, oldest first.
func (s *PostgresStore) Pending(ctx context.Context, limit int) ([]Record, error) {
	var rows []pendingRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, items, total, payment_method, reason, attempts, last_error, queued_at
		FROM pending_sales
		WHERE status = $1
		ORDER BY queued_at ASC, id ASC
		LIMIT $2
	`, StatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending sales: %w", err)
	}

	records := make([]Record, 0, len(rows))
	for _, r := range rows {
		var items []checkout.Item
		if err := json.Unmarshal(r.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to decode items of sale %s: %w", r.ID, err)
		}
		records = append(records, Record{
			PendingOfflineSale: checkout.PendingOfflineSale{
				ID:            r.ID,
				Items:         items,
				Total:         r.Total,
				PaymentMethod: r.PaymentMethod,
				Timestamp:     r.QueuedAt,
				Reason:        r.Reason,
			},
			Attempts:  r.Attempts,
			LastError: r.LastError,
		})
	}
	return records, nil
}

func (s *PostgresStore) MarkSynced(ctx context.Context, id uuid.UUID) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE pending_sales SET status = $2, synced_at = $3
			WHERE id = $1 AND status = $4
		`, id, StatusSynced, s.now(), StatusPending)
		if err != nil {
			return fmt.Errorf("failed to mark sale synced: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrSaleNotFound
		}
		return s.appendEntry(ctx, tx, id, journal.SaleSynced, map[string]any{"syncedAt": s.now()})
	})
}

func (s *PostgresStore) RecordAttempt(ctx context.Context, id uuid.UUID, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE pending_sales SET attempts = attempts + 1, last_error = $2
			WHERE id = $1 AND status = $3
		`, id, msg, StatusPending)
		if err != nil {
			return fmt.Errorf("failed to record sync attempt: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrSaleNotFound
		}
		return s.appendEntry(ctx, tx, id, journal.SaleSyncAttempted, map[string]any{"error": msg})
	})
}

func (s *PostgresStore) appendEntry(ctx context.Context, tx *sql.Tx, id uuid.UUID, entryType string, data any) error {
	version, err := s.journal.VersionIn(ctx, tx, id)
	if err != nil {
		return err
	}
	entry, err := journal.NewEntry(entryType, data)
	if err != nil {
		return err
	}
	if _, err := s.journal.Append(ctx, tx, id, version, entry); err != nil {
		return fmt.Errorf("failed to journal %s: %w", entryType, err)
	}
	return nil
}

func (s *PostgresStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Warn("rollback failed", zap.Error(rbErr))
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
