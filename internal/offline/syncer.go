// internal/offline/syncer.go
package offline

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"posnexus/internal/checkout"
)

const (
	DefaultSyncInterval = 15 * time.Second
	DefaultBatchSize    = 50
	DefaultRatePerSec   = 5
	defaultMaxTries     = 3
)

// Upstream receives synced offline sales. Implementations must treat the
// sale ID as an idempotency key.
type Upstream interface {
	SyncSale(ctx context.Context, sale checkout.PendingOfflineSale) error
}

// UpstreamFunc adapts a function to Upstream.
type UpstreamFunc func(ctx context.Context, sale checkout.PendingOfflineSale) error

func (f UpstreamFunc) SyncSale(ctx context.Context, sale checkout.PendingOfflineSale) error {
	return f(ctx, sale)
}

// Syncer drains the offline queue to an upstream while connectivity holds.
type Syncer struct {
	store    Store
	upstream Upstream
	conn     checkout.Connectivity
	logger   *zap.Logger

	interval       time.Duration
	batch          int
	limiter        *rate.Limiter
	maxTries       uint
	initialBackoff time.Duration

	synced metric.Int64Counter
	failed metric.Int64Counter
}

type SyncerOption func(*Syncer)

func WithInterval(d time.Duration) SyncerOption {
	return func(s *Syncer) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithBatchSize(n int) SyncerOption {
	return func(s *Syncer) {
		if n > 0 {
			s.batch = n
		}
	}
}

func WithRate(perSec float64) SyncerOption {
	return func(s *Syncer) {
		if perSec > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(perSec), 1)
		}
	}
}

// WithRetry bounds the per-sale exponential backoff.
func WithRetry(maxTries uint, initial time.Duration) SyncerOption {
	return func(s *Syncer) {
		if maxTries > 0 {
			s.maxTries = maxTries
		}
		if initial > 0 {
			s.initialBackoff = initial
		}
	}
}

func NewSyncer(store Store, upstream Upstream, conn checkout.Connectivity, logger *zap.Logger, opts ...SyncerOption) *Syncer {
	s := &Syncer{
		store:          store,
		upstream:       upstream,
		conn:           conn,
		logger:         logger,
		interval:       DefaultSyncInterval,
		batch:          DefaultBatchSize,
		limiter:        rate.NewLimiter(rate.Limit(DefaultRatePerSec), 1),
		maxTries:       defaultMaxTries,
		initialBackoff: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}

	meter := otel.Meter("posnexus/offline")
	s.synced, _ = meter.Int64Counter("pos.offline.synced",
		metric.WithDescription("Offline sales delivered upstream"))
	s.failed, _ = meter.Int64Counter("pos.offline.sync_failures",
		metric.WithDescription("Offline sales that exhausted their retries in a round"))
	return s
}

// Run flushes on every tick until ctx is cancelled.
func (s *Syncer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("offline syncer started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("offline syncer stopped")
			return
		case <-ticker.C:
			n, err := s.FlushOnce(ctx)
			if err != nil {
				s.logger.Warn("offline sync round stopped early", zap.Int("synced", n), zap.Error(err))
				continue
			}
			if n > 0 {
				s.logger.Info("offline sales synced", zap.Int("count", n))
			}
		}
	}
}

// FlushOnce pushes pending sales oldest first and returns how many were
// synced. The round stops at the first sale that exhausts its retries so
// later sales never overtake it.
func (s *Syncer) FlushOnce(ctx context.Context) (int, error) {
	if !s.conn.Online(ctx) {
		return 0, nil
	}

	pending, err := s.store.Pending(ctx, s.batch)
	if err != nil {
		return 0, fmt.Errorf("failed to load pending sales: %w", err)
	}

	synced := 0
	for _, rec := range pending {
		if err := s.limiter.Wait(ctx); err != nil {
			return synced, err
		}

		if err := s.push(ctx, rec.PendingOfflineSale); err != nil {
			s.failed.Add(ctx, 1)
			if recErr := s.store.RecordAttempt(ctx, rec.ID, err); recErr != nil {
				s.logger.Error("failed to record sync attempt", zap.String("sale_id", rec.ID.String()), zap.Error(recErr))
			}
			return synced, fmt.Errorf("sync sale %s: %w", rec.ID, err)
		}

		if err := s.store.MarkSynced(ctx, rec.ID); err != nil {
			return synced, fmt.Errorf("failed to mark sale %s synced: %w", rec.ID, err)
		}
		s.synced.Add(ctx, 1, metric.WithAttributes(attribute.String("payment_method", rec.PaymentMethod)))
		synced++
	}
	return synced, nil
}

func (s *Syncer) push(ctx context.Context, sale checkout.PendingOfflineSale) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.initialBackoff
	b.MaxInterval = 10 * s.initialBackoff

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, s.upstream.SyncSale(ctx, sale)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(s.maxTries))
	return err
}
