// internal/checkout/implementation.go
package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"posnexus/internal/cart"
)

// DefaultCommitTimeout bounds the online sale-commit call.
const DefaultCommitTimeout = 10 * time.Second

// queueWriteTimeout bounds the offline fallback write. The write is detached
// from the caller's cancellation so an abandoned request still lands the sale.
const queueWriteTimeout = 5 * time.Second

// Reconciler commits a sale online or hands it to the offline queue.
// Each invocation ends in exactly one of the two.
type Reconciler struct {
	connectivity  Connectivity
	committer     SaleCommitter
	queue         OfflineQueue
	logger        *zap.Logger
	tracer        trace.Tracer
	checkouts     metric.Int64Counter
	commitTimeout time.Duration
	now           func() time.Time
	newID         func() uuid.UUID

	mu    sync.Mutex
	state State
}

type Option func(*Reconciler)

func WithCommitTimeout(d time.Duration) Option {
	return func(r *Reconciler) {
		if d > 0 {
			r.commitTimeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// NewReconciler creates a checkout reconciler.
func NewReconciler(connectivity Connectivity, committer SaleCommitter, queue OfflineQueue, logger *zap.Logger, opts ...Option) *Reconciler {
	meter := otel.Meter("posnexus/checkout")
	checkouts, err := meter.Int64Counter("pos.checkouts", metric.WithDescription("Checkouts by outcome"))
	if err != nil {
		logger.Warn("failed to create checkout counter", zap.Error(err))
	}

	r := &Reconciler{
		connectivity:  connectivity,
		committer:     committer,
		queue:         queue,
		logger:        logger,
		tracer:        otel.Tracer("posnexus/checkout"),
		checkouts:     checkouts,
		commitTimeout: DefaultCommitTimeout,
		now:           time.Now,
		newID:         uuid.New,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the state of the latest checkout.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Checkout reconciles one sale built from lines. A degraded outcome
// (commit failed, sale queued) is not an error; only a failed queue write is.
func (r *Reconciler) Checkout(ctx context.Context, lines []cart.Line, paymentMethod string) (Outcome, error) {
	if len(lines) == 0 {
		return Outcome{State: StateIdle}, ErrEmptyCart
	}

	r.mu.Lock()
	if r.state == StateSubmitting {
		r.mu.Unlock()
		return Outcome{State: StateSubmitting}, ErrCheckoutInProgress
	}
	r.state = StateSubmitting
	r.mu.Unlock()

	sale := newSale(r.newID(), lines, paymentMethod)

	ctx, span := r.tracer.Start(ctx, "checkout.reconcile",
		trace.WithAttributes(
			attribute.String("sale.id", sale.ID.String()),
			attribute.Int("sale.items", len(sale.Items)),
			attribute.String("sale.total", sale.Total.String()),
			attribute.String("sale.payment_method", sale.PaymentMethod),
		),
	)
	defer span.End()

	outcome, err := r.reconcile(ctx, sale, span)

	r.mu.Lock()
	r.state = outcome.State
	r.mu.Unlock()

	span.SetAttributes(attribute.String("checkout.outcome", outcome.State.String()))
	if r.checkouts != nil {
		r.checkouts.Add(ctx, 1, metric.WithAttributes(
			attribute.String("outcome", outcome.State.String()),
			attribute.Bool("degraded", outcome.Degraded),
		))
	}
	return outcome, err
}

func (r *Reconciler) reconcile(ctx context.Context, sale Sale, span trace.Span) (Outcome, error) {
	if !r.connectivity.Online(ctx) {
		span.AddEvent("offline_detected")
		r.logger.Info("offline, queueing sale", zap.String("sale_id", sale.ID.String()))
		return r.enqueue(ctx, sale, "offline", MsgQueuedOffline, nil)
	}

	commitCtx, cancel := context.WithTimeout(ctx, r.commitTimeout)
	err := r.committer.CommitSale(commitCtx, sale)
	cancel()
	if err == nil {
		span.AddEvent("sale_committed")
		r.logger.Info("sale committed", zap.String("sale_id", sale.ID.String()), zap.String("total", sale.Total.String()))
		return Outcome{State: StateCommitted, Sale: sale, Message: MsgCommitted}, nil
	}

	span.RecordError(err)
	r.logger.Warn("sale commit failed, falling back to offline queue",
		zap.String("sale_id", sale.ID.String()),
		zap.Error(err),
	)
	outcome, qerr := r.enqueue(ctx, sale, err.Error(), MsgSavedLocally, err)
	outcome.Degraded = outcome.State == StateQueuedOffline
	return outcome, qerr
}

func (r *Reconciler) enqueue(ctx context.Context, sale Sale, reason, message string, commitErr error) (Outcome, error) {
	pending := PendingOfflineSale{
		ID:            sale.ID,
		Items:         sale.Items,
		Total:         sale.Total,
		PaymentMethod: sale.PaymentMethod,
		Timestamp:     r.now().UTC(),
		Reason:        reason,
	}

	qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), queueWriteTimeout)
	defer cancel()

	if err := r.queue.SaveSaleOffline(qctx, pending); err != nil {
		trace.SpanFromContext(ctx).SetStatus(codes.Error, "offline queue write failed")
		r.logger.Error("failed to queue sale offline", zap.String("sale_id", sale.ID.String()), zap.Error(err))
		return Outcome{State: StateFailed, Sale: sale, Message: MsgQueueFailed, CommitErr: commitErr},
			fmt.Errorf("%w: %v", ErrOfflineQueueWrite, err)
	}

	return Outcome{
		State:     StateQueuedOffline,
		Sale:      sale,
		Queued:    &pending,
		Message:   message,
		CommitErr: commitErr,
	}, nil
}
