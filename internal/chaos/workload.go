// internal/chaos/workload.go
package chaos

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"posnexus/internal/cart"
	"posnexus/internal/checkout"
	"posnexus/internal/offline"
)

// Ledger is an in-process sales service that records committed sale IDs.
type Ledger struct {
	mu  sync.Mutex
	ids map[uuid.UUID]int
}

func NewLedger() *Ledger {
	return &Ledger{ids: make(map[uuid.UUID]int)}
}

func (l *Ledger) CommitSale(_ context.Context, sale checkout.Sale) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ids[sale.ID]++
	return nil
}

func (l *Ledger) Has(id uuid.UUID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ids[id] > 0
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ids)
}

// Workload drives checkouts through a real reconciler backed by a faulty
// sales service and an in-memory offline queue.
type Workload struct {
	Checkouts  int
	Ledger     *Ledger
	Queue      *offline.MemoryStore
	Faults     *FaultyCommitter
	Link       *FlappingConnectivity
	Reconciler *checkout.Reconciler

	lines []cart.Line

	mu       sync.Mutex
	accepted []uuid.UUID
	refused  int
}

func NewWorkload(checkouts int, opts WorkloadOptions, logger *zap.Logger) *Workload {
	w := &Workload{
		Checkouts: checkouts,
		Ledger:    NewLedger(),
		Queue:     offline.NewMemoryStore(),
		Link:      NewFlappingConnectivity(opts.FlapPeriod),
	}
	w.Faults = NewFaultyCommitter(w.Ledger, opts.Seed)
	w.Reconciler = checkout.NewReconciler(w.Link, w.Faults, w.Queue, logger,
		checkout.WithCommitTimeout(opts.CommitTimeout),
	)
	w.lines = []cart.Line{
		{ProductID: uuid.New(), Name: "Sparkling water", UnitPrice: decimal.RequireFromString("0.89"), Quantity: 2},
		{ProductID: uuid.New(), Name: "Sandwich", UnitPrice: decimal.RequireFromString("4.50"), Quantity: 1},
	}
	return w
}

// Run performs the checkouts sequentially, one terminal at a time.
func (w *Workload) Run(ctx context.Context) error {
	var errs []error
	for i := 0; i < w.Checkouts; i++ {
		out, err := w.Reconciler.Checkout(ctx, w.lines, checkout.DefaultPaymentMethod)

		w.mu.Lock()
		switch {
		case err == nil:
			w.accepted = append(w.accepted, out.Sale.ID)
		case errors.Is(err, checkout.ErrOfflineQueueWrite):
			// Refused sales stay in the cart and are not counted as taken.
			w.refused++
		default:
			errs = append(errs, err)
		}
		w.mu.Unlock()
	}
	return errors.Join(errs...)
}

// Accepted is the number of checkouts that reported committed or queued.
func (w *Workload) Accepted() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return float64(len(w.accepted))
}

// Lost counts accepted sales that are neither committed nor queued.
func (w *Workload) Lost() float64 {
	lost := 0
	for _, id := range w.acceptedIDs() {
		if !w.Ledger.Has(id) && !w.Queue.Has(id) {
			lost++
		}
	}
	return float64(lost)
}

// DoubleRecorded counts accepted sales that are both committed and queued.
func (w *Workload) DoubleRecorded() float64 {
	double := 0
	for _, id := range w.acceptedIDs() {
		if w.Ledger.Has(id) && w.Queue.Has(id) {
			double++
		}
	}
	return float64(double)
}

func (w *Workload) Queued() float64 {
	return float64(w.Queue.Len())
}

func (w *Workload) acceptedIDs() []uuid.UUID {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]uuid.UUID, len(w.accepted))
	copy(out, w.accepted)
	return out
}
