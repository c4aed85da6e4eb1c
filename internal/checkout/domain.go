// internal/checkout/domain.go
package checkout

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"posnexus/internal/cart"
)

// State is the reconciler's position in Idle → Submitting → outcome.
type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateCommitted
	StateQueuedOffline
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateCommitted:
		return "committed"
	case StateQueuedOffline:
		return "queued_offline"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Item is one sold line as sent upstream.
type Item struct {
	ProductID uuid.UUID       `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// Sale is the payload accepted by the sale-commit collaborator. ID is an
// idempotency key shared with any offline copy of the same sale.
type Sale struct {
	ID            uuid.UUID       `json:"id"`
	Items         []Item          `json:"items"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod string          `json:"paymentMethod"`
}

// PendingOfflineSale is a sale waiting in the local queue for upstream sync.
type PendingOfflineSale struct {
	ID            uuid.UUID       `json:"id"`
	Items         []Item          `json:"items"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod string          `json:"paymentMethod"`
	Timestamp     time.Time       `json:"timestamp"`
	Reason        string          `json:"reason,omitempty"`
}

// Sale returns the upstream payload for a pending sale.
func (p PendingOfflineSale) Sale() Sale {
	return Sale{ID: p.ID, Items: p.Items, Total: p.Total, PaymentMethod: p.PaymentMethod}
}

// Outcome describes how one checkout invocation ended.
type Outcome struct {
	State     State               `json:"-"`
	Sale      Sale                `json:"sale"`
	Queued    *PendingOfflineSale `json:"queued,omitempty"`
	Degraded  bool                `json:"degraded"`
	Message   string              `json:"message"`
	CommitErr error               `json:"-"`
}

const (
	DefaultPaymentMethod = "cash"

	MsgCommitted     = "Sale completed"
	MsgQueuedOffline = "Offline: sale saved and will sync when the connection returns"
	MsgSavedLocally  = "Could not reach the server: sale saved locally and will sync later"
	MsgQueueFailed   = "Sale could not be saved; the cart was kept"
)

func newSale(id uuid.UUID, lines []cart.Line, paymentMethod string) Sale {
	if paymentMethod == "" {
		paymentMethod = DefaultPaymentMethod
	}
	sale := Sale{
		ID:            id,
		Items:         make([]Item, 0, len(lines)),
		Total:         decimal.Zero,
		PaymentMethod: paymentMethod,
	}
	for _, l := range lines {
		sale.Items = append(sale.Items, Item{ProductID: l.ProductID, Quantity: l.Quantity, Price: l.UnitPrice})
		sale.Total = sale.Total.Add(l.Subtotal())
	}
	return sale
}
