package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"posnexus/internal/checkout"
)

// EventEnvelope is the shared wrapper for every published event.
type EventEnvelope struct {
	EventName    string          `json:"eventName"`
	EventVersion int             `json:"eventVersion"`
	EventID      string          `json:"eventId"`
	Producer     string          `json:"producer"`
	PartitionKey string          `json:"partitionKey"`
	OccurredAt   time.Time       `json:"occurredAt"`
	Schema       string          `json:"schema"`
	Payload      json.RawMessage `json:"payload"`
}

func (e EventEnvelope) Validate(expectedName string, expectedVersion int) error {
	if e.EventName != expectedName {
		return fmt.Errorf("unexpected eventName %q", e.EventName)
	}
	if e.EventVersion != expectedVersion {
		return fmt.Errorf("unexpected eventVersion %d", e.EventVersion)
	}
	if e.PartitionKey == "" {
		return fmt.Errorf("missing partitionKey")
	}
	if e.EventID == "" {
		return fmt.Errorf("missing eventId")
	}
	return nil
}

// SaleOfflinePayload carries a sale recorded while the terminal was offline.
type SaleOfflinePayload struct {
	SaleID        string          `json:"saleId"`
	Items         []checkout.Item `json:"items"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod string          `json:"paymentMethod"`
	RecordedAt    time.Time       `json:"recordedAt"`
	Reason        string          `json:"reason,omitempty"`
}

func parseSaleOffline(body []byte) (EventEnvelope, SaleOfflinePayload, error) {
	var env EventEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return EventEnvelope{}, SaleOfflinePayload{}, fmt.Errorf("decode envelope: %w", err)
	}
	if err := env.Validate(EventTypeSaleOffline, 1); err != nil {
		return EventEnvelope{}, SaleOfflinePayload{}, err
	}
	var payload SaleOfflinePayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return EventEnvelope{}, SaleOfflinePayload{}, fmt.Errorf("decode payload: %w", err)
	}
	return env, payload, nil
}
