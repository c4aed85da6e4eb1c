package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"posnexus/internal/checkout"
)

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher hands synced offline sales to the broker. It satisfies
// offline.Upstream.
type Publisher struct {
	ch       channel
	producer string
	now      func() time.Time
}

func NewPublisher(conn *amqp.Connection, producer string) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareEventsExchange(ch); err != nil {
		return nil, fmt.Errorf("declare events exchange: %w", err)
	}

	return newPublisher(ch, producer), nil
}

func newPublisher(ch channel, producer string) *Publisher {
	if producer == "" {
		producer = defaultProducer
	}
	return &Publisher{
		ch:       ch,
		producer: producer,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

// SyncSale publishes the sale as a persistent message. The sale ID is used
// as both partition key and message ID so consumers can deduplicate.
func (p *Publisher) SyncSale(ctx context.Context, sale checkout.PendingOfflineSale) error {
	payload, err := json.Marshal(SaleOfflinePayload{
		SaleID:        sale.ID.String(),
		Items:         sale.Items,
		Total:         sale.Total,
		PaymentMethod: sale.PaymentMethod,
		RecordedAt:    sale.Timestamp,
		Reason:        sale.Reason,
	})
	if err != nil {
		return fmt.Errorf("marshal SaleRecordedOffline: %w", err)
	}

	env := EventEnvelope{
		EventName:    EventTypeSaleOffline,
		EventVersion: 1,
		EventID:      sale.ID.String(),
		Producer:     p.producer,
		PartitionKey: sale.ID.String(),
		OccurredAt:   p.now(),
		Schema:       saleOfflineSchema,
		Payload:      payload,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal SaleRecordedOffline envelope: %w", err)
	}

	return p.publishJSON(ctx, SaleOfflineRoutingKey, env.EventID, body)
}

func (p *Publisher) publishJSON(ctx context.Context, routingKey, messageID string, body []byte) error {
	pubCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(
		pubCtx,
		EventsExchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    messageID,
			Body:         body,
		},
	)
}
