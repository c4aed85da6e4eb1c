package integration

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posnexus/internal/checkout"
	"posnexus/internal/events"
)

func TestPublisherIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	rabbitC, rabbitURL := startRabbitMQ(ctx, t)
	defer terminateContainer(t, rabbitC)

	conn := dialAMQP(ctx, t, rabbitURL)
	defer conn.Close()

	pub, err := events.NewPublisher(conn, "till-7")
	require.NoError(t, err)
	defer pub.Close()

	ch, err := conn.Channel()
	require.NoError(t, err)
	defer ch.Close()

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	require.NoError(t, err)
	require.NoError(t, ch.QueueBind(q.Name, events.SaleOfflineRoutingKey, events.EventsExchange, false, nil))

	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	require.NoError(t, err)

	sale := checkout.PendingOfflineSale{
		ID:            uuid.New(),
		Items:         []checkout.Item{{ProductID: uuid.New(), Quantity: 1, Price: decimal.RequireFromString("4.20")}},
		Total:         decimal.RequireFromString("4.20"),
		PaymentMethod: "cash",
		Timestamp:     time.Now().UTC(),
	}
	require.NoError(t, pub.SyncSale(ctx, sale))

	select {
	case d := <-deliveries:
		assert.Equal(t, sale.ID.String(), d.MessageId)
		assert.Equal(t, uint8(amqp.Persistent), d.DeliveryMode)

		var env events.EventEnvelope
		require.NoError(t, json.Unmarshal(d.Body, &env))
		require.NoError(t, env.Validate(events.EventTypeSaleOffline, 1))
		assert.Equal(t, "till-7", env.Producer)

		var payload events.SaleOfflinePayload
		require.NoError(t, json.Unmarshal(env.Payload, &payload))
		assert.Equal(t, sale.ID.String(), payload.SaleID)
		assert.True(t, sale.Total.Equal(payload.Total))
	case <-ctx.Done():
		t.Fatal("timed out waiting for published sale")
	}
}

func dialAMQP(ctx context.Context, t *testing.T, url string) *amqp.Connection {
	t.Helper()
	var (
		conn *amqp.Connection
		err  error
	)
	for {
		conn, err = amqp.Dial(url)
		if err == nil {
			return conn
		}
		select {
		case <-ctx.Done():
			require.NoError(t, err)
			return nil
		case <-time.After(500 * time.Millisecond):
		}
	}
}
