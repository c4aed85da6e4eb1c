package events

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	EventsExchange        = "pos.events"
	SaleOfflineRoutingKey = "sale.offline.v1"
	EventTypeSaleOffline  = "SaleRecordedOffline"
	saleOfflineSchema     = "pos.sale.offline.v1"
	defaultProducer       = "pos-terminal"
)

func declareEventsExchange(ch *amqp.Channel) error {
	return ch.ExchangeDeclare(
		EventsExchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
}
