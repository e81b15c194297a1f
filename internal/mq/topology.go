package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — имя обменника.
type Exchange string

// Queue — имя очереди.
type Queue string

// RoutingKey — ключ маршрутизации.
type RoutingKey string

// Exchanges.
const (
	ExchangeWakeup Exchange = "matchcore.wakeup"
	ExchangeJobs   Exchange = "matchcore.jobs"
)

// Queues.
const (
	QueueJobsDead Queue = "jobs.dead"
)

// Routing keys.
const (
	RoutingKeyEnqueued RoutingKey = "enqueued"
	RoutingKeyDead     RoutingKey = "dead"
)

// SetupTopology объявляет exchanges и durable очереди.
// Очереди wakeup объявляет каждый WakeupListener сам.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, declareTopology)
}

func declareTopology(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeWakeup, amqp.ExchangeFanout},
		{ExchangeJobs, amqp.ExchangeDirect},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	// jobs.dead читают операторы; сообщения должны пережить рестарт брокера
	if _, err := ch.QueueDeclare(string(QueueJobsDead), true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", QueueJobsDead, err)
	}

	if err := ch.QueueBind(string(QueueJobsDead), string(RoutingKeyDead), string(ExchangeJobs), false, nil); err != nil {
		return fmt.Errorf("bind queue %s to %s: %w", QueueJobsDead, ExchangeJobs, err)
	}

	return nil
}

// declareWakeupQueue объявляет exclusive очередь со сгенерированным
// брокером именем и привязывает её к matchcore.wakeup.
func declareWakeupQueue(ch *amqp.Channel) (string, error) {
	q, err := ch.QueueDeclare(
		"",    // name: генерирует брокер
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return "", fmt.Errorf("declare wakeup queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, "", string(ExchangeWakeup), false, nil); err != nil {
		return "", fmt.Errorf("bind wakeup queue: %w", err)
	}

	return q.Name, nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Matchcore RabbitMQ Topology:

    matchcore.wakeup (fanout)
    └── amq.gen-* (exclusive, one per worker)
            Consumer: queue.Shared.Wake

    matchcore.jobs (direct)
    └── jobs.dead [routing: dead]
            Manual processing
  `
}
