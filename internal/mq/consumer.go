package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler — обработка сообщения. Ошибка — nack с возвратом в очередь.
type Handler func(ctx context.Context, msg *Message) error

// Consumer потребляет сообщения из очереди и переживает reconnect.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    Queue
	declare  func(ch *amqp.Channel) (string, error)
	handler  Handler
	prefetch int
}

// ConsumerConfig — конфигурация Consumer.
type ConsumerConfig struct {
	// Queue — имя существующей очереди.
	Queue Queue

	// Declare — объявляет очередь на каждом (пере)подключении и
	// возвращает её имя. Используется вместо Queue для exclusive очередей.
	Declare func(ch *amqp.Channel) (string, error)

	Handler Handler

	// Prefetch — сообщений без ack на consumer (default: 1).
	Prefetch int
}

// NewConsumer создаёт Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Consumer{
		conn:     conn,
		logger:   logger,
		queue:    cfg.Queue,
		declare:  cfg.Declare,
		handler:  cfg.Handler,
		prefetch: prefetch,
	}
}

// Run потребляет сообщения до отмены ctx.
func (c *Consumer) Run(ctx context.Context) error {
	reconnected := c.conn.Reconnected()

	for {
		deliveries, name, err := c.subscribe(ctx)
		if err == nil {
			c.logger.Info("consumer started", "queue", name)
			err = c.drain(ctx, deliveries)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("consumer interrupted, waiting for reconnect", "queue", name, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-reconnected:
		}
	}
}

// subscribe настраивает канал и начинает потребление.
func (c *Consumer) subscribe(ctx context.Context) (<-chan amqp.Delivery, string, error) {
	var (
		deliveries <-chan amqp.Delivery
		name       = string(c.queue)
	)

	err := c.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if c.declare != nil {
			declared, err := c.declare(ch)
			if err != nil {
				return err
			}
			name = declared
		}

		if err := ch.Qos(c.prefetch, 0, false); err != nil {
			return fmt.Errorf("set qos: %w", err)
		}

		d, err := ch.ConsumeWithContext(ctx,
			name,  // queue
			"",    // consumer tag
			false, // auto-ack
			false, // exclusive
			false, // no-local
			false, // no-wait
			nil,
		)
		if err != nil {
			return fmt.Errorf("consume %s: %w", name, err)
		}
		deliveries = d
		return nil
	})

	return deliveries, name, err
}

// drain обрабатывает сообщения до закрытия канала доставки.
func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("deliveries channel closed")
			}
			c.handle(ctx, raw)
		}
	}
}

// handle обрабатывает одно сообщение.
func (c *Consumer) handle(ctx context.Context, raw amqp.Delivery) {
	var msg Message
	if err := json.Unmarshal(raw.Body, &msg); err != nil {
		c.logger.Error("failed to unmarshal message", "error", err, "body", string(raw.Body))
		// Некорректное сообщение не станет корректным при повторе
		_ = raw.Nack(false, false)
		return
	}

	if err := c.handler(ctx, &msg); err != nil {
		c.logger.Error("handler failed",
			"message_id", msg.ID,
			"type", msg.Type,
			"error", err,
		)
		_ = raw.Nack(false, true)
		return
	}

	_ = raw.Ack(false)
}

// Waker — получатель сигнала "в backlog появилась работа" (queue.Shared).
type Waker interface {
	Wake()
}

// NewWakeupListener создаёт Consumer, который будит waker на каждое
// job.enqueued, опубликованное любым процессом.
func NewWakeupListener(conn *Connection, waker Waker, logger *slog.Logger) *Consumer {
	return NewConsumer(conn, logger, ConsumerConfig{
		Declare:  declareWakeupQueue,
		Prefetch: 16,
		Handler: func(_ context.Context, msg *Message) error {
			if msg.Type == MessageTypeJobEnqueued {
				waker.Wake()
			}
			return nil
		},
	})
}
