package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Matchcore/internal/domain"
)

// MessageType — тип сообщения.
type MessageType string

// Типы сообщений.
const (
	MessageTypeJobEnqueued MessageType = "job.enqueued"
	MessageTypeJobDead     MessageType = "job.dead"
)

// Message — конверт сообщения.
type Message struct {
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// JobEvent — payload job.enqueued и job.dead.
type JobEvent struct {
	JobID     uuid.UUID        `json:"job_id"`
	Kind      domain.JobKind   `json:"kind"`
	Priority  domain.Priority  `json:"priority"`
	Status    domain.JobStatus `json:"status"`
	Attempts  int              `json:"attempts"`
	LastError string           `json:"last_error,omitempty"`
}

func newJobEvent(job *domain.Job) JobEvent {
	return JobEvent{
		JobID:     job.ID,
		Kind:      job.Kind(),
		Priority:  job.Priority,
		Status:    job.Status,
		Attempts:  job.Attempts,
		LastError: job.LastError,
	}
}

// newMessage собирает конверт с payload.
func newMessage(msgType MessageType, payload any, now time.Time) (*Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	return &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   raw,
		Timestamp: now,
	}, nil
}

// ParsePayload разбирает payload сообщения в T.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T
	if err := json.Unmarshal(msg.Payload, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}
	return result, nil
}

// Publisher публикует события очереди. Реализует queue.Notifier.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, logger: logger}
}

// NotifyEnqueued публикует job.enqueued в matchcore.wakeup.
// Сообщение не persistent: потеря только откладывает claim до тика.
func (p *Publisher) NotifyEnqueued(ctx context.Context, job *domain.Job) error {
	msg, err := newMessage(MessageTypeJobEnqueued, newJobEvent(job), time.Now())
	if err != nil {
		return err
	}
	return p.publish(ctx, ExchangeWakeup, RoutingKeyEnqueued, msg, amqp.Transient)
}

// NotifyDead публикует job.dead в jobs.dead.
func (p *Publisher) NotifyDead(ctx context.Context, job *domain.Job) error {
	msg, err := newMessage(MessageTypeJobDead, newJobEvent(job), time.Now())
	if err != nil {
		return err
	}
	return p.publish(ctx, ExchangeJobs, RoutingKeyDead, msg, amqp.Persistent)
}

// publish отправляет сообщение в exchange с routing key.
func (p *Publisher) publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message, mode uint8) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,              // mandatory
			false,              // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: mode,
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Type:         string(msg.Type),
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}
