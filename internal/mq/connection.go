package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Matchcore/internal/queue"
)

// ErrNoChannel — соединение сейчас не установлено.
var ErrNoChannel = errors.New("no amqp channel available")

// Connection — AMQP соединение с одним каналом и автоматическим reconnect.
//
// После переподключения все подписчики Reconnected() получают сигнал
// и заново объявляют свои consumer'ы.
type Connection struct {
	url     string
	logger  *slog.Logger
	backoff queue.Backoff

	mu          sync.RWMutex
	conn        *amqp.Connection
	channel     *amqp.Channel
	subscribers []chan struct{}

	closeOnce sync.Once
	closed    chan struct{}
	watchDone chan struct{}
}

// NewConnection подключается к RabbitMQ.
// Первое подключение выполняется синхронно: ошибка возвращается сразу.
func NewConnection(url string, logger *slog.Logger) (*Connection, error) {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Connection{
		url:       url,
		logger:    logger.With("component", "amqp"),
		backoff:   queue.Backoff{Base: time.Second, Max: 30 * time.Second},
		closed:    make(chan struct{}),
		watchDone: make(chan struct{}),
	}

	if err := c.dial(); err != nil {
		return nil, err
	}

	go c.watch()
	return c, nil
}

// dial устанавливает соединение и открывает канал.
func (c *Connection) dial() error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.channel = ch
	c.mu.Unlock()

	c.logger.Info("connected to RabbitMQ")
	return nil
}

// watch ждёт разрыва соединения и переподключается.
func (c *Connection) watch() {
	defer close(c.watchDone)

	for {
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()

		notifyClose := conn.NotifyClose(make(chan *amqp.Error, 1))

		select {
		case <-c.closed:
			return
		case err := <-notifyClose:
			if err != nil {
				c.logger.Warn("connection lost", "error", err)
			}
		}

		c.mu.Lock()
		c.channel = nil
		c.mu.Unlock()

		if !c.redial() {
			return
		}
		c.broadcastReconnect()
	}
}

// redial переподключается с экспоненциальной задержкой.
// Возвращает false, если соединение закрыто через Close.
func (c *Connection) redial() bool {
	for attempt := 1; ; attempt++ {
		delay := c.backoff.Delay(attempt)
		c.logger.Info("attempting to reconnect", "attempt", attempt, "delay", delay)

		select {
		case <-c.closed:
			return false
		case <-time.After(delay):
		}

		if err := c.dial(); err != nil {
			c.logger.Warn("reconnect failed", "error", err)
			continue
		}

		c.logger.Info("reconnected to RabbitMQ")
		return true
	}
}

// Reconnected возвращает канал, в который приходит сигнал после
// каждого успешного переподключения.
func (c *Connection) Reconnected() <-chan struct{} {
	ch := make(chan struct{}, 1)

	c.mu.Lock()
	c.subscribers = append(c.subscribers, ch)
	c.mu.Unlock()

	return ch
}

func (c *Connection) broadcastReconnect() {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, ch := range c.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// WithChannel выполняет fn с текущим каналом.
func (c *Connection) WithChannel(ctx context.Context, fn func(ch *amqp.Channel) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.RLock()
	ch := c.channel
	c.mu.RUnlock()

	if ch == nil || ch.IsClosed() {
		return ErrNoChannel
	}
	return fn(ch)
}

// IsConnected проверяет, установлено ли соединение.
func (c *Connection) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.conn != nil && !c.conn.IsClosed()
}

// Close закрывает соединение и останавливает reconnect.
func (c *Connection) Close() error {
	var err error

	c.closeOnce.Do(func() {
		close(c.closed)
		<-c.watchDone

		c.mu.Lock()
		defer c.mu.Unlock()

		if c.channel != nil {
			if cerr := c.channel.Close(); cerr != nil && !errors.Is(cerr, amqp.ErrClosed) {
				err = fmt.Errorf("close channel: %w", cerr)
			}
		}
		if c.conn != nil && !c.conn.IsClosed() {
			if cerr := c.conn.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("close connection: %w", cerr)
			}
		}

		c.logger.Info("connection closed")
	})

	return err
}
