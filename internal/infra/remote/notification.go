package remote

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"order-service/internal/pkg/clock"
	"order-service/internal/pkg/config"
	"order-service/internal/pkg/errs"

	amqp "github.com/rabbitmq/amqp091-go"
)

// amqpConn is the subset of *amqp.Connection the publisher manages.
type amqpConn interface {
	Channel() (*amqp.Channel, error)
	Close() error
}

// NotificationPublisher pushes order events onto the notification queue.
// The connection is dialed lazily and rebuilt after broker failures; the
// breaker keeps checkout latency flat while the broker is down.
type NotificationPublisher struct {
	cfg    config.RabbitMQConfig
	caller caller
	dial   func() (amqpConn, error)

	mu   sync.Mutex
	conn amqpConn
	ch   *amqp.Channel
}

func NewNotificationPublisher(cfg config.RabbitMQConfig, clk clock.Clock) *NotificationPublisher {
	return &NotificationPublisher{
		cfg: cfg,
		caller: caller{
			name:    "rabbitmq",
			breaker: NewCircuitBreaker("rabbitmq", cfg.BreakerThreshold, cfg.BreakerRecovery, clk),
			retry: RetryPolicy{
				MaxAttempts: cfg.DialMaxAttempts,
				BaseDelay:   cfg.DialBaseDelay,
				MaxDelay:    cfg.DialMaxDelay,
			},
		},
		dial: func() (amqpConn, error) {
			conn, err := amqp.Dial(cfg.BuildURL())
			if err != nil {
				return nil, err
			}
			return conn, nil
		},
	}
}

type eventEnvelope struct {
	EventType string         `json:"event_type"`
	Data      map[string]any `json:"data"`
}

// Publish sends one persistent message to the durable notification queue.
func (p *NotificationPublisher) Publish(ctx context.Context, eventType string, data map[string]any) error {
	payload, err := json.Marshal(eventEnvelope{EventType: eventType, Data: data})
	if err != nil {
		return errs.Wrap(err, "failed to encode notification event")
	}

	return p.caller.call(ctx, func() error {
		ch, chErr := p.channel()
		if chErr != nil {
			return chErr
		}

		pubErr := ch.PublishWithContext(ctx, "", p.cfg.Queue, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         payload,
		})
		if pubErr != nil {
			// Channel is unusable after a publish error; force a fresh dial next time.
			p.reset()
			return Unreachable(pubErr, "failed to publish to "+p.cfg.Queue)
		}
		return nil
	})
}

func (p *NotificationPublisher) channel() (*amqp.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}

	// A dead channel makes the old connection useless; close it before
	// dialing so broker sockets do not pile up across reconnects.
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}

	conn, err := p.dial()
	if err != nil {
		return nil, Unreachable(err, "failed to dial rabbitmq")
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, Unreachable(err, "failed to open rabbitmq channel")
	}

	if _, err := ch.QueueDeclare(p.cfg.Queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, Unreachable(err, "failed to declare queue "+p.cfg.Queue)
	}

	p.conn = conn
	p.ch = ch
	slog.Info("rabbitmq connection established", "queue", p.cfg.Queue)
	return ch, nil
}

func (p *NotificationPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

func (p *NotificationPublisher) Close() {
	p.reset()
}
