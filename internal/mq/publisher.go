package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/joshua-takyi/gigbay/internal/events"
)

// EventPublisher is what services depend on. Publishing is best effort: a
// failed publish is logged by the caller and never undoes a committed write.
type EventPublisher interface {
	Publish(ctx context.Context, env events.Envelope) error
}

type Publisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewPublisher(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &Publisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func (p *Publisher) Publish(ctx context.Context, env events.Envelope) error {
	return p.PublishJSON(ctx, env.Key, env)
}

func (p *Publisher) PublishJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         b,
	})
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// HandlerFunc processes one delivery body for a routing key.
type HandlerFunc func(ctx context.Context, key string, body []byte) error

// LocalPublisher hands envelopes straight to an in-process handler. It is
// used when no broker is configured. With a nil handler it only logs.
type LocalPublisher struct {
	handle HandlerFunc
	logger *slog.Logger
}

func NewLocalPublisher(handle HandlerFunc, logger *slog.Logger) *LocalPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalPublisher{handle: handle, logger: logger}
}

func (p *LocalPublisher) Publish(ctx context.Context, env events.Envelope) error {
	p.logger.Debug("event published", "key", env.Key, "recipient", env.RecipientID, "id", env.ID)
	if p.handle == nil {
		return nil
	}
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	go func() {
		if err := p.handle(context.WithoutCancel(ctx), env.Key, b); err != nil {
			p.logger.Error("local event handler failed", "key", env.Key, "error", err)
		}
	}()
	return nil
}
