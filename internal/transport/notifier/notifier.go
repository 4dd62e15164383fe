package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"flightsaga/pkg/metrics"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Ключи маршрутизации итогов саги
const (
	KeyBookingConfirmed = "booking.confirmed"
	KeyBookingFailed    = "booking.failed"
)

type Notifier interface {
	Notify(ctx context.Context, routingKey string, v any) error
	Close() error
}

// channel часть *amqp.Channel, нужная для публикации
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitNotifier публикует JSON в topic exchange.
type RabbitNotifier struct {
	conn     *amqp.Connection
	ch       channel
	exchange string
	logger   *zap.SugaredLogger
	m        *metrics.Metrics
}

func NewRabbitNotifier(url, exchange string, logger *zap.SugaredLogger, m *metrics.Metrics) (*RabbitNotifier, error) {
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
	logger.Infof("notifier connected, exchange %s", exchange)
	return &RabbitNotifier{conn: conn, ch: ch, exchange: exchange, logger: logger, m: m}, nil
}

func (n *RabbitNotifier) Notify(ctx context.Context, routingKey string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	err = n.ch.PublishWithContext(ctx, n.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         b,
	})
	if n.m != nil {
		res := "ok"
		if err != nil {
			res = "error"
		}
		n.m.Notifier.PublishedTotal.WithLabelValues(routingKey, res).Inc()
	}
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	return nil
}

func (n *RabbitNotifier) Close() error {
	if n.ch != nil {
		_ = n.ch.Close()
	}
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}

// Nop используется, когда RabbitMQ не настроен
type Nop struct{}

func (Nop) Notify(context.Context, string, any) error { return nil }
func (Nop) Close() error                             { return nil }
