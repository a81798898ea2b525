package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/YelzhanWeb/kitchen-sync/internal/interfaces"
)

// Publisher sends relayed changes and alerts to their fanout exchanges.
type Publisher struct {
	conn Connection
}

func NewPublisher(conn Connection) *Publisher {
	return &Publisher{conn: conn}
}

func (p *Publisher) PublishChange(ctx context.Context, body []byte) error {
	return p.publish(ctx, ChangesExchange, "", amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   time.Now().UTC(),
		Body:        body,
	})
}

func (p *Publisher) PublishAlert(ctx context.Context, msg interfaces.AlertMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	return p.publish(ctx, AlertsExchange, string(msg.Kind), amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   msg.OccurredAt,
		Type:        string(msg.Kind),
		Body:        body,
	})
}

func (p *Publisher) publish(ctx context.Context, exchange, key string, msg amqp.Publishing) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	if err := ch.PublishWithContext(ctx, exchange, key, false, false, msg); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", exchange, err)
	}
	return nil
}
