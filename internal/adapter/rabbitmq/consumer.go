package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/YelzhanWeb/kitchen-sync/internal/adapter/logger"
	"github.com/YelzhanWeb/kitchen-sync/internal/interfaces"
)

// alertRetryDelay is the pause between alert subscription attempts.
const alertRetryDelay = 5 * time.Second

type consumer struct {
	conn     Connection
	logger   logger.Logger
	prefetch int
}

// NewChangeFeed subscribes a viewer to relayed order changes. Each viewer
// gets its own exclusive queue, so every viewer sees every change.
func NewChangeFeed(conn Connection, logger logger.Logger, prefetch int) interfaces.ChangeFeed {
	return &consumer{conn: conn, logger: logger, prefetch: prefetch}
}

func NewAlertConsumer(conn Connection, logger logger.Logger) interfaces.AlertConsumer {
	return &consumer{conn: conn, logger: logger}
}

// Listen runs one subscription session. Reconnecting is the caller's job.
func (c *consumer) Listen(ctx context.Context, onReady func(), handler interfaces.MessageHandler) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	closeChan := ch.NotifyClose()

	if c.prefetch > 0 {
		if err := ch.Qos(c.prefetch, 0, false); err != nil {
			return fmt.Errorf("failed to set QoS: %w", err)
		}
	}

	msgs, err := c.subscribe(ch, ChangesExchange, false)
	if err != nil {
		return err
	}

	onReady()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-closeChan:
			if err != nil {
				return fmt.Errorf("channel closed: %w", err)
			}
			return errors.New("channel closed gracefully")

		case msg, ok := <-msgs:
			if !ok {
				return errors.New("messages channel closed")
			}

			if err := handler(ctx, msg.Body); err != nil {
				// повтор не поможет, сообщение отбрасываем
				_ = msg.Nack(false, false)
				continue
			}
			_ = msg.Ack(false)
		}
	}
}

// ConsumeAlerts keeps an alert subscription open until ctx ends.
func (c *consumer) ConsumeAlerts(ctx context.Context, handler interfaces.MessageHandler) error {
	for {
		err := c.consumeAlertsOnce(ctx, handler)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			return nil
		}

		c.logger.Warn("alerts_disconnected", fmt.Sprintf("Alert consumer disconnected, reconnecting in %s", alertRetryDelay), "", map[string]interface{}{"error": err.Error()})

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(alertRetryDelay):
		}
	}
}

func (c *consumer) consumeAlertsOnce(ctx context.Context, handler interfaces.MessageHandler) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	closeChan := ch.NotifyClose()

	msgs, err := c.subscribe(ch, AlertsExchange, true)
	if err != nil {
		return err
	}

	c.logger.Info("alerts_subscribed", "Waiting for kitchen alerts", "", nil)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-closeChan:
			if err != nil {
				return fmt.Errorf("channel closed: %w", err)
			}
			return errors.New("channel closed gracefully")

		case msg, ok := <-msgs:
			if !ok {
				return errors.New("messages channel closed")
			}
			// ошибки обработки алертов игнорируем
			_ = handler(ctx, msg.Body)
		}
	}
}

// subscribe binds a fresh exclusive queue to a fanout exchange.
func (c *consumer) subscribe(ch Channel, exchange string, autoAck bool) (<-chan amqp.Delivery, error) {
	if err := ch.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, "", exchange, false, nil); err != nil {
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}

	msgs, err := ch.Consume(q.Name, "", autoAck, true, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}
	return msgs, nil
}
