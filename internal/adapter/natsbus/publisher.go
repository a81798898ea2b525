package natsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/YelzhanWeb/kitchen-sync/internal/adapter/logger"
	"github.com/YelzhanWeb/kitchen-sync/internal/interfaces"
)

// Bus is a long-lived connection used for publishing and for the alert
// subscription. The client library reconnects it on its own.
type Bus struct {
	conn          *nats.Conn
	changeSubject string
	alertSubject  string
	logger        logger.Logger
}

func Connect(url, changeSubject, alertSubject string, logger logger.Logger) (*Bus, error) {
	conn, err := nats.Connect(url,
		nats.Name("kitchen-sync"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats_disconnected", "Lost NATS connection", "", map[string]interface{}{"error": err.Error()})
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats_reconnected", fmt.Sprintf("Reconnected to %s", c.ConnectedUrl()), "", nil)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Bus{conn: conn, changeSubject: changeSubject, alertSubject: alertSubject, logger: logger}, nil
}

func (b *Bus) PublishChange(_ context.Context, body []byte) error {
	if err := b.conn.Publish(b.changeSubject, body); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", b.changeSubject, err)
	}
	return nil
}

func (b *Bus) PublishAlert(_ context.Context, msg interfaces.AlertMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}
	subject := b.alertSubject + "." + string(msg.Kind)
	if err := b.conn.Publish(subject, body); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// ConsumeAlerts delivers every alert kind until ctx ends.
func (b *Bus) ConsumeAlerts(ctx context.Context, handler interfaces.MessageHandler) error {
	sub, err := b.conn.Subscribe(b.alertSubject+".>", func(msg *nats.Msg) {
		_ = handler(ctx, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to alerts: %w", err)
	}
	defer sub.Unsubscribe()

	<-ctx.Done()
	return ctx.Err()
}

func (b *Bus) Close() error {
	return b.conn.Drain()
}
