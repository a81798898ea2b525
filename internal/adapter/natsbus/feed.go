// Package natsbus carries order changes and alerts over NATS core subjects.
package natsbus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/YelzhanWeb/kitchen-sync/internal/adapter/logger"
	"github.com/YelzhanWeb/kitchen-sync/internal/interfaces"
)

// ChangeFeed subscribes to relayed order changes. Every Listen dials its
// own connection with client reconnects off, so a broker outage ends the
// session and the caller's backoff and catch-up logic takes over.
type ChangeFeed struct {
	url     string
	subject string
	logger  logger.Logger
}

func NewChangeFeed(url, subject string, logger logger.Logger) *ChangeFeed {
	return &ChangeFeed{url: url, subject: subject, logger: logger}
}

func (f *ChangeFeed) Listen(ctx context.Context, onReady func(), handler interfaces.MessageHandler) error {
	lost := make(chan error, 1)
	signal := func(err error) {
		select {
		case lost <- err:
		default:
		}
	}

	conn, err := nats.Connect(f.url,
		nats.Name("kitchen-viewer"),
		nats.NoReconnect(),
		nats.Timeout(5*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err == nil {
				err = errors.New("disconnected")
			}
			signal(err)
		}),
		nats.ClosedHandler(func(*nats.Conn) { signal(errors.New("connection closed")) }),
		nats.ErrorHandler(sessionErrorHandler(signal)),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer conn.Close()

	msgs := make(chan *nats.Msg, 256)
	sub, err := conn.ChanSubscribe(f.subject, msgs)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", f.subject, err)
	}
	defer sub.Unsubscribe()

	if err := conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("failed to confirm subscription: %w", err)
	}

	f.logger.Info("listening", fmt.Sprintf("Subscribed to %s", f.subject), "", nil)
	onReady()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-lost:
			return err
		case msg := <-msgs:
			if err := handler(ctx, msg.Data); err != nil {
				f.logger.Error("message_failed", "Handler failed on change message", "", map[string]interface{}{"subject": msg.Subject}, err)
			}
		}
	}
}

// sessionErrorHandler ends the session when the client starts dropping
// messages for a slow subscriber, so the caller re-queries the ledger.
func sessionErrorHandler(signal func(error)) nats.ErrHandler {
	return func(_ *nats.Conn, _ *nats.Subscription, err error) {
		if errors.Is(err, nats.ErrSlowConsumer) {
			signal(fmt.Errorf("change messages dropped: %w", err))
		}
	}
}
