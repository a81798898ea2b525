package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/YelzhanWeb/kitchen-sync/internal/adapter/logger"
	"github.com/YelzhanWeb/kitchen-sync/internal/interfaces"
)

// ChangeFeed receives the NOTIFY messages the orders trigger emits.
type ChangeFeed struct {
	db      DB
	channel string
	logger  logger.Logger
}

func NewChangeFeed(db DB, channel string, logger logger.Logger) *ChangeFeed {
	return &ChangeFeed{db: db, channel: channel, logger: logger}
}

// Listen holds one pooled connection in LISTEN mode until the connection
// fails or ctx ends.
func (f *ChangeFeed) Listen(ctx context.Context, onReady func(), handler interfaces.MessageHandler) error {
	conn, err := f.db.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer func() {
		// соединение вернется в пул, подписка на нем не нужна
		cleanup, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = conn.Exec(cleanup, "UNLISTEN *")
		conn.Release()
	}()

	channel := pgx.Identifier{f.channel}.Sanitize()
	if _, err := conn.Exec(ctx, "LISTEN "+channel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", channel, err)
	}

	f.logger.Info("listening", fmt.Sprintf("Listening on channel %s", f.channel), "", nil)
	onReady()

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to wait for notification: %w", err)
		}

		if err := handler(ctx, []byte(n.Payload)); err != nil {
			f.logger.Error("notification_failed", "Handler failed on notification", "", map[string]interface{}{"channel": n.Channel}, err)
		}
	}
}
