// Package relay copies the database change feed onto message brokers so
// viewers can subscribe without a database connection of their own.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/YelzhanWeb/kitchen-sync/internal/adapter/logger"
	"github.com/YelzhanWeb/kitchen-sync/internal/backoff"
	"github.com/YelzhanWeb/kitchen-sync/internal/domain"
	"github.com/YelzhanWeb/kitchen-sync/internal/interfaces"
)

type Service struct {
	source     interfaces.ChangeFeed
	publishers map[string]interfaces.ChangePublisher
	logger     logger.Logger
	backoff    *backoff.Backoff
}

// NewService relays from source to every named publisher.
func NewService(source interfaces.ChangeFeed, publishers map[string]interfaces.ChangePublisher, logger logger.Logger, backoffMin, backoffMax time.Duration) *Service {
	return &Service{
		source:     source,
		publishers: publishers,
		logger:     logger,
		backoff:    backoff.New(backoffMin, backoffMax),
	}
}

// Run keeps the source subscription open until ctx ends.
func (s *Service) Run(ctx context.Context, handler interfaces.MessageHandler) error {
	for {
		err := s.source.Listen(ctx, func() {
			s.backoff.Reset()
			s.logger.Info("feed_reconnected", "Relaying order changes", "", map[string]interface{}{"targets": len(s.publishers)})
		}, handler)

		if ctx.Err() != nil {
			return nil
		}

		details := map[string]interface{}{}
		if err != nil {
			details["error"] = err.Error()
		}
		s.logger.Warn("feed_disconnected", "Change source lost, reconnecting", "", details)

		if !s.backoff.Wait(ctx) {
			return nil
		}
	}
}

// Forward publishes one change to all targets. A failing target does not
// stop the others.
func (s *Service) Forward(ctx context.Context, ev domain.ChangeEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode change: %w", err)
	}

	var errs []error
	for name, p := range s.publishers {
		if err := p.PublishChange(ctx, body); err != nil {
			s.logger.Error("relay_publish_failed", fmt.Sprintf("Failed to publish %s to %s", ev.Type, name), "", map[string]interface{}{
				"order_id": ev.Payload.ID.String(),
			}, err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	s.logger.Debug("change_relayed", fmt.Sprintf("Relayed %s for order %s", ev.Type, ev.Payload.ID), "", nil)
	return errors.Join(errs...)
}
