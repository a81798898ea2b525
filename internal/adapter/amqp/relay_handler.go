package amqp

import (
	"context"

	"github.com/YelzhanWeb/kitchen-sync/internal/adapter/logger"
	"github.com/YelzhanWeb/kitchen-sync/internal/domain"
	"github.com/YelzhanWeb/kitchen-sync/internal/interfaces"
)

// RelayHandler validates raw change notifications before they are relayed.
type RelayHandler struct {
	service interfaces.RelayService
	logger  logger.Logger
}

func NewRelayHandler(service interfaces.RelayService, logger logger.Logger) *RelayHandler {
	return &RelayHandler{
		service: service,
		logger:  logger,
	}
}

// HandleChange drops malformed notifications so viewers never see them.
func (h *RelayHandler) HandleChange(ctx context.Context, body []byte) error {
	ev, err := domain.DecodeChangeEvent(body)
	if err != nil {
		h.logger.Warn("payload_malformed", "Not relaying change notification", "", map[string]interface{}{"error": err.Error()})
		return nil
	}

	return h.service.Forward(ctx, ev)
}
