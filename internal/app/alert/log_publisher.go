package alert

import (
	"context"
	"fmt"

	"github.com/YelzhanWeb/kitchen-sync/internal/adapter/logger"
	"github.com/YelzhanWeb/kitchen-sync/internal/interfaces"
)

// LogPublisher writes alerts to the service log. It is the sink used when
// no broker is configured.
type LogPublisher struct {
	logger logger.Logger
}

func NewLogPublisher(logger logger.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) PublishAlert(_ context.Context, msg interfaces.AlertMessage) error {
	details := map[string]interface{}{
		"kind":         string(msg.Kind),
		"order_id":     msg.OrderID,
		"order_number": msg.OrderNumber,
		"status":       string(msg.Status),
	}
	if msg.TableNo != nil {
		details["table_no"] = *msg.TableNo
	}
	p.logger.Info("alert", fmt.Sprintf("Order %s: %s", msg.OrderNumber, msg.Kind), "", details)
	return nil
}
