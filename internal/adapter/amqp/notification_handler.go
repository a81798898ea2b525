package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/YelzhanWeb/kitchen-sync/internal/adapter/logger"
	"github.com/YelzhanWeb/kitchen-sync/internal/interfaces"
)

// NotificationHandler prints kitchen alerts for the alert-subscriber mode.
type NotificationHandler struct {
	logger logger.Logger
	out    io.Writer
}

func NewNotificationHandler(logger logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		logger: logger,
		out:    os.Stdout,
	}
}

func (h *NotificationHandler) HandleAlert(ctx context.Context, body []byte) error {
	var msg interfaces.AlertMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		h.logger.Error("message_parse_failed", "Failed to parse alert", "", nil, err)
		return err
	}

	h.logger.Debug("alert_received", fmt.Sprintf("Received %s for order %s", msg.Kind, msg.OrderNumber),
		msg.OrderID, map[string]interface{}{
			"order_number": msg.OrderNumber,
			"status":       string(msg.Status),
		})

	table := "-"
	if msg.TableNo != nil {
		table = *msg.TableNo
	}
	fmt.Fprintf(h.out, "[%s] %s: order %s (table %s) is %s\n",
		msg.OccurredAt.Format("15:04:05"), msg.Kind, msg.OrderNumber, table, msg.Status)

	return nil
}
