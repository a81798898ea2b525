package interfaces

import (
	"context"
	"time"

	"github.com/YelzhanWeb/kitchen-sync/internal/domain"
)

// AlertMessage is the wire form of an alert published to listeners.
type AlertMessage struct {
	Kind        domain.AlertKind `json:"kind"`
	OrderID     string           `json:"order_id"`
	OrderNumber string           `json:"order_number"`
	TableNo     *string          `json:"table_no,omitempty"`
	Status      domain.Status    `json:"status"`
	OccurredAt  time.Time        `json:"occurred_at"`
}

type MessageHandler func(ctx context.Context, body []byte) error

// ChangeFeed is one transport for ledger row changes. Listen blocks for the
// lifetime of a single subscription and returns when it is lost; onReady
// fires once the subscription is live.
type ChangeFeed interface {
	Listen(ctx context.Context, onReady func(), handler MessageHandler) error
}

type ChangePublisher interface {
	PublishChange(ctx context.Context, body []byte) error
}

type AlertPublisher interface {
	PublishAlert(ctx context.Context, msg AlertMessage) error
}

type AlertConsumer interface {
	ConsumeAlerts(ctx context.Context, handler MessageHandler) error
}

// AlertGate receives alert triggers. Notify must not block the caller.
type AlertGate interface {
	Notify(kind domain.AlertKind, order domain.Order)
}
