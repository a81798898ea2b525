package interfaces

import (
	"context"

	"github.com/YelzhanWeb/kitchen-sync/internal/domain"
	"github.com/google/uuid"
)

type StatusChanger interface {
	RequestStatusChange(ctx context.Context, orderID uuid.UUID, status domain.Status, fields domain.StatusFields) error
}

type BoardService interface {
	Latest() domain.Board
	Subscribe(subscriberID string) <-chan domain.Board
	Unsubscribe(subscriberID string)
}

type TrackingService interface {
	TicketByNumber(orderNumber string) (*domain.Ticket, error)
	Summary() map[string]int
}

// RelayService republishes ledger changes to the brokers viewers listen on.
type RelayService interface {
	Forward(ctx context.Context, ev domain.ChangeEvent) error
}
