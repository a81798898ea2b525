package interfaces

import (
	"context"

	"github.com/YelzhanWeb/kitchen-sync/internal/domain"
	"github.com/google/uuid"
)

// OrderLedger is the authoritative order store.
type OrderLedger interface {
	// ListActive returns orders in the given statuses, oldest first.
	ListActive(ctx context.Context, statuses []domain.Status) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status domain.Status, fields domain.StatusFields) error
}

type PrepTimeRepository interface {
	ListPrepTimes(ctx context.Context) ([]domain.PrepTimeEntry, error)
}

// PrepTimeCache holds a copy of the catalog that may be stale.
type PrepTimeCache interface {
	Load(ctx context.Context) ([]domain.PrepTimeEntry, bool, error)
	Store(ctx context.Context, entries []domain.PrepTimeEntry) error
}
