// Package alert turns order events into alert messages for the sound and
// notification layer. Delivery is best effort: a full queue drops.
package alert

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/YelzhanWeb/kitchen-sync/internal/adapter/logger"
	"github.com/YelzhanWeb/kitchen-sync/internal/domain"
	"github.com/YelzhanWeb/kitchen-sync/internal/interfaces"
)

type Role string

const (
	RoleKitchen Role = "kitchen"
	RoleWaiter  Role = "waiter"
	RoleTracker Role = "tracker"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleKitchen, RoleWaiter, RoleTracker:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Kinds lists the alerts a viewer role cares about.
func (r Role) Kinds() []domain.AlertKind {
	switch r {
	case RoleKitchen:
		return []domain.AlertKind{domain.AlertOrderCreated, domain.AlertOrderBecameLate}
	case RoleWaiter, RoleTracker:
		return []domain.AlertKind{domain.AlertOrderReady}
	default:
		return nil
	}
}

// Dispatcher implements AlertGate over a bounded queue drained by Run.
type Dispatcher struct {
	publisher interfaces.AlertPublisher
	logger    logger.Logger
	kinds     map[domain.AlertKind]bool
	queue     chan interfaces.AlertMessage
	dropped   atomic.Uint64
	now       func() time.Time
}

// NewDispatcher forwards only the given kinds; none means all of them.
func NewDispatcher(publisher interfaces.AlertPublisher, logger logger.Logger, size int, kinds ...domain.AlertKind) *Dispatcher {
	if size <= 0 {
		size = 64
	}
	var filter map[domain.AlertKind]bool
	if len(kinds) > 0 {
		filter = make(map[domain.AlertKind]bool, len(kinds))
		for _, k := range kinds {
			filter[k] = true
		}
	}
	return &Dispatcher{
		publisher: publisher,
		logger:    logger,
		kinds:     filter,
		queue:     make(chan interfaces.AlertMessage, size),
		now:       time.Now,
	}
}

// Notify never blocks.
func (d *Dispatcher) Notify(kind domain.AlertKind, order domain.Order) {
	if d.kinds != nil && !d.kinds[kind] {
		return
	}

	msg := interfaces.AlertMessage{
		Kind:        kind,
		OrderID:     order.ID.String(),
		OrderNumber: order.OrderNumber,
		TableNo:     order.TableNo,
		Status:      order.Status,
		OccurredAt:  d.now().UTC(),
	}

	select {
	case d.queue <- msg:
	default:
		d.dropped.Add(1)
		d.logger.Warn("alert_dropped", fmt.Sprintf("Alert queue full, dropping %s", kind), "", map[string]interface{}{
			"order_number": order.OrderNumber,
		})
	}
}

func (d *Dispatcher) Dropped() uint64 { return d.dropped.Load() }

// Run publishes queued alerts until ctx ends. Failures are logged and the
// alert is not retried.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-d.queue:
			if err := d.publisher.PublishAlert(ctx, msg); err != nil {
				d.logger.Error("alert_publish_failed", fmt.Sprintf("Failed to publish %s", msg.Kind), "", map[string]interface{}{
					"order_number": msg.OrderNumber,
				}, err)
			}
		}
	}
}
