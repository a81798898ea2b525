package orderset

import (
	"context"
	"fmt"
	"time"

	"github.com/YelzhanWeb/kitchen-sync/internal/adapter/logger"
	"github.com/YelzhanWeb/kitchen-sync/internal/domain"
	"github.com/YelzhanWeb/kitchen-sync/internal/interfaces"
	"github.com/google/uuid"
)

// Cache is the LocalOrderCache: status changes are applied to the set
// first and then sent to the ledger. A failed command is undone by a full
// reconcile, not by a local rollback.
type Cache struct {
	sync           *Sync
	ledger         interfaces.OrderLedger
	logger         logger.Logger
	commandTimeout time.Duration
}

func NewCache(sync *Sync, ledger interfaces.OrderLedger, logger logger.Logger, commandTimeout time.Duration) *Cache {
	if commandTimeout <= 0 {
		commandTimeout = 10 * time.Second
	}
	return &Cache{
		sync:           sync,
		ledger:         ledger,
		logger:         logger,
		commandTimeout: commandTimeout,
	}
}

// RequestStatusChange moves one order to status. It returns
// ErrCommandInFlight if another change for the same order has not finished.
func (c *Cache) RequestStatusChange(ctx context.Context, orderID uuid.UUID, status domain.Status, fields domain.StatusFields) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidStatus, status)
	}

	set := c.sync.set
	if !set.BeginCommand(orderID) {
		return fmt.Errorf("%w: order %s", domain.ErrCommandInFlight, orderID)
	}

	now := c.sync.now()
	if status == domain.StatusPreparing && fields.AcceptedAt == nil {
		fields.AcceptedAt = &now
	}

	if err := set.applyLocal(orderID, status, fields, now); err != nil {
		set.EndCommand(orderID)
		return err
	}

	cmdCtx, cancel := context.WithTimeout(ctx, c.commandTimeout)
	err := c.ledger.UpdateStatus(cmdCtx, orderID, status, fields)
	cancel()
	set.EndCommand(orderID)

	if err != nil {
		c.logger.Error("command_failed", fmt.Sprintf("Status change to %s failed", status), "", map[string]interface{}{
			"order_id": orderID.String(),
			"status":   string(status),
		}, err)

		if rerr := c.sync.Reconcile(context.WithoutCancel(ctx)); rerr != nil {
			c.logger.Warn("reconcile_failed", "Re-fetch after failed command failed", "", map[string]interface{}{"error": rerr.Error()})
		}
		return fmt.Errorf("failed to change status of order %s: %w", orderID, err)
	}

	c.logger.Info("status_changed", fmt.Sprintf("Order %s moved to %s", orderID, status), "", map[string]interface{}{
		"order_id": orderID.String(),
		"actor":    fields.ActorID,
	})
	return nil
}
