package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/YelzhanWeb/kitchen-sync/internal/domain"
	"github.com/YelzhanWeb/kitchen-sync/internal/interfaces"
)

type ledgerRepository struct {
	db DB
}

func NewLedgerRepository(db DB) interfaces.OrderLedger {
	return &ledgerRepository{db: db}
}

const orderColumns = `id, order_number, created_at, accepted_at, accepted_by, status,
	items, table_no, customer_note, total_amount::text, updated_at`

func (r *ledgerRepository) ListActive(ctx context.Context, statuses []domain.Status) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE status = ANY($1)
		ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query, statusStrings(statuses))
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read orders: %w", err)
	}

	return orders, nil
}

// UpdateStatus moves an order only if its stored status may precede the new
// one, so two kitchens racing on the same order cannot both win.
func (r *ledgerRepository) UpdateStatus(ctx context.Context, orderID uuid.UUID, status domain.Status, fields domain.StatusFields) error {
	prev := domain.PreviousStatuses(status)
	if len(prev) == 0 {
		return fmt.Errorf("%w: nothing transitions to %s", domain.ErrInvalidStatusTransition, status)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var acceptedAt *time.Time
	var acceptedBy *string
	if status == domain.StatusPreparing {
		acceptedAt = fields.AcceptedAt
		if fields.ActorID != "" {
			acceptedBy = &fields.ActorID
		}
	}

	query := `
		UPDATE orders
		SET status = $1,
		    updated_at = now(),
		    accepted_at = COALESCE(accepted_at, $2, CASE WHEN $1 = 'preparing' THEN now() END),
		    accepted_by = COALESCE(accepted_by, $3)
		WHERE id = $4 AND status = ANY($5)
	`
	tag, err := tx.Exec(ctx, query, string(status), acceptedAt, acceptedBy, orderID, statusStrings(prev))
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}

	if tag.RowsAffected() == 0 {
		var current string
		err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, orderID).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
		}
		if err != nil {
			return fmt.Errorf("failed to read order status: %w", err)
		}
		return fmt.Errorf("%w: order %s is %s", domain.ErrTransitionRejected, orderID, current)
	}

	changedBy := fields.ActorID
	if changedBy == "" {
		changedBy = "kds"
	}
	logQuery := `
		INSERT INTO order_status_log (order_id, status, changed_by, changed_at)
		VALUES ($1, $2, $3, now())
	`
	if _, err := tx.Exec(ctx, logQuery, orderID, string(status), changedBy); err != nil {
		return fmt.Errorf("failed to log status: %w", err)
	}

	return tx.Commit(ctx)
}

func scanOrder(row Row) (domain.Order, error) {
	var (
		o      domain.Order
		status string
		items  []byte
		total  string
	)
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.CreatedAt, &o.AcceptedAt, &o.AcceptedBy, &status,
		&items, &o.TableNo, &o.CustomerNote, &total, &o.UpdatedAt,
	)
	if err != nil {
		return domain.Order{}, fmt.Errorf("failed to scan order: %w", err)
	}

	// неизвестный статус отсеет валидация выше
	o.Status = domain.Status(status)

	if len(items) > 0 {
		if err := json.Unmarshal(items, &o.Items); err != nil {
			return domain.Order{}, fmt.Errorf("failed to decode items of order %s: %w", o.ID, err)
		}
	}
	if o.Items == nil {
		o.Items = []domain.OrderItem{}
	}

	o.TotalAmount, err = decimal.NewFromString(total)
	if err != nil {
		return domain.Order{}, fmt.Errorf("failed to parse total of order %s: %w", o.ID, err)
	}

	return o, nil
}

func statusStrings(statuses []domain.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
