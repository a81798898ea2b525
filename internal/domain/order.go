package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order represents a kiosk order as stored in the ledger
type Order struct {
	ID           uuid.UUID       `json:"id"`
	OrderNumber  string          `json:"order_number"`
	CreatedAt    time.Time       `json:"created_at"`
	AcceptedAt   *time.Time      `json:"accepted_at,omitempty"`
	AcceptedBy   *string         `json:"accepted_by,omitempty"`
	Status       Status          `json:"status"`
	Items        []OrderItem     `json:"items"`
	TableNo      *string         `json:"table_no,omitempty"`
	CustomerNote *string         `json:"customer_note,omitempty"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// OrderItem represents a line item in an order
type OrderItem struct {
	ProductID    *uuid.UUID `json:"product_id,omitempty"`
	Name         string     `json:"name"`
	Quantity     int        `json:"quantity"`
	Modifiers    []Modifier `json:"modifiers,omitempty"`
	CustomerNote *string    `json:"customer_note,omitempty"`
}

type Modifier struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// StatusFields carries the optional columns written together with a status change.
type StatusFields struct {
	AcceptedAt *time.Time
	ActorID    string
}

// Validate checks the fields every change-feed payload must carry.
func (o *Order) Validate() error {
	if o.ID == uuid.Nil {
		return fmt.Errorf("%w: missing id", ErrMalformedPayload)
	}
	if !o.Status.Valid() {
		return fmt.Errorf("%w: order %s has status %q", ErrMalformedPayload, o.ID, o.Status)
	}
	return nil
}

// TransitionTo moves the order forward and stamps acceptance on the first
// entry into preparing.
func (o *Order) TransitionTo(newStatus Status, fields StatusFields, now time.Time) error {
	if !CanTransition(o.Status, newStatus) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, o.Status, newStatus)
	}

	o.Status = newStatus
	o.UpdatedAt = now

	if newStatus == StatusPreparing && o.AcceptedAt == nil {
		at := now
		if fields.AcceptedAt != nil {
			at = *fields.AcceptedAt
		}
		o.AcceptedAt = &at
		if fields.ActorID != "" {
			actor := fields.ActorID
			o.AcceptedBy = &actor
		}
	}

	return nil
}

// Merge folds a server copy into the local one. Identity is kept, server
// fields win on conflict, and local optional fields the server copy does not
// carry yet are preserved.
func (o *Order) Merge(server Order) {
	o.OrderNumber = server.OrderNumber
	o.Status = server.Status
	o.TotalAmount = server.TotalAmount

	if !server.CreatedAt.IsZero() {
		o.CreatedAt = server.CreatedAt
	}
	if !server.UpdatedAt.IsZero() {
		o.UpdatedAt = server.UpdatedAt
	}
	if server.Items != nil {
		o.Items = cloneItems(server.Items)
	}
	if server.TableNo != nil {
		o.TableNo = cloneString(server.TableNo)
	}
	if server.CustomerNote != nil {
		o.CustomerNote = cloneString(server.CustomerNote)
	}
	if server.AcceptedAt != nil {
		at := *server.AcceptedAt
		o.AcceptedAt = &at
	}
	if server.AcceptedBy != nil {
		o.AcceptedBy = cloneString(server.AcceptedBy)
	}

	// accepted_at only exists once the kitchen has started.
	if o.Status == StatusPending {
		o.AcceptedAt = nil
		o.AcceptedBy = nil
	}
}

// Clone returns a deep copy safe to hand to readers outside the set lock.
func (o Order) Clone() Order {
	c := o
	if o.AcceptedAt != nil {
		at := *o.AcceptedAt
		c.AcceptedAt = &at
	}
	c.AcceptedBy = cloneString(o.AcceptedBy)
	c.TableNo = cloneString(o.TableNo)
	c.CustomerNote = cloneString(o.CustomerNote)
	c.Items = cloneItems(o.Items)
	return c
}

func cloneItems(items []OrderItem) []OrderItem {
	if items == nil {
		return nil
	}
	out := make([]OrderItem, len(items))
	for i, item := range items {
		out[i] = item
		if item.ProductID != nil {
			id := *item.ProductID
			out[i].ProductID = &id
		}
		out[i].CustomerNote = cloneString(item.CustomerNote)
		if item.Modifiers != nil {
			out[i].Modifiers = append([]Modifier(nil), item.Modifiers...)
		}
	}
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
