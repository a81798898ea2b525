package domain

import (
	"time"

	"github.com/google/uuid"
)

// KdsItem is the kitchen view of one line item. It is derived on every tick
// and never stored.
type KdsItem struct {
	Name            string     `json:"name"`
	Quantity        int        `json:"quantity"`
	PrepTimeMinutes int        `json:"prep_time_minutes"`
	FireAt          time.Time  `json:"fire_at"`
	Status          ItemStatus `json:"status"`
	Modifiers       []Modifier `json:"modifiers,omitempty"`
	CustomerNote    *string    `json:"customer_note,omitempty"`
}

// Ticket is the kitchen-facing view of one order.
type Ticket struct {
	OrderID       uuid.UUID    `json:"order_id"`
	OrderNumber   string       `json:"order_number"`
	Status        Status       `json:"status"`
	TableNo       *string      `json:"table_no,omitempty"`
	CustomerNote  *string      `json:"customer_note,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	StartTime     time.Time    `json:"start_time"`
	TargetFinish  time.Time    `json:"target_finish"`
	AnchorMinutes int          `json:"anchor_minutes"`
	Provisional   bool         `json:"provisional"`
	Late          bool         `json:"late"`
	Severity      LateSeverity `json:"severity"`
	Items         []KdsItem    `json:"items"`
}

// Board is the snapshot handed to renderers once per tick.
type Board struct {
	GeneratedAt time.Time `json:"generated_at"`
	Connected   bool      `json:"connected"`
	Tickets     []Ticket  `json:"tickets"`
}
