package domain

import "fmt"

// Status is the lifecycle state of an order in the ledger.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// ActiveStatuses are the statuses kept in the kitchen working set.
var ActiveStatuses = []Status{StatusPending, StatusPreparing}

var validTransitions = map[Status][]Status{
	StatusPending:   {StatusPreparing, StatusCancelled},
	StatusPreparing: {StatusReady, StatusCancelled},
	StatusReady:     {StatusCompleted},
	StatusCompleted: {},
	StatusCancelled: {},
}

// ParseStatus converts a raw ledger value. Unknown values are rejected.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

func (s Status) Valid() bool {
	_, ok := validTransitions[s]
	return ok
}

// IsActive reports whether the order still needs kitchen attention.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusPreparing
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransition checks the forward-only status graph.
func CanTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// PreviousStatuses lists the statuses from which to is reachable in one step.
func PreviousStatuses(to Status) []Status {
	var prev []Status
	for _, from := range []Status{StatusPending, StatusPreparing, StatusReady, StatusCompleted, StatusCancelled} {
		if CanTransition(from, to) {
			prev = append(prev, from)
		}
	}
	return prev
}

// ItemStatus is the cooking state of one line item on a kitchen ticket.
type ItemStatus string

const (
	ItemHold    ItemStatus = "hold"
	ItemFire    ItemStatus = "fire"
	ItemCooking ItemStatus = "cooking"
	ItemDone    ItemStatus = "done"
)

// LateSeverity grades how long a pending order has been waiting.
type LateSeverity string

const (
	SeverityNone     LateSeverity = "none"
	SeverityLate     LateSeverity = "late"
	SeverityCritical LateSeverity = "critical"
)

// AlertKind names the events handed to the alert collaborator.
type AlertKind string

const (
	AlertOrderCreated    AlertKind = "order_created"
	AlertOrderBecameLate AlertKind = "order_became_late"
	AlertOrderReady      AlertKind = "order_ready"
)
