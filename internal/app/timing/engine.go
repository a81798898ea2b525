// Package timing derives per-item fire times so that every item of an order
// finishes together with its longest-cooking ("anchor") item.
package timing

import (
	"sort"
	"time"

	"github.com/YelzhanWeb/kitchen-sync/internal/domain"
)

// PrepTimes resolves the preparation time of a line item in minutes.
type PrepTimes interface {
	PrepMinutes(item domain.OrderItem) int
}

// PrepTimeFunc adapts a plain function to PrepTimes.
type PrepTimeFunc func(item domain.OrderItem) int

func (f PrepTimeFunc) PrepMinutes(item domain.OrderItem) int { return f(item) }

type Engine struct {
	// FireGrace splits "fire" from "cooking": an item whose fire time has
	// passed by at least FireGrace reports cooking. Zero keeps them collapsed.
	FireGrace time.Duration
}

// Schedule computes the kitchen ticket for order at now.
//
// The start time is accepted_at, or now for an order the kitchen has not
// accepted yet. The provisional start is recomputed on every call, so nothing
// from a pre-acceptance evaluation survives once accepted_at is set.
func (e Engine) Schedule(order domain.Order, prep PrepTimes, now time.Time) domain.Ticket {
	ticket := domain.Ticket{
		OrderID:      order.ID,
		OrderNumber:  order.OrderNumber,
		Status:       order.Status,
		TableNo:      order.TableNo,
		CustomerNote: order.CustomerNote,
		CreatedAt:    order.CreatedAt,
		Items:        []domain.KdsItem{},
	}
	if len(order.Items) == 0 {
		return ticket
	}

	start, provisional := now, true
	if order.AcceptedAt != nil {
		start, provisional = *order.AcceptedAt, false
	}

	minutes := make([]int, len(order.Items))
	anchor := 0
	for i, item := range order.Items {
		m := prep.PrepMinutes(item)
		if m < 0 {
			m = 0
		}
		minutes[i] = m
		if m > anchor {
			anchor = m
		}
	}
	target := start.Add(time.Duration(anchor) * time.Minute)

	items := make([]domain.KdsItem, len(order.Items))
	for i, item := range order.Items {
		fireAt := target.Add(-time.Duration(minutes[i]) * time.Minute)
		items[i] = domain.KdsItem{
			Name:            item.Name,
			Quantity:        item.Quantity,
			PrepTimeMinutes: minutes[i],
			FireAt:          fireAt,
			Status:          e.itemStatus(order.Status, fireAt, now),
			Modifiers:       item.Modifiers,
			CustomerNote:    item.CustomerNote,
		}
	}
	sort.SliceStable(items, func(a, b int) bool {
		return items[a].FireAt.Before(items[b].FireAt)
	})

	ticket.StartTime = start
	ticket.TargetFinish = target
	ticket.AnchorMinutes = anchor
	ticket.Provisional = provisional
	ticket.Items = items
	return ticket
}

func (e Engine) itemStatus(status domain.Status, fireAt, now time.Time) domain.ItemStatus {
	switch {
	case status == domain.StatusReady || status == domain.StatusCompleted:
		return domain.ItemDone
	case now.Before(fireAt):
		return domain.ItemHold
	case e.FireGrace > 0 && !now.Before(fireAt.Add(e.FireGrace)):
		return domain.ItemCooking
	default:
		return domain.ItemFire
	}
}

// Schedule runs the default engine, which reports fire and cooking as one state.
func Schedule(order domain.Order, prep PrepTimes, now time.Time) domain.Ticket {
	return Engine{}.Schedule(order, prep, now)
}
