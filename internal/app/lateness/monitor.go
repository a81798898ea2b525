package lateness

import (
	"time"

	"github.com/YelzhanWeb/kitchen-sync/internal/domain"
)

// DefaultThreshold is how long an order may wait for the kitchen to accept it.
const DefaultThreshold = 180 * time.Second

// Monitor flags orders that are late to start. Orders already in
// preparation or beyond are never late by this rule.
type Monitor struct {
	Threshold time.Duration
}

func New(threshold time.Duration) Monitor {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return Monitor{Threshold: threshold}
}

func (m Monitor) IsLate(order domain.Order, now time.Time) bool {
	if order.Status != domain.StatusPending {
		return false
	}
	return now.Sub(order.CreatedAt) >= m.threshold()
}

// Severity is critical once the wait reaches twice the threshold.
func (m Monitor) Severity(order domain.Order, now time.Time) domain.LateSeverity {
	if !m.IsLate(order, now) {
		return domain.SeverityNone
	}
	if now.Sub(order.CreatedAt) >= 2*m.threshold() {
		return domain.SeverityCritical
	}
	return domain.SeverityLate
}

func (m Monitor) threshold() time.Duration {
	if m.Threshold <= 0 {
		return DefaultThreshold
	}
	return m.Threshold
}

func IsLate(order domain.Order, now time.Time) bool {
	return Monitor{}.IsLate(order, now)
}
