package orderset

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/YelzhanWeb/kitchen-sync/internal/adapter/logger"
	"github.com/YelzhanWeb/kitchen-sync/internal/domain"
	"github.com/YelzhanWeb/kitchen-sync/internal/interfaces"
	"github.com/google/uuid"
)

// MockLedger is an in-memory OrderLedger.
type MockLedger struct {
	mu               sync.Mutex
	orders           map[uuid.UUID]domain.Order
	listCalls        int
	ListActiveFunc   func(ctx context.Context, statuses []domain.Status) ([]domain.Order, error)
	UpdateStatusFunc func(ctx context.Context, id uuid.UUID, status domain.Status, fields domain.StatusFields) error
}

func NewMockLedger(orders ...domain.Order) *MockLedger {
	m := &MockLedger{orders: make(map[uuid.UUID]domain.Order)}
	for _, o := range orders {
		m.orders[o.ID] = o
	}
	return m
}

func (m *MockLedger) Put(o domain.Order) {
	m.mu.Lock()
	m.orders[o.ID] = o
	m.mu.Unlock()
}

func (m *MockLedger) ListCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls
}

func (m *MockLedger) ListActive(ctx context.Context, statuses []domain.Status) ([]domain.Order, error) {
	m.mu.Lock()
	m.listCalls++
	m.mu.Unlock()

	if m.ListActiveFunc != nil {
		return m.ListActiveFunc(ctx, statuses)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Order
	for _, o := range m.orders {
		for _, s := range statuses {
			if o.Status == s {
				out = append(out, o.Clone())
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MockLedger) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status, fields domain.StatusFields) error {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, id, status, fields)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if err := o.TransitionTo(status, fields, time.Now()); err != nil {
		return domain.ErrTransitionRejected
	}
	m.orders[id] = o
	return nil
}

type recordedAlert struct {
	Kind    domain.AlertKind
	OrderID uuid.UUID
}

// MockAlertGate records every Notify call.
type MockAlertGate struct {
	mu     sync.Mutex
	alerts []recordedAlert
}

func (m *MockAlertGate) Notify(kind domain.AlertKind, order domain.Order) {
	m.mu.Lock()
	m.alerts = append(m.alerts, recordedAlert{Kind: kind, OrderID: order.ID})
	m.mu.Unlock()
}

func (m *MockAlertGate) Count(kind domain.AlertKind, id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, a := range m.alerts {
		if a.Kind == kind && a.OrderID == id {
			n++
		}
	}
	return n
}

func (m *MockAlertGate) Total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.alerts)
}

// MockFeed hands each Listen call a session that ends when Drop is called.
type MockFeed struct {
	mu         sync.Mutex
	sessions   int
	drop       chan struct{}
	messages   chan []byte
	ListenFunc func(ctx context.Context, onReady func(), handler interfaces.MessageHandler) error
}

func NewMockFeed() *MockFeed {
	return &MockFeed{drop: make(chan struct{}, 1), messages: make(chan []byte, 16)}
}

func (f *MockFeed) Listen(ctx context.Context, onReady func(), handler interfaces.MessageHandler) error {
	f.mu.Lock()
	f.sessions++
	f.mu.Unlock()

	if f.ListenFunc != nil {
		return f.ListenFunc(ctx, onReady, handler)
	}

	onReady()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.drop:
			return errors.New("connection reset")
		case body := <-f.messages:
			_ = handler(ctx, body)
		}
	}
}

func (f *MockFeed) Sessions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions
}

func (f *MockFeed) Drop() { f.drop <- struct{}{} }

func (f *MockFeed) Send(body []byte) { f.messages <- body }

func newTestSync(ledger interfaces.OrderLedger, feed interfaces.ChangeFeed, gate interfaces.AlertGate) *Sync {
	return NewSync(NewSet(), ledger, feed, gate, logger.NewNop(), SyncConfig{
		PollInterval:     10 * time.Millisecond,
		BackoffMin:       5 * time.Millisecond,
		BackoffMax:       20 * time.Millisecond,
		ReconcileTimeout: time.Second,
	})
}

var t0 = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func newOrder(number string, status domain.Status, created time.Time) domain.Order {
	o := domain.Order{
		ID:          uuid.New(),
		OrderNumber: number,
		CreatedAt:   created,
		UpdatedAt:   created,
		Status:      status,
		Items:       []domain.OrderItem{{Name: "Burger", Quantity: 1}},
	}
	if status != domain.StatusPending {
		at := created.Add(time.Minute)
		o.AcceptedAt = &at
	}
	return o
}

func withStatus(o domain.Order, status domain.Status) domain.Order {
	c := o.Clone()
	c.Status = status
	if status != domain.StatusPending && c.AcceptedAt == nil {
		at := c.CreatedAt.Add(time.Minute)
		c.AcceptedAt = &at
	}
	return c
}
