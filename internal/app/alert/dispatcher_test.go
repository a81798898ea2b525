package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/YelzhanWeb/kitchen-sync/internal/adapter/logger"
	"github.com/YelzhanWeb/kitchen-sync/internal/domain"
	"github.com/YelzhanWeb/kitchen-sync/internal/interfaces"
	"github.com/google/uuid"
)

type mockPublisher struct {
	mu       sync.Mutex
	messages []interfaces.AlertMessage
	err      error
	got      chan struct{}
}

func newMockPublisher() *mockPublisher {
	return &mockPublisher{got: make(chan struct{}, 16)}
}

func (m *mockPublisher) PublishAlert(_ context.Context, msg interfaces.AlertMessage) error {
	m.mu.Lock()
	m.messages = append(m.messages, msg)
	m.mu.Unlock()
	m.got <- struct{}{}
	return m.err
}

func (m *mockPublisher) Messages() []interfaces.AlertMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]interfaces.AlertMessage(nil), m.messages...)
}

func testOrder() domain.Order {
	table := "4"
	return domain.Order{ID: uuid.New(), OrderNumber: "K-12", Status: domain.StatusPending, TableNo: &table}
}

func TestRoleKinds(t *testing.T) {
	tests := []struct {
		role Role
		want []domain.AlertKind
	}{
		{RoleKitchen, []domain.AlertKind{domain.AlertOrderCreated, domain.AlertOrderBecameLate}},
		{RoleWaiter, []domain.AlertKind{domain.AlertOrderReady}},
		{RoleTracker, []domain.AlertKind{domain.AlertOrderReady}},
	}
	for _, tt := range tests {
		got := tt.role.Kinds()
		if len(got) != len(tt.want) {
			t.Errorf("%s kinds = %v, want %v", tt.role, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("%s kinds = %v, want %v", tt.role, got, tt.want)
			}
		}
	}

	if _, err := ParseRole("manager"); err == nil {
		t.Error("ParseRole(manager) should fail")
	}
}

func TestDispatcherFiltersKinds(t *testing.T) {
	pub := newMockPublisher()
	d := NewDispatcher(pub, logger.NewNop(), 8, RoleWaiter.Kinds()...)

	o := testOrder()
	d.Notify(domain.AlertOrderCreated, o)
	d.Notify(domain.AlertOrderBecameLate, o)
	d.Notify(domain.AlertOrderReady, o)

	if got := len(d.queue); got != 1 {
		t.Fatalf("queued %d alerts, want 1", got)
	}
	msg := <-d.queue
	if msg.Kind != domain.AlertOrderReady || msg.OrderNumber != "K-12" || msg.OrderID != o.ID.String() {
		t.Errorf("unexpected message %+v", msg)
	}
}

func TestNotifyDropsWhenFull(t *testing.T) {
	var buf bytes.Buffer
	d := NewDispatcher(newMockPublisher(), logger.NewWithWriter("test", "DEBUG", &buf), 2)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			d.Notify(domain.AlertOrderCreated, testOrder())
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on a full queue")
	}

	if d.Dropped() != 3 {
		t.Errorf("dropped = %d, want 3", d.Dropped())
	}

	var entry map[string]interface{}
	if err := json.NewDecoder(&buf).Decode(&entry); err != nil {
		t.Fatalf("decode log: %v", err)
	}
	if entry["action"] != "alert_dropped" {
		t.Errorf("action = %v, want alert_dropped", entry["action"])
	}
}

func TestRunPublishesWithoutRetry(t *testing.T) {
	pub := newMockPublisher()
	pub.err = errors.New("broker unavailable")
	d := NewDispatcher(pub, logger.NewNop(), 4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	d.Notify(domain.AlertOrderReady, testOrder())
	select {
	case <-pub.got:
	case <-time.After(time.Second):
		t.Fatal("alert was not published")
	}

	select {
	case <-pub.got:
		t.Error("failed alert was retried")
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run = %v", err)
	}
	if n := len(pub.Messages()); n != 1 {
		t.Errorf("published %d times, want 1", n)
	}
}
