package relay

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/YelzhanWeb/kitchen-sync/internal/adapter/logger"
	"github.com/YelzhanWeb/kitchen-sync/internal/domain"
	"github.com/YelzhanWeb/kitchen-sync/internal/interfaces"
	"github.com/google/uuid"
)

type mockPublisher struct {
	bodies [][]byte
	err    error
}

func (m *mockPublisher) PublishChange(_ context.Context, body []byte) error {
	m.bodies = append(m.bodies, body)
	return m.err
}

type mockFeed struct {
	calls      int
	ListenFunc func(ctx context.Context, onReady func(), handler interfaces.MessageHandler) error
}

func (m *mockFeed) Listen(ctx context.Context, onReady func(), handler interfaces.MessageHandler) error {
	m.calls++
	return m.ListenFunc(ctx, onReady, handler)
}

func TestForwardPublishesToAllTargets(t *testing.T) {
	ok := &mockPublisher{}
	broken := &mockPublisher{err: errors.New("channel closed")}
	svc := NewService(nil, map[string]interfaces.ChangePublisher{"rabbitmq": ok, "nats": broken}, logger.NewNop(), time.Millisecond, time.Millisecond)

	ev := domain.ChangeEvent{Type: domain.EventUpdate, Payload: domain.Order{ID: uuid.New(), Status: domain.StatusReady}}
	err := svc.Forward(context.Background(), ev)
	if err == nil {
		t.Fatal("expected error from broken target")
	}

	if len(ok.bodies) != 1 || len(broken.bodies) != 1 {
		t.Fatalf("published %d/%d, want 1/1", len(ok.bodies), len(broken.bodies))
	}
	got, err := domain.DecodeChangeEvent(ok.bodies[0])
	if err != nil {
		t.Fatalf("relayed body does not decode: %v", err)
	}
	if got.Type != ev.Type || got.Payload.ID != ev.Payload.ID {
		t.Errorf("relayed %+v, want %+v", got, ev)
	}
}

func TestRunReconnects(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feed := &mockFeed{}
	feed.ListenFunc = func(ctx context.Context, onReady func(), handler interfaces.MessageHandler) error {
		if feed.calls < 3 {
			return errors.New("connection reset")
		}
		onReady()
		body, _ := json.Marshal(domain.ChangeEvent{Type: domain.EventDelete, Payload: domain.Order{ID: uuid.New()}})
		_ = handler(ctx, body)
		cancel()
		<-ctx.Done()
		return ctx.Err()
	}

	svc := NewService(feed, nil, logger.NewNop(), time.Millisecond, 2*time.Millisecond)
	handled := 0
	err := svc.Run(ctx, func(context.Context, []byte) error {
		handled++
		return nil
	})

	if err != nil {
		t.Errorf("Run = %v", err)
	}
	if feed.calls != 3 {
		t.Errorf("listen attempts = %d, want 3", feed.calls)
	}
	if handled != 1 {
		t.Errorf("handled = %d, want 1", handled)
	}
}
