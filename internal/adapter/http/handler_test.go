package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/YelzhanWeb/kitchen-sync/internal/adapter/logger"
	"github.com/YelzhanWeb/kitchen-sync/internal/domain"
	"github.com/google/uuid"
)

type mockChanger struct {
	mu    sync.Mutex
	calls []changeCall
	err   error
}

type changeCall struct {
	id     uuid.UUID
	status domain.Status
	fields domain.StatusFields
}

func (m *mockChanger) RequestStatusChange(ctx context.Context, id uuid.UUID, status domain.Status, fields domain.StatusFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, changeCall{id: id, status: status, fields: fields})
	return m.err
}

type mockBoard struct {
	latest      domain.Board
	updates     chan domain.Board
	unsubscribe chan string
}

func (m *mockBoard) Latest() domain.Board { return m.latest }

func (m *mockBoard) Subscribe(subscriberID string) <-chan domain.Board { return m.updates }

func (m *mockBoard) Unsubscribe(subscriberID string) {
	if m.unsubscribe != nil {
		m.unsubscribe <- subscriberID
	}
}

type mockTracking struct {
	tickets map[string]domain.Ticket
	summary map[string]int
}

func (m *mockTracking) TicketByNumber(orderNumber string) (*domain.Ticket, error) {
	t, ok := m.tickets[orderNumber]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return &t, nil
}

func (m *mockTracking) Summary() map[string]int { return m.summary }

func newTestRouter(changer *mockChanger, board *mockBoard, tracking *mockTracking) http.Handler {
	log := logger.NewNop()
	var commands *CommandHandler
	if changer != nil {
		commands = NewCommandHandler(changer, log)
	}
	return NewRouter(NewBoardHandler(board, tracking, log), commands, log)
}

func TestCommandRoutes(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name       string
		path       string
		actor      string
		err        error
		wantCode   int
		wantStatus domain.Status
	}{
		{name: "accept", path: "/orders/" + id.String() + "/accept", actor: "chef-1", wantCode: http.StatusNoContent, wantStatus: domain.StatusPreparing},
		{name: "ready", path: "/orders/" + id.String() + "/ready", wantCode: http.StatusNoContent, wantStatus: domain.StatusReady},
		{name: "complete", path: "/orders/" + id.String() + "/complete", wantCode: http.StatusNoContent, wantStatus: domain.StatusCompleted},
		{name: "cancel", path: "/orders/" + id.String() + "/cancel", wantCode: http.StatusNoContent, wantStatus: domain.StatusCancelled},
		{name: "inFlight", path: "/orders/" + id.String() + "/accept", err: domain.ErrCommandInFlight, wantCode: http.StatusConflict, wantStatus: domain.StatusPreparing},
		{name: "invalidTransition", path: "/orders/" + id.String() + "/ready", err: fmt.Errorf("%w: pending -> ready", domain.ErrInvalidStatusTransition), wantCode: http.StatusConflict, wantStatus: domain.StatusReady},
		{name: "rejectedByLedger", path: "/orders/" + id.String() + "/accept", err: fmt.Errorf("update: %w", domain.ErrTransitionRejected), wantCode: http.StatusConflict, wantStatus: domain.StatusPreparing},
		{name: "notFound", path: "/orders/" + id.String() + "/cancel", err: domain.ErrOrderNotFound, wantCode: http.StatusNotFound, wantStatus: domain.StatusCancelled},
		{name: "ledgerDown", path: "/orders/" + id.String() + "/accept", err: errors.New("connection refused"), wantCode: http.StatusBadGateway, wantStatus: domain.StatusPreparing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changer := &mockChanger{err: tt.err}
			r := newTestRouter(changer, &mockBoard{}, &mockTracking{})

			req := httptest.NewRequest(http.MethodPost, tt.path, nil)
			if tt.actor != "" {
				req.Header.Set(ActorHeader, tt.actor)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d (body %s)", w.Code, tt.wantCode, w.Body.String())
			}
			if len(changer.calls) != 1 {
				t.Fatalf("calls = %d, want 1", len(changer.calls))
			}
			call := changer.calls[0]
			if call.id != id || call.status != tt.wantStatus {
				t.Errorf("call = %v %s, want %v %s", call.id, call.status, id, tt.wantStatus)
			}
			if call.fields.ActorID != tt.actor {
				t.Errorf("actor = %q, want %q", call.fields.ActorID, tt.actor)
			}
		})
	}
}

func TestCommandBadID(t *testing.T) {
	changer := &mockChanger{}
	r := newTestRouter(changer, &mockBoard{}, &mockTracking{})

	req := httptest.NewRequest(http.MethodPost, "/orders/not-a-uuid/accept", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("code = %d, want 400", w.Code)
	}
	if len(changer.calls) != 0 {
		t.Errorf("calls = %d, want 0", len(changer.calls))
	}
}

func TestReadOnlyRouterHasNoCommands(t *testing.T) {
	r := newTestRouter(nil, &mockBoard{}, &mockTracking{})

	req := httptest.NewRequest(http.MethodPost, "/orders/"+uuid.NewString()+"/accept", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound && w.Code != http.StatusMethodNotAllowed {
		t.Errorf("code = %d, want 404 or 405", w.Code)
	}
}

func TestBoardAndHealth(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	board := &mockBoard{latest: domain.Board{
		GeneratedAt: now,
		Connected:   false,
		Tickets:     []domain.Ticket{{OrderID: uuid.New(), OrderNumber: "A1", Status: domain.StatusPending}},
	}}
	r := newTestRouter(nil, board, &mockTracking{})

	req := httptest.NewRequest(http.MethodGet, "/board", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("board code = %d", w.Code)
	}
	var got domain.Board
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Tickets) != 1 || got.Tickets[0].OrderNumber != "A1" || !got.GeneratedAt.Equal(now) {
		t.Errorf("board = %+v", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var health map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if w.Code != http.StatusOK || health["connected"] != false {
		t.Errorf("health = %d %v", w.Code, health)
	}
}

func TestTicketLookup(t *testing.T) {
	tracking := &mockTracking{
		tickets: map[string]domain.Ticket{"B7": {OrderNumber: "B7", Status: domain.StatusPreparing}},
		summary: map[string]int{"pending": 2, "preparing": 1},
	}
	r := newTestRouter(nil, &mockBoard{}, tracking)

	tests := []struct {
		name     string
		path     string
		wantCode int
	}{
		{name: "found", path: "/tickets/B7", wantCode: http.StatusOK},
		{name: "missing", path: "/tickets/Z9", wantCode: http.StatusNotFound},
		{name: "summary", path: "/board/summary", wantCode: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", w.Code, tt.wantCode)
			}
		})
	}
}

func TestStreamWritesBoardEvents(t *testing.T) {
	updates := make(chan domain.Board, 2)
	unsub := make(chan string, 1)
	board := &mockBoard{updates: updates, unsubscribe: unsub}
	r := newTestRouter(nil, board, &mockTracking{})

	updates <- domain.Board{Connected: true, Tickets: []domain.Ticket{{OrderNumber: "C3"}}}
	close(updates)

	req := httptest.NewRequest(http.MethodGet, "/board/stream", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "retry: 2000") {
		t.Errorf("missing retry hint: %q", body)
	}
	if !strings.Contains(body, "event: board\ndata: ") || !strings.Contains(body, `"order_number":"C3"`) {
		t.Errorf("missing board event: %q", body)
	}

	select {
	case <-unsub:
	default:
		t.Error("subscriber not removed")
	}
}

func TestStreamStopsOnClientDisconnect(t *testing.T) {
	unsub := make(chan string, 1)
	board := &mockBoard{updates: make(chan domain.Board), unsubscribe: unsub}
	h := NewBoardHandler(board, &mockTracking{}, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/board/stream", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.Stream(w, req)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop")
	}
	if len(unsub) != 1 {
		t.Error("subscriber not removed")
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware(logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("code = %d, want 500", w.Code)
	}
}
