// Package kitchen runs the viewer's scheduler tick: it turns the active
// order set into a board of kitchen tickets once per interval.
package kitchen

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/YelzhanWeb/kitchen-sync/internal/adapter/logger"
	"github.com/YelzhanWeb/kitchen-sync/internal/app/lateness"
	"github.com/YelzhanWeb/kitchen-sync/internal/app/timing"
	"github.com/YelzhanWeb/kitchen-sync/internal/domain"
	"github.com/YelzhanWeb/kitchen-sync/internal/interfaces"
	"github.com/google/uuid"
)

// OrderSource is what the scheduler reads on every tick.
type OrderSource interface {
	Snapshot() []domain.Order
	Connected() bool
	PruneRetired(before time.Time) int
}

type Config struct {
	TickInterval  time.Duration
	LateThreshold time.Duration
	FireGrace     time.Duration
	RetiredTTL    time.Duration
}

type Service struct {
	source       OrderSource
	prep         timing.PrepTimes
	engine       timing.Engine
	monitor      lateness.Monitor
	alerts       interfaces.AlertGate
	logger       logger.Logger
	tickInterval time.Duration
	retiredTTL   time.Duration

	mu     sync.RWMutex
	latest domain.Board
	lateAt map[uuid.UUID]time.Time
	subs   map[string]chan domain.Board
}

func NewService(
	source OrderSource,
	prep timing.PrepTimes,
	alerts interfaces.AlertGate,
	logger logger.Logger,
	cfg Config,
) *Service {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.RetiredTTL <= 0 {
		cfg.RetiredTTL = 10 * time.Minute
	}
	return &Service{
		source:       source,
		prep:         prep,
		engine:       timing.Engine{FireGrace: cfg.FireGrace},
		monitor:      lateness.New(cfg.LateThreshold),
		alerts:       alerts,
		logger:       logger,
		tickInterval: cfg.TickInterval,
		retiredTTL:   cfg.RetiredTTL,
		latest:       domain.Board{Tickets: []domain.Ticket{}},
		lateAt:       make(map[uuid.UUID]time.Time),
		subs:         make(map[string]chan domain.Board),
	}
}

// Run ticks until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	s.Tick(time.Now())

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.closeSubscribers()
			return nil
		case now := <-ticker.C:
			s.Tick(now)
		}
	}
}

// Tick evaluates every active order at now and publishes the board.
func (s *Service) Tick(now time.Time) domain.Board {
	orders := s.source.Snapshot()
	tickets := make([]domain.Ticket, 0, len(orders))
	var becameLate []domain.Order

	s.mu.Lock()
	seen := make(map[uuid.UUID]struct{}, len(orders))
	for _, o := range orders {
		seen[o.ID] = struct{}{}

		t := s.engine.Schedule(o, s.prep, now)
		t.Late = s.monitor.IsLate(o, now)
		t.Severity = s.monitor.Severity(o, now)
		tickets = append(tickets, t)

		// сигнал только на переходе, не на каждом тике
		if t.Late {
			if _, alerted := s.lateAt[o.ID]; !alerted {
				s.lateAt[o.ID] = now
				becameLate = append(becameLate, o)
			}
		}
	}
	cutoff := now.Add(-s.retiredTTL)
	for id, at := range s.lateAt {
		if _, ok := seen[id]; !ok && at.Before(cutoff) {
			delete(s.lateAt, id)
		}
	}

	board := domain.Board{GeneratedAt: now, Connected: s.source.Connected(), Tickets: tickets}
	s.latest = board
	for _, ch := range s.subs {
		offer(ch, board)
	}
	s.mu.Unlock()

	for _, o := range becameLate {
		s.logger.Info("order_became_late", fmt.Sprintf("Order %s waiting since %s", o.OrderNumber, o.CreatedAt.Format(time.RFC3339)), "", map[string]interface{}{
			"order_id": o.ID.String(),
		})
		if s.alerts != nil {
			s.alerts.Notify(domain.AlertOrderBecameLate, o)
		}
	}

	if n := s.source.PruneRetired(cutoff); n > 0 {
		s.logger.Debug("retired_pruned", fmt.Sprintf("Forgot %d finished orders", n), "", nil)
	}

	return board
}

func (s *Service) Latest() domain.Board {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Subscribe returns a channel that always holds the newest board. A slow
// reader skips intermediate boards.
func (s *Service) Subscribe(subscriberID string) <-chan domain.Board {
	ch := make(chan domain.Board, 1)

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.subs[subscriberID]; ok {
		close(old)
	}
	s.subs[subscriberID] = ch
	ch <- s.latest
	return ch
}

func (s *Service) Unsubscribe(subscriberID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ch, ok := s.subs[subscriberID]; ok {
		close(ch)
		delete(s.subs, subscriberID)
	}
}

func (s *Service) closeSubscribers() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
}

func offer(ch chan domain.Board, b domain.Board) {
	select {
	case ch <- b:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
