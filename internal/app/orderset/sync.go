package orderset

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/YelzhanWeb/kitchen-sync/internal/adapter/logger"
	"github.com/YelzhanWeb/kitchen-sync/internal/backoff"
	"github.com/YelzhanWeb/kitchen-sync/internal/domain"
	"github.com/YelzhanWeb/kitchen-sync/internal/interfaces"
)

type SyncConfig struct {
	PollInterval     time.Duration
	BackoffMin       time.Duration
	BackoffMax       time.Duration
	ReconcileTimeout time.Duration
}

// Sync is the ChangeFeedSync. It feeds ledger row changes into the Set,
// keeps the feed subscription alive and re-queries the ledger while the
// feed is down.
type Sync struct {
	set     *Set
	ledger  interfaces.OrderLedger
	feed    interfaces.ChangeFeed
	alerts  interfaces.AlertGate
	logger  logger.Logger
	backoff *backoff.Backoff

	pollInterval     time.Duration
	reconcileTimeout time.Duration

	// reconcileMu serializes ledger re-queries.
	reconcileMu sync.Mutex

	connected atomic.Bool
	seeded    atomic.Bool
	now       func() time.Time
}

func NewSync(
	set *Set,
	ledger interfaces.OrderLedger,
	feed interfaces.ChangeFeed,
	alerts interfaces.AlertGate,
	logger logger.Logger,
	cfg SyncConfig,
) *Sync {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.ReconcileTimeout <= 0 {
		cfg.ReconcileTimeout = 10 * time.Second
	}
	return &Sync{
		set:              set,
		ledger:           ledger,
		feed:             feed,
		alerts:           alerts,
		logger:           logger,
		backoff:          backoff.New(cfg.BackoffMin, cfg.BackoffMax),
		pollInterval:     cfg.PollInterval,
		reconcileTimeout: cfg.ReconcileTimeout,
		now:              time.Now,
	}
}

func (s *Sync) Set() *Set { return s.set }

// Connected reports whether the feed subscription is live.
func (s *Sync) Connected() bool { return s.connected.Load() }

func (s *Sync) Snapshot() []domain.Order { return s.set.Snapshot() }

// Run seeds the set, then holds the feed subscription open until ctx ends,
// reconnecting with backoff and polling the ledger while disconnected.
func (s *Sync) Run(ctx context.Context) error {
	if err := s.Reconcile(ctx); err != nil {
		s.logger.Warn("initial_load_failed", "Starting with an empty order set", "", map[string]interface{}{"error": err.Error()})
	}

	go s.pollLoop(ctx)

	for {
		err := s.feed.Listen(ctx, func() { s.onReady(ctx) }, s.HandleMessage)
		wasConnected := s.connected.Swap(false)

		if ctx.Err() != nil {
			return nil
		}

		details := map[string]interface{}{"was_connected": wasConnected}
		if err != nil {
			details["error"] = err.Error()
		}
		s.logger.Warn("feed_disconnected", "Change feed lost, falling back to polling", "", details)

		if !s.backoff.Wait(ctx) {
			return nil
		}
	}
}

func (s *Sync) onReady(ctx context.Context) {
	s.connected.Store(true)
	s.backoff.Reset()
	s.logger.Info("feed_reconnected", "Change feed subscribed", "", nil)

	// события, пропущенные за время простоя
	if err := s.Reconcile(ctx); err != nil {
		s.logger.Warn("reconcile_failed", "Catch-up after subscribe failed", "", map[string]interface{}{"error": err.Error()})
	}
}

func (s *Sync) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.Connected() {
				continue
			}
			if err := s.Reconcile(ctx); err != nil {
				s.logger.Debug("poll_failed", "Polling fallback could not reach the ledger", "", map[string]interface{}{"error": err.Error()})
			}
		}
	}
}

// HandleMessage decodes one feed message and applies it. Bad or rejected
// events are logged and skipped, never returned to the transport.
func (s *Sync) HandleMessage(ctx context.Context, body []byte) error {
	ev, err := domain.DecodeChangeEvent(body)
	if err != nil {
		s.logger.Warn("payload_malformed", "Skipping change event", "", map[string]interface{}{"error": err.Error(), "size": len(body)})
		return nil
	}

	_ = s.Apply(ctx, ev)
	return nil
}

// Apply runs one decoded event through the set. Duplicates and invariant
// violations are returned for the caller's information; a violation also
// triggers a full reconcile.
func (s *Sync) Apply(ctx context.Context, ev domain.ChangeEvent) error {
	out, err := s.set.apply(ev, s.now())
	s.dispatch(out)

	switch {
	case err == nil:
	case errors.Is(err, domain.ErrDuplicateEvent):
		s.logger.Debug("duplicate_event", "Ignoring repeated insert", "", map[string]interface{}{"order_id": ev.Payload.ID.String()})
	case errors.Is(err, domain.ErrInvalidStatusTransition):
		s.logger.Warn("invariant_violation", "Rejected backward status change, re-fetching", "", map[string]interface{}{
			"order_id": ev.Payload.ID.String(),
			"status":   string(ev.Payload.Status),
		})
	default:
		s.logger.Error("apply_failed", "Failed to apply change event", "", nil, err)
	}

	if out.reconcile {
		if rerr := s.Reconcile(ctx); rerr != nil {
			s.logger.Warn("reconcile_failed", "Re-fetch after invariant violation failed", "", map[string]interface{}{"error": rerr.Error()})
		}
	}
	return err
}

// Reconcile replaces the set with the ledger's current view. The first
// successful call seeds the set without raising alerts.
func (s *Sync) Reconcile(ctx context.Context) error {
	s.reconcileMu.Lock()
	defer s.reconcileMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.reconcileTimeout)
	defer cancel()

	s.set.beginFetch()
	orders, err := s.ledger.ListActive(ctx, ReconcileStatuses)
	if err != nil {
		s.set.abortFetch()
		return fmt.Errorf("failed to list active orders: %w", err)
	}

	valid := orders[:0:0]
	for _, o := range orders {
		if err := o.Validate(); err != nil {
			s.logger.Warn("payload_malformed", "Skipping ledger row", "", map[string]interface{}{"error": err.Error()})
			continue
		}
		valid = append(valid, o)
	}

	silent := !s.seeded.Load()
	out := s.set.replace(valid, s.now(), silent)
	s.seeded.Store(true)
	s.dispatch(out)

	s.logger.Debug("reconciled", fmt.Sprintf("Active set holds %d orders", s.set.Len()), "", nil)
	return nil
}

func (s *Sync) dispatch(out outcome) {
	if s.alerts == nil {
		return
	}
	for _, a := range out.alerts {
		s.alerts.Notify(a.kind, a.order)
	}
}

// PruneRetired drops bookkeeping for orders that left the set before the cutoff.
func (s *Sync) PruneRetired(before time.Time) int { return s.set.PruneRetired(before) }
