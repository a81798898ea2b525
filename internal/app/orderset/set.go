// Package orderset keeps the kitchen working set of active orders in sync
// with the ledger and applies optimistic status changes on top of it.
package orderset

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/YelzhanWeb/kitchen-sync/internal/domain"
	"github.com/google/uuid"
)

// ReconcileStatuses are fetched on every full re-query. Ready rows are
// included so a reconcile after an outage can still announce them.
var ReconcileStatuses = []domain.Status{domain.StatusPending, domain.StatusPreparing, domain.StatusReady}

// retiredEntry remembers an order that left the set. Ready entries are held
// until the ledger stops listing them, so a later re-query cannot announce
// them again.
type retiredEntry struct {
	status   domain.Status
	deleted  bool
	released bool
	at       time.Time
}

func (r retiredEntry) held() bool {
	return r.status == domain.StatusReady && !r.released
}

type pendingAlert struct {
	kind  domain.AlertKind
	order domain.Order
}

// outcome collects what must happen after the set lock is released.
type outcome struct {
	alerts    []pendingAlert
	reconcile bool
}

func (o *outcome) alert(kind domain.AlertKind, order domain.Order) {
	o.alerts = append(o.alerts, pendingAlert{kind: kind, order: order.Clone()})
}

// Set is the ActiveOrderSet: orders in pending or preparing keyed by id and
// kept in ascending created_at order. All mutations run under one mutex.
type Set struct {
	mu       sync.Mutex
	orders   map[uuid.UUID]*domain.Order
	sorted   []uuid.UUID
	retired  map[uuid.UUID]retiredEntry
	inflight map[uuid.UUID]struct{}

	// touched is non-nil while a ledger fetch is running and collects the
	// orders the feed changed since the fetch began.
	touched map[uuid.UUID]struct{}
}

func NewSet() *Set {
	return &Set{
		orders:   make(map[uuid.UUID]*domain.Order),
		retired:  make(map[uuid.UUID]retiredEntry),
		inflight: make(map[uuid.UUID]struct{}),
	}
}

// Snapshot returns copies of the active orders, oldest first.
func (s *Set) Snapshot() []domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Order, 0, len(s.sorted))
	for _, id := range s.sorted {
		out = append(out, s.orders[id].Clone())
	}
	return out
}

func (s *Set) Get(id uuid.UUID) (domain.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, false
	}
	return o.Clone(), true
}

func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

// BeginCommand marks id as having a status change in flight. It returns
// false if one is already pending.
func (s *Set) BeginCommand(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.inflight[id]; busy {
		return false
	}
	s.inflight[id] = struct{}{}
	return true
}

func (s *Set) EndCommand(id uuid.UUID) {
	s.mu.Lock()
	delete(s.inflight, id)
	s.mu.Unlock()
}

func (s *Set) InFlight(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, busy := s.inflight[id]
	return busy
}

// PruneRetired forgets orders that left the set before the cutoff. Ready
// orders the ledger still lists are kept.
func (s *Set) PruneRetired(before time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, r := range s.retired {
		if r.held() {
			continue
		}
		if r.at.Before(before) {
			delete(s.retired, id)
			n++
		}
	}
	return n
}

// beginFetch starts recording feed changes for the next replace.
func (s *Set) beginFetch() {
	s.mu.Lock()
	s.touched = make(map[uuid.UUID]struct{})
	s.mu.Unlock()
}

// abortFetch stops recording after a failed fetch.
func (s *Set) abortFetch() {
	s.mu.Lock()
	s.touched = nil
	s.mu.Unlock()
}

func (s *Set) apply(ev domain.ChangeEvent, now time.Time) (outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.touched != nil {
		s.touched[ev.Payload.ID] = struct{}{}
	}

	var out outcome
	var err error

	switch ev.Type {
	case domain.EventInsert:
		err = s.insertEventLocked(ev.Payload, &out)
	case domain.EventUpdate:
		err = s.updateEventLocked(ev.Payload, now, &out)
	case domain.EventDelete:
		s.removeLocked(ev.Payload.ID)
		s.retired[ev.Payload.ID] = retiredEntry{deleted: true, at: now}
	default:
		err = fmt.Errorf("%w: unknown event type %q", domain.ErrMalformedPayload, ev.Type)
	}

	return out, err
}

func (s *Set) insertEventLocked(o domain.Order, out *outcome) error {
	if !o.Status.IsActive() {
		return nil
	}
	if _, ok := s.orders[o.ID]; ok {
		return fmt.Errorf("%w: insert %s", domain.ErrDuplicateEvent, o.ID)
	}
	if _, ok := s.retired[o.ID]; ok {
		return fmt.Errorf("%w: insert %s after it left the set", domain.ErrDuplicateEvent, o.ID)
	}

	s.insertLocked(o.Clone())
	out.alert(domain.AlertOrderCreated, o)
	return nil
}

func (s *Set) updateEventLocked(o domain.Order, now time.Time, out *outcome) error {
	if r, ok := s.retired[o.ID]; ok && r.deleted {
		return nil
	}

	prev := s.previousStatusLocked(o.ID)
	if prev != "" && prev != o.Status && !domain.CanTransition(prev, o.Status) {
		// our own command is ahead of this copy; the next event settles it
		if _, busy := s.inflight[o.ID]; busy {
			return nil
		}
		out.reconcile = true
		return fmt.Errorf("%w: order %s %s -> %s", domain.ErrInvalidStatusTransition, o.ID, prev, o.Status)
	}

	s.upsertLocked(o, prev, now, false, out)
	return nil
}

// upsertLocked is the single path by which server copies enter the set.
// Active orders are merged or inserted; anything else leaves the set and
// announces ready when it was not ready before.
func (s *Set) upsertLocked(o domain.Order, prev domain.Status, now time.Time, silent bool, out *outcome) {
	if o.Status.IsActive() {
		if cur, ok := s.orders[o.ID]; ok {
			created := cur.CreatedAt
			cur.Merge(o)
			if !cur.CreatedAt.Equal(created) {
				c := *cur
				s.removeLocked(o.ID)
				s.insertLocked(c)
			}
		} else {
			s.insertLocked(o.Clone())
		}
		delete(s.retired, o.ID)
		return
	}

	s.removeLocked(o.ID)
	if o.Status == domain.StatusReady && prev != domain.StatusReady && !silent {
		out.alert(domain.AlertOrderReady, o)
	}
	s.retired[o.ID] = retiredEntry{status: o.Status, at: now}
}

// replace makes the set match a full ledger fetch started by beginFetch.
// Orders with a command in flight keep their local state, and orders the
// feed changed after the fetch began keep the newer feed copy. With silent
// set nothing is announced.
func (s *Set) replace(fetched []domain.Order, now time.Time, silent bool) outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	touched := s.touched
	s.touched = nil
	skip := func(id uuid.UUID) bool {
		if _, busy := s.inflight[id]; busy {
			return true
		}
		_, newer := touched[id]
		return newer
	}

	var out outcome
	seen := make(map[uuid.UUID]struct{}, len(fetched))

	for _, o := range fetched {
		seen[o.ID] = struct{}{}
		if skip(o.ID) {
			continue
		}

		_, present := s.orders[o.ID]
		_, known := s.retired[o.ID]
		prev := s.previousStatusLocked(o.ID)

		if o.Status == domain.StatusReady && prev == domain.StatusReady {
			s.retired[o.ID] = retiredEntry{status: o.Status, at: now}
			continue
		}

		s.upsertLocked(o, prev, now, silent, &out)
		if o.Status.IsActive() && !present && !known && !silent {
			out.alert(domain.AlertOrderCreated, o)
		}
	}

	for _, id := range append([]uuid.UUID(nil), s.sorted...) {
		if _, ok := seen[id]; ok {
			continue
		}
		if skip(id) {
			continue
		}
		s.removeLocked(id)
		s.retired[id] = retiredEntry{at: now}
	}

	// the ledger moved these past ready; they may now age out
	for id, r := range s.retired {
		if _, ok := seen[id]; ok || !r.held() || skip(id) {
			continue
		}
		r.released = true
		r.at = now
		s.retired[id] = r
	}

	return out
}

// applyLocal is the optimistic half of a status change. An order that is
// not in the set is left alone.
func (s *Set) applyLocal(id uuid.UUID, status domain.Status, fields domain.StatusFields, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.orders[id]
	if !ok {
		return nil
	}

	next := cur.Clone()
	if err := next.TransitionTo(status, fields, now); err != nil {
		return err
	}

	if status.IsActive() {
		*cur = next
		return nil
	}
	s.removeLocked(id)
	s.retired[id] = retiredEntry{status: status, at: now}
	return nil
}

func (s *Set) previousStatusLocked(id uuid.UUID) domain.Status {
	if o, ok := s.orders[id]; ok {
		return o.Status
	}
	if r, ok := s.retired[id]; ok {
		return r.status
	}
	return ""
}

func (s *Set) insertLocked(o domain.Order) {
	i := sort.Search(len(s.sorted), func(i int) bool {
		return s.orders[s.sorted[i]].CreatedAt.After(o.CreatedAt)
	})
	s.sorted = append(s.sorted, uuid.Nil)
	copy(s.sorted[i+1:], s.sorted[i:])
	s.sorted[i] = o.ID
	s.orders[o.ID] = &o
}

func (s *Set) removeLocked(id uuid.UUID) {
	if _, ok := s.orders[id]; !ok {
		return
	}
	delete(s.orders, id)
	for i, v := range s.sorted {
		if v == id {
			s.sorted = append(s.sorted[:i], s.sorted[i+1:]...)
			break
		}
	}
}
