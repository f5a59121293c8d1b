// Package dispatchq owns the per-order offer state machine: an immutable
// nearest-first candidate queue, a monotonic cursor, and a pending ->
// accepted | exhausted status. All mutation of one order's record is
// serialized through that order's lock, so racing accept/reject/timeout
// signals resolve to exactly one terminal outcome.
package dispatchq

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/example/rider-dispatch/internal/models"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusExhausted Status = "exhausted"
)

var (
	// ErrNoCandidates is returned by Create for an empty rider queue; the
	// caller must signal "no riders found" instead of creating a record.
	ErrNoCandidates = errors.New("dispatchq: empty rider queue")
	// ErrNotFound is returned for an unknown order id.
	ErrNotFound = errors.New("dispatchq: order not found")
	// ErrInFlight is returned by Create when a pending record already
	// exists for the order.
	ErrInFlight = errors.New("dispatchq: dispatch already in flight")
)

// Record is a snapshot of one order's dispatch state. RiderQueue is fixed at
// creation: a rider who moves after the queue is built is not re-ranked.
type Record struct {
	OrderID      string
	Customer     models.Customer
	Payload      json.RawMessage
	RiderQueue   []string
	CurrentIndex int
	Status       Status
	// ReplyTo is the session handle of the request originator, used for
	// the terminal no-riders signal.
	ReplyTo   string
	CreatedAt time.Time
}

type entry struct {
	mu  sync.Mutex
	rec Record
}

// Store is the in-process table of in-flight dispatches keyed by order id.
type Store struct {
	mu     sync.Mutex
	orders map[string]*entry
}

func NewStore() *Store {
	return &Store{orders: make(map[string]*entry)}
}

func (s *Store) lookup(orderID string) (*entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.orders[orderID]
	return e, ok
}

// Create registers a new dispatch with the candidate at index 0 as the first
// offer target. A still-pending record for the same order is not replaced.
func (s *Store) Create(orderID string, customer models.Customer, payload json.RawMessage, riderQueue []string, replyTo string) (Record, error) {
	if len(riderQueue) == 0 {
		return Record{}, ErrNoCandidates
	}
	queue := make([]string, len(riderQueue))
	copy(queue, riderQueue)
	rec := Record{
		OrderID:    orderID,
		Customer:   customer,
		Payload:    payload,
		RiderQueue: queue,
		Status:     StatusPending,
		ReplyTo:    replyTo,
		CreatedAt:  time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.orders[orderID]; ok {
		e.mu.Lock()
		pending := e.rec.Status == StatusPending
		e.mu.Unlock()
		if pending {
			return Record{}, ErrInFlight
		}
	}
	s.orders[orderID] = &entry{rec: rec}
	return rec, nil
}

// CurrentCandidate returns the rider currently being offered the delivery,
// or false when the record is terminal or unknown.
func (s *Store) CurrentCandidate(orderID string) (string, bool) {
	e, ok := s.lookup(orderID)
	if !ok {
		return "", false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rec.Status != StatusPending {
		return "", false
	}
	return e.rec.RiderQueue[e.rec.CurrentIndex], true
}

// Advance moves the cursor to the next candidate after a reject or timeout.
// Walking past the end of the queue transitions to exhausted; a terminal
// record is left untouched.
func (s *Store) Advance(orderID string) (Record, error) {
	e, ok := s.lookup(orderID)
	if !ok {
		return Record{}, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rec.Status != StatusPending {
		return e.rec, nil
	}
	e.rec.CurrentIndex++
	if e.rec.CurrentIndex >= len(e.rec.RiderQueue) {
		e.rec.Status = StatusExhausted
	}
	return e.rec, nil
}

// AdvanceFrom advances only when riderID is still the current candidate.
// The check and the cursor move are atomic under the order's lock, so a
// reject and a timeout for the same candidate can never double-advance.
func (s *Store) AdvanceFrom(orderID, riderID string) (Record, bool) {
	e, ok := s.lookup(orderID)
	if !ok {
		return Record{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rec.Status != StatusPending || e.rec.RiderQueue[e.rec.CurrentIndex] != riderID {
		return e.rec, false
	}
	e.rec.CurrentIndex++
	if e.rec.CurrentIndex >= len(e.rec.RiderQueue) {
		e.rec.Status = StatusExhausted
	}
	return e.rec, true
}

// Accept transitions a pending record to accepted. Duplicate accepts are
// no-ops, and a late accept against an already-exhausted record loses.
func (s *Store) Accept(orderID string) (Record, error) {
	e, ok := s.lookup(orderID)
	if !ok {
		return Record{}, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rec.Status == StatusPending {
		e.rec.Status = StatusAccepted
	}
	return e.rec, nil
}

func (s *Store) Get(orderID string) (Record, bool) {
	e, ok := s.lookup(orderID)
	if !ok {
		return Record{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rec, true
}

// Remove drops an order's record. Used by the gateway once a dispatch is
// terminal and the outcome has been delivered.
func (s *Store) Remove(orderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.orders, orderID)
}
