package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/companion/internal/logging"
	"github.com/aretw0/companion/internal/runtime"
	"github.com/aretw0/companion/pkg/domain"
	"github.com/aretw0/companion/pkg/observability"
)

var (
	// ErrEmptyBatch is returned when Dispatch is called without intents.
	ErrEmptyBatch = errors.New("store: empty intent batch")
	// ErrClosed is returned when dispatching to a closed store.
	ErrClosed = errors.New("store: closed")
)

// Change is the notification sent to observers after a batch is committed.
// Previous and Current are snapshots and must not be modified.
type Change struct {
	Seq      uint64
	Previous domain.AppState
	Current  domain.AppState
	Intents  []domain.Intent
}

// Observer receives committed changes in commit order.
type Observer interface {
	StateDidChange(Change)
}

// ObserverFunc adapts a function to an Observer.
type ObserverFunc func(Change)

func (f ObserverFunc) StateDidChange(c Change) { f(c) }

// named lets an observer label its backlog metric.
type named interface {
	Name() string
}

type subscription struct {
	id       uint64
	name     string
	observer Observer
	queue    *changeQueue
	done     chan struct{}
}

// Store owns the application state. Dispatch is the only way to change it.
type Store struct {
	mu      sync.Mutex
	state   domain.AppState
	seq     uint64
	subs    map[uint64]*subscription
	nextSub uint64
	closed  bool

	reducer *runtime.Reducer
	logger  *slog.Logger
	metrics *observability.Metrics
	wg      sync.WaitGroup
}

// Option configures the Store.
type Option func(*Store)

// WithLogger configures a logger for the Store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithReducer replaces the default reducer (e.g. to inject coeffects).
func WithReducer(r *runtime.Reducer) Option {
	return func(s *Store) {
		s.reducer = r
	}
}

// WithMetrics records dispatches and observer backlogs.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// New creates a Store holding initial.
func New(initial domain.AppState, opts ...Option) *Store {
	s := &Store{
		state:  initial.Clone(),
		subs:   make(map[uint64]*subscription),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.reducer == nil {
		s.reducer = runtime.NewReducer()
	}
	return s
}

// Reducer returns the reducer in use, so callers can share its coeffects.
func (s *Store) Reducer() *runtime.Reducer {
	return s.reducer
}

// State returns a deep copy of the current state.
func (s *Store) State() domain.AppState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Seq returns the sequence number of the last committed batch.
func (s *Store) Seq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Dispatch reduces intents as one transaction and commits the result.
// Concurrent callers are serialized. Observers are notified after the commit
// and never block the caller.
//
// A precondition violation leaves the state untouched and is returned as an
// error matching domain.ErrPrecondition.
func (s *Store) Dispatch(ctx context.Context, intents ...domain.Intent) error {
	if len(intents) == 0 {
		return ErrEmptyBatch
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	start := time.Now()
	next, err := s.reduce(intents)
	if err != nil {
		s.logger.Error("Rejected intent batch", "intent", domain.DescribeAll(intents), "err", err)
		return fmt.Errorf("dispatch: %w", err)
	}

	prev := s.state
	s.state = next
	s.seq++
	s.metrics.ObserveDispatch(next.UpdateKind, time.Since(start))
	s.logger.Debug("Committed intent batch",
		"seq", s.seq,
		"intent", domain.DescribeAll(intents),
		"update_kind", next.UpdateKind,
	)

	// Enqueue while holding the gate so every queue sees commit order.
	change := &Change{
		Seq:      s.seq,
		Previous: prev,
		Current:  next,
		Intents:  append([]domain.Intent(nil), intents...),
	}
	for _, sub := range s.subs {
		sub.queue.Enqueue(delivery{change: change})
		s.metrics.SetBacklog(sub.name, sub.queue.Len())
	}
	return nil
}

func (s *Store) reduce(intents []domain.Intent) (next domain.AppState, err error) {
	defer func() {
		if r := recover(); r != nil {
			pe, ok := r.(*domain.PreconditionError)
			if !ok {
				panic(r)
			}
			err = pe
		}
	}()
	return s.reducer.Reduce(s.state, intents), nil
}

// AddObserver registers o and returns a function that removes it.
// The observer only sees changes committed after registration.
func (s *Store) AddObserver(o Observer) (remove func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return func() {}
	}

	s.nextSub++
	sub := &subscription{
		id:       s.nextSub,
		name:     fmt.Sprintf("observer-%d", s.nextSub),
		observer: o,
		queue:    newChangeQueue(),
		done:     make(chan struct{}),
	}
	if n, ok := o.(named); ok {
		sub.name = n.Name()
	}
	s.subs[sub.id] = sub

	s.wg.Add(1)
	go s.run(sub)

	id := sub.id
	return func() { s.removeSubscription(id) }
}

// RemoveObserver unregisters every subscription of o.
// Observers that are not comparable must be removed through the AddObserver handle.
func (s *Store) RemoveObserver(o Observer) {
	s.mu.Lock()
	var ids []uint64
	for id, sub := range s.subs {
		if sameObserver(sub.observer, o) {
			ids = append(ids, id)
		}
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.removeSubscription(id)
	}
}

func sameObserver(a, b Observer) (same bool) {
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}

// removeSubscription stops future deliveries. Changes already queued are still delivered.
func (s *Store) removeSubscription(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[id]
	if !ok {
		return
	}
	delete(s.subs, id)
	sub.queue.Close()
}

func (s *Store) run(sub *subscription) {
	defer s.wg.Done()
	defer close(sub.done)

	for {
		d, ok, closed := sub.queue.Next()
		if !ok {
			if closed {
				return
			}
			<-sub.queue.Wait()
			continue
		}

		if d.barrier != nil {
			close(d.barrier)
			continue
		}
		s.deliver(sub, *d.change)
		s.metrics.SetBacklog(sub.name, sub.queue.Len())
	}
}

func (s *Store) deliver(sub *subscription, c Change) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Observer panicked", "observer", sub.name, "seq", c.Seq, "err", r)
		}
	}()
	sub.observer.StateDidChange(c)
}

// Flush blocks until every observer has handled all changes committed before the call.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	barriers := make([]chan struct{}, 0, len(s.subs))
	for _, sub := range s.subs {
		b := make(chan struct{})
		if sub.queue.Enqueue(delivery{barrier: b}) {
			barriers = append(barriers, b)
		}
	}
	s.mu.Unlock()

	for _, b := range barriers {
		select {
		case <-b:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Close rejects further dispatches, drains every observer queue and waits
// for the observer goroutines to exit. It is safe to call more than once.
func (s *Store) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		for id, sub := range s.subs {
			delete(s.subs, id)
			sub.queue.Close()
		}
	}
	s.mu.Unlock()

	s.wg.Wait()
}
