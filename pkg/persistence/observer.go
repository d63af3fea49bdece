package persistence

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/companion/internal/logging"
	"github.com/aretw0/companion/pkg/domain"
	"github.com/aretw0/companion/pkg/observability"
	"github.com/aretw0/companion/pkg/ports"
	"github.com/aretw0/companion/pkg/store"
	"github.com/google/uuid"
)

// Write outcomes reported to metrics.
const (
	WriteSaved     = "saved"
	WriteUnchanged = "unchanged"
	WriteSkipped   = "skipped"
	WriteFailed    = "failed"
)

// Observer saves the persisted projection of the state after permanent changes.
// It is registered on a store.Store, which delivers changes one at a time in
// commit order, so writes never overlap or reorder.
type Observer struct {
	manager *Manager
	codec   ports.Codec
	key     string

	logger       *slog.Logger
	metrics      *observability.Metrics
	onError      func(error)
	fallback     func() domain.AppState
	writeTimeout time.Duration

	mu  sync.Mutex
	err error
}

// Option configures the Observer.
type Option func(*Observer)

// WithKey overrides domain.DefaultStorageKey.
func WithKey(key string) Option {
	return func(o *Observer) {
		o.key = key
	}
}

// WithLogger configures a logger for the Observer.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Observer) {
		o.logger = logger
	}
}

// WithMetrics counts write outcomes.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *Observer) {
		o.metrics = m
	}
}

// WithOnError is called once, with the first write failure.
func WithOnError(fn func(error)) Option {
	return func(o *Observer) {
		o.onError = fn
	}
}

// WithFallback supplies the state used by Load when nothing usable is stored.
func WithFallback(fn func() domain.AppState) Option {
	return func(o *Observer) {
		o.fallback = fn
	}
}

// WithWriteTimeout bounds each write. Zero means no bound.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *Observer) {
		o.writeTimeout = d
	}
}

// NewObserver creates an Observer writing through manager with codec.
func NewObserver(manager *Manager, codec ports.Codec, opts ...Option) *Observer {
	o := &Observer{
		manager: manager,
		codec:   codec,
		key:     domain.DefaultStorageKey,
		logger:  logging.NewNop(),
		fallback: func() domain.AppState {
			return domain.NewAppState(uuid.NewString(), time.Now().UTC())
		},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Name labels the observer backlog metric.
func (o *Observer) Name() string { return "persistence" }

// Key returns the blob key the state is saved under.
func (o *Observer) Key() string { return o.key }

// Err returns the first write failure, or nil while the observer is healthy.
func (o *Observer) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

// StateDidChange implements store.Observer.
func (o *Observer) StateDidChange(c store.Change) {
	if c.Current.UpdateKind != domain.UpdatePermanent {
		return
	}
	if o.Err() != nil {
		o.metrics.ObserveWrite(WriteSkipped)
		return
	}

	log := o.logger.With("key", o.key, "seq", c.Seq)

	current, err := o.codec.Encode(c.Current)
	if err != nil {
		o.fail(log, fmt.Errorf("failed to encode state: %w", err))
		return
	}
	previous, err := o.codec.Encode(c.Previous)
	if err == nil && bytes.Equal(previous, current) {
		o.metrics.ObserveWrite(WriteUnchanged)
		log.Debug("Persisted state unchanged")
		return
	}

	ctx := context.Background()
	if o.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.writeTimeout)
		defer cancel()
	}

	if err := o.manager.Save(ctx, o.key, current); err != nil {
		o.fail(log, fmt.Errorf("failed to save state: %w", err))
		return
	}
	o.metrics.ObserveWrite(WriteSaved)
	log.Debug("Saved state", "bytes", len(current))
}

func (o *Observer) fail(log *slog.Logger, err error) {
	o.mu.Lock()
	first := o.err == nil
	if first {
		o.err = err
	}
	o.mu.Unlock()

	o.metrics.ObserveWrite(WriteFailed)
	log.Error("Persistence disabled after write failure", "err", err)
	if first && o.onError != nil {
		o.onError(err)
	}
}

// Load restores the saved state. A missing or undecodable blob yields the
// fallback state; any other storage error is returned.
func (o *Observer) Load(ctx context.Context) (domain.AppState, error) {
	data, err := o.manager.Load(ctx, o.key)
	if errors.Is(err, domain.ErrBlobNotFound) {
		o.logger.Info("No saved state, starting fresh", "key", o.key)
		return o.fallback(), nil
	}
	if err != nil {
		return domain.AppState{}, fmt.Errorf("failed to load state: %w", err)
	}

	state, err := o.codec.Decode(data)
	if err != nil {
		o.logger.Warn("Saved state is unreadable, starting fresh", "key", o.key, "err", err)
		return o.fallback(), nil
	}
	return state, nil
}
