package persistence

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/companion/internal/logging"
	"github.com/aretw0/companion/pkg/ports"
)

// DefaultLockTTL bounds how long a crashed writer can hold the distributed lock.
const DefaultLockTTL = 30 * time.Second

// keyLock holds the mutex and the reference count.
type keyLock struct {
	mu   sync.Mutex
	refs int
}

// Manager serializes access to blob keys.
// Local locks are reference counted and dropped when unused.
type Manager struct {
	store ports.BlobStore

	mu    sync.Mutex
	locks map[string]*keyLock

	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
}

// ManagerOption configures the Manager.
type ManagerOption func(*Manager)

// WithLocker additionally takes a distributed lock around every write,
// for processes sharing one blob store.
func WithLocker(locker ports.DistributedLocker) ManagerOption {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithManagerLogger configures a logger for the Manager.
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager over store.
func NewManager(store ports.BlobStore, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*keyLock),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) acquire(key string) *keyLock {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[key]
	if !ok {
		l = &keyLock{}
		m.locks[key] = l
	}
	l.refs++
	return l
}

func (m *Manager) release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[key]
	if !ok {
		return
	}
	l.refs--
	if l.refs <= 0 {
		delete(m.locks, key)
	}
}

// Load reads the blob stored under key.
func (m *Manager) Load(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := m.WithLock(ctx, key, func(ctx context.Context) error {
		var err error
		data, err = m.store.Load(ctx, key)
		return err
	})
	return data, err
}

// Save writes data under key.
func (m *Manager) Save(ctx context.Context, key string, data []byte) error {
	return m.WithLock(ctx, key, func(ctx context.Context) error {
		return m.store.Save(ctx, key, data)
	})
}

// Delete removes key.
func (m *Manager) Delete(ctx context.Context, key string) error {
	return m.WithLock(ctx, key, func(ctx context.Context) error {
		return m.store.Delete(ctx, key)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying blob store.
func (m *Manager) Store() ports.BlobStore {
	return m.store
}

// WithLock runs fn while holding the lock for key.
func (m *Manager) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	l := m.acquire(key)
	l.mu.Lock()
	defer func() {
		l.mu.Unlock()
		m.release(key)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, key, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"key", key,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
