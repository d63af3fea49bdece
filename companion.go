package companion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/companion/internal/logging"
	"github.com/aretw0/companion/internal/runtime"
	"github.com/aretw0/companion/pkg/adapters/memory"
	"github.com/aretw0/companion/pkg/adapters/transport"
	"github.com/aretw0/companion/pkg/codec"
	"github.com/aretw0/companion/pkg/domain"
	"github.com/aretw0/companion/pkg/effects"
	"github.com/aretw0/companion/pkg/observability"
	"github.com/aretw0/companion/pkg/persistence"
	"github.com/aretw0/companion/pkg/persistence/middleware"
	"github.com/aretw0/companion/pkg/ports"
	"github.com/aretw0/companion/pkg/store"
)

// ErrEmptyQuery is returned by Submit when there is nothing to ask.
var ErrEmptyQuery = errors.New("companion: empty query")

// App wires the store, the side-effect executor and persistence together.
type App struct {
	store       *store.Store
	executor    *effects.Executor
	persistence *persistence.Observer
	blobs       ports.BlobStore
	metrics     *observability.Metrics
	logger      *slog.Logger
	coeffects   runtime.Coeffects

	imageDimension uint
	maxQueryBytes  int
}

type options struct {
	logger         *slog.Logger
	blobs          ports.BlobStore
	locker         ports.DistributedLocker
	transport      ports.Transport
	codec          ports.Codec
	metrics        *observability.Metrics
	middlewares    []middleware.Middleware
	executorOpts   []effects.Option
	storageKey     string
	apiKey         string
	chatModel      string
	imageModel     string
	imageDimension uint
	maxQueryBytes  int
	now            func() time.Time
	newID          func() string
	onPersistError func(error)
}

// Option configures the App.
type Option func(*options)

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithBlobStore sets where the state is saved. Defaults to an in-memory store.
func WithBlobStore(s ports.BlobStore) Option {
	return func(o *options) {
		o.blobs = s
	}
}

// WithLocker serializes writes across processes sharing the blob store.
func WithLocker(l ports.DistributedLocker) Option {
	return func(o *options) {
		o.locker = l
	}
}

// WithTransport sets the network transport. Defaults to the resty adapter.
func WithTransport(t ports.Transport) Option {
	return func(o *options) {
		o.transport = t
	}
}

// WithCodec replaces the JSON codec.
func WithCodec(c ports.Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

// WithMetrics records store, executor and persistence metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithMiddleware wraps the blob store. The first middleware sees calls first.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(o *options) {
		o.middlewares = append(o.middlewares, mws...)
	}
}

// WithEncryptionKey encrypts the saved state with AES-256-GCM.
// Older keys may be given to read state written before a rotation.
func WithEncryptionKey(key []byte, fallback ...[]byte) Option {
	return WithMiddleware(middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    key,
		FallbackKeys: fallback,
	}))
}

// WithExecutorOptions passes options through to the side-effect executor.
func WithExecutorOptions(opts ...effects.Option) Option {
	return func(o *options) {
		o.executorOpts = append(o.executorOpts, opts...)
	}
}

// WithStorageKey overrides domain.DefaultStorageKey.
func WithStorageKey(key string) Option {
	return func(o *options) {
		o.storageKey = key
	}
}

// WithAPIKey supplies the API key used when the restored state has none.
func WithAPIKey(key string) Option {
	return func(o *options) {
		o.apiKey = key
	}
}

// WithModels supplies the models used when the restored state has none.
func WithModels(chat, image string) Option {
	return func(o *options) {
		o.chatModel = chat
		o.imageModel = image
	}
}

// WithImageDimension sets the edge length requested for images.
func WithImageDimension(d uint) Option {
	return func(o *options) {
		o.imageDimension = d
	}
}

// WithMaxQueryBytes overrides DefaultMaxQueryBytes. Zero or less disables the limit.
func WithMaxQueryBytes(n int) Option {
	return func(o *options) {
		o.maxQueryBytes = n
	}
}

// WithClock replaces the clock and id source, for deterministic tests.
func WithClock(now func() time.Time, newID func() string) Option {
	return func(o *options) {
		o.now = now
		o.newID = newID
	}
}

// WithOnPersistError is called with the first failed write.
func WithOnPersistError(fn func(error)) Option {
	return func(o *options) {
		o.onPersistError = fn
	}
}

// New restores the saved state and starts the application.
func New(ctx context.Context, opts ...Option) (*App, error) {
	o := &options{
		logger:         logging.NewNop(),
		storageKey:     domain.DefaultStorageKey,
		imageDimension: domain.DefaultImageDimension,
		maxQueryBytes:  DefaultMaxQueryBytes,
	}
	for _, opt := range opts {
		opt(o)
	}

	coeffects := runtime.DefaultCoeffects()
	if o.now != nil {
		coeffects.Now = o.now
	}
	if o.newID != nil {
		coeffects.NewID = o.newID
	}

	if o.blobs == nil {
		o.blobs = memory.NewStore()
	}
	if o.transport == nil {
		o.transport = transport.New()
	}
	if o.codec == nil {
		o.codec = &codec.JSON{Now: coeffects.Now, NewID: coeffects.NewID}
	}

	managerOpts := []persistence.ManagerOption{persistence.WithManagerLogger(o.logger)}
	if o.locker != nil {
		managerOpts = append(managerOpts, persistence.WithLocker(o.locker))
	}
	manager := persistence.NewManager(middleware.Chain(o.blobs, o.middlewares...), managerOpts...)

	observer := persistence.NewObserver(manager, o.codec,
		persistence.WithKey(o.storageKey),
		persistence.WithLogger(o.logger.With("component", "persistence")),
		persistence.WithMetrics(o.metrics),
		persistence.WithOnError(o.onPersistError),
		persistence.WithFallback(func() domain.AppState {
			return domain.NewAppState(coeffects.NewID(), coeffects.Now())
		}),
	)

	initial, err := observer.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to restore state: %w", err)
	}
	if initial.Settings.APIKey == "" {
		initial.Settings.APIKey = o.apiKey
	}
	if o.chatModel != "" && initial.Settings.ChatModel == domain.DefaultChatModel {
		initial.Settings.ChatModel = o.chatModel
	}
	if o.imageModel != "" && initial.Settings.ImageModel == domain.DefaultImageModel {
		initial.Settings.ImageModel = o.imageModel
	}

	s := store.New(initial,
		store.WithReducer(runtime.NewReducer(runtime.WithCoeffects(coeffects))),
		store.WithLogger(o.logger.With("component", "store")),
		store.WithMetrics(o.metrics),
	)
	s.AddObserver(observer)

	execOpts := []effects.Option{
		effects.WithLogger(o.logger.With("component", "effects")),
		effects.WithMetrics(o.metrics),
	}
	execOpts = append(execOpts, o.executorOpts...)

	app := &App{
		store:          s,
		executor:       effects.New(o.transport, s, execOpts...),
		persistence:    observer,
		blobs:          o.blobs,
		metrics:        o.metrics,
		logger:         o.logger,
		coeffects:      coeffects,
		imageDimension: o.imageDimension,
		maxQueryBytes:  o.maxQueryBytes,
	}
	o.logger.Info("Companion started",
		"conversations", len(initial.Conversations),
		"key", o.storageKey,
	)
	return app, nil
}

// Submission is the outcome of Submit.
type Submission struct {
	EntryID string
	// Done receives the side-effect result once the entry is finalized.
	Done <-chan effects.Result
}

// Submit asks the companion something. An empty text falls back to the
// current query text. The text is sanitized with SanitizeQuery. Submit
// appends an ongoing entry to the current conversation and starts the
// matching side effect.
func (a *App) Submit(ctx context.Context, kind domain.EffectKind, text string) (Submission, error) {
	state := a.store.State()
	if strings.TrimSpace(text) == "" {
		text = state.Ephemeral.QueryText
	}
	text, err := SanitizeQuery(text, a.maxQueryBytes)
	if err != nil {
		return Submission{}, err
	}
	if text == "" {
		return Submission{}, ErrEmptyQuery
	}

	entry := domain.NewEntry(a.coeffects.NewID(), text, kind, a.coeffects.Now())
	if err := a.store.Dispatch(ctx, domain.AppendEntry{Entry: entry}); err != nil {
		return Submission{}, err
	}

	var effect domain.SideEffect
	switch kind {
	case domain.EffectImage:
		effect = domain.ImageGeneration(text, a.imageDimension, state.Settings, entry.ID)
	default:
		effect = domain.TextGeneration(text, state.Settings, entry.ID)
	}

	return Submission{EntryID: entry.ID, Done: a.executor.Perform(ctx, effect)}, nil
}

// Dispatch applies intents as one transaction.
func (a *App) Dispatch(ctx context.Context, intents ...domain.Intent) error {
	return a.store.Dispatch(ctx, intents...)
}

// State returns a copy of the current state.
func (a *App) State() domain.AppState {
	return a.store.State()
}

// Store exposes the store, e.g. to register observers.
func (a *App) Store() *store.Store {
	return a.store
}

// Observe registers an observer of committed changes.
func (a *App) Observe(o store.Observer) (remove func()) {
	return a.store.AddObserver(o)
}

// Executor exposes the side-effect executor.
func (a *App) Executor() *effects.Executor {
	return a.executor
}

// PersistenceErr returns the first failed write, if any.
func (a *App) PersistenceErr() error {
	return a.persistence.Err()
}

// Metrics returns the metrics the App records to, possibly nil.
func (a *App) Metrics() *observability.Metrics {
	return a.metrics
}

// Close waits for running side effects, flushes pending writes and releases
// the blob store. It gives up waiting when ctx is done.
func (a *App) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.executor.Wait()
		close(done)
	}()

	var errs []error
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("side effects still running: %w", ctx.Err()))
	}

	a.store.Close()

	if c, ok := a.blobs.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close blob store: %w", err))
		}
	}
	return errors.Join(errs...)
}
