package persistence_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aretw0/companion/internal/runtime"
	"github.com/aretw0/companion/internal/testutils"
	"github.com/aretw0/companion/pkg/adapters/memory"
	"github.com/aretw0/companion/pkg/codec"
	"github.com/aretw0/companion/pkg/domain"
	"github.com/aretw0/companion/pkg/observability"
	"github.com/aretw0/companion/pkg/persistence"
	"github.com/aretw0/companion/pkg/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingStore remembers every saved payload and can be told to fail.
type recordingStore struct {
	*memory.Store

	mu    sync.Mutex
	saves [][]byte
	fail  error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{Store: memory.NewStore()}
}

func (r *recordingStore) Save(ctx context.Context, key string, data []byte) error {
	r.mu.Lock()
	err := r.fail
	if err == nil {
		r.saves = append(r.saves, append([]byte(nil), data...))
	}
	r.mu.Unlock()
	if err != nil {
		return err
	}
	return r.Store.Save(ctx, key, data)
}

func (r *recordingStore) Saves() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.saves...)
}

func (r *recordingStore) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail = err
}

func newCodec() *codec.JSON {
	clock := testutils.NewClock()
	return &codec.JSON{Now: clock.Now, NewID: testutils.NewSequence("fresh").Next}
}

type fixture struct {
	store    *store.Store
	blobs    *recordingStore
	observer *persistence.Observer
	codec    *codec.JSON
}

func newFixture(t *testing.T, opts ...persistence.Option) *fixture {
	t.Helper()
	blobs := newRecordingStore()
	c := newCodec()
	obs := persistence.NewObserver(persistence.NewManager(blobs), c, opts...)

	ids := testutils.NewSequence("id")
	clock := testutils.NewClock()
	reducer := runtime.NewReducer(runtime.WithCoeffects(runtime.Coeffects{Now: clock.Now, NewID: ids.Next}))
	s := store.New(domain.NewAppState("conv-0", testutils.Epoch), store.WithReducer(reducer))
	s.AddObserver(obs)
	t.Cleanup(s.Close)

	return &fixture{store: s, blobs: blobs, observer: obs, codec: c}
}

func appendEntry(id string) domain.Intent {
	return domain.AppendEntry{Entry: domain.NewEntry(id, "q "+id, domain.EffectText, testutils.Epoch)}
}

func TestObserver_EphemeralChangesAreNotWritten(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.store.Dispatch(ctx, domain.UpdateQueryText{Text: "typing"}))
	require.NoError(t, f.store.Dispatch(ctx, domain.ShowHistory{}))
	require.NoError(t, f.store.Dispatch(ctx, domain.RefreshUI{}))
	require.NoError(t, f.store.Flush(ctx))

	assert.Empty(t, f.blobs.Saves())
	_, err := f.blobs.Load(ctx, domain.DefaultStorageKey)
	assert.ErrorIs(t, err, domain.ErrBlobNotFound)
}

func TestObserver_PermanentChangesAreWrittenInOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for _, id := range []string{"e1", "e2", "e3"} {
		require.NoError(t, f.store.Dispatch(ctx, appendEntry(id)))
	}
	require.NoError(t, f.store.Dispatch(ctx, domain.FinalizeEntry{EntryID: "e2", Response: domain.APIText("answer")}))
	require.NoError(t, f.store.Flush(ctx))

	saves := f.blobs.Saves()
	require.Len(t, saves, 4)
	for i, data := range saves[:3] {
		state, err := f.codec.Decode(data)
		require.NoError(t, err)
		assert.Len(t, state.Conversations[0].Entries, i+1, "Writes must follow commit order")
	}

	last, err := f.codec.Decode(saves[3])
	require.NoError(t, err)
	assert.Equal(t, domain.TextSucceeded("answer"), last.Conversations[0].Entries[1].Response)

	stored, err := f.blobs.Load(ctx, domain.DefaultStorageKey)
	require.NoError(t, err)
	assert.Equal(t, saves[3], stored)
}

func TestObserver_SkipsWhenEncodingIsUnchanged(t *testing.T) {
	blobs := newRecordingStore()
	m := observability.NewMetrics(prometheus.NewRegistry())
	obs := persistence.NewObserver(persistence.NewManager(blobs), newCodec(), persistence.WithMetrics(m))

	state := domain.NewAppState("c", testutils.Epoch)
	moved := state.Clone()
	moved.Ephemeral.QueryText = "not persisted"
	moved.UpdateKind = domain.UpdatePermanent

	obs.StateDidChange(store.Change{Seq: 1, Previous: state, Current: moved})

	assert.Empty(t, blobs.Saves())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WritesTotal.WithLabelValues(persistence.WriteUnchanged)))
}

func TestObserver_FailureLatches(t *testing.T) {
	ctx := context.Background()
	var reported []error
	var mu sync.Mutex
	f := newFixture(t, persistence.WithOnError(func(err error) {
		mu.Lock()
		defer mu.Unlock()
		reported = append(reported, err)
	}))

	require.NoError(t, f.store.Dispatch(ctx, appendEntry("e1")))
	require.NoError(t, f.store.Flush(ctx))
	require.Len(t, f.blobs.Saves(), 1)

	diskFull := errors.New("disk full")
	f.blobs.FailWith(diskFull)
	require.NoError(t, f.store.Dispatch(ctx, appendEntry("e2")), "The store must not see persistence failures")
	require.NoError(t, f.store.Flush(ctx))

	f.blobs.FailWith(nil)
	require.NoError(t, f.store.Dispatch(ctx, appendEntry("e3")))
	require.NoError(t, f.store.Flush(ctx))

	assert.Len(t, f.blobs.Saves(), 1, "No write may happen after a failure")
	assert.ErrorIs(t, f.observer.Err(), diskFull)
	assert.Len(t, f.store.State().Conversations[0].Entries, 3)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, reported, 1)
	assert.ErrorIs(t, reported[0], diskFull)
}

func TestObserver_Load(t *testing.T) {
	ctx := context.Background()

	t.Run("Missing blob gives fallback", func(t *testing.T) {
		obs := persistence.NewObserver(persistence.NewManager(memory.NewStore()), newCodec(),
			persistence.WithFallback(func() domain.AppState { return domain.NewAppState("fallback", testutils.Epoch) }))

		state, err := obs.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "fallback", state.Conversations[0].ID)
	})

	t.Run("Round trip", func(t *testing.T) {
		blobs := memory.NewStore()
		c := newCodec()
		saved := domain.NewAppState("c1", testutils.Epoch)
		saved.Settings.APIKey = "sk"
		data, err := c.Encode(saved)
		require.NoError(t, err)
		require.NoError(t, blobs.Save(ctx, "custom", data))

		obs := persistence.NewObserver(persistence.NewManager(blobs), c, persistence.WithKey("custom"))
		state, err := obs.Load(ctx)
		require.NoError(t, err)
		assert.True(t, domain.EqualPersisted(saved, state))
	})

	t.Run("Corrupt blob gives fallback", func(t *testing.T) {
		blobs := memory.NewStore()
		require.NoError(t, blobs.Save(ctx, domain.DefaultStorageKey, []byte("not json")))

		obs := persistence.NewObserver(persistence.NewManager(blobs), newCodec())
		state, err := obs.Load(ctx)
		require.NoError(t, err)
		assert.Len(t, state.Conversations, 1)
	})

	t.Run("Storage error is returned", func(t *testing.T) {
		blobs := &failingLoadStore{Store: memory.NewStore()}
		obs := persistence.NewObserver(persistence.NewManager(blobs), newCodec())
		_, err := obs.Load(ctx)
		assert.ErrorIs(t, err, errUnavailable)
	})
}

var errUnavailable = errors.New("unavailable")

type failingLoadStore struct {
	*memory.Store
}

func (failingLoadStore) Load(context.Context, string) ([]byte, error) {
	return nil, errUnavailable
}
