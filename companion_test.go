package companion_test

import (
	"bytes"
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/aretw0/companion"
	"github.com/aretw0/companion/internal/testutils"
	"github.com/aretw0/companion/pkg/adapters/memory"
	"github.com/aretw0/companion/pkg/domain"
	"github.com/aretw0/companion/pkg/effects"
	"github.com/aretw0/companion/pkg/ports"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(t *testing.T, blobs *memory.Store, tr *effects.FakeTransport, opts ...companion.Option) *companion.App {
	t.Helper()
	clock := testutils.NewClock()
	base := []companion.Option{
		companion.WithBlobStore(blobs),
		companion.WithTransport(tr),
		companion.WithClock(clock.Now, testutils.NewSequence("id").Next),
		companion.WithAPIKey("sk-test"),
	}
	app, err := companion.New(context.Background(), append(base, opts...)...)
	require.NoError(t, err)
	return app
}

func wait(t *testing.T, sub companion.Submission) effects.Result {
	t.Helper()
	select {
	case res := <-sub.Done:
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("entry was never finalized")
		return effects.Result{}
	}
}

func TestApp_TextQuery(t *testing.T) {
	ctx := context.Background()
	blobs := memory.NewStore()
	tr := effects.NewFakeTransport(effects.DefaultBaseURL, true)
	app := newApp(t, blobs, tr)

	sub, err := app.Submit(ctx, domain.EffectText, "Who are you?")
	require.NoError(t, err)

	// The entry is visible as ongoing right away.
	entry, ok := app.State().FindEntry(sub.EntryID)
	require.True(t, ok)
	assert.Equal(t, "Who are you?", entry.Query)

	require.NoError(t, wait(t, sub).Err)
	require.NoError(t, app.Close(ctx))

	entry, ok = app.State().FindEntry(sub.EntryID)
	require.True(t, ok)
	assert.Equal(t, domain.TextSucceeded(effects.FakeAnswer), entry.Response)

	saved, err := blobs.Load(ctx, domain.DefaultStorageKey)
	require.NoError(t, err)
	assert.Contains(t, string(saved), effects.FakeAnswer)
	assert.NoError(t, app.PersistenceErr())

	reqs := tr.RequestsTo(effects.DefaultBaseURL + "/chat/completions")
	require.Len(t, reqs, 1)
	assert.Equal(t, "Bearer sk-test", reqs[0].Header.Get("Authorization"))
}

func TestApp_ImageQuery(t *testing.T) {
	ctx := context.Background()
	tr := effects.NewFakeTransport(effects.DefaultBaseURL, true)
	app := newApp(t, memory.NewStore(), tr, companion.WithImageDimension(256))
	defer func() { _ = app.Close(ctx) }()

	sub, err := app.Submit(ctx, domain.EffectImage, "a cat")
	require.NoError(t, err)
	require.NoError(t, wait(t, sub).Err)

	entry, _ := app.State().FindEntry(sub.EntryID)
	assert.Equal(t, domain.ResponseImages, entry.Response.Kind)
	assert.Equal(t, domain.StatusSucceeded, entry.Response.Status)
	require.NotNil(t, entry.Response.Image)
	assert.Equal(t, "image/png", entry.Response.Image.MIMEType)

	reqs := tr.RequestsTo(effects.DefaultBaseURL + "/images/generations")
	require.Len(t, reqs, 1)
	assert.Contains(t, string(reqs[0].Body), `"256x256"`)
}

func TestApp_FlaggedQueryFinalizesAsFailure(t *testing.T) {
	ctx := context.Background()
	tr := effects.NewFakeTransport(effects.DefaultBaseURL, true)
	tr.Handle(http.MethodPost, effects.DefaultBaseURL+"/moderations", effects.JSONResponse(http.StatusOK,
		openai.ModerationResponse{Results: []openai.Result{{Flagged: true}}}))
	app := newApp(t, memory.NewStore(), tr)
	defer func() { _ = app.Close(ctx) }()

	sub, err := app.Submit(ctx, domain.EffectText, "something bad")
	require.NoError(t, err)
	assert.ErrorIs(t, wait(t, sub).Err, effects.ErrFlaggedPrompt)

	entry, _ := app.State().FindEntry(sub.EntryID)
	assert.Equal(t, domain.FailureResponse(), entry.Response)
}

func TestApp_SubmitUsesQueryText(t *testing.T) {
	ctx := context.Background()
	app := newApp(t, memory.NewStore(), effects.NewFakeTransport(effects.DefaultBaseURL, true))
	defer func() { _ = app.Close(ctx) }()

	_, err := app.Submit(ctx, domain.EffectText, "  ")
	assert.ErrorIs(t, err, companion.ErrEmptyQuery)

	require.NoError(t, app.Dispatch(ctx, domain.UpdateQueryText{Text: "typed"}))
	sub, err := app.Submit(ctx, domain.EffectText, "")
	require.NoError(t, err)
	wait(t, sub)

	entry, _ := app.State().FindEntry(sub.EntryID)
	assert.Equal(t, "typed", entry.Query)
}

func TestApp_RestoresSavedState(t *testing.T) {
	ctx := context.Background()
	blobs := memory.NewStore()
	tr := effects.NewFakeTransport(effects.DefaultBaseURL, true)

	first := newApp(t, blobs, tr)
	sub, err := first.Submit(ctx, domain.EffectText, "remember me")
	require.NoError(t, err)
	wait(t, sub)
	require.NoError(t, first.Dispatch(ctx, domain.ToggleFavorite{ID: sub.EntryID}))
	require.NoError(t, first.Close(ctx))

	second := newApp(t, blobs, tr)
	defer func() { _ = second.Close(ctx) }()

	state := second.State()
	entry, ok := state.FindEntry(sub.EntryID)
	require.True(t, ok)
	assert.Equal(t, domain.TextSucceeded(effects.FakeAnswer), entry.Response)
	assert.True(t, state.Conversations[state.IndexOfConversationWithEntry(sub.EntryID)].Favorite)
	assert.Equal(t, "sk-test", state.Settings.APIKey)
}

func TestApp_SavedKeyWinsOverConfigured(t *testing.T) {
	ctx := context.Background()
	blobs := memory.NewStore()
	tr := effects.NewFakeTransport(effects.DefaultBaseURL, true)

	first := newApp(t, blobs, tr)
	settings := domain.DefaultAPISettings()
	settings.APIKey = "sk-saved"
	require.NoError(t, first.Dispatch(ctx, domain.UpdateSettings{Settings: settings}))
	require.NoError(t, first.Close(ctx))

	second := newApp(t, blobs, tr, companion.WithAPIKey("sk-env"))
	defer func() { _ = second.Close(ctx) }()
	assert.Equal(t, "sk-saved", second.State().Settings.APIKey)
}

func TestApp_EncryptedStorage(t *testing.T) {
	ctx := context.Background()
	blobs := memory.NewStore()
	tr := effects.NewFakeTransport(effects.DefaultBaseURL, true)
	key := bytes.Repeat([]byte{7}, 32)

	app := newApp(t, blobs, tr, companion.WithEncryptionKey(key))
	sub, err := app.Submit(ctx, domain.EffectText, "secret question")
	require.NoError(t, err)
	wait(t, sub)
	require.NoError(t, app.Close(ctx))

	raw, err := blobs.Load(ctx, domain.DefaultStorageKey)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret question")
	assert.Contains(t, string(raw), "__encrypted__")

	reopened := newApp(t, blobs, tr, companion.WithEncryptionKey(key))
	defer func() { _ = reopened.Close(ctx) }()
	_, ok := reopened.State().FindEntry(sub.EntryID)
	assert.True(t, ok)
}

func TestApp_CloseWaitsForEffects(t *testing.T) {
	ctx := context.Background()
	tr := effects.NewFakeTransport(effects.DefaultBaseURL, true)
	slow := effects.JSONResponse(http.StatusOK, openai.ModerationResponse{Results: []openai.Result{{}}})
	tr.Handle(http.MethodPost, effects.DefaultBaseURL+"/moderations", func(r ports.Request) (ports.Response, error) {
		time.Sleep(30 * time.Millisecond)
		return slow(r)
	})
	app := newApp(t, memory.NewStore(), tr)

	sub, err := app.Submit(ctx, domain.EffectText, "slow")
	require.NoError(t, err)
	require.NoError(t, app.Close(ctx))

	entry, _ := app.State().FindEntry(sub.EntryID)
	assert.False(t, entry.Response.IsOngoing(), "Close must let running effects finalize")
}
