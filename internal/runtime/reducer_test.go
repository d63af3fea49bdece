package runtime_test

import (
	"image/color"
	"testing"

	"github.com/aretw0/companion/internal/runtime"
	"github.com/aretw0/companion/internal/testutils"
	"github.com/aretw0/companion/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReducer() (*runtime.Reducer, *testutils.Sequence, *testutils.Clock) {
	ids := testutils.NewSequence("id")
	clock := testutils.NewClock()
	r := runtime.NewReducer(runtime.WithCoeffects(runtime.Coeffects{Now: clock.Now, NewID: ids.Next}))
	return r, ids, clock
}

func initialState() domain.AppState {
	return domain.NewAppState("conv-0", testutils.Epoch)
}

func textEntry(id, query string) domain.Entry {
	return domain.NewEntry(id, query, domain.EffectText, testutils.Epoch.Add(10))
}

func sameState(a, b domain.AppState) bool {
	return domain.EqualPersisted(a, b) && a.Ephemeral == b.Ephemeral
}

func TestReduce_AppendThenFinalize(t *testing.T) {
	r, _, _ := newReducer()
	s := initialState()

	s = r.Reduce(s, []domain.Intent{domain.UpdateQueryText{Text: "hello"}})
	assert.Equal(t, "hello", s.Ephemeral.QueryText)
	assert.Equal(t, domain.UpdateEphemeral, s.UpdateKind)

	e := textEntry("e1", "hello")
	s = r.Reduce(s, []domain.Intent{domain.AppendEntry{Entry: e}})
	assert.Equal(t, "", s.Ephemeral.QueryText, "Query text must be cleared after append")
	assert.Equal(t, domain.UpdatePermanent, s.UpdateKind)
	require.Len(t, s.Conversations[0].Entries, 1)
	assert.True(t, s.Conversations[0].Entries[0].Response.IsOngoing())

	s = r.Reduce(s, []domain.Intent{domain.FinalizeEntry{EntryID: "e1", Response: domain.APIText("hi")}})
	got, ok := s.FindEntry("e1")
	require.True(t, ok)
	assert.True(t, got.Response.Equal(domain.TextSucceeded("hi")))
	assert.Equal(t, domain.UpdatePermanent, s.UpdateKind)
}

func TestReduce_DoesNotMutateInput(t *testing.T) {
	r, _, _ := newReducer()
	s := initialState()
	s = r.Reduce(s, []domain.Intent{domain.AppendEntry{Entry: textEntry("e1", "q")}})

	before := s.Clone()
	_ = r.Reduce(s, []domain.Intent{
		domain.FinalizeEntry{EntryID: "e1", Response: domain.APIFailure()},
		domain.AppendEntry{Entry: textEntry("e2", "q2")},
	})

	assert.True(t, domain.EqualPersisted(before, s))
}

func TestReduce_BatchFoldsInOrder(t *testing.T) {
	r, _, _ := newReducer()
	s := initialState()

	// Later intents see the entry appended by earlier ones.
	s = r.Reduce(s, []domain.Intent{
		domain.UpdateQueryText{Text: "draft"},
		domain.AppendEntry{Entry: textEntry("e1", "draft")},
		domain.FinalizeEntry{EntryID: "e1", Response: domain.APIText("done")},
		domain.UpdateQueryText{Text: "next"},
	})

	got, ok := s.FindEntry("e1")
	require.True(t, ok)
	assert.Equal(t, "done", got.Response.Text)
	assert.Equal(t, "next", s.Ephemeral.QueryText)
}

func TestReduce_IsDeterministic(t *testing.T) {
	batch := []domain.Intent{
		domain.CreateConversation{},
		domain.AppendEntry{Entry: textEntry("e1", "q")},
		domain.RefreshUI{},
		domain.ToggleFavorite{ID: "e1"},
	}

	r1, _, _ := newReducer()
	r2, _, _ := newReducer()
	a := r1.Reduce(initialState(), batch)
	b := r2.Reduce(initialState(), batch)

	assert.True(t, sameState(a, b))
	assert.Equal(t, a.UpdateKind, b.UpdateKind)
}

func TestReduce_Popover(t *testing.T) {
	r, _, _ := newReducer()
	s := initialState()

	tests := []struct {
		intent domain.Intent
		want   domain.PopoverKind
	}{
		{domain.ShowHistory{}, domain.PopoverHistory},
		{domain.TogglePopover{}, domain.PopoverSettings},
		{domain.TogglePopover{}, domain.PopoverHistory},
		{domain.HidePopover{}, domain.PopoverNone},
		{domain.TogglePopover{}, domain.PopoverHistory},
	}
	for _, tt := range tests {
		s = r.Reduce(s, []domain.Intent{tt.intent})
		assert.Equal(t, tt.want, s.Ephemeral.Popover, "after %s", tt.intent.Type())
		assert.Equal(t, domain.UpdateEphemeral, s.UpdateKind)
	}
}

func TestReduce_SaveSettingsTransaction(t *testing.T) {
	r, _, _ := newReducer()
	s := r.Reduce(initialState(), []domain.Intent{domain.ShowHistory{}, domain.TogglePopover{}})
	require.Equal(t, domain.PopoverSettings, s.Ephemeral.Popover)

	settings := domain.APISettings{APIKey: "sk-test", ChatModel: "gpt-4o", ImageModel: "dall-e-3"}
	s = r.Reduce(s, []domain.Intent{domain.UpdateSettings{Settings: settings}, domain.TogglePopover{}})

	assert.Equal(t, settings, s.Settings)
	assert.Equal(t, domain.PopoverHistory, s.Ephemeral.Popover)
	assert.Equal(t, domain.UpdatePermanent, s.UpdateKind)

	// Same settings again: persisted projection unchanged.
	s = r.Reduce(s, []domain.Intent{domain.UpdateSettings{Settings: settings}})
	assert.Equal(t, domain.UpdateEphemeral, s.UpdateKind)
}

func TestReduce_CreateConversation(t *testing.T) {
	r, _, _ := newReducer()
	s := initialState()

	t.Run("Replaces Trailing Empty Conversation", func(t *testing.T) {
		s = r.Reduce(s, []domain.Intent{domain.CreateConversation{}})
		require.Len(t, s.Conversations, 1)
		assert.NotEqual(t, "conv-0", s.Conversations[0].ID)
		assert.Equal(t, 0, s.Ephemeral.CurrentIndex)
		assert.Equal(t, domain.UpdatePermanent, s.UpdateKind)
	})

	t.Run("Keeps Non-Empty Conversations", func(t *testing.T) {
		s = r.Reduce(s, []domain.Intent{
			domain.AppendEntry{Entry: textEntry("e1", "q")},
			domain.CreateConversation{},
		})
		require.Len(t, s.Conversations, 2)
		assert.Equal(t, 1, s.Ephemeral.CurrentIndex)
		assert.True(t, s.Conversations[1].IsEmpty())
	})

	t.Run("Repeated Creation Leaves One Empty", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			s = r.Reduce(s, []domain.Intent{domain.CreateConversation{}})
		}
		empty := 0
		for _, c := range s.Conversations {
			if c.IsEmpty() {
				empty++
			}
		}
		assert.Equal(t, 1, empty)
		assert.True(t, s.Conversations[len(s.Conversations)-1].IsEmpty())
		assert.NotEmpty(t, s.Conversations)
	})
}

func TestReduce_FinalizeEntry(t *testing.T) {
	r, _, _ := newReducer()
	img := domain.Image{Data: testutils.PNG(t, 2, 2, color.White), MIMEType: "image/png", Width: 2, Height: 2}
	other := domain.Image{Data: testutils.PNG(t, 3, 3, color.Black), MIMEType: "image/png", Width: 3, Height: 3}

	s := r.Reduce(initialState(), []domain.Intent{
		domain.AppendEntry{Entry: textEntry("t1", "q")},
		domain.AppendEntry{Entry: domain.NewEntry("i1", "draw", domain.EffectImage, testutils.Epoch)},
	})

	t.Run("Images Keeps First", func(t *testing.T) {
		s = r.Reduce(s, []domain.Intent{domain.FinalizeEntry{EntryID: "i1", Response: domain.APIImages(img, other)}})
		got, _ := s.FindEntry("i1")
		assert.True(t, got.Response.Equal(domain.ImageSucceeded(img)))
	})

	t.Run("Failure", func(t *testing.T) {
		s = r.Reduce(s, []domain.Intent{domain.FinalizeEntry{EntryID: "t1", Response: domain.APIFailure()}})
		got, _ := s.FindEntry("t1")
		assert.Equal(t, domain.ResponseFailure, got.Response.Kind)
	})

	t.Run("Unknown Id Is No-Op", func(t *testing.T) {
		next := r.Reduce(s, []domain.Intent{domain.FinalizeEntry{EntryID: "missing", Response: domain.APIText("x")}})
		assert.True(t, sameState(s, next))
		assert.Equal(t, domain.UpdateEphemeral, next.UpdateKind)
	})

	t.Run("Second Finalize Is Idempotent", func(t *testing.T) {
		batch := []domain.Intent{domain.FinalizeEntry{EntryID: "t1", Response: domain.APIText("answer")}}
		once := r.Reduce(s, batch)
		twice := r.Reduce(once, batch)

		assert.Equal(t, domain.UpdatePermanent, once.UpdateKind)
		assert.Equal(t, domain.UpdateEphemeral, twice.UpdateKind)
		assert.True(t, sameState(once, twice))
	})
}

func TestReduce_DisplayEntry(t *testing.T) {
	r, _, _ := newReducer()
	s := r.Reduce(initialState(), []domain.Intent{
		domain.AppendEntry{Entry: textEntry("e1", "q")},
		domain.CreateConversation{},
		domain.ShowHistory{},
		domain.UpdateQueryText{Text: "typing"},
	})
	require.Equal(t, 1, s.Ephemeral.CurrentIndex)

	s = r.Reduce(s, []domain.Intent{domain.DisplayEntry{ID: "e1"}})
	assert.Equal(t, 0, s.Ephemeral.CurrentIndex)
	assert.Equal(t, domain.PopoverNone, s.Ephemeral.Popover)
	assert.Equal(t, "", s.Ephemeral.QueryText)
	assert.Equal(t, domain.UpdateEphemeral, s.UpdateKind)

	s = r.Reduce(s, []domain.Intent{domain.DisplayEntry{ID: s.Conversations[1].ID}})
	assert.Equal(t, 1, s.Ephemeral.CurrentIndex, "Conversation ids are accepted too")
}

func TestReduce_ToggleFavorite(t *testing.T) {
	r, _, _ := newReducer()
	s := r.Reduce(initialState(), []domain.Intent{domain.AppendEntry{Entry: textEntry("e1", "q")}})

	s = r.Reduce(s, []domain.Intent{domain.ToggleFavorite{ID: "e1"}})
	assert.True(t, s.Conversations[0].Favorite)
	assert.Equal(t, domain.UpdatePermanent, s.UpdateKind)

	s = r.Reduce(s, []domain.Intent{domain.ToggleFavorite{ID: "e1"}})
	assert.False(t, s.Conversations[0].Favorite)
}

func TestReduce_PreconditionViolation(t *testing.T) {
	r, _, _ := newReducer()

	for _, in := range []domain.Intent{domain.DisplayEntry{ID: "nope"}, domain.ToggleFavorite{ID: "nope"}} {
		t.Run(string(in.Type()), func(t *testing.T) {
			defer func() {
				rec := recover()
				require.NotNil(t, rec, "Expected panic")
				perr, ok := rec.(*domain.PreconditionError)
				require.True(t, ok, "Expected *domain.PreconditionError, got %T", rec)
				assert.Equal(t, "nope", perr.ID)
			}()
			r.Reduce(initialState(), []domain.Intent{in})
		})
	}
}

func TestReduce_MustResultInChange(t *testing.T) {
	r, _, _ := newReducer()
	base := r.Reduce(initialState(), []domain.Intent{domain.AppendEntry{Entry: textEntry("e1", "q")}})

	intents := []domain.Intent{
		domain.UpdateSettings{Settings: base.Settings},
		domain.RefreshUI{},
		domain.UpdateQueryText{Text: ""},
		domain.ShowHistory{},
		domain.TogglePopover{},
		domain.HidePopover{},
		domain.CreateConversation{},
		domain.AppendEntry{Entry: textEntry("e2", "q2")},
		domain.FinalizeEntry{EntryID: "e1", Response: domain.APIText("x")},
		domain.DisplayEntry{ID: "e1"},
		domain.ToggleFavorite{ID: "e1"},
	}

	for _, in := range intents {
		if !domain.MustResultInChange(in) {
			continue
		}
		next := r.Reduce(base, []domain.Intent{in})
		assert.False(t, sameState(base, next), "%s must change state", in.Type())
	}
}
