package runtime

import (
	"time"

	"github.com/aretw0/companion/pkg/domain"
	"github.com/google/uuid"
)

// Coeffects are the impure inputs of a reduction (clock, id source).
// Injecting them keeps Reduce deterministic under test.
type Coeffects struct {
	Now   func() time.Time
	NewID func() string
}

// DefaultCoeffects uses the wall clock and random UUIDs.
func DefaultCoeffects() Coeffects {
	return Coeffects{
		Now:   time.Now,
		NewID: uuid.NewString,
	}
}

// Reducer folds batches of intents over an AppState.
// It holds no state between calls.
type Reducer struct {
	coeffects Coeffects
}

// ReducerOption configures a Reducer.
type ReducerOption func(*Reducer)

// WithCoeffects replaces the clock and id source.
func WithCoeffects(c Coeffects) ReducerOption {
	return func(r *Reducer) {
		if c.Now != nil {
			r.coeffects.Now = c.Now
		}
		if c.NewID != nil {
			r.coeffects.NewID = c.NewID
		}
	}
}

// NewReducer creates a reducer with default coeffects.
func NewReducer(opts ...ReducerOption) *Reducer {
	r := &Reducer{coeffects: DefaultCoeffects()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Coeffects returns the coeffects the reducer uses.
func (r *Reducer) Coeffects() Coeffects {
	return r.coeffects
}

// Reduce applies intents in order to a copy of state and classifies the result.
// Later intents observe the effects of earlier ones. The input state is not modified.
//
// It panics with *domain.PreconditionError when DisplayEntry or ToggleFavorite
// reference an id that does not exist.
func (r *Reducer) Reduce(state domain.AppState, intents []domain.Intent) domain.AppState {
	next := state.Clone()
	for _, in := range intents {
		r.apply(&next, in)
	}

	if domain.EqualPersisted(state, next) {
		next.UpdateKind = domain.UpdateEphemeral
	} else {
		next.UpdateKind = domain.UpdatePermanent
	}
	return next
}

func (r *Reducer) apply(s *domain.AppState, in domain.Intent) {
	switch v := in.(type) {
	case domain.UpdateSettings:
		s.Settings = v.Settings

	case domain.RefreshUI:
		s.Ephemeral.RefreshToken = r.coeffects.NewID()

	case domain.UpdateQueryText:
		s.Ephemeral.QueryText = v.Text

	case domain.ShowHistory:
		s.Ephemeral.Popover = domain.PopoverHistory

	case domain.TogglePopover:
		if s.Ephemeral.Popover == domain.PopoverHistory {
			s.Ephemeral.Popover = domain.PopoverSettings
		} else {
			s.Ephemeral.Popover = domain.PopoverHistory
		}

	case domain.HidePopover:
		s.Ephemeral.Popover = domain.PopoverNone

	case domain.CreateConversation:
		kept := s.Conversations[:0]
		for _, c := range s.Conversations {
			if !c.IsEmpty() {
				kept = append(kept, c)
			}
		}
		s.Conversations = append(kept, domain.NewConversation(r.coeffects.NewID(), r.coeffects.Now()))
		s.Ephemeral.CurrentIndex = len(s.Conversations) - 1

	case domain.AppendEntry:
		c := s.CurrentConversation()
		c.Entries = append(c.Entries, v.Entry)
		if v.Entry.CreatedAt.After(c.ModifiedAt) {
			c.ModifiedAt = v.Entry.CreatedAt
		}
		s.Ephemeral.QueryText = ""

	case domain.FinalizeEntry:
		ci := s.IndexOfConversationWithEntry(v.EntryID)
		if ci < 0 {
			return
		}
		c := &s.Conversations[ci]
		c.Entries[c.IndexOfEntry(v.EntryID)].Response = v.Response.Resolve()

	case domain.DisplayEntry:
		s.Ephemeral.CurrentIndex = mustFindConversation(*s, v.Type(), v.ID)
		s.Ephemeral.Popover = domain.PopoverNone
		s.Ephemeral.QueryText = ""

	case domain.ToggleFavorite:
		ci := mustFindConversation(*s, v.Type(), v.ID)
		s.Conversations[ci].Favorite = !s.Conversations[ci].Favorite
	}
}

func mustFindConversation(s domain.AppState, t domain.IntentType, id string) int {
	if ci := s.ResolveConversation(id); ci >= 0 {
		return ci
	}
	panic(&domain.PreconditionError{Intent: t, ID: id})
}
