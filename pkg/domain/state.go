package domain

import "time"

// UpdateKind classifies the most recent transition of an AppState.
type UpdateKind string

const (
	// UpdateEphemeral marks a transition that only touched UI sub-state.
	UpdateEphemeral UpdateKind = "ephemeral"
	// UpdatePermanent marks a transition that changed persisted data.
	UpdatePermanent UpdateKind = "permanent"
)

// PopoverKind identifies which popover the UI currently shows.
type PopoverKind string

const (
	PopoverNone     PopoverKind = "none"
	PopoverHistory  PopoverKind = "history"
	PopoverSettings PopoverKind = "settings"
)

// Default model identifiers used when settings are missing or empty.
const (
	DefaultChatModel  = "gpt-3.5-turbo-1106"
	DefaultImageModel = "dall-e-3"
)

// APISettings holds the credential and model identifiers for the upstream API.
type APISettings struct {
	APIKey     string `json:"apiKey" mapstructure:"api_key"`
	ChatModel  string `json:"chatModel" mapstructure:"chat_model"`
	ImageModel string `json:"imageGenerationModel" mapstructure:"image_model"`
}

// DefaultAPISettings returns settings with an empty key and the default models.
func DefaultAPISettings() APISettings {
	return APISettings{
		ChatModel:  DefaultChatModel,
		ImageModel: DefaultImageModel,
	}
}

// Redacted returns a copy with the API key masked, for logs and HTTP output.
func (s APISettings) Redacted() APISettings {
	if s.APIKey != "" {
		s.APIKey = "***"
	}
	return s
}

// EphemeralState is UI sub-state that is never persisted.
type EphemeralState struct {
	CurrentIndex int         `json:"currentIndex"`
	QueryText    string      `json:"queryText"`
	Popover      PopoverKind `json:"popover"`
	RefreshToken string      `json:"refreshToken"`
}

// Conversation is an ordered sequence of entries.
type Conversation struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"creationDate"`
	ModifiedAt time.Time `json:"modificationDate"`
	Entries    []Entry   `json:"entries"`
	Favorite   bool      `json:"isFavorite"`
}

// NewConversation creates an empty conversation.
func NewConversation(id string, now time.Time) Conversation {
	return Conversation{
		ID:         id,
		CreatedAt:  now,
		ModifiedAt: now,
		Entries:    []Entry{},
	}
}

// IsEmpty reports whether the conversation has no entries.
func (c Conversation) IsEmpty() bool {
	return len(c.Entries) == 0
}

// IndexOfEntry returns the position of the entry with the given id, or -1.
func (c Conversation) IndexOfEntry(id string) int {
	for i, e := range c.Entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// Equal compares two conversations field by field.
func (c Conversation) Equal(o Conversation) bool {
	if c.ID != o.ID || c.Favorite != o.Favorite ||
		!c.CreatedAt.Equal(o.CreatedAt) || !c.ModifiedAt.Equal(o.ModifiedAt) ||
		len(c.Entries) != len(o.Entries) {
		return false
	}
	for i := range c.Entries {
		if !c.Entries[i].Equal(o.Entries[i]) {
			return false
		}
	}
	return true
}

// Entry is a single query and its response.
type Entry struct {
	ID        string    `json:"id"`
	Query     string    `json:"queryText"`
	CreatedAt time.Time `json:"creationDate"`
	Response  Response  `json:"response"`
}

// NewEntry creates an entry whose response is ongoing for the given kind.
func NewEntry(id, query string, kind EffectKind, now time.Time) Entry {
	resp := OngoingText()
	if kind == EffectImage {
		resp = OngoingImages()
	}
	return Entry{
		ID:        id,
		Query:     query,
		CreatedAt: now,
		Response:  resp,
	}
}

// Equal compares two entries field by field.
func (e Entry) Equal(o Entry) bool {
	return e.ID == o.ID &&
		e.Query == o.Query &&
		e.CreatedAt.Equal(o.CreatedAt) &&
		e.Response.Equal(o.Response)
}

// AppState is the single root of application state.
// Only Conversations and Settings are persisted.
type AppState struct {
	Conversations []Conversation `json:"chats"`
	Settings      APISettings    `json:"openAiApiSettings"`

	Ephemeral  EphemeralState `json:"-"`
	UpdateKind UpdateKind     `json:"-"`
}

// NewAppState creates the default state: one empty conversation, default settings.
func NewAppState(conversationID string, now time.Time) AppState {
	return AppState{
		Conversations: []Conversation{NewConversation(conversationID, now)},
		Settings:      DefaultAPISettings(),
		Ephemeral:     EphemeralState{Popover: PopoverNone},
		UpdateKind:    UpdatePermanent,
	}
}

// Clone returns a copy that shares no slices with s.
// Image payloads are treated as immutable and stay shared.
func (s AppState) Clone() AppState {
	out := s
	out.Conversations = make([]Conversation, len(s.Conversations))
	for i, c := range s.Conversations {
		c.Entries = append([]Entry(nil), c.Entries...)
		out.Conversations[i] = c
	}
	return out
}

// CurrentConversation returns a pointer into s.Conversations for the current index.
// The index is clamped so that it always addresses an existing conversation.
func (s *AppState) CurrentConversation() *Conversation {
	i := s.Ephemeral.CurrentIndex
	if i < 0 || i >= len(s.Conversations) {
		i = len(s.Conversations) - 1
		s.Ephemeral.CurrentIndex = i
	}
	return &s.Conversations[i]
}

// IndexOfConversationWithEntry returns the index of the conversation holding the entry, or -1.
func (s AppState) IndexOfConversationWithEntry(entryID string) int {
	for i, c := range s.Conversations {
		if c.IndexOfEntry(entryID) >= 0 {
			return i
		}
	}
	return -1
}

// IndexOfConversation returns the index of the conversation with the given id, or -1.
func (s AppState) IndexOfConversation(id string) int {
	for i, c := range s.Conversations {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// ResolveConversation returns the index of the conversation addressed by id, which
// may name one of its entries or the conversation itself. Entry ids win. It returns
// -1 when neither matches.
func (s AppState) ResolveConversation(id string) int {
	if ci := s.IndexOfConversationWithEntry(id); ci >= 0 {
		return ci
	}
	return s.IndexOfConversation(id)
}

// FindEntry returns the entry with the given id.
func (s AppState) FindEntry(id string) (Entry, bool) {
	if ci := s.IndexOfConversationWithEntry(id); ci >= 0 {
		c := s.Conversations[ci]
		return c.Entries[c.IndexOfEntry(id)], true
	}
	return Entry{}, false
}

// EqualPersisted compares only the persisted projection (conversations and settings).
func EqualPersisted(a, b AppState) bool {
	if a.Settings != b.Settings || len(a.Conversations) != len(b.Conversations) {
		return false
	}
	for i := range a.Conversations {
		if !a.Conversations[i].Equal(b.Conversations[i]) {
			return false
		}
	}
	return true
}
