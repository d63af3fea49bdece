package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/companion/pkg/domain"
	"github.com/google/uuid"
)

// ErrMalformed is returned when the payload is not a JSON object.
var ErrMalformed = errors.New("codec: payload is not a JSON object")

// JSON implements ports.Codec.
//
// Only succeeded responses carry a payload on the wire: {"text": "..."} or
// {"imageData": "<base64>"}. Anything else is written as {} and reads back
// as a text response that failed with domain.ErrTextDecoding.
type JSON struct {
	// Now and NewID build the fallback conversation. Both default to the real ones.
	Now   func() time.Time
	NewID func() string
}

// NewJSON returns a JSON codec using the wall clock and random ids.
func NewJSON() *JSON {
	return &JSON{Now: time.Now, NewID: uuid.NewString}
}

type wireState struct {
	Chats    json.RawMessage `json:"chats"`
	Settings json.RawMessage `json:"openAiApiSettings"`
}

type wireSettings struct {
	APIKey     string `json:"apiKey"`
	ChatModel  string `json:"chatModel"`
	ImageModel string `json:"imageGenerationModel"`
}

type wireChat struct {
	ID               string      `json:"id"`
	CreationDate     time.Time   `json:"creationDate"`
	ModificationDate time.Time   `json:"modificationDate"`
	Entries          []wireEntry `json:"entries"`
	IsFavorite       bool        `json:"isFavorite"`
}

type wireEntry struct {
	ID           string       `json:"id"`
	QueryText    string       `json:"queryText"`
	Response     wireResponse `json:"response"`
	CreationDate time.Time    `json:"creationDate"`
}

// wireResponse keeps imageData raw so one bad payload only fails its entry.
type wireResponse struct {
	Text      *string         `json:"text,omitempty"`
	ImageData json.RawMessage `json:"imageData,omitempty"`
}

// Encode writes the persisted projection of state. The output is
// deterministic, so equal projections give equal bytes.
func (c *JSON) Encode(state domain.AppState) ([]byte, error) {
	chats := make([]wireChat, len(state.Conversations))
	for i, conv := range state.Conversations {
		entries := make([]wireEntry, len(conv.Entries))
		for j, e := range conv.Entries {
			entries[j] = wireEntry{
				ID:           e.ID,
				QueryText:    e.Query,
				Response:     encodeResponse(e.Response),
				CreationDate: e.CreatedAt,
			}
		}
		chats[i] = wireChat{
			ID:               conv.ID,
			CreationDate:     conv.CreatedAt,
			ModificationDate: conv.ModifiedAt,
			Entries:          entries,
			IsFavorite:       conv.Favorite,
		}
	}

	out := struct {
		Chats    []wireChat   `json:"chats"`
		Settings wireSettings `json:"openAiApiSettings"`
	}{
		Chats: chats,
		Settings: wireSettings{
			APIKey:     state.Settings.APIKey,
			ChatModel:  state.Settings.ChatModel,
			ImageModel: state.Settings.ImageModel,
		},
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}
	return data, nil
}

func encodeResponse(r domain.Response) wireResponse {
	if r.Status != domain.StatusSucceeded {
		return wireResponse{}
	}
	switch r.Kind {
	case domain.ResponseText:
		text := r.Text
		return wireResponse{Text: &text}
	case domain.ResponseImages:
		if r.Image != nil {
			raw, _ := json.Marshal(r.Image.Data) // base64 string
			return wireResponse{ImageData: raw}
		}
	}
	return wireResponse{}
}

// Decode restores a state. Missing or undecodable top-level fields fall back
// to their defaults: settings to DefaultAPISettings, conversations to a single
// empty one. The ephemeral part is always fresh.
func (c *JSON) Decode(data []byte) (domain.AppState, error) {
	var ws wireState
	if err := json.Unmarshal(data, &ws); err != nil {
		return domain.AppState{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	state := domain.AppState{
		Settings:   decodeSettings(ws.Settings),
		Ephemeral:  domain.EphemeralState{Popover: domain.PopoverNone},
		UpdateKind: domain.UpdatePermanent,
	}

	var chats []wireChat
	if len(ws.Chats) > 0 && json.Unmarshal(ws.Chats, &chats) == nil {
		state.Conversations = make([]domain.Conversation, 0, len(chats))
		for _, wc := range chats {
			state.Conversations = append(state.Conversations, decodeChat(wc))
		}
	}

	if len(state.Conversations) == 0 {
		state.Conversations = []domain.Conversation{domain.NewConversation(c.newID(), c.now())}
	}
	return state, nil
}

func decodeSettings(raw json.RawMessage) domain.APISettings {
	settings := domain.DefaultAPISettings()

	var ws wireSettings
	if len(raw) == 0 || json.Unmarshal(raw, &ws) != nil {
		return settings
	}

	settings.APIKey = ws.APIKey
	if ws.ChatModel != "" {
		settings.ChatModel = ws.ChatModel
	}
	if ws.ImageModel != "" {
		settings.ImageModel = ws.ImageModel
	}
	return settings
}

func decodeChat(wc wireChat) domain.Conversation {
	conv := domain.Conversation{
		ID:         wc.ID,
		CreatedAt:  wc.CreationDate,
		ModifiedAt: wc.ModificationDate,
		Entries:    make([]domain.Entry, len(wc.Entries)),
		Favorite:   wc.IsFavorite,
	}
	for i, we := range wc.Entries {
		conv.Entries[i] = domain.Entry{
			ID:        we.ID,
			Query:     we.QueryText,
			CreatedAt: we.CreationDate,
			Response:  decodeResponse(we.Response),
		}
	}
	return conv
}

func decodeResponse(wr wireResponse) domain.Response {
	if len(wr.ImageData) > 0 && string(wr.ImageData) != "null" {
		var data []byte
		if err := json.Unmarshal(wr.ImageData, &data); err != nil {
			return domain.ImageFailed(domain.ErrImageDecoding)
		}
		img, err := DecodeImage(data)
		if err != nil {
			return domain.ImageFailed(domain.ErrImageDecoding)
		}
		return domain.ImageSucceeded(img)
	}
	if wr.Text != nil {
		return domain.TextSucceeded(*wr.Text)
	}
	return domain.TextFailed(domain.ErrTextDecoding)
}

func (c *JSON) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

func (c *JSON) newID() string {
	if c.NewID == nil {
		return uuid.NewString()
	}
	return c.NewID()
}
