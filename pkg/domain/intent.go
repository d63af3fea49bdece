package domain

import "fmt"

// IntentType is the stable wire name of an intent variant.
type IntentType string

const (
	IntentUpdateSettings     IntentType = "update_settings"
	IntentRefreshUI          IntentType = "refresh_ui"
	IntentUpdateQueryText    IntentType = "update_query_text"
	IntentShowHistory        IntentType = "show_history"
	IntentTogglePopover      IntentType = "toggle_popover"
	IntentHidePopover        IntentType = "hide_popover"
	IntentCreateConversation IntentType = "create_conversation"
	IntentAppendEntry        IntentType = "append_entry"
	IntentFinalizeEntry      IntentType = "finalize_entry"
	IntentDisplayEntry       IntentType = "display_entry"
	IntentToggleFavorite     IntentType = "toggle_favorite"
)

// Intent is an immutable command describing a requested state change.
// The set of implementations is closed to this package.
type Intent interface {
	Type() IntentType
	isIntent()
}

// UpdateSettings replaces the API settings.
type UpdateSettings struct {
	Settings APISettings `mapstructure:"settings"`
}

// RefreshUI regenerates the UI refresh token.
type RefreshUI struct{}

// UpdateQueryText sets the in-progress query text.
type UpdateQueryText struct {
	Text string `mapstructure:"text"`
}

// ShowHistory shows the history popover.
type ShowHistory struct{}

// TogglePopover flips between the history and settings popovers.
type TogglePopover struct{}

// HidePopover hides any popover.
type HidePopover struct{}

// CreateConversation prunes empty conversations and appends a new one.
type CreateConversation struct{}

// AppendEntry appends an entry to the current conversation.
type AppendEntry struct {
	Entry Entry `mapstructure:"entry"`
}

// FinalizeEntry resolves the response of the entry with EntryID.
type FinalizeEntry struct {
	EntryID  string      `mapstructure:"entry_id"`
	Response APIResponse `mapstructure:"response"`
}

// DisplayEntry makes the conversation holding ID current.
// ID must name an existing entry or conversation.
type DisplayEntry struct {
	ID string `mapstructure:"id"`
}

// ToggleFavorite flips the favorite flag of the conversation holding ID.
// ID must name an existing entry or conversation.
type ToggleFavorite struct {
	ID string `mapstructure:"id"`
}

func (UpdateSettings) Type() IntentType     { return IntentUpdateSettings }
func (RefreshUI) Type() IntentType          { return IntentRefreshUI }
func (UpdateQueryText) Type() IntentType    { return IntentUpdateQueryText }
func (ShowHistory) Type() IntentType        { return IntentShowHistory }
func (TogglePopover) Type() IntentType      { return IntentTogglePopover }
func (HidePopover) Type() IntentType        { return IntentHidePopover }
func (CreateConversation) Type() IntentType { return IntentCreateConversation }
func (AppendEntry) Type() IntentType        { return IntentAppendEntry }
func (FinalizeEntry) Type() IntentType      { return IntentFinalizeEntry }
func (DisplayEntry) Type() IntentType       { return IntentDisplayEntry }
func (ToggleFavorite) Type() IntentType     { return IntentToggleFavorite }

func (UpdateSettings) isIntent()     {}
func (RefreshUI) isIntent()          {}
func (UpdateQueryText) isIntent()    {}
func (ShowHistory) isIntent()        {}
func (TogglePopover) isIntent()      {}
func (HidePopover) isIntent()        {}
func (CreateConversation) isIntent() {}
func (AppendEntry) isIntent()        {}
func (FinalizeEntry) isIntent()      {}
func (DisplayEntry) isIntent()       {}
func (ToggleFavorite) isIntent()     {}

// MustResultInChange reports whether applying the intent always changes state.
// It is used by tests, never checked at runtime.
func MustResultInChange(i Intent) bool {
	switch i.(type) {
	case RefreshUI, CreateConversation, AppendEntry, FinalizeEntry, ToggleFavorite:
		return true
	default:
		return false
	}
}

// Describe returns a human-readable description for logs.
func Describe(i Intent) string {
	switch v := i.(type) {
	case UpdateSettings:
		return "update of API settings"
	case RefreshUI:
		return "UI refresh token change request"
	case UpdateQueryText:
		return "update of query text"
	case ShowHistory:
		return "showing of history popover"
	case TogglePopover:
		return "toggling of popover"
	case HidePopover:
		return "hiding of popover"
	case CreateConversation:
		return "creation of new conversation"
	case AppendEntry:
		return fmt.Sprintf("appending of entry %s", v.Entry.ID)
	case FinalizeEntry:
		return fmt.Sprintf("finalizing of entry %s using response %s", v.EntryID, v.Response.Kind)
	case DisplayEntry:
		return fmt.Sprintf("display of entry %s", v.ID)
	case ToggleFavorite:
		return fmt.Sprintf("toggling of favorite setting of entry %s", v.ID)
	default:
		return fmt.Sprintf("unknown intent %T", i)
	}
}

// DescribeAll joins the descriptions of a batch.
func DescribeAll(intents []Intent) []string {
	out := make([]string, len(intents))
	for i, in := range intents {
		out[i] = Describe(in)
	}
	return out
}
