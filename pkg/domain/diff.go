package domain

// StateDiff represents the changes between two states.
// It is designed to be serialized to JSON for partial updates on the client.
type StateDiff struct {
	// Seq is the commit sequence number of the change, always present.
	Seq uint64 `json:"seq"`

	UpdateKind UpdateKind `json:"update_kind"`

	// Settings is set when the API settings changed. The key is redacted.
	Settings *APISettings `json:"settings,omitempty"`

	// Conversations holds conversations that were added or modified.
	Conversations []Conversation `json:"conversations,omitempty"`

	// Removed lists ids of conversations that no longer exist.
	Removed []string `json:"removed,omitempty"`

	CurrentIndex *int         `json:"current_index,omitempty"`
	QueryText    *string      `json:"query_text,omitempty"`
	Popover      *PopoverKind `json:"popover,omitempty"`
	RefreshToken *string      `json:"refresh_token,omitempty"`
}

// Diff calculates the difference between oldState and newState.
// If oldState is nil, it returns a diff representing the entire newState (initial load).
// It returns nil when nothing changed.
func Diff(oldState, newState *AppState, seq uint64) *StateDiff {
	if newState == nil {
		return nil
	}

	diff := &StateDiff{Seq: seq, UpdateKind: newState.UpdateKind}

	if oldState == nil || oldState.Settings != newState.Settings {
		s := newState.Settings.Redacted()
		diff.Settings = &s
	}

	diff.Conversations, diff.Removed = diffConversations(oldState, newState)

	oe := EphemeralState{}
	if oldState != nil {
		oe = oldState.Ephemeral
	}
	ne := newState.Ephemeral
	if oldState == nil || oe.CurrentIndex != ne.CurrentIndex {
		diff.CurrentIndex = &ne.CurrentIndex
	}
	if oe.QueryText != ne.QueryText {
		diff.QueryText = &ne.QueryText
	}
	if oe.Popover != ne.Popover {
		diff.Popover = &ne.Popover
	}
	if oe.RefreshToken != ne.RefreshToken {
		diff.RefreshToken = &ne.RefreshToken
	}

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffConversations(old, new *AppState) ([]Conversation, []string) {
	if old == nil {
		return append([]Conversation(nil), new.Conversations...), nil
	}

	previous := make(map[string]Conversation, len(old.Conversations))
	for _, c := range old.Conversations {
		previous[c.ID] = c
	}

	var changed []Conversation
	for _, c := range new.Conversations {
		p, ok := previous[c.ID]
		if !ok || !p.Equal(c) {
			changed = append(changed, c)
		}
		delete(previous, c.ID)
	}

	var removed []string
	for _, c := range old.Conversations {
		if _, gone := previous[c.ID]; gone {
			removed = append(removed, c.ID)
		}
	}
	return changed, removed
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *StateDiff) IsEmpty() bool {
	return d.Settings == nil &&
		len(d.Conversations) == 0 &&
		len(d.Removed) == 0 &&
		d.CurrentIndex == nil &&
		d.QueryText == nil &&
		d.Popover == nil &&
		d.RefreshToken == nil
}
