package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var diffEpoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func baseState() AppState {
	s := NewAppState("c1", diffEpoch)
	s.Settings.APIKey = "sk-secret"
	return s
}

func TestDiff(t *testing.T) {
	t.Run("Initial load carries everything", func(t *testing.T) {
		s := baseState()
		d := Diff(nil, &s, 1)
		require.NotNil(t, d)
		assert.Equal(t, uint64(1), d.Seq)
		require.NotNil(t, d.Settings)
		assert.Equal(t, "***", d.Settings.APIKey)
		assert.Len(t, d.Conversations, 1)
		require.NotNil(t, d.CurrentIndex)
		assert.Equal(t, 0, *d.CurrentIndex)
	})

	t.Run("No changes", func(t *testing.T) {
		s := baseState()
		other := s.Clone()
		assert.Nil(t, Diff(&s, &other, 2))
		assert.Nil(t, Diff(&s, nil, 2))
	})

	t.Run("Ephemeral fields only", func(t *testing.T) {
		old := baseState()
		next := old.Clone()
		next.Ephemeral.QueryText = "draft"
		next.Ephemeral.Popover = PopoverHistory
		next.UpdateKind = UpdateEphemeral

		d := Diff(&old, &next, 3)
		require.NotNil(t, d)
		assert.Equal(t, UpdateEphemeral, d.UpdateKind)
		assert.Equal(t, "draft", *d.QueryText)
		assert.Equal(t, PopoverHistory, *d.Popover)
		assert.Nil(t, d.Settings)
		assert.Nil(t, d.CurrentIndex)
		assert.Nil(t, d.RefreshToken)
		assert.Empty(t, d.Conversations)
	})

	t.Run("Modified conversation only", func(t *testing.T) {
		old := baseState()
		old.Conversations = append(old.Conversations, NewConversation("c2", diffEpoch))
		next := old.Clone()
		next.Conversations[1].Entries = append(next.Conversations[1].Entries,
			NewEntry("e1", "hi", EffectText, diffEpoch))

		d := Diff(&old, &next, 4)
		require.NotNil(t, d)
		require.Len(t, d.Conversations, 1)
		assert.Equal(t, "c2", d.Conversations[0].ID)
		assert.Empty(t, d.Removed)
	})

	t.Run("Removed and added conversations", func(t *testing.T) {
		old := baseState()
		next := old.Clone()
		next.Conversations = []Conversation{NewConversation("c9", diffEpoch)}

		d := Diff(&old, &next, 5)
		require.NotNil(t, d)
		assert.Equal(t, []string{"c1"}, d.Removed)
		require.Len(t, d.Conversations, 1)
		assert.Equal(t, "c9", d.Conversations[0].ID)
	})

	t.Run("Settings change is redacted", func(t *testing.T) {
		old := baseState()
		next := old.Clone()
		next.Settings.ChatModel = "gpt-4o"

		d := Diff(&old, &next, 6)
		require.NotNil(t, d)
		require.NotNil(t, d.Settings)
		assert.Equal(t, "gpt-4o", d.Settings.ChatModel)
		assert.NotEqual(t, "sk-secret", d.Settings.APIKey)
	})
}

func TestStateDiff_JSONOmitsUnchanged(t *testing.T) {
	old := baseState()
	next := old.Clone()
	next.Ephemeral.RefreshToken = "tok"

	data, err := json.Marshal(Diff(&old, &next, 7))
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Equal(t, "tok", fields["refresh_token"])
	assert.EqualValues(t, 7, fields["seq"])
	for _, k := range []string{"settings", "conversations", "removed", "current_index", "query_text", "popover"} {
		assert.NotContains(t, fields, k)
	}
}
