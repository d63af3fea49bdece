package codec_test

import (
	"encoding/base64"
	"encoding/json"
	"image/color"
	"testing"

	"github.com/aretw0/companion/internal/testutils"
	"github.com/aretw0/companion/pkg/codec"
	"github.com/aretw0/companion/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCodec() *codec.JSON {
	ids := testutils.NewSequence("fresh")
	return &codec.JSON{Now: testutils.NewClock().Now, NewID: ids.Next}
}

func sampleState(t *testing.T) domain.AppState {
	t.Helper()
	img, err := codec.DecodeImage(testutils.PNG(t, 4, 3, color.White))
	require.NoError(t, err)

	s := domain.NewAppState("c1", testutils.Epoch)
	s.Settings.APIKey = "sk-test"
	s.Conversations[0].Favorite = true
	s.Conversations[0].Entries = []domain.Entry{
		{ID: "e1", Query: "hello", CreatedAt: testutils.Epoch, Response: domain.TextSucceeded("hi")},
		{ID: "e2", Query: "cat", CreatedAt: testutils.Epoch, Response: domain.ImageSucceeded(img)},
	}
	return s
}

func TestJSON_RoundTrip(t *testing.T) {
	c := newCodec()
	in := sampleState(t)
	in.Ephemeral.QueryText = "not persisted"
	in.Ephemeral.CurrentIndex = 0

	data, err := c.Encode(in)
	require.NoError(t, err)

	out, err := c.Decode(data)
	require.NoError(t, err)

	assert.True(t, domain.EqualPersisted(in, out), "Persisted projection must survive a round trip")
	assert.Equal(t, "", out.Ephemeral.QueryText, "Ephemeral state is never persisted")
	assert.Equal(t, domain.PopoverNone, out.Ephemeral.Popover)
	assert.Equal(t, domain.UpdatePermanent, out.UpdateKind)

	img := out.Conversations[0].Entries[1].Response.Image
	require.NotNil(t, img)
	assert.Equal(t, "image/png", img.MIMEType)
	assert.Equal(t, 4, img.Width)
	assert.Equal(t, 3, img.Height)
}

func TestJSON_EncodeIsDeterministic(t *testing.T) {
	c := newCodec()
	s := sampleState(t)

	a, err := c.Encode(s)
	require.NoError(t, err)
	b, err := c.Encode(s.Clone())
	require.NoError(t, err)
	assert.Equal(t, a, b)

	s.Ephemeral.QueryText = "typing"
	s.Ephemeral.RefreshToken = "x"
	d, err := c.Encode(s)
	require.NoError(t, err)
	assert.Equal(t, a, d, "Ephemeral changes must not change the encoding")
}

func TestJSON_WireFormat(t *testing.T) {
	c := newCodec()
	data, err := c.Encode(sampleState(t))
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Len(t, doc, 2, "Only chats and settings are written")

	settings := doc["openAiApiSettings"].(map[string]any)
	assert.Equal(t, "sk-test", settings["apiKey"])
	assert.Equal(t, domain.DefaultChatModel, settings["chatModel"])
	assert.Equal(t, domain.DefaultImageModel, settings["imageGenerationModel"])

	chat := doc["chats"].([]any)[0].(map[string]any)
	assert.Equal(t, "c1", chat["id"])
	assert.Equal(t, true, chat["isFavorite"])

	entries := chat["entries"].([]any)
	assert.Equal(t, map[string]any{"text": "hi"}, entries[0].(map[string]any)["response"])
	imageResp := entries[1].(map[string]any)["response"].(map[string]any)
	_, err = base64.StdEncoding.DecodeString(imageResp["imageData"].(string))
	assert.NoError(t, err)
}

func TestJSON_UnfinishedResponsesDecodeAsTextFailure(t *testing.T) {
	c := newCodec()
	s := domain.NewAppState("c1", testutils.Epoch)
	s.Conversations[0].Entries = []domain.Entry{
		{ID: "ongoing", Response: domain.OngoingImages()},
		{ID: "failure", Response: domain.FailureResponse()},
	}

	data, err := c.Encode(s)
	require.NoError(t, err)
	out, err := c.Decode(data)
	require.NoError(t, err)

	for _, e := range out.Conversations[0].Entries {
		assert.Equal(t, domain.ResponseText, e.Response.Kind, e.ID)
		assert.Equal(t, domain.StatusFailed, e.Response.Status, e.ID)
		assert.ErrorIs(t, e.Response.Err, domain.ErrTextDecoding, e.ID)
	}
}

func TestJSON_DecodeTolerance(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(t *testing.T, s domain.AppState)
	}{
		{
			name:  "empty object",
			input: `{}`,
			check: func(t *testing.T, s domain.AppState) {
				require.Len(t, s.Conversations, 1)
				assert.Equal(t, "fresh-1", s.Conversations[0].ID)
				assert.Equal(t, domain.DefaultAPISettings(), s.Settings)
			},
		},
		{
			name:  "missing chats",
			input: `{"openAiApiSettings":{"apiKey":"k","chatModel":"gpt-4","imageGenerationModel":"dall-e-2"}}`,
			check: func(t *testing.T, s domain.AppState) {
				require.Len(t, s.Conversations, 1)
				assert.Equal(t, "k", s.Settings.APIKey)
				assert.Equal(t, "gpt-4", s.Settings.ChatModel)
				assert.Equal(t, "dall-e-2", s.Settings.ImageModel)
			},
		},
		{
			name:  "empty model names",
			input: `{"openAiApiSettings":{"apiKey":"k"}}`,
			check: func(t *testing.T, s domain.AppState) {
				assert.Equal(t, domain.DefaultChatModel, s.Settings.ChatModel)
				assert.Equal(t, domain.DefaultImageModel, s.Settings.ImageModel)
			},
		},
		{
			name:  "chats of wrong type",
			input: `{"chats":"nope","openAiApiSettings":{"apiKey":"k"}}`,
			check: func(t *testing.T, s domain.AppState) {
				require.Len(t, s.Conversations, 1)
				assert.True(t, s.Conversations[0].IsEmpty())
				assert.Equal(t, "k", s.Settings.APIKey)
			},
		},
		{
			name:  "settings of wrong type",
			input: `{"chats":[{"id":"c1","entries":[]}],"openAiApiSettings":42}`,
			check: func(t *testing.T, s domain.AppState) {
				assert.Equal(t, "c1", s.Conversations[0].ID)
				assert.Equal(t, domain.DefaultAPISettings(), s.Settings)
			},
		},
		{
			name:  "undecodable image",
			input: `{"chats":[{"id":"c1","entries":[{"id":"e1","response":{"imageData":"bm90IGFuIGltYWdl"}},{"id":"e2","response":{"imageData":"%%%"}}]}]}`,
			check: func(t *testing.T, s domain.AppState) {
				for _, e := range s.Conversations[0].Entries {
					assert.Equal(t, domain.ResponseImages, e.Response.Kind, e.ID)
					assert.Equal(t, domain.StatusFailed, e.Response.Status, e.ID)
					assert.ErrorIs(t, e.Response.Err, domain.ErrImageDecoding, e.ID)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := newCodec().Decode([]byte(tt.input))
			require.NoError(t, err)
			tt.check(t, s)
		})
	}
}

func TestJSON_DecodeMalformed(t *testing.T) {
	for _, input := range []string{``, `not json`, `[1,2]`} {
		_, err := newCodec().Decode([]byte(input))
		assert.ErrorIs(t, err, codec.ErrMalformed, "input %q", input)
	}
}

func TestDecodeImage(t *testing.T) {
	img, err := codec.DecodeImage(testutils.PNG(t, 2, 5, color.Black))
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIMEType)
	assert.Equal(t, 2, img.Width)
	assert.Equal(t, 5, img.Height)

	_, err = codec.DecodeImage(nil)
	assert.ErrorIs(t, err, domain.ErrImageDecoding)

	_, err = codec.DecodeImage([]byte("<html>definitely not an image</html>"))
	assert.ErrorIs(t, err, domain.ErrImageDecoding)

	// PNG signature with a truncated body.
	_, err = codec.DecodeImage([]byte("\x89PNG\r\n\x1a\n\x00"))
	assert.ErrorIs(t, err, domain.ErrImageDecoding)
}
