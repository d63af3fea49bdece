package effects

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"strings"
	"sync"

	"github.com/aretw0/companion/pkg/ports"
	"github.com/sashabaranov/go-openai"
)

// FakeImageURL is the download URL advertised by the fake image endpoint.
const FakeImageURL = "https://images.invalid/companion-fake.png"

// FakeAnswer is the text returned by the fake chat endpoint.
const FakeAnswer = "I am an ignorant AI companion."

// FakeHandler answers one fake request.
type FakeHandler func(ports.Request) (ports.Response, error)

// FakeTransport is an in-memory ports.Transport for demos and tests.
// Requests are routed by method and URL; every request is recorded.
type FakeTransport struct {
	mu       sync.Mutex
	routes   map[string]FakeHandler
	requests []ports.Request
}

// NewFakeTransport returns a transport that serves canned moderation, chat,
// image and download responses below baseURL. When shouldSucceed is false
// every canned route answers with a non-2xx status.
func NewFakeTransport(baseURL string, shouldSucceed bool) *FakeTransport {
	baseURL = strings.TrimRight(baseURL, "/")
	status := http.StatusOK
	if !shouldSucceed {
		status = http.StatusInternalServerError
	}

	f := &FakeTransport{routes: make(map[string]FakeHandler)}
	f.Handle(http.MethodPost, baseURL+"/moderations", JSONResponse(status, openai.ModerationResponse{
		Results: []openai.Result{{Flagged: false}},
	}))
	f.Handle(http.MethodPost, baseURL+"/chat/completions", JSONResponse(status, openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: FakeAnswer},
		}},
	}))
	f.Handle(http.MethodPost, baseURL+"/images/generations", JSONResponse(status, openai.ImageResponse{
		Data: []openai.ImageResponseDataInner{{URL: FakeImageURL}},
	}))
	f.Handle(http.MethodGet, FakeImageURL, BytesResponse(status, fakePNG()))
	return f
}

// Handle registers (or replaces) the handler for method and url.
func (f *FakeTransport) Handle(method, url string, h FakeHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[method+" "+url] = h
}

// Send implements ports.Transport.
func (f *FakeTransport) Send(ctx context.Context, req ports.Request) (ports.Response, error) {
	if err := ctx.Err(); err != nil {
		return ports.Response{}, err
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	f.mu.Lock()
	f.requests = append(f.requests, req)
	h, ok := f.routes[method+" "+req.URL]
	f.mu.Unlock()

	if !ok {
		return ports.Response{}, fmt.Errorf("fake transport: no route for %s %s", method, req.URL)
	}
	return h(req)
}

// Requests returns the requests received so far.
func (f *FakeTransport) Requests() []ports.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ports.Request(nil), f.requests...)
}

// RequestsTo returns the requests sent to url.
func (f *FakeTransport) RequestsTo(url string) []ports.Request {
	var out []ports.Request
	for _, r := range f.Requests() {
		if r.URL == url {
			out = append(out, r)
		}
	}
	return out
}

// JSONResponse answers with v encoded as JSON.
func JSONResponse(status int, v any) FakeHandler {
	body, err := json.Marshal(v)
	return func(ports.Request) (ports.Response, error) {
		if err != nil {
			return ports.Response{}, err
		}
		return ports.Response{Status: status, Body: body}, nil
	}
}

// BytesResponse answers with a fixed body.
func BytesResponse(status int, body []byte) FakeHandler {
	return func(ports.Request) (ports.Response, error) {
		return ports.Response{Status: status, Body: bytes.Clone(body)}, nil
	}
}

// ErrFakeTransport is returned by FailingResponse.
var ErrFakeTransport = errors.New("fake transport failure")

// FailingResponse simulates a transport failure (no response at all).
func FailingResponse() FakeHandler {
	return func(ports.Request) (ports.Response, error) {
		return ports.Response{}, ErrFakeTransport
	}
}

func fakePNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{R: 0x33, G: 0x99, B: 0xcc, A: 0xff})
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}
