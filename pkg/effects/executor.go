package effects

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/companion/internal/logging"
	"github.com/aretw0/companion/pkg/codec"
	"github.com/aretw0/companion/pkg/domain"
	"github.com/aretw0/companion/pkg/observability"
	"github.com/aretw0/companion/pkg/ports"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultBaseURL is the upstream API root.
	DefaultBaseURL = "https://api.openai.com/v1"
	// DefaultMaxTokens caps the length of a text answer.
	DefaultMaxTokens = 500
	// DefaultDownloadConcurrency bounds parallel image downloads per effect.
	DefaultDownloadConcurrency = 4
)

// Result is the completion signal of one side effect.
// Err is nil on success, otherwise usually an *Error.
type Result struct {
	EntryID string
	Err     error
}

// Executor performs side effects and reports their outcome as FinalizeEntry intents.
type Executor struct {
	transport  ports.Transport
	dispatcher ports.Dispatcher

	baseURL             string
	maxTokens           int
	downloadConcurrency int

	logger  *slog.Logger
	metrics *observability.Metrics
	hooks   []domain.LifecycleHooks
	now     func() time.Time

	mu       sync.Mutex
	inFlight map[string]struct{}
	wg       sync.WaitGroup
}

// Option configures the Executor.
type Option func(*Executor)

// WithBaseURL points the executor at another API root (e.g. a proxy or test server).
func WithBaseURL(u string) Option {
	return func(e *Executor) {
		e.baseURL = strings.TrimRight(u, "/")
	}
}

// WithMaxTokens overrides DefaultMaxTokens.
func WithMaxTokens(n int) Option {
	return func(e *Executor) {
		e.maxTokens = n
	}
}

// WithDownloadConcurrency overrides DefaultDownloadConcurrency.
func WithDownloadConcurrency(n int) Option {
	return func(e *Executor) {
		e.downloadConcurrency = n
	}
}

// WithLogger configures a logger for the Executor.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithMetrics records effect outcomes and download results.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Executor) {
		e.metrics = m
		if m != nil {
			e.hooks = append(e.hooks, m.Hooks())
		}
	}
}

// WithHooks registers lifecycle callbacks.
func WithHooks(h domain.LifecycleHooks) Option {
	return func(e *Executor) {
		e.hooks = append(e.hooks, h)
	}
}

// New creates an Executor that sends requests through transport and
// delivers FinalizeEntry intents to dispatcher.
func New(transport ports.Transport, dispatcher ports.Dispatcher, opts ...Option) *Executor {
	e := &Executor{
		transport:           transport,
		dispatcher:          dispatcher,
		baseURL:             DefaultBaseURL,
		maxTokens:           DefaultMaxTokens,
		downloadConcurrency: DefaultDownloadConcurrency,
		logger:              logging.NewNop(),
		now:                 time.Now,
		inFlight:            make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.downloadConcurrency < 1 {
		e.downloadConcurrency = 1
	}
	return e
}

// Perform starts the effect in its own goroutine and returns a channel that
// receives exactly one Result. The entry is always finalized, even if ctx is
// canceled midway; ctx only bounds the network calls.
func (e *Executor) Perform(ctx context.Context, effect domain.SideEffect) <-chan Result {
	out := make(chan Result, 1)

	e.mu.Lock()
	if _, busy := e.inFlight[effect.EntryID]; busy {
		e.mu.Unlock()
		out <- Result{EntryID: effect.EntryID, Err: ErrAlreadyInFlight}
		close(out)
		return out
	}
	e.inFlight[effect.EntryID] = struct{}{}
	e.wg.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.wg.Done()
		defer close(out)
		defer func() {
			e.mu.Lock()
			delete(e.inFlight, effect.EntryID)
			e.mu.Unlock()
		}()

		out <- Result{EntryID: effect.EntryID, Err: e.run(ctx, effect)}
	}()
	return out
}

// Wait blocks until every effect started so far has completed.
func (e *Executor) Wait() {
	e.wg.Wait()
}

// InFlight returns the number of running effects.
func (e *Executor) InFlight() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.inFlight)
}

func (e *Executor) run(ctx context.Context, effect domain.SideEffect) (err error) {
	start := e.now()
	e.fireStart(ctx, effect, start)
	log := e.logger.With("entry_id", effect.EntryID, "kind", effect.Kind)
	log.Debug("Performing side effect", "effect", effect.String())

	response := domain.APIFailure()
	defer func() {
		if r := recover(); r != nil {
			err = newError(CodeGeneral, fmt.Errorf("panic: %v", r))
			response = domain.APIFailure()
		}

		// The entry must leave the ongoing state regardless of ctx.
		finalize := domain.FinalizeEntry{EntryID: effect.EntryID, Response: response}
		if derr := e.dispatcher.Dispatch(context.WithoutCancel(ctx), finalize); derr != nil {
			err = errors.Join(err, fmt.Errorf("failed to dispatch finalize: %w", derr))
		}

		if err != nil {
			log.Error("Side effect failed", "err", err)
		} else {
			log.Info("Side effect succeeded", "response", response.Kind)
		}
		e.fireEnd(ctx, effect, start, err)
	}()

	if err = e.moderate(ctx, effect); err != nil {
		return err
	}

	var payload domain.APIResponse
	if payload, err = e.resolve(ctx, effect); err != nil {
		return err
	}
	response = payload
	return nil
}

// resolve performs the primary call once moderation passed.
func (e *Executor) resolve(ctx context.Context, effect domain.SideEffect) (domain.APIResponse, error) {
	switch effect.Kind {
	case domain.EffectImage:
		return e.generateImage(ctx, effect)
	default:
		return e.generateText(ctx, effect)
	}
}

func (e *Executor) moderate(ctx context.Context, effect domain.SideEffect) error {
	body, err := e.post(ctx, "/moderations", effect.API.APIKey, openai.ModerationRequest{Input: effect.Prompt})
	if err != nil {
		return err
	}

	var resp openai.ModerationResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return newError(CodeModerationResponse, err)
	}
	if len(resp.Results) == 0 {
		return newError(CodeModerationResponse, errors.New("no moderation results"))
	}
	if resp.Results[0].Flagged {
		return newError(CodeFlaggedPrompt, nil)
	}
	return nil
}

func (e *Executor) generateText(ctx context.Context, effect domain.SideEffect) (domain.APIResponse, error) {
	req := openai.ChatCompletionRequest{
		Model: effect.API.ChatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: effect.Prompt},
		},
		MaxTokens: e.maxTokens,
	}

	body, err := e.post(ctx, "/chat/completions", effect.API.APIKey, req)
	if err != nil {
		return domain.APIResponse{}, err
	}

	var resp openai.ChatCompletionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.APIResponse{}, newError(CodeChatResponse, err)
	}
	if len(resp.Choices) == 0 {
		return domain.APIResponse{}, newError(CodeEmptyResponse, nil)
	}
	return domain.APIText(resp.Choices[0].Message.Content), nil
}

func (e *Executor) generateImage(ctx context.Context, effect domain.SideEffect) (domain.APIResponse, error) {
	req := openai.ImageRequest{
		Prompt: effect.Prompt,
		Model:  effect.API.ImageModel,
		Size:   effect.Size(),
	}

	body, err := e.post(ctx, "/images/generations", effect.API.APIKey, req)
	if err != nil {
		return domain.APIResponse{}, err
	}

	var resp openai.ImageResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.APIResponse{}, newError(CodeImageResponse, err)
	}

	images := e.download(ctx, effect.EntryID, resp.Data)
	if len(images) == 0 {
		return domain.APIResponse{}, newError(CodeNoImages, nil)
	}
	// Only the first image is surfaced.
	return domain.APIImages(images[0]), nil
}

// download fetches every item concurrently and waits for all of them.
// Failed or undecodable items are dropped. The result keeps the order of items.
func (e *Executor) download(ctx context.Context, entryID string, items []openai.ImageResponseDataInner) []domain.Image {
	slots := make([]*domain.Image, len(items))

	var g errgroup.Group
	g.SetLimit(e.downloadConcurrency)
	for i, item := range items {
		g.Go(func() error {
			img, err := e.fetchImage(ctx, item)
			if err != nil {
				e.logger.Warn("Dropped image", "entry_id", entryID, "index", i, "err", err)
				return nil
			}
			slots[i] = &img
			return nil
		})
	}
	_ = g.Wait()

	var images []domain.Image
	for _, img := range slots {
		if img != nil {
			images = append(images, *img)
		}
	}
	return images
}

func (e *Executor) fetchImage(ctx context.Context, item openai.ImageResponseDataInner) (domain.Image, error) {
	var data []byte
	switch {
	case item.B64JSON != "":
		decoded, err := base64.StdEncoding.DecodeString(item.B64JSON)
		if err != nil {
			e.metrics.ObserveDownload("invalid")
			return domain.Image{}, fmt.Errorf("%w: %v", domain.ErrImageDecoding, err)
		}
		data = decoded

	case item.URL != "":
		resp, err := e.transport.Send(ctx, ports.Request{Method: http.MethodGet, URL: item.URL})
		if err != nil {
			e.metrics.ObserveDownload("failed")
			return domain.Image{}, err
		}
		if !resp.OK() {
			e.metrics.ObserveDownload("failed")
			return domain.Image{}, &Error{Code: CodeResponse, Status: resp.Status}
		}
		data = resp.Body

	default:
		e.metrics.ObserveDownload("invalid")
		return domain.Image{}, errors.New("image item has neither url nor data")
	}

	img, err := codec.DecodeImage(data)
	if err != nil {
		e.metrics.ObserveDownload("invalid")
		return domain.Image{}, err
	}
	e.metrics.ObserveDownload("ok")
	return img, nil
}

// post sends a JSON body with bearer auth and returns the body of a 2xx response.
func (e *Executor) post(ctx context.Context, path, apiKey string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, newError(CodeGeneral, err)
	}

	resp, err := e.transport.Send(ctx, ports.Request{
		Method: http.MethodPost,
		URL:    e.baseURL + path,
		Header: http.Header{
			"Content-Type":  {"application/json"},
			"Authorization": {"Bearer " + apiKey},
		},
		Body: body,
	})
	if err != nil {
		return nil, newError(CodeGeneral, err)
	}
	if !resp.OK() {
		return nil, &Error{Code: CodeResponse, Status: resp.Status}
	}
	return resp.Body, nil
}

func (e *Executor) fireStart(ctx context.Context, effect domain.SideEffect, start time.Time) {
	for _, h := range e.hooks {
		if h.OnEffectStart != nil {
			h.OnEffectStart(ctx, &domain.EffectEvent{Timestamp: start, EntryID: effect.EntryID, Kind: effect.Kind})
		}
	}
}

func (e *Executor) fireEnd(ctx context.Context, effect domain.SideEffect, start time.Time, err error) {
	now := e.now()
	for _, h := range e.hooks {
		if h.OnEffectEnd != nil {
			h.OnEffectEnd(ctx, &domain.EffectEvent{
				Timestamp: now,
				EntryID:   effect.EntryID,
				Kind:      effect.Kind,
				Duration:  now.Sub(start),
				Err:       err,
			})
		}
	}
}
