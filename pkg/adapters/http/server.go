package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/companion"
	"github.com/aretw0/companion/internal/logging"
	"github.com/aretw0/companion/pkg/domain"
	"github.com/aretw0/companion/pkg/store"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

//go:generate go tool oapi-codegen -package http -generate types,chi-server,spec -o api.gen.go ../../../api/openapi.yaml

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 1 << 20

// App is the part of companion.App the HTTP boundary drives.
type App interface {
	State() domain.AppState
	Dispatch(ctx context.Context, intents ...domain.Intent) error
	Submit(ctx context.Context, kind domain.EffectKind, text string) (companion.Submission, error)
	Observe(o store.Observer) (remove func())
}

// Server exposes an App over HTTP by implementing the generated ServerInterface.
type Server struct {
	app     App
	streams *StreamManager
	router  http.Handler
	logger  *slog.Logger
	metrics http.Handler
	now     func() time.Time
	newID   func() string
	stop    func()
}

var _ ServerInterface = (*Server)(nil)

// Option configures the Server.
type Option func(*Server)

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetricsHandler serves h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithClock sets the clock and id source used for appended entries.
func WithClock(now func() time.Time, newID func() string) Option {
	return func(s *Server) {
		s.now = now
		s.newID = newID
	}
}

// NewServer builds the router and starts broadcasting state diffs.
// Call Close to stop broadcasting and disconnect stream clients.
func NewServer(app App, opts ...Option) *Server {
	s := &Server{
		app:    app,
		logger: logging.NewNop(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.streams = NewStreamManager(16, s.logger)
	s.stop = app.Observe(&diffBroadcaster{streams: s.streams, logger: s.logger})

	r := chi.NewRouter()
	r.Get("/openapi.yaml", s.getSpec)
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(swaggerHTML))
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	s.router = HandlerFromMux(s, r)
	return s
}

// getSpec serves the embedded contract. JSON is valid YAML, so one document serves both.
func (s *Server) getSpec(w http.ResponseWriter, r *http.Request) {
	spec, err := rawSpec()
	if err != nil {
		http.Error(w, "Failed to load spec", http.StatusInternalServerError)
		s.logger.Error("Failed to load OpenAPI spec", "err", err)
		return
	}
	w.Header().Set("Content-Type", "text/yaml")
	_, _ = w.Write(spec)
}

const swaggerHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <title>Companion API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
        window.ui = SwaggerUIBundle({ url: '/openapi.yaml', dom_id: '#swagger-ui' });
    };
</script>
</body>
</html>
`

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	enableCORS(s.router).ServeHTTP(w, r)
}

// Close stops broadcasting and ends open event streams.
func (s *Server) Close() {
	s.stop()
	s.streams.CloseAll()
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// NewStateView projects state for clients. The API key is redacted.
func NewStateView(state domain.AppState) StateView {
	return StateView{
		Conversations: state.Conversations,
		Settings:      state.Settings.Redacted(),
		CurrentIndex:  state.Ephemeral.CurrentIndex,
		QueryText:     state.Ephemeral.QueryText,
		Popover:       state.Ephemeral.Popover,
		RefreshToken:  state.Ephemeral.RefreshToken,
		UpdateKind:    state.UpdateKind,
	}
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, Health{Status: "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if swagger, err := GetSwagger(); err == nil && swagger.Info != nil {
		apiVersion = swagger.Info.Version
	} else if err != nil {
		s.logger.Warn("Failed to load OpenAPI spec", "err", err)
	}
	s.writeJSON(w, http.StatusOK, Info{
		App:        "companion-http",
		Version:    strings.TrimSpace(companion.Version),
		ApiVersion: apiVersion,
	})
}

// GetState handles GET /state.
func (s *Server) GetState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, NewStateView(s.app.State()))
}

// PostIntents handles POST /intents. The body is a JSON array of intent
// envelopes applied as one transaction.
func (s *Server) PostIntents(w http.ResponseWriter, r *http.Request) {
	var envs PostIntentsJSONRequestBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes)).Decode(&envs); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("PostIntents: Invalid request body", "err", err)
		return
	}
	if len(envs) == 0 {
		http.Error(w, "At least one intent is required", http.StatusBadRequest)
		return
	}

	intents, err := DecodeIntents(envs, s.now, s.newID)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid intent: %v", err), http.StatusBadRequest)
		s.logger.Warn("PostIntents: Invalid intent", "err", err)
		return
	}

	if err := s.app.Dispatch(r.Context(), intents...); err != nil {
		s.fail(w, "PostIntents", err)
		return
	}
	s.writeJSON(w, http.StatusOK, NewStateView(s.app.State()))
}

// PostQuery handles POST /queries. It returns as soon as the ongoing entry
// exists; the answer arrives later on /events.
func (s *Server) PostQuery(w http.ResponseWriter, r *http.Request) {
	var body PostQueryJSONRequestBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes)).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("PostQuery: Invalid request body", "err", err)
		return
	}

	switch body.Kind {
	case "":
		body.Kind = domain.EffectText
	case domain.EffectText, domain.EffectImage:
	default:
		http.Error(w, fmt.Sprintf("Unknown query kind %q", body.Kind), http.StatusBadRequest)
		return
	}

	// The side effect outlives the request.
	sub, err := s.app.Submit(context.WithoutCancel(r.Context()), body.Kind, body.Text)
	if err != nil {
		s.fail(w, "PostQuery", err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, QueryResponse{EntryId: sub.EntryID})
}

// SubscribeEvents handles GET /events (SSE). Each message is a domain.StateDiff.
// The optional "watch" parameter (conversations, settings, ui) filters messages.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request, params SubscribeEventsParams) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	var watch []string
	if params.Watch != nil && *params.Watch != "" {
		for _, f := range strings.Split(*params.Watch, ",") {
			watch = append(watch, strings.TrimSpace(f))
		}
	}

	ch, cancel := s.streams.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()
	s.logger.Debug("SSE client connected")

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if len(watch) > 0 && !matchesWatch(msg, watch) {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func matchesWatch(msg string, watch []string) bool {
	var diff domain.StateDiff
	if err := json.Unmarshal([]byte(msg), &diff); err != nil {
		return true
	}
	for _, field := range watch {
		switch field {
		case "conversations":
			if len(diff.Conversations) > 0 || len(diff.Removed) > 0 {
				return true
			}
		case "settings":
			if diff.Settings != nil {
				return true
			}
		case "ui":
			if diff.CurrentIndex != nil || diff.QueryText != nil || diff.Popover != nil || diff.RefreshToken != nil {
				return true
			}
		}
	}
	return false
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrPrecondition):
		status = http.StatusConflict
	case errors.Is(err, companion.ErrEmptyQuery), errors.Is(err, store.ErrEmptyBatch),
		errors.Is(err, companion.ErrInvalidUTF8):
		status = http.StatusBadRequest
	case errors.Is(err, companion.ErrQueryTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, store.ErrClosed):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		s.logger.Error(op+" failed", "err", err)
	} else {
		s.logger.Warn(op+" rejected", "err", err, "status", status)
	}
	http.Error(w, err.Error(), status)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "err", err)
	}
}

// diffBroadcaster publishes every committed change as a JSON diff.
type diffBroadcaster struct {
	streams *StreamManager
	logger  *slog.Logger
}

func (d *diffBroadcaster) Name() string { return "sse" }

func (d *diffBroadcaster) StateDidChange(c store.Change) {
	diff := domain.Diff(&c.Previous, &c.Current, c.Seq)
	if diff == nil {
		return
	}
	data, err := json.Marshal(diff)
	if err != nil {
		d.logger.Error("Failed to encode diff", "err", err, "seq", c.Seq)
		return
	}
	d.streams.Broadcast(string(data))
}
