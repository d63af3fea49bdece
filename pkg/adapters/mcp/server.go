package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/companion"
	"github.com/aretw0/companion/internal/logging"
	"github.com/aretw0/companion/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// StateURI addresses the redacted state resource.
const StateURI = "companion://state"

// App is the part of companion.App the MCP boundary drives.
type App interface {
	State() domain.AppState
	Dispatch(ctx context.Context, intents ...domain.Intent) error
	Submit(ctx context.Context, kind domain.EffectKind, text string) (companion.Submission, error)
}

// ConversationSummary is one row of the history.
type ConversationSummary struct {
	ID         string    `json:"id" jsonschema_description:"Conversation id"`
	Favorite   bool      `json:"favorite" jsonschema_description:"Whether the conversation is a favorite"`
	Entries    int       `json:"entries" jsonschema_description:"Number of entries"`
	FirstQuery string    `json:"first_query,omitempty" jsonschema_description:"Query of the first entry"`
	ModifiedAt time.Time `json:"modified_at" jsonschema_description:"Last modification"`
}

// HistoryResponse lists conversations, favorites first, then most recently modified.
type HistoryResponse struct {
	Conversations []ConversationSummary `json:"conversations" jsonschema_description:"Saved conversations"`
}

// StateSnapshot is the JSON body of the state resource. The API key is redacted.
type StateSnapshot struct {
	Conversations []domain.Conversation `json:"conversations"`
	Settings      domain.APISettings    `json:"settings"`
	CurrentIndex  int                   `json:"current_index"`
	Popover       domain.PopoverKind    `json:"popover"`
}

// Server wraps an App and exposes it as an MCP server.
type Server struct {
	app       App
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer registers the tools and resources over app.
func NewServer(app App, opts ...Option) *Server {
	s := &Server{
		app:    app,
		logger: logging.NewNop(),
		mcpServer: server.NewMCPServer("companion-mcp", strings.TrimSpace(companion.Version),
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying server, e.g. to drive it in-process.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves on stdin and stdout until the input closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves over Server-Sent Events on port until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(fmt.Sprintf("http://localhost:%d", port)))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))
	httpServer := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "addr", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("ask",
		mcp.WithDescription("Ask the companion something and wait for the answer. The query is appended to the current conversation."),
		mcp.WithString("query", mcp.Required(), mcp.Description("The question, or the prompt of the image")),
		mcp.WithString("kind", mcp.Enum(string(domain.EffectText), string(domain.EffectImage)),
			mcp.Description("text (default) for a chat answer, image for a generated image")),
	), s.handleAsk)

	s.mcpServer.AddTool(mcp.NewTool("history",
		mcp.WithDescription("List saved conversations, favorites first."),
		mcp.WithOutputSchema[HistoryResponse](),
	), mcp.NewStructuredToolHandler(s.handleHistory))

	s.mcpServer.AddTool(mcp.NewTool("show",
		mcp.WithDescription("Return one conversation with its entries. Defaults to the current conversation."),
		mcp.WithString("id", mcp.Description("Conversation id, or the id of one of its entries")),
		mcp.WithOutputSchema[domain.Conversation](),
	), mcp.NewStructuredToolHandler(s.handleShow))

	s.mcpServer.AddTool(mcp.NewTool("favorite",
		mcp.WithDescription("Toggle the favorite flag of a conversation."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Conversation id, or the id of one of its entries")),
		mcp.WithOutputSchema[ConversationSummary](),
	), mcp.NewStructuredToolHandler(s.handleFavorite))

	s.mcpServer.AddTool(mcp.NewTool("new_conversation",
		mcp.WithDescription("Start a new empty conversation and make it current."),
		mcp.WithOutputSchema[ConversationSummary](),
	), mcp.NewStructuredToolHandler(s.handleNewConversation))

	s.mcpServer.AddTool(mcp.NewTool("settings",
		mcp.WithDescription("Show the API settings, changing the given ones first. The API key is never returned."),
		mcp.WithString("api_key", mcp.Description("OpenAI API key")),
		mcp.WithString("chat_model", mcp.Description("Chat completion model")),
		mcp.WithString("image_model", mcp.Description("Image generation model")),
		mcp.WithOutputSchema[domain.APISettings](),
	), mcp.NewStructuredToolHandler(s.handleSettings))
}

func (s *Server) handleAsk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	query, _ := args["query"].(string)

	kind := domain.EffectText
	if k, _ := args["kind"].(string); k != "" {
		kind = domain.EffectKind(k)
	}
	if kind != domain.EffectText && kind != domain.EffectImage {
		return mcp.NewToolResultError(fmt.Sprintf("unknown kind %q", kind)), nil
	}

	// The side effect outlives the call; a cancelled call only stops the wait.
	sub, err := s.app.Submit(context.WithoutCancel(ctx), kind, query)
	if err != nil {
		s.logger.Warn("MCP ask: Query rejected", "err", err, "size", len(query))
		return mcp.NewToolResultError(fmt.Sprintf("query rejected: %v", err)), nil
	}

	select {
	case res := <-sub.Done:
		if res.Err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("request failed: %v", res.Err)), nil
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	entry, ok := s.app.State().FindEntry(sub.EntryID)
	if !ok {
		return mcp.NewToolResultError("the entry disappeared before it was answered"), nil
	}
	return entryResult(entry), nil
}

func entryResult(e domain.Entry) *mcp.CallToolResult {
	r := e.Response
	switch {
	case r.Kind == domain.ResponseFailure:
		return mcp.NewToolResultError("the request failed")
	case r.Status == domain.StatusFailed:
		return mcp.NewToolResultError(fmt.Sprintf("the answer could not be decoded: %v", r.Err))
	case r.Image != nil:
		return mcp.NewToolResultImage(fmt.Sprintf("Image for %q (%dx%d)", e.Query, r.Image.Width, r.Image.Height),
			base64.StdEncoding.EncodeToString(r.Image.Data), r.Image.MIMEType)
	default:
		return mcp.NewToolResultText(r.Text)
	}
}

func (s *Server) handleHistory(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (HistoryResponse, error) {
	state := s.app.State()
	out := HistoryResponse{Conversations: make([]ConversationSummary, 0, len(state.Conversations))}
	for _, c := range state.Conversations {
		out.Conversations = append(out.Conversations, summarize(c))
	}
	sort.SliceStable(out.Conversations, func(i, j int) bool {
		a, b := out.Conversations[i], out.Conversations[j]
		if a.Favorite != b.Favorite {
			return a.Favorite
		}
		return a.ModifiedAt.After(b.ModifiedAt)
	})
	return out, nil
}

func (s *Server) handleShow(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (domain.Conversation, error) {
	state := s.app.State()
	id, _ := args["id"].(string)
	if id == "" {
		return *state.CurrentConversation(), nil
	}
	i := state.ResolveConversation(id)
	if i < 0 {
		return domain.Conversation{}, fmt.Errorf("no conversation or entry with id %q", id)
	}
	return state.Conversations[i], nil
}

func (s *Server) handleFavorite(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (ConversationSummary, error) {
	id, _ := args["id"].(string)
	if id == "" {
		return ConversationSummary{}, errors.New("id is required")
	}
	if err := s.app.Dispatch(ctx, domain.ToggleFavorite{ID: id}); err != nil {
		return ConversationSummary{}, err
	}
	state := s.app.State()
	i := state.ResolveConversation(id)
	if i < 0 {
		return ConversationSummary{}, fmt.Errorf("no conversation or entry with id %q", id)
	}
	return summarize(state.Conversations[i]), nil
}

func (s *Server) handleNewConversation(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (ConversationSummary, error) {
	if err := s.app.Dispatch(ctx, domain.CreateConversation{}); err != nil {
		return ConversationSummary{}, err
	}
	state := s.app.State()
	return summarize(*state.CurrentConversation()), nil
}

func (s *Server) handleSettings(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (domain.APISettings, error) {
	settings := s.app.State().Settings
	changed := false
	for key, field := range map[string]*string{
		"api_key":     &settings.APIKey,
		"chat_model":  &settings.ChatModel,
		"image_model": &settings.ImageModel,
	} {
		if v, ok := args[key].(string); ok && v != "" {
			*field = v
			changed = true
		}
	}
	if changed {
		if err := s.app.Dispatch(ctx, domain.UpdateSettings{Settings: settings}); err != nil {
			return domain.APISettings{}, err
		}
	}
	return s.app.State().Settings.Redacted(), nil
}

func summarize(c domain.Conversation) ConversationSummary {
	sum := ConversationSummary{
		ID:         c.ID,
		Favorite:   c.Favorite,
		Entries:    len(c.Entries),
		ModifiedAt: c.ModifiedAt,
	}
	if len(c.Entries) > 0 {
		sum.FirstQuery = c.Entries[0].Query
	}
	return sum
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(StateURI, "Companion state",
		mcp.WithResourceDescription("Conversations and settings, with the API key redacted"),
		mcp.WithMIMEType("application/json"),
	), s.readState)
}

func (s *Server) readState(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	state := s.app.State()
	data, err := json.Marshal(StateSnapshot{
		Conversations: state.Conversations,
		Settings:      state.Settings.Redacted(),
		CurrentIndex:  state.Ephemeral.CurrentIndex,
		Popover:       state.Ephemeral.Popover,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      StateURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
