// Package chat runs WebSocket chat sessions backed by an OpenAI-compatible
// completion service. OSDU search results can be pulled into a session as
// conversation context, so the assistant answers over live subsurface data.
//
// Works with any OpenAI-compatible backend (OpenAI cloud, LocalAI, vLLM);
// the base URL and model come from configuration.
package chat

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sashabaranov/go-openai"

	"github.com/c360/osdugate/config"
	"github.com/c360/osdugate/errors"
	"github.com/c360/osdugate/osdu"
)

// Envelope wraps all WebSocket chat messages with type discrimination.
// Client to server:
//   - "message": a user turn; Content carries the text
//   - "search":  pull OSDU search results into the session context
//   - "reset":   drop conversation history
//
// Server to client:
//   - "session": first frame, carries the session ID
//   - "delta":   one streamed completion fragment
//   - "done":    the current turn finished
//   - "context": search results were attached
//   - "error":   the request failed
type Envelope struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Content   string `json:"content,omitempty"`

	// Search fields, used when Type is "search"
	Kind  string `json:"kind,omitempty"`
	Query string `json:"query,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// Searcher provides OSDU search for context injection
type Searcher interface {
	Search(ctx context.Context, partition string, req osdu.SearchRequest) (*osdu.SearchResult, error)
}

// contextHitLimit caps how many search hits get injected per request
const contextHitLimit = 10

// session holds one conversation's history
type session struct {
	id      string
	history []openai.ChatCompletionMessage
	mu      sync.Mutex
}

// Handler upgrades HTTP requests to WebSocket chat sessions
type Handler struct {
	config   config.ChatConfig
	ai       *openai.Client
	searcher Searcher
	logger   *slog.Logger
	upgrader websocket.Upgrader

	sessions  map[string]*session
	sessionMu sync.RWMutex
}

// Option configures a Handler
type Option func(*Handler)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithAllowedOrigins restricts WebSocket upgrades to the given origins
func WithAllowedOrigins(origins []string) Option {
	return func(h *Handler) {
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range origins {
				if allowed == "*" || allowed == origin {
					return true
				}
			}
			return false
		}
	}
}

// NewHandler creates a chat handler backed by an OpenAI-compatible service
func NewHandler(cfg config.ChatConfig, searcher Searcher, opts ...Option) (*Handler, error) {
	if cfg.Model == "" {
		return nil, errors.WrapInvalid(fmt.Errorf("chat model is required"),
			"Handler", "NewHandler", "config validation")
	}

	// Local backends don't need a real key
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "dummy-key"
	}

	aiConfig := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		aiConfig.BaseURL = cfg.BaseURL
	}
	aiConfig.HTTPClient = &http.Client{Timeout: 120 * time.Second}

	h := &Handler{
		config:   cfg,
		ai:       openai.NewClientWithConfig(aiConfig),
		searcher: searcher,
		logger:   slog.Default().With("component", "chat"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		sessions: make(map[string]*session),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// SessionCount returns the number of live sessions
func (h *Handler) SessionCount() int {
	h.sessionMu.RLock()
	defer h.sessionMu.RUnlock()
	return len(h.sessions)
}

// ServeHTTP upgrades the connection and runs the session read loop
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	sess := &session{id: uuid.NewString()}
	h.sessionMu.Lock()
	h.sessions[sess.id] = sess
	h.sessionMu.Unlock()

	partition := r.Header.Get("data-partition-id")

	defer func() {
		h.sessionMu.Lock()
		delete(h.sessions, sess.id)
		h.sessionMu.Unlock()
		conn.Close()
	}()

	writeMu := &sync.Mutex{}
	write := func(env Envelope) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(env)
	}

	if err := write(Envelope{Type: "session", SessionID: sess.id}); err != nil {
		return
	}

	h.logger.Info("chat session opened", "session_id", sess.id)

	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("chat session closed abnormally",
					"session_id", sess.id, "error", err)
			}
			return
		}

		switch env.Type {
		case "message":
			h.handleMessage(r.Context(), sess, env, write)
		case "search":
			h.handleSearch(r.Context(), sess, partition, env, write)
		case "reset":
			sess.mu.Lock()
			sess.history = nil
			sess.mu.Unlock()
		default:
			write(Envelope{Type: "error", Content: fmt.Sprintf("unknown message type %q", env.Type)})
		}
	}
}

// handleMessage streams one completion turn back over the socket
func (h *Handler) handleMessage(ctx context.Context, sess *session, env Envelope,
	write func(Envelope) error) {

	if env.Content == "" {
		write(Envelope{Type: "error", Content: "message content is empty"})
		return
	}

	sess.mu.Lock()
	sess.history = append(sess.history, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: env.Content,
	})
	messages := make([]openai.ChatCompletionMessage, len(sess.history))
	copy(messages, sess.history)
	sess.mu.Unlock()

	stream, err := h.ai.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:     h.config.Model,
		Messages:  messages,
		MaxTokens: h.config.MaxTokens,
		Stream:    true,
	})
	if err != nil {
		h.logger.Error("completion request failed", "session_id", sess.id, "error", err)
		write(Envelope{Type: "error", Content: "completion backend unavailable"})
		return
	}
	defer stream.Close()

	var reply []byte
	for {
		resp, err := stream.Recv()
		if stderrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			h.logger.Error("completion stream failed", "session_id", sess.id, "error", err)
			write(Envelope{Type: "error", Content: "completion stream interrupted"})
			return
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		reply = append(reply, delta...)
		if err := write(Envelope{Type: "delta", Content: delta}); err != nil {
			return
		}
	}

	sess.mu.Lock()
	sess.history = append(sess.history, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleAssistant,
		Content: string(reply),
	})
	sess.mu.Unlock()

	write(Envelope{Type: "done"})
}

// handleSearch runs an OSDU search and attaches the hits to the session
// as a system message the model can draw on
func (h *Handler) handleSearch(ctx context.Context, sess *session, partition string,
	env Envelope, write func(Envelope) error) {

	if h.searcher == nil {
		write(Envelope{Type: "error", Content: "search is not available"})
		return
	}
	if env.Kind == "" {
		write(Envelope{Type: "error", Content: "kind is required"})
		return
	}

	limit := env.Limit
	if limit <= 0 || limit > contextHitLimit {
		limit = contextHitLimit
	}

	result, err := h.searcher.Search(ctx, partition, osdu.SearchRequest{
		Kind:  env.Kind,
		Query: env.Query,
		Limit: limit,
	})
	if err != nil {
		h.logger.Warn("context search failed", "session_id", sess.id, "error", err)
		write(Envelope{Type: "error", Content: "search failed"})
		return
	}

	hits, err := json.Marshal(result.Results)
	if err != nil {
		write(Envelope{Type: "error", Content: "search results could not be encoded"})
		return
	}

	sess.mu.Lock()
	sess.history = append(sess.history, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleSystem,
		Content: fmt.Sprintf("OSDU search results for kind %q (query %q):\n%s",
			env.Kind, env.Query, hits),
	})
	sess.mu.Unlock()

	write(Envelope{
		Type:    "context",
		Content: fmt.Sprintf("%d search results attached", len(result.Results)),
	})
}
