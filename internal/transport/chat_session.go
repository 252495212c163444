package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lexiqai/llm-gateway/internal/chat"
	"github.com/lexiqai/llm-gateway/internal/endpoint"
	"github.com/lexiqai/llm-gateway/internal/observability"
	"github.com/lexiqai/llm-gateway/internal/orchestrator"
	"github.com/lexiqai/llm-gateway/internal/stats"
)

const writeTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The UI is served from another origin during development
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Frame types
const (
	FrameChat    = "chat"
	FrameCancel  = "cancel"
	FrameContent = "content"
	FrameDone    = "done"
	FrameError   = "error"
)

// Error codes carried by error frames
const (
	CodeBadRequest      = "bad_request"
	CodeBusy            = "busy"
	CodeUnknownEndpoint = "unknown_endpoint"
	CodeTransport       = "stream_transport"
	CodeCancelled       = "cancelled"
	CodeInternal        = "internal"
)

// ClientFrame is a message from the UI
type ClientFrame struct {
	Type         string         `json:"type"`
	History      []chat.Message `json:"history,omitempty"`
	SystemPrompt string         `json:"system_prompt,omitempty"`
	EndpointID   string         `json:"endpoint_id,omitempty"`
	Temperature  *float64       `json:"temperature,omitempty"`
	MaxTokens    *int           `json:"max_tokens,omitempty"`
}

// ServerFrame is a message to the UI
type ServerFrame struct {
	Type      string       `json:"type"`
	SessionID string       `json:"session_id"`
	Content   string       `json:"content,omitempty"`
	Usage     *stats.Usage `json:"usage,omitempty"`
	Code      string       `json:"code,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// Completer runs one orchestration call
type Completer interface {
	StreamCompletion(ctx context.Context, req orchestrator.Request, onContent orchestrator.ContentFunc) (stats.Usage, error)
}

// Defaults fill in chat frames that omit sampling parameters
type Defaults struct {
	Temperature float64
	MaxTokens   int
}

// ChatSession holds the state of one WebSocket connection. At most one
// completion runs at a time.
type ChatSession struct {
	conn      *websocket.Conn
	sessionID string
	completer Completer
	defaults  Defaults
	logger    zerolog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
	wg      sync.WaitGroup
}

// NewChatSession creates a session for an upgraded connection
func NewChatSession(conn *websocket.Conn, completer Completer, defaults Defaults, logger zerolog.Logger) *ChatSession {
	sessionID := uuid.New().String()
	return &ChatSession{
		conn:      conn,
		sessionID: sessionID,
		completer: completer,
		defaults:  defaults,
		logger:    logger.With().Str("session_id", sessionID).Logger(),
	}
}

// HandleChatWS is the entry point for chat WebSocket connections
func HandleChatWS(completer Completer, defaults Defaults, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Upgrade writes its own error response on failure
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to upgrade connection to WebSocket")
			return
		}
		defer conn.Close()

		session := NewChatSession(conn, completer, defaults, logger)
		session.logger.Info().Str("remote_addr", r.RemoteAddr).Msg("Chat session opened")
		session.Serve(r.Context())
		session.logger.Info().Msg("Chat session closed")
	}
}

// Serve reads frames until the connection closes, then cancels and waits
// for any running completion.
func (s *ChatSession) Serve(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		s.wg.Wait()
	}()

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}

		var frame ClientFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to parse client frame")
			s.sendError(CodeBadRequest, "invalid frame")
			continue
		}

		switch frame.Type {
		case FrameChat:
			s.startCompletion(ctx, frame)
		case FrameCancel:
			s.cancelCompletion()
		default:
			s.logger.Warn().Str("type", frame.Type).Msg("Unknown frame type")
			s.sendError(CodeBadRequest, "unknown frame type: "+frame.Type)
		}
	}
}

func (s *ChatSession) startCompletion(parent context.Context, frame ClientFrame) {
	if frame.EndpointID == "" {
		s.sendError(CodeBadRequest, "endpoint_id is required")
		return
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.sendError(CodeBusy, "a completion is already running")
		return
	}
	ctx, cancel := context.WithCancel(parent)
	s.running = true
	s.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	req := orchestrator.Request{
		History:       frame.History,
		SystemPrompt:  frame.SystemPrompt,
		EndpointID:    frame.EndpointID,
		Temperature:   s.defaults.Temperature,
		MaxTokens:     s.defaults.MaxTokens,
		CorrelationID: observability.NewCorrelationID(),
	}
	if frame.Temperature != nil {
		req.Temperature = *frame.Temperature
	}
	if frame.MaxTokens != nil {
		req.MaxTokens = *frame.MaxTokens
	}

	go func() {
		defer func() {
			cancel()
			s.mu.Lock()
			s.running = false
			s.cancel = nil
			s.mu.Unlock()
			s.wg.Done()
		}()
		s.runCompletion(ctx, req)
	}()
}

func (s *ChatSession) runCompletion(ctx context.Context, req orchestrator.Request) {
	logger := s.logger.With().Str("correlation_id", req.CorrelationID).Logger()

	usage, err := s.completer.StreamCompletion(ctx, req, func(fragment string) {
		if err := s.send(ServerFrame{Type: FrameContent, Content: fragment}); err != nil {
			logger.Debug().Err(err).Msg("Dropping content fragment")
		}
	})
	if err != nil {
		code := errorCode(err)
		logger.Info().Err(err).Str("code", code).Msg("Completion ended with error")
		s.sendError(code, err.Error())
		return
	}

	if err := s.send(ServerFrame{Type: FrameDone, Usage: &usage}); err != nil {
		logger.Debug().Err(err).Msg("Failed to send done frame")
	}
}

func (s *ChatSession) cancelCompletion() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.logger.Info().Msg("Cancelling completion")
		s.cancel()
	}
}

func (s *ChatSession) send(frame ServerFrame) error {
	frame.SessionID = s.sessionID

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return s.conn.WriteJSON(frame)
}

func (s *ChatSession) sendError(code, message string) {
	if err := s.send(ServerFrame{Type: FrameError, Code: code, Error: message}); err != nil {
		s.logger.Debug().Err(err).Msg("Failed to send error frame")
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, endpoint.ErrUnknownEndpoint):
		return CodeUnknownEndpoint
	case errors.Is(err, context.Canceled):
		return CodeCancelled
	case errors.Is(err, orchestrator.ErrStreamTransport):
		return CodeTransport
	}
	return CodeInternal
}
