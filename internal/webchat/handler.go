package webchat

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/wolfman30/appointment-assistant/internal/assistant"
	"github.com/wolfman30/appointment-assistant/internal/dialogue"
	"github.com/wolfman30/appointment-assistant/pkg/logging"
	"golang.org/x/net/websocket"
)

const (
	wsHistoryLimit   = 50
	httpHistoryLimit = 100
	msgChatFailure   = "Sorry, something went wrong. Please try again."
)

// Conversations runs booking turns and reads stored history.
// *assistant.Service satisfies it.
type Conversations interface {
	ProcessMessage(ctx context.Context, req assistant.MessageRequest) (*assistant.Response, error)
	GetConversation(ctx context.Context, conversationID string) (*assistant.Conversation, error)
}

// Handler manages web chat connections and messages.
type Handler struct {
	conversations Conversations
	logger        *logging.Logger

	mu       sync.RWMutex
	sessions map[string]*wsConn // conversationID -> active connection
}

type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) send(msg OutboundMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return websocket.JSON.Send(c.conn, msg)
}

// InboundMessage is what the widget sends.
type InboundMessage struct {
	Type      string `json:"type"` // "message", "ping"
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

// OutboundMessage is what the widget receives.
type OutboundMessage struct {
	Type                 string           `json:"type"` // "message", "typing", "history", "session", "error", "pong"
	Text                 string           `json:"text,omitempty"`
	Role                 string           `json:"role,omitempty"`
	SessionID            string           `json:"session_id,omitempty"`
	Timestamp            string           `json:"timestamp,omitempty"`
	Messages             []HistoryMessage `json:"messages,omitempty"`
	AvailableSlots       []string         `json:"available_slots,omitempty"`
	SelectedSlot         string           `json:"selected_slot,omitempty"`
	BookingComplete      bool             `json:"booking_complete,omitempty"`
	AppointmentReference string           `json:"appointment_reference,omitempty"`
}

// HistoryMessage is a simplified message for history responses.
type HistoryMessage struct {
	Role      string `json:"role"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// NewHandler creates a web chat handler.
func NewHandler(conversations Conversations, logger *logging.Logger) *Handler {
	if conversations == nil {
		panic("webchat: conversations cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		conversations: conversations,
		logger:        logger.WithComponent("webchat"),
		sessions:      make(map[string]*wsConn),
	}
}

// Routes mounts the chat endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/chat/ws", h.HandleWebSocket)
	r.Post("/chat/message", h.HandleMessage)
	r.Get("/chat/history", h.HandleHistory)
}

// ConversationID builds the canonical conversation ID for a webchat session.
func ConversationID(sessionID string) string {
	return "webchat:" + sessionID
}

// generateSessionID creates a random session identifier.
func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return uuid.New().String()
	}
	return hex.EncodeToString(b)
}

// HandleWebSocket upgrades to WebSocket and handles real-time messaging.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	ctx := r.Context()
	sessionID := strings.TrimSpace(r.URL.Query().Get("session"))
	if sessionID == "" {
		sessionID = generateSessionID()
	}
	convID := ConversationID(sessionID)

	wsc := &wsConn{conn: conn}
	_ = wsc.send(OutboundMessage{Type: "session", SessionID: sessionID})

	if history := h.history(ctx, convID, wsHistoryLimit); len(history) > 0 {
		_ = wsc.send(OutboundMessage{Type: "history", Messages: history})
	}

	h.mu.Lock()
	h.sessions[convID] = wsc
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		if h.sessions[convID] == wsc {
			delete(h.sessions, convID)
		}
		h.mu.Unlock()
	}()

	h.logger.Info("webchat: connection opened", "session_id", sessionID)

	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("webchat: connection closed", "session_id", sessionID, "error", err)
			return
		}

		if msg.Type == "ping" {
			_ = wsc.send(OutboundMessage{Type: "pong"})
			continue
		}
		if msg.Type != "message" || strings.TrimSpace(msg.Text) == "" {
			continue
		}

		_ = wsc.send(OutboundMessage{Type: "typing"})
		resp, err := h.process(ctx, sessionID, msg.Text)
		if err != nil {
			_ = wsc.send(OutboundMessage{Type: "error", Text: msgChatFailure})
			continue
		}
		_ = wsc.send(replyMessage(sessionID, resp))
	}
}

func (h *Handler) process(ctx context.Context, sessionID, text string) (*assistant.Response, error) {
	convID := ConversationID(sessionID)
	resp, err := h.conversations.ProcessMessage(ctx, assistant.MessageRequest{
		ConversationID: convID,
		Message:        text,
	})
	if err != nil {
		h.logger.Error("webchat: failed to process message", "conversation_id", convID, "error", err)
		return nil, err
	}
	h.logger.Info("webchat: reply sent",
		"conversation_id", convID,
		"outcome", resp.Outcome,
		"length", len(resp.Reply),
	)
	return resp, nil
}

// SendToSession pushes a message to an open WebSocket session. It reports
// whether the session was connected.
func (h *Handler) SendToSession(convID string, msg OutboundMessage) bool {
	h.mu.RLock()
	wsc, ok := h.sessions[convID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return wsc.send(msg) == nil
}

// HandleMessage is the HTTP fallback for sending messages. The reply is
// returned in the response body.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
		Text      string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		req.SessionID = generateSessionID()
	}

	resp, err := h.process(r.Context(), req.SessionID, req.Text)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, OutboundMessage{Type: "error", Text: msgChatFailure, SessionID: req.SessionID})
		return
	}
	writeJSON(w, http.StatusOK, replyMessage(req.SessionID, resp))
}

// HandleHistory returns chat history for a session.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "session parameter required", http.StatusBadRequest)
		return
	}

	conv, err := h.conversations.GetConversation(r.Context(), ConversationID(sessionID))
	if err != nil && !errors.Is(err, dialogue.ErrTrackerNotFound) {
		h.logger.Error("webchat: failed to load history", "error", err)
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": historyMessages(conv, httpHistoryLimit)})
}

func (h *Handler) history(ctx context.Context, convID string, limit int) []HistoryMessage {
	conv, err := h.conversations.GetConversation(ctx, convID)
	if err != nil {
		if !errors.Is(err, dialogue.ErrTrackerNotFound) {
			h.logger.Warn("webchat: failed to load history", "conversation_id", convID, "error", err)
		}
		return nil
	}
	return historyMessages(conv, limit)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
