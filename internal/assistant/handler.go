package assistant

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/appointment-assistant/internal/appointments"
	"github.com/wolfman30/appointment-assistant/internal/booking"
	"github.com/wolfman30/appointment-assistant/internal/dialogue"
	"github.com/wolfman30/appointment-assistant/pkg/logging"
)

// Handler wires HTTP requests to the booking service and the raw tools.
type Handler struct {
	service   *Service
	finder    *appointments.Finder
	confirmer booking.Confirmer
	logger    *logging.Logger
}

// NewHandler creates a booking handler.
func NewHandler(service *Service, finder *appointments.Finder, confirmer booking.Confirmer, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if finder == nil {
		finder = appointments.NewFinder(nil, nil)
	}
	return &Handler{
		service:   service,
		finder:    finder,
		confirmer: confirmer,
		logger:    logger,
	}
}

// Routes mounts the conversation and tool endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/conversations", h.Start)
	r.Post("/conversations/{conversationID}/messages", h.Message)
	r.Get("/conversations/{conversationID}", h.Get)
	r.Post("/tools/"+ToolQueryAppointments, h.QueryAppointments)
	r.Post("/tools/book_appointment", h.BookAppointment)
}

// Start handles POST /conversations.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	// An empty body starts a conversation without an opening message.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Error("failed to decode start request", "error", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.service.StartConversation(r.Context(), req)
	if errors.Is(err, ErrConversationExists) {
		h.writeError(w, http.StatusConflict, "Conversation already exists")
		return
	}
	if err != nil {
		h.logger.Error("failed to start conversation", "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to start conversation")
		return
	}
	h.writeJSON(w, http.StatusCreated, resp)
}

// Message handles POST /conversations/{conversationID}/messages.
func (h *Handler) Message(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode message request", "error", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.ConversationID = chi.URLParam(r, "conversationID")

	resp, err := h.service.ProcessMessage(r.Context(), req)
	if err != nil {
		h.logger.Error("failed to process message", "conversation_id", req.ConversationID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to process message")
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /conversations/{conversationID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")
	conv, err := h.service.GetConversation(r.Context(), id)
	if errors.Is(err, dialogue.ErrTrackerNotFound) {
		h.writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to load conversation", "conversation_id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to load conversation")
		return
	}
	h.writeJSON(w, http.StatusOK, conv)
}

// QueryAppointments handles POST /tools/query_available_appointments.
// Missing fields are treated as "any".
func (h *Handler) QueryAppointments(w http.ResponseWriter, r *http.Request) {
	var args appointments.PartialQuery
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, _, err := h.finder.Search(args, appointments.PartialQuery{})
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, result)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

type bookRequest struct {
	Slot string `json:"slot"`
}

type bookResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	Reference string `json:"reference,omitempty"`
	Error     string `json:"error,omitempty"`
}

// BookAppointment handles POST /tools/book_appointment.
func (h *Handler) BookAppointment(w http.ResponseWriter, r *http.Request) {
	if h.confirmer == nil {
		h.writeError(w, http.StatusServiceUnavailable, "Booking is not configured")
		return
	}
	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	slot := strings.TrimSpace(req.Slot)
	if _, err := appointments.ParseSlot(slot); err != nil {
		h.writeJSON(w, http.StatusBadRequest, bookResponse{Error: "slot must use the 'dd/mm/yyyy ; HH:MM' format"})
		return
	}

	res, err := h.confirmer.Confirm(r.Context(), booking.Request{Slot: slot})
	if err != nil {
		h.logger.Error("failed to book appointment", "slot", slot, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to book appointment")
		return
	}
	h.writeJSON(w, http.StatusOK, bookResponse{Success: true, Message: res.Message, Reference: res.Reference})
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
