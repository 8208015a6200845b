package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/appointment-assistant/internal/booking"
	"github.com/wolfman30/appointment-assistant/internal/dialogue"
	"github.com/wolfman30/appointment-assistant/pkg/logging"
)

// ErrConversationExists is returned when StartConversation is given the id
// of a conversation that is already stored.
var ErrConversationExists = errors.New("assistant: conversation already exists")

// StartRequest opens a conversation, optionally with a first message.
type StartRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message,omitempty"`
}

// MessageRequest carries one user message.
type MessageRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
}

// Response is returned for every processed turn.
type Response struct {
	ConversationID       string    `json:"conversation_id"`
	Reply                string    `json:"reply"`
	State                TurnState `json:"state"`
	Outcome              Outcome   `json:"outcome"`
	AvailableSlots       []string  `json:"available_slots"`
	SelectedSlot         string    `json:"selected_slot,omitempty"`
	BookingComplete      bool      `json:"booking_complete"`
	AppointmentReference string    `json:"appointment_reference,omitempty"`
	ConversationComplete bool      `json:"conversation_complete"`
	Timestamp            time.Time `json:"timestamp"`
}

// Conversation is the stored view of a conversation.
type Conversation struct {
	ConversationID string           `json:"conversation_id"`
	Slots          map[string]any   `json:"slots"`
	Events         []dialogue.Event `json:"events"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// Service loads trackers, runs booking turns and persists the outcome.
type Service struct {
	action    *BookingAction
	store     dialogue.TrackerStore
	confirmer booking.Confirmer
	logger    *logging.Logger
	now       func() time.Time

	// maxEvents caps the stored history; zero keeps everything.
	maxEvents int
	locks     *conversationLocks
}

// NewService wires the booking service. A nil confirmer disables booking
// confirmation.
func NewService(action *BookingAction, store dialogue.TrackerStore, confirmer booking.Confirmer, logger *logging.Logger) *Service {
	if action == nil {
		panic("assistant: booking action cannot be nil")
	}
	if store == nil {
		panic("assistant: tracker store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		action:    action,
		store:     store,
		confirmer: confirmer,
		logger:    logger,
		now:       time.Now,
		maxEvents: 2 * action.agent.maxHistory,
		locks:     newConversationLocks(),
	}
}

// StartConversation creates a tracker and processes the optional opening
// message. A caller-supplied id that is already stored yields
// ErrConversationExists and leaves the stored conversation untouched.
func (s *Service) StartConversation(ctx context.Context, req StartRequest) (*Response, error) {
	id := strings.TrimSpace(req.ConversationID)
	if id == "" {
		id = "conv_" + uuid.NewString()
	}
	return s.process(ctx, id, req.Message, true)
}

// ProcessMessage runs one turn. Unknown conversations are started fresh.
func (s *Service) ProcessMessage(ctx context.Context, req MessageRequest) (*Response, error) {
	id := strings.TrimSpace(req.ConversationID)
	if id == "" {
		return nil, errors.New("assistant: conversation id is required")
	}
	return s.process(ctx, id, req.Message, false)
}

// GetConversation returns the stored tracker.
func (s *Service) GetConversation(ctx context.Context, conversationID string) (*Conversation, error) {
	tracker, err := s.store.Load(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return &Conversation{
		ConversationID: tracker.ConversationID,
		Slots:          tracker.Slots,
		Events:         tracker.Events,
		UpdatedAt:      tracker.UpdatedAt,
	}, nil
}

func (s *Service) process(ctx context.Context, conversationID, message string, fresh bool) (*Response, error) {
	unlock := s.lock(conversationID)
	defer unlock()

	logger := s.logger.WithConversation(conversationID)

	tracker, err := s.loadOrCreate(ctx, conversationID, fresh)
	if err != nil {
		return nil, err
	}

	res, sets := s.action.Run(ctx, tracker, message)

	failed := res.Outcome == OutcomeTransportError
	if !failed {
		tracker.Apply(sets...)
	}

	var reference string
	if res.Selection != nil && s.confirmer != nil {
		confirmed, err := s.confirmer.Confirm(ctx, booking.Request{
			ConversationID: conversationID,
			Slot:           res.Selection.Value,
			Provider:       res.Session.Preferences.Provider,
		})
		if err != nil {
			logger.Error("failed to confirm booking", "slot", res.Selection.Value, "error", err)
		} else {
			reference = confirmed.Reference
			tracker.Apply(dialogue.SlotSet{Name: dialogue.SlotAppointmentReference, Value: reference})
		}
	}

	// Failed turns leave the tracker as it was, history included.
	if trimmed := strings.TrimSpace(message); trimmed != "" && !failed {
		now := s.now().UTC()
		if err := tracker.Append(
			dialogue.Event{Role: dialogue.RoleUser, Text: trimmed, Timestamp: now},
			dialogue.Event{Role: dialogue.RoleAssistant, Text: res.Reply, Timestamp: now},
		); err != nil {
			logger.Warn("dropping invalid events", "error", err)
		}
		if dropped := tracker.TrimEvents(s.maxEvents); dropped > 0 {
			logger.Debug("trimmed stored history", "dropped", dropped)
		}
	}

	if err := s.store.Save(ctx, tracker); err != nil {
		return nil, fmt.Errorf("assistant: save conversation: %w", err)
	}

	resp := &Response{
		ConversationID:       conversationID,
		Reply:                res.Reply,
		State:                res.State,
		Outcome:              res.Outcome,
		AvailableSlots:       tracker.GetStrings(dialogue.SlotAvailableSlots),
		BookingComplete:      tracker.GetBool(dialogue.SlotBookingComplete),
		SelectedSlot:         tracker.GetString(dialogue.SlotSelectedSlot),
		AppointmentReference: reference,
		ConversationComplete: res.ConversationComplete,
		Timestamp:            s.now().UTC(),
	}
	if resp.AvailableSlots == nil {
		resp.AvailableSlots = []string{}
	}
	return resp, nil
}

func (s *Service) loadOrCreate(ctx context.Context, conversationID string, fresh bool) (*dialogue.Tracker, error) {
	tracker, err := s.store.Load(ctx, conversationID)
	if errors.Is(err, dialogue.ErrTrackerNotFound) {
		if !fresh {
			s.logger.Info("unknown conversation, starting fresh", "conversation_id", conversationID)
		}
		return dialogue.NewTracker(conversationID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("assistant: load conversation: %w", err)
	}
	if fresh {
		return nil, fmt.Errorf("%w: %s", ErrConversationExists, conversationID)
	}
	return tracker, nil
}

// conversationLocks serialises turns of one conversation within this
// process. Entries are reference counted and removed once no turn holds or
// waits on them.
type conversationLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newConversationLocks() *conversationLocks {
	return &conversationLocks{entries: make(map[string]*lockEntry)}
}

// acquire blocks until the conversation is free and returns its release func.
func (l *conversationLocks) acquire(conversationID string) func() {
	l.mu.Lock()
	entry, ok := l.entries[conversationID]
	if !ok {
		entry = &lockEntry{}
		l.entries[conversationID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, conversationID)
		}
		l.mu.Unlock()
	}
}

// len reports the number of tracked conversations.
func (l *conversationLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (s *Service) lock(conversationID string) func() {
	return s.locks.acquire(conversationID)
}
