package dialogue

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Slot names shared with the dialogue framework.
const (
	SlotStartDate     = "user_availability_start_date"
	SlotEndDate       = "user_availability_end_date"
	SlotStartTime     = "user_availability_start_time"
	SlotEndTime       = "user_availability_end_time"
	SlotProvider      = "preferred_doctor"
	SlotExcludedDates = "non_available_days"

	SlotAvailableSlots       = "available_appointment_slots"
	SlotSelectedSlot         = "selected_appointment_slot"
	SlotBookingComplete      = "booking_complete"
	SlotAppointmentReference = "appointment_reference"
)

// PreferenceSlots lists the six raw preference slots in tool argument order.
var PreferenceSlots = []string{
	SlotStartDate,
	SlotEndDate,
	SlotStartTime,
	SlotEndTime,
	SlotProvider,
	SlotExcludedDates,
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrInvalidEvent is returned for events without a supported role or text.
var ErrInvalidEvent = errors.New("dialogue: invalid event")

// Event is one utterance in the conversation history.
type Event struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Validate rejects events the history cannot represent.
func (e Event) Validate() error {
	if e.Role != RoleUser && e.Role != RoleAssistant {
		return fmt.Errorf("%w: unsupported role %q", ErrInvalidEvent, e.Role)
	}
	if strings.TrimSpace(e.Text) == "" {
		return fmt.Errorf("%w: empty %s text", ErrInvalidEvent, e.Role)
	}
	return nil
}

// SlotSet assigns Value to the named slot. A nil Value clears the slot.
type SlotSet struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// Tracker is the per-conversation state: slots plus event history.
type Tracker struct {
	ConversationID string         `json:"conversation_id"`
	Slots          map[string]any `json:"slots"`
	Events         []Event        `json:"events"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// NewTracker returns an empty tracker for the conversation.
func NewTracker(conversationID string) *Tracker {
	return &Tracker{
		ConversationID: conversationID,
		Slots:          map[string]any{},
	}
}

// Get returns the raw slot value.
func (t *Tracker) Get(name string) (any, bool) {
	if t == nil || t.Slots == nil {
		return nil, false
	}
	v, ok := t.Slots[name]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// GetString returns a string slot, or "" when unset or of another type.
func (t *Tracker) GetString(name string) string {
	v, ok := t.Get(name)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// GetStrings returns a list slot. JSON round trips turn []string into
// []any, so both shapes are accepted.
func (t *Tracker) GetStrings(name string) []string {
	v, ok := t.Get(name)
	if !ok {
		return nil
	}
	switch list := v.(type) {
	case []string:
		out := make([]string, len(list))
		copy(out, list)
		return out
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// GetBool returns a boolean slot, false when unset.
func (t *Tracker) GetBool(name string) bool {
	v, ok := t.Get(name)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Apply writes slot assignments in order.
func (t *Tracker) Apply(sets ...SlotSet) {
	if t.Slots == nil {
		t.Slots = map[string]any{}
	}
	for _, set := range sets {
		if set.Value == nil {
			delete(t.Slots, set.Name)
			continue
		}
		t.Slots[set.Name] = set.Value
	}
}

// Append validates and records events.
func (t *Tracker) Append(events ...Event) error {
	for _, e := range events {
		if err := e.Validate(); err != nil {
			return err
		}
	}
	t.Events = append(t.Events, events...)
	return nil
}

// TrimEvents keeps the most recent limit events and reports how many were
// dropped. A non-positive limit keeps everything.
func (t *Tracker) TrimEvents(limit int) int {
	if limit <= 0 || len(t.Events) <= limit {
		return 0
	}
	dropped := len(t.Events) - limit
	t.Events = append([]Event(nil), t.Events[dropped:]...)
	return dropped
}

// Clone returns a deep enough copy for transactional updates: slot list
// values are copied, other values are immutable in practice.
func (t *Tracker) Clone() *Tracker {
	if t == nil {
		return nil
	}
	out := &Tracker{
		ConversationID: t.ConversationID,
		Slots:          make(map[string]any, len(t.Slots)),
		Events:         append([]Event(nil), t.Events...),
		UpdatedAt:      t.UpdatedAt,
	}
	for k, v := range t.Slots {
		switch list := v.(type) {
		case []string:
			out.Slots[k] = append([]string(nil), list...)
		case []any:
			out.Slots[k] = append([]any(nil), list...)
		default:
			out.Slots[k] = v
		}
	}
	return out
}
