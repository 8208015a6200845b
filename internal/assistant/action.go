package assistant

import (
	"context"

	"github.com/wolfman30/appointment-assistant/internal/appointments"
	"github.com/wolfman30/appointment-assistant/internal/dialogue"
)

// BookingAction runs the Agent against a dialogue tracker and reports the
// resulting slot assignments.
type BookingAction struct {
	agent *Agent
}

func NewBookingAction(agent *Agent) *BookingAction {
	if agent == nil {
		panic("assistant: agent cannot be nil")
	}
	return &BookingAction{agent: agent}
}

// Run processes message for the tracker's conversation. The tracker is
// not modified; callers apply the returned assignments.
func (b *BookingAction) Run(ctx context.Context, tracker *dialogue.Tracker, message string) (TurnResult, []dialogue.SlotSet) {
	res := b.agent.Turn(ctx, TurnInput{
		ConversationID: tracker.ConversationID,
		Message:        message,
		Session:        SessionFromTracker(tracker),
	})
	return res, SlotSetsFor(res)
}

// SessionFromTracker rebuilds the agent session from tracker slots and
// the user/assistant event history.
func SessionFromTracker(tracker *dialogue.Tracker) Session {
	if tracker == nil {
		return Session{}
	}
	s := Session{
		Offer: appointments.Offer(tracker.GetStrings(dialogue.SlotAvailableSlots)),
		Preferences: appointments.PartialQuery{
			StartDate:     tracker.GetString(dialogue.SlotStartDate),
			EndDate:       tracker.GetString(dialogue.SlotEndDate),
			StartTime:     tracker.GetString(dialogue.SlotStartTime),
			EndTime:       tracker.GetString(dialogue.SlotEndTime),
			Provider:      tracker.GetString(dialogue.SlotProvider),
			ExcludedDates: tracker.GetString(dialogue.SlotExcludedDates),
		},
	}
	for _, e := range tracker.Events {
		if e.Validate() != nil {
			continue
		}
		role := ChatRoleUser
		if e.Role == dialogue.RoleAssistant {
			role = ChatRoleAssistant
		}
		s.History = append(s.History, ChatMessage{Role: role, Content: e.Text})
	}
	return s
}

// SlotSetsFor maps a turn outcome to tracker assignments. Failed turns
// produce none.
func SlotSetsFor(res TurnResult) []dialogue.SlotSet {
	var sets []dialogue.SlotSet

	if res.PreferencesUpdated {
		p := res.Session.Preferences
		sets = append(sets,
			dialogue.SlotSet{Name: dialogue.SlotStartDate, Value: p.StartDate},
			dialogue.SlotSet{Name: dialogue.SlotEndDate, Value: p.EndDate},
			dialogue.SlotSet{Name: dialogue.SlotStartTime, Value: p.StartTime},
			dialogue.SlotSet{Name: dialogue.SlotEndTime, Value: p.EndTime},
			dialogue.SlotSet{Name: dialogue.SlotProvider, Value: p.Provider},
			dialogue.SlotSet{Name: dialogue.SlotExcludedDates, Value: p.ExcludedDates},
			dialogue.SlotSet{Name: dialogue.SlotAvailableSlots, Value: res.Session.Offer.Strings()},
		)
	}

	if res.Selection != nil {
		sets = append(sets,
			dialogue.SlotSet{Name: dialogue.SlotSelectedSlot, Value: res.Selection.Value},
			dialogue.SlotSet{Name: dialogue.SlotBookingComplete, Value: true},
			dialogue.SlotSet{Name: dialogue.SlotAvailableSlots, Value: []string{}},
		)
	}
	return sets
}
