package webchat

import (
	"time"

	"github.com/wolfman30/appointment-assistant/internal/assistant"
	"github.com/wolfman30/appointment-assistant/internal/dialogue"
)

// replyMessage converts a processed turn into the widget's wire format.
func replyMessage(sessionID string, resp *assistant.Response) OutboundMessage {
	return OutboundMessage{
		Type:                 "message",
		Role:                 dialogue.RoleAssistant,
		Text:                 resp.Reply,
		SessionID:            sessionID,
		Timestamp:            resp.Timestamp.Format(time.RFC3339),
		AvailableSlots:       resp.AvailableSlots,
		SelectedSlot:         resp.SelectedSlot,
		BookingComplete:      resp.BookingComplete,
		AppointmentReference: resp.AppointmentReference,
	}
}

// historyMessages flattens the stored conversation events, keeping the
// most recent limit entries.
func historyMessages(conv *assistant.Conversation, limit int) []HistoryMessage {
	if conv == nil {
		return []HistoryMessage{}
	}
	events := conv.Events
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	out := make([]HistoryMessage, 0, len(events))
	for _, e := range events {
		ts := ""
		if !e.Timestamp.IsZero() {
			ts = e.Timestamp.Format(time.RFC3339)
		}
		out = append(out, HistoryMessage{Role: e.Role, Text: e.Text, Timestamp: ts})
	}
	return out
}
