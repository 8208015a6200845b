package webchat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/wolfman30/appointment-assistant/internal/assistant"
	"github.com/wolfman30/appointment-assistant/internal/dialogue"
)

func TestReplyMessage(t *testing.T) {
	msg := replyMessage("sess1", &assistant.Response{
		Reply:                "Booked!",
		SelectedSlot:         "15/07/2025 ; 09:00",
		BookingComplete:      true,
		AppointmentReference: "appt_1",
		AvailableSlots:       []string{},
		Timestamp:            time.Date(2025, 7, 14, 10, 0, 0, 0, time.UTC),
	})

	assert.Equal(t, "message", msg.Type)
	assert.Equal(t, "assistant", msg.Role)
	assert.Equal(t, "Booked!", msg.Text)
	assert.True(t, msg.BookingComplete)
	assert.Equal(t, "appt_1", msg.AppointmentReference)
	assert.Equal(t, "2025-07-14T10:00:00Z", msg.Timestamp)
}

func TestHistoryMessagesKeepsMostRecent(t *testing.T) {
	ts := time.Date(2025, 7, 14, 10, 0, 0, 0, time.UTC)
	conv := &assistant.Conversation{Events: []dialogue.Event{
		{Role: dialogue.RoleUser, Text: "one", Timestamp: ts},
		{Role: dialogue.RoleAssistant, Text: "two", Timestamp: ts},
		{Role: dialogue.RoleUser, Text: "three", Timestamp: ts},
	}}

	got := historyMessages(conv, 2)

	assert.Equal(t, []HistoryMessage{
		{Role: "assistant", Text: "two", Timestamp: "2025-07-14T10:00:00Z"},
		{Role: "user", Text: "three", Timestamp: "2025-07-14T10:00:00Z"},
	}, got)
	assert.Empty(t, historyMessages(nil, 10))
}
