package booking

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/appointment-assistant/pkg/logging"
)

func TestMockConfirmer_Confirm(t *testing.T) {
	m := NewMockConfirmer(logging.Discard())

	res, err := m.Confirm(context.Background(), Request{ConversationID: "conv-1", Slot: "14/07/2025 ; 09:00"})
	require.NoError(t, err)
	assert.True(t, res.Booked)
	assert.True(t, strings.HasPrefix(res.Reference, "appt_"))
	assert.Equal(t, "Appointment booked for 14/07/2025 ; 09:00", res.Message)

	stored, ok := m.Lookup(res.Reference)
	require.True(t, ok)
	assert.Equal(t, res, stored)

	again, err := m.Confirm(context.Background(), Request{Slot: "14/07/2025 ; 09:00"})
	require.NoError(t, err)
	assert.NotEqual(t, res.Reference, again.Reference)
}

func TestMockConfirmer_Errors(t *testing.T) {
	m := NewMockConfirmer(nil)

	_, err := m.Confirm(context.Background(), Request{Slot: "  "})
	assert.ErrorIs(t, err, ErrEmptySlot)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Confirm(ctx, Request{Slot: "14/07/2025 ; 09:00"})
	assert.ErrorIs(t, err, context.Canceled)

	_, ok := m.Lookup("missing")
	assert.False(t, ok)
}
