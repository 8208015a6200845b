package assistant

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/appointment-assistant/internal/appointments"
)

func TestBookingToolsSchemas(t *testing.T) {
	tools, err := BookingTools()
	require.NoError(t, err)
	require.Len(t, tools, 2)

	query := tools[0]
	assert.Equal(t, ToolQueryAppointments, query.Name)
	require.NotNil(t, query.Parameters)
	assert.ElementsMatch(t, []string{
		appointments.FieldStartDate,
		appointments.FieldEndDate,
		appointments.FieldStartTime,
		appointments.FieldEndTime,
		appointments.FieldProvider,
		appointments.FieldExcludedDates,
	}, query.Parameters.Required)
	require.Contains(t, query.Parameters.Properties, appointments.FieldStartDate)
	assert.Contains(t, query.Parameters.Properties[appointments.FieldStartDate].Description, "dd/mm/yyyy")
	assert.Contains(t, query.Parameters.Properties[appointments.FieldExcludedDates].Description, "';'")

	sel := tools[1]
	assert.Equal(t, ToolSelectSlot, sel.Name)
	assert.Equal(t, []string{"selected_slot"}, sel.Parameters.Required)
	assert.Contains(t, sel.Description, "You can ONLY select from the exact slots listed")
	assert.Contains(t, sel.Description, "Do not create or suggest new appointment times.")
}

func TestDecodeArgs(t *testing.T) {
	var q appointments.PartialQuery
	require.NoError(t, decodeArgs(ToolCall{Arguments: `{"preferred_doctor":"Smith","extra":1}`}, &q))
	assert.Equal(t, "Smith", q.Provider)

	var empty SelectSlotArgs
	require.NoError(t, decodeArgs(ToolCall{Arguments: "  "}, &empty))
	assert.Empty(t, empty.SelectedSlot)

	err := decodeArgs(ToolCall{Name: ToolSelectSlot, Arguments: `{"selected_slot": 12}`}, &empty)
	var parseErr *ToolArgumentParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, ToolSelectSlot, parseErr.Tool)
}

func TestSchemaMap(t *testing.T) {
	tools := MustBookingTools()
	m, err := schemaMap(tools[1].Parameters)
	require.NoError(t, err)
	assert.Equal(t, "object", m["type"])
	props, ok := m["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "selected_slot")

	m, err = schemaMap(nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"type": "object"}, m)
}

func TestArgumentsMap(t *testing.T) {
	m, err := argumentsMap("")
	require.NoError(t, err)
	assert.Empty(t, m)

	m, err = argumentsMap(`{"selected_slot":"14/07/2025 ; 09:00"}`)
	require.NoError(t, err)
	assert.Equal(t, "14/07/2025 ; 09:00", m["selected_slot"])

	_, err = argumentsMap("[1,2]")
	assert.Error(t, err)
}
