package assistant

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/wolfman30/appointment-assistant/internal/appointments"
)

const (
	ToolQueryAppointments = "query_available_appointments"
	ToolSelectSlot        = "select_appointment_slot"
)

const (
	queryToolDescription  = "Query available appointment slots based on user preferences"
	selectToolDescription = "Select a specific appointment slot from the currently available options. " +
		"IMPORTANT: You can ONLY select from the exact slots listed in the current available options. " +
		"Do not create or suggest new appointment times."
)

// SelectSlotArgs are the arguments of select_appointment_slot.
type SelectSlotArgs struct {
	SelectedSlot string `json:"selected_slot" jsonschema:"The exact appointment slot in 'dd/mm/yyyy ; HH:MM' format, copied from the available slots list"`
}

// ToolArgumentParseError is returned when a tool call's arguments are not
// valid JSON for the tool.
type ToolArgumentParseError struct {
	Tool string
	Err  error
}

func (e *ToolArgumentParseError) Error() string {
	return fmt.Sprintf("assistant: parse %s arguments: %v", e.Tool, e.Err)
}

func (e *ToolArgumentParseError) Unwrap() error { return e.Err }

// BookingTools returns the two tools offered on every deciding call.
func BookingTools() ([]ToolDefinition, error) {
	querySchema, err := jsonschema.For[appointments.PartialQuery](nil)
	if err != nil {
		return nil, fmt.Errorf("assistant: query tool schema: %w", err)
	}
	selectSchema, err := jsonschema.For[SelectSlotArgs](nil)
	if err != nil {
		return nil, fmt.Errorf("assistant: select tool schema: %w", err)
	}
	return []ToolDefinition{
		{
			Name:        ToolQueryAppointments,
			Description: queryToolDescription,
			Parameters:  querySchema,
		},
		{
			Name:        ToolSelectSlot,
			Description: selectToolDescription,
			Parameters:  selectSchema,
		},
	}, nil
}

// MustBookingTools is BookingTools for package initialisation.
func MustBookingTools() []ToolDefinition {
	tools, err := BookingTools()
	if err != nil {
		panic(err)
	}
	return tools
}

// decodeArgs decodes a tool call's JSON arguments into v.
func decodeArgs(call ToolCall, v any) error {
	raw := bytes.TrimSpace([]byte(call.Arguments))
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(v); err != nil {
		return &ToolArgumentParseError{Tool: call.Name, Err: err}
	}
	return nil
}

// schemaMap renders a schema as a generic JSON object for providers that
// take untyped documents.
func schemaMap(s *jsonschema.Schema) (map[string]any, error) {
	if s == nil {
		return map[string]any{"type": "object"}, nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// argumentsMap decodes raw tool arguments into a JSON object.
func argumentsMap(arguments string) (map[string]any, error) {
	out := map[string]any{}
	raw := strings.TrimSpace(arguments)
	if raw == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}
