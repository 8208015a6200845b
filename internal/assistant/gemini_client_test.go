package assistant

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/appointment-assistant/internal/appointments"
)

func TestGeminiContents(t *testing.T) {
	contents, err := geminiContents([]ChatMessage{
		{Role: ChatRoleSystem, Content: "ignored"},
		{Role: ChatRoleUser, Content: "book"},
		{Role: ChatRoleAssistant, ToolCalls: []ToolCall{{ID: "c1", Name: ToolSelectSlot, Arguments: `{"selected_slot":"14/07/2025 ; 09:00"}`}}},
		{Role: ChatRoleTool, Name: ToolSelectSlot, ToolCallID: "c1", Content: `{"success":true}`},
		{Role: ChatRoleTool, Name: ToolQueryAppointments, ToolCallID: "c2", Content: "plain text"},
	})
	require.NoError(t, err)
	require.Len(t, contents, 3)

	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
	call, ok := contents[1].Parts[0].(genai.FunctionCall)
	require.True(t, ok)
	assert.Equal(t, ToolSelectSlot, call.Name)
	assert.Equal(t, "14/07/2025 ; 09:00", call.Args["selected_slot"])

	assert.Equal(t, "user", contents[2].Role)
	require.Len(t, contents[2].Parts, 2)
	first, ok := contents[2].Parts[0].(genai.FunctionResponse)
	require.True(t, ok)
	assert.Equal(t, true, first.Response["success"])
	second := contents[2].Parts[1].(genai.FunctionResponse)
	assert.Equal(t, map[string]any{"content": "plain text"}, second.Response)
}

func TestGeminiContentsRejectsUnknownRole(t *testing.T) {
	_, err := geminiContents([]ChatMessage{{Role: "narrator", Content: "x"}})
	assert.Error(t, err)
}

func TestGeminiSchema(t *testing.T) {
	tools := MustBookingTools()
	gs := geminiSchema(tools[0].Parameters)

	require.NotNil(t, gs)
	assert.Equal(t, genai.TypeObject, gs.Type)
	require.Len(t, gs.Properties, 6)
	prop := gs.Properties[appointments.FieldProvider]
	require.NotNil(t, prop)
	assert.Equal(t, genai.TypeString, prop.Type)
	assert.Contains(t, prop.Description, "preferred doctor")
	assert.Len(t, gs.Required, 6)

	assert.Nil(t, geminiSchema(nil))
}

func TestGeminiParseResponse(t *testing.T) {
	resp, err := geminiParseResponse(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: "model", Parts: []genai.Part{
				genai.Text("Let me check. "),
				genai.FunctionCall{Name: ToolQueryAppointments, Args: map[string]any{"preferred_doctor": "Smith"}},
			}},
			FinishReason: genai.FinishReasonStop,
		}},
		UsageMetadata: &genai.UsageMetadata{PromptTokenCount: 10, CandidatesTokenCount: 4, TotalTokenCount: 14},
	})
	require.NoError(t, err)

	assert.Equal(t, "Let me check.", resp.Text)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, ToolQueryAppointments, resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"preferred_doctor":"Smith"}`, resp.ToolCalls[0].Arguments)
	assert.Equal(t, int32(14), resp.Usage.TotalTokens)

	_, err = geminiParseResponse(&genai.GenerateContentResponse{})
	assert.Error(t, err)
	_, err = geminiParseResponse(&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}})
	assert.Error(t, err)
}

func TestNewGeminiLLMClientRequiresKey(t *testing.T) {
	_, err := NewGeminiLLMClient(context.Background(), "", "")
	assert.Error(t, err)
}
