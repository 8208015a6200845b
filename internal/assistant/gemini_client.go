package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/jsonschema-go/jsonschema"
	"google.golang.org/api/option"
)

// GeminiLLMClient implements LLMClient using Google's Gemini API with
// function declarations.
type GeminiLLMClient struct {
	client  *genai.Client
	modelID string
}

// NewGeminiLLMClient creates a new Gemini LLM client.
func NewGeminiLLMClient(ctx context.Context, apiKey, modelID string) (*GeminiLLMClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("assistant: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "gemini-1.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("assistant: failed to create gemini client: %w", err)
	}
	return &GeminiLLMClient{client: client, modelID: modelID}, nil
}

func (c *GeminiLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	model := c.client.GenerativeModel(c.modelID)

	if req.Temperature >= 0 {
		model.SetTemperature(req.Temperature)
	}
	if req.TopP > 0 {
		model.SetTopP(req.TopP)
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(req.MaxTokens)
	}
	if len(req.System) > 0 {
		systemText := strings.Join(req.System, "\n\n")
		if strings.TrimSpace(systemText) != "" {
			model.SystemInstruction = genai.NewUserContent(genai.Text(systemText))
		}
	}
	if len(req.Tools) > 0 {
		model.Tools = []*genai.Tool{{FunctionDeclarations: geminiDeclarations(req.Tools)}}
		mode := genai.FunctionCallingAuto
		if req.DisableToolUse {
			mode = genai.FunctionCallingNone
		}
		model.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: mode},
		}
	}

	contents, err := geminiContents(req.Messages)
	if err != nil {
		return LLMResponse{}, err
	}
	if len(contents) == 0 {
		return LLMResponse{}, errors.New("assistant: gemini requires at least one message")
	}

	cs := model.StartChat()
	cs.History = contents[:len(contents)-1]
	last := contents[len(contents)-1]

	resp, err := cs.SendMessage(ctx, last.Parts...)
	if err != nil {
		return LLMResponse{}, fmt.Errorf("assistant: gemini completion failed: %w", err)
	}
	return geminiParseResponse(resp)
}

// Close releases resources held by the Gemini client.
func (c *GeminiLLMClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// geminiContents converts the neutral history. Function responses travel
// in user turns and consecutive ones are merged.
func geminiContents(messages []ChatMessage) ([]*genai.Content, error) {
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		content := strings.TrimSpace(msg.Content)
		switch msg.Role {
		case ChatRoleSystem:
			continue
		case ChatRoleUser:
			if content == "" {
				continue
			}
			contents = append(contents, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(content)}})
		case ChatRoleAssistant:
			parts := make([]genai.Part, 0, 1+len(msg.ToolCalls))
			if content != "" {
				parts = append(parts, genai.Text(content))
			}
			for _, tc := range msg.ToolCalls {
				args, err := argumentsMap(tc.Arguments)
				if err != nil {
					return nil, fmt.Errorf("assistant: gemini function args for %s: %w", tc.Name, err)
				}
				parts = append(parts, genai.FunctionCall{Name: tc.Name, Args: args})
			}
			if len(parts) == 0 {
				continue
			}
			contents = append(contents, &genai.Content{Role: "model", Parts: parts})
		case ChatRoleTool:
			part := genai.FunctionResponse{Name: msg.Name, Response: toolResponseMap(msg.Content)}
			if n := len(contents); n > 0 && contents[n-1].Role == "user" && onlyFunctionResponses(contents[n-1].Parts) {
				contents[n-1].Parts = append(contents[n-1].Parts, part)
				continue
			}
			contents = append(contents, &genai.Content{Role: "user", Parts: []genai.Part{part}})
		default:
			return nil, fmt.Errorf("assistant: unsupported role %q", msg.Role)
		}
	}
	return contents, nil
}

func onlyFunctionResponses(parts []genai.Part) bool {
	for _, p := range parts {
		if _, ok := p.(genai.FunctionResponse); !ok {
			return false
		}
	}
	return len(parts) > 0
}

// toolResponseMap wraps a tool's JSON result; non-object payloads are
// nested under "content".
func toolResponseMap(payload string) map[string]any {
	var out map[string]any
	if err := json.Unmarshal([]byte(payload), &out); err == nil && out != nil {
		return out
	}
	return map[string]any{"content": payload}
}

func geminiParseResponse(resp *genai.GenerateContentResponse) (LLMResponse, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return LLMResponse{}, errors.New("assistant: gemini returned no candidates")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return LLMResponse{}, errors.New("assistant: gemini returned empty content")
	}

	var out LLMResponse
	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			text.WriteString(string(p))
		case genai.FunctionCall:
			out.ToolCalls = append(out.ToolCalls, geminiToolCall(p))
		case *genai.FunctionCall:
			out.ToolCalls = append(out.ToolCalls, geminiToolCall(*p))
		}
	}
	out.Text = strings.TrimSpace(text.String())
	out.StopReason = candidate.FinishReason.String()
	if resp.UsageMetadata != nil {
		out.Usage = TokenUsage{
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:  resp.UsageMetadata.TotalTokenCount,
		}
	}
	return out, nil
}

func geminiToolCall(fc genai.FunctionCall) ToolCall {
	args := "{}"
	if len(fc.Args) > 0 {
		if raw, err := json.Marshal(fc.Args); err == nil {
			args = string(raw)
		}
	}
	return ToolCall{Name: fc.Name, Arguments: args}
}

func geminiDeclarations(defs []ToolDefinition) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(defs))
	for _, def := range defs {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  geminiSchema(def.Parameters),
		})
	}
	return decls
}

func geminiSchema(schema *jsonschema.Schema) *genai.Schema {
	if schema == nil {
		return nil
	}

	enums := make([]string, 0, len(schema.Enum))
	for _, v := range schema.Enum {
		enums = append(enums, fmt.Sprintf("%v", v))
	}
	gs := &genai.Schema{
		Format:      schema.Format,
		Description: schema.Description,
		Enum:        enums,
		Items:       geminiSchema(schema.Items),
		Required:    schema.Required,
	}
	if n := len(schema.Properties); n > 0 {
		gs.Properties = make(map[string]*genai.Schema, n)
		for k, prop := range schema.Properties {
			gs.Properties[k] = geminiSchema(prop)
		}
	}

	typ := schema.Type
	if typ == "" {
		for _, t := range schema.Types {
			if t == "null" {
				gs.Nullable = true
				continue
			}
			typ = t
		}
	}
	switch typ {
	case "object":
		gs.Type = genai.TypeObject
	case "array":
		gs.Type = genai.TypeArray
	case "string":
		gs.Type = genai.TypeString
	case "number":
		gs.Type = genai.TypeNumber
	case "integer":
		gs.Type = genai.TypeInteger
	case "boolean":
		gs.Type = genai.TypeBoolean
	}
	return gs
}
