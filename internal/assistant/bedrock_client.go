package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

type bedrockConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockLLMClient implements LLMClient with the Bedrock Converse API and
// its tool configuration.
type BedrockLLMClient struct {
	api     bedrockConverseAPI
	modelID string
}

func NewBedrockLLMClient(api bedrockConverseAPI, modelID string) *BedrockLLMClient {
	if api == nil {
		panic("assistant: bedrock converse client cannot be nil")
	}
	return &BedrockLLMClient{api: api, modelID: modelID}
}

func (c *BedrockLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	model := req.Model
	if strings.TrimSpace(model) == "" {
		model = c.modelID
	}
	if strings.TrimSpace(model) == "" {
		return LLMResponse{}, errors.New("assistant: bedrock model id is required")
	}

	systemBlocks := make([]brtypes.SystemContentBlock, 0, len(req.System))
	for _, block := range req.System {
		if strings.TrimSpace(block) == "" {
			continue
		}
		systemBlocks = append(systemBlocks, &brtypes.SystemContentBlockMemberText{Value: block})
	}

	messages, extraSystem, err := bedrockMessages(req.Messages)
	if err != nil {
		return LLMResponse{}, err
	}
	systemBlocks = append(systemBlocks, extraSystem...)

	inference := &brtypes.InferenceConfiguration{}
	if req.MaxTokens > 0 {
		inference.MaxTokens = aws.Int32(req.MaxTokens)
	}
	// Allow callers to omit temperature by passing a negative value.
	if req.Temperature >= 0 {
		inference.Temperature = aws.Float32(req.Temperature)
	}
	if req.TopP != 0 {
		inference.TopP = aws.Float32(req.TopP)
	}
	if inference.MaxTokens == nil && inference.Temperature == nil && inference.TopP == nil {
		inference = nil
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:         aws.String(model),
		System:          systemBlocks,
		Messages:        messages,
		InferenceConfig: inference,
	}
	// Converse rejects histories with tool blocks unless a tool config is
	// present, so tools are sent even when tool use is disabled.
	if len(req.Tools) > 0 {
		toolConfig, err := bedrockToolConfig(req.Tools)
		if err != nil {
			return LLMResponse{}, err
		}
		input.ToolConfig = toolConfig
	}

	out, err := c.api.Converse(ctx, input)
	if err != nil {
		return LLMResponse{}, fmt.Errorf("assistant: bedrock converse failed: %w", err)
	}

	resp, err := bedrockParseOutput(out)
	if err != nil {
		return LLMResponse{}, err
	}
	if req.DisableToolUse {
		resp.ToolCalls = nil
	}
	return resp, nil
}

// bedrockMessages converts the neutral history. Tool results become user
// messages, and consecutive results share one message as Converse expects.
func bedrockMessages(in []ChatMessage) ([]brtypes.Message, []brtypes.SystemContentBlock, error) {
	var system []brtypes.SystemContentBlock
	messages := make([]brtypes.Message, 0, len(in))

	for _, msg := range in {
		content := strings.TrimSpace(msg.Content)
		switch msg.Role {
		case ChatRoleSystem:
			if content != "" {
				system = append(system, &brtypes.SystemContentBlockMemberText{Value: content})
			}
		case ChatRoleUser:
			if content == "" {
				continue
			}
			messages = append(messages, brtypes.Message{
				Role:    brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: content}},
			})
		case ChatRoleAssistant:
			blocks := make([]brtypes.ContentBlock, 0, 1+len(msg.ToolCalls))
			if content != "" {
				blocks = append(blocks, &brtypes.ContentBlockMemberText{Value: content})
			}
			for _, tc := range msg.ToolCalls {
				input, err := argumentsMap(tc.Arguments)
				if err != nil {
					return nil, nil, fmt.Errorf("assistant: bedrock tool input for %s: %w", tc.Name, err)
				}
				blocks = append(blocks, &brtypes.ContentBlockMemberToolUse{Value: brtypes.ToolUseBlock{
					ToolUseId: aws.String(tc.ID),
					Name:      aws.String(tc.Name),
					Input:     document.NewLazyDocument(input),
				}})
			}
			if len(blocks) == 0 {
				continue
			}
			messages = append(messages, brtypes.Message{Role: brtypes.ConversationRoleAssistant, Content: blocks})
		case ChatRoleTool:
			block := &brtypes.ContentBlockMemberToolResult{Value: brtypes.ToolResultBlock{
				ToolUseId: aws.String(msg.ToolCallID),
				Content:   []brtypes.ToolResultContentBlock{&brtypes.ToolResultContentBlockMemberText{Value: msg.Content}},
			}}
			if n := len(messages); n > 0 && messages[n-1].Role == brtypes.ConversationRoleUser && onlyToolResults(messages[n-1].Content) {
				messages[n-1].Content = append(messages[n-1].Content, block)
				continue
			}
			messages = append(messages, brtypes.Message{
				Role:    brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{block},
			})
		default:
			return nil, nil, fmt.Errorf("assistant: unsupported role %q", msg.Role)
		}
	}
	return messages, system, nil
}

func onlyToolResults(blocks []brtypes.ContentBlock) bool {
	for _, b := range blocks {
		if _, ok := b.(*brtypes.ContentBlockMemberToolResult); !ok {
			return false
		}
	}
	return len(blocks) > 0
}

func bedrockToolConfig(defs []ToolDefinition) (*brtypes.ToolConfiguration, error) {
	tools := make([]brtypes.Tool, 0, len(defs))
	for _, def := range defs {
		schema, err := schemaMap(def.Parameters)
		if err != nil {
			return nil, fmt.Errorf("assistant: encode %s schema: %w", def.Name, err)
		}
		tools = append(tools, &brtypes.ToolMemberToolSpec{Value: brtypes.ToolSpecification{
			Name:        aws.String(def.Name),
			Description: aws.String(def.Description),
			InputSchema: &brtypes.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(schema)},
		}})
	}
	return &brtypes.ToolConfiguration{Tools: tools}, nil
}

func bedrockParseOutput(out *bedrockruntime.ConverseOutput) (LLMResponse, error) {
	if out == nil {
		return LLMResponse{}, errors.New("assistant: bedrock response is nil")
	}
	msgOut, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return LLMResponse{}, errors.New("assistant: bedrock response did not include a message output")
	}

	var resp LLMResponse
	var text strings.Builder
	for _, block := range msgOut.Value.Content {
		switch b := block.(type) {
		case *brtypes.ContentBlockMemberText:
			text.WriteString(b.Value)
		case *brtypes.ContentBlockMemberToolUse:
			args := "{}"
			if b.Value.Input != nil {
				raw, err := b.Value.Input.MarshalSmithyDocument()
				if err != nil {
					return LLMResponse{}, fmt.Errorf("assistant: bedrock tool input: %w", err)
				}
				args = string(raw)
			}
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{
				ID:        aws.ToString(b.Value.ToolUseId),
				Name:      aws.ToString(b.Value.Name),
				Arguments: args,
			})
		}
	}
	resp.Text = strings.TrimSpace(text.String())
	if resp.Text == "" && len(resp.ToolCalls) == 0 {
		return LLMResponse{}, errors.New("assistant: bedrock response contained no text or tool use")
	}
	if out.StopReason != "" {
		resp.StopReason = string(out.StopReason)
	}
	if out.Usage != nil {
		resp.Usage = TokenUsage{
			InputTokens:  int32OrZero(out.Usage.InputTokens),
			OutputTokens: int32OrZero(out.Usage.OutputTokens),
			TotalTokens:  int32OrZero(out.Usage.TotalTokens),
		}
	}
	return resp, nil
}

func int32OrZero(v *int32) int32 {
	if v == nil {
		return 0
	}
	return *v
}
