package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/appointment-assistant/internal/appointments"
	"github.com/wolfman30/appointment-assistant/internal/observability/metrics"
	"github.com/wolfman30/appointment-assistant/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	msgEmptyInput = "How can I help you book an appointment?"
	msgRephrase   = "Sorry, I had trouble understanding your request. Could you please rephrase?"
	msgTransport  = "Sorry, I'm having trouble reaching the booking system right now. Please try again in a moment."
	msgNoReply    = "Sorry, I didn't catch that. When would you like to come in?"
)

const (
	defaultLLMTimeout    = 30 * time.Second
	defaultMaxTokens     = 400
	defaultTemperature   = 0.3
	followUpTemperature  = 0.7
	defaultDisplaySlots  = 3
	defaultHistoryLength = 20
)

// TurnState is where the conversation sits after a turn.
type TurnState string

const (
	StateAwaitingInput TurnState = "awaiting_input"
	StateComplete      TurnState = "complete"
)

// Outcome labels what a turn did, for logs and metrics.
type Outcome string

const (
	OutcomePrompted         Outcome = "prompted"
	OutcomeResponded        Outcome = "responded"
	OutcomeOffered          Outcome = "offered"
	OutcomeNoSlots          Outcome = "no_slots"
	OutcomeFormatError      Outcome = "format_error"
	OutcomeSelected         Outcome = "selected"
	OutcomeInvalidSelection Outcome = "invalid_selection"
	OutcomeParseError       Outcome = "parse_error"
	OutcomeTransportError   Outcome = "transport_error"
)

// TransportError wraps a failed or timed out LLM call.
type TransportError struct {
	Stage string
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("assistant: llm %s call failed: %v", e.Stage, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Session is the per-conversation state a turn reads and returns. The
// Agent keeps none of it between turns.
type Session struct {
	Offer       appointments.Offer
	Preferences appointments.PartialQuery
	History     []ChatMessage
}

func (s Session) clone() Session {
	return Session{
		Offer:       appointments.Offer(s.Offer.Strings()),
		Preferences: s.Preferences,
		History:     append([]ChatMessage(nil), s.History...),
	}
}

// TurnInput is one user message plus the session it applies to.
type TurnInput struct {
	ConversationID string
	Message        string
	Session        Session
}

// TurnResult carries the reply and the session to persist. On failure
// Session is the unchanged input session.
type TurnResult struct {
	Reply                string
	Session              Session
	State                TurnState
	Outcome              Outcome
	Tool                 string
	Search               *appointments.SearchResult
	Selection            *appointments.Selection
	ConversationComplete bool
	// PreferencesUpdated is set when Session.Preferences absorbed new
	// tool arguments.
	PreferencesUpdated bool
	Err                error
}

type selectionToolResult struct {
	Success        bool     `json:"success"`
	SelectedSlot   *string  `json:"selected_slot"`
	Message        string   `json:"message,omitempty"`
	Error          string   `json:"error,omitempty"`
	AvailableSlots []string `json:"available_slots,omitempty"`
}

// Agent runs the tool-calling loop for one turn at a time.
type Agent struct {
	llm          LLMClient
	finder       *appointments.Finder
	tools        []ToolDefinition
	model        string
	maxTokens    int32
	temperature  float32
	timeout      time.Duration
	displaySlots int
	maxHistory   int
	logger       *logging.Logger
	metrics      *metrics.AssistantMetrics
	tracer       trace.Tracer
}

// AgentOption configures an Agent.
type AgentOption func(*Agent)

func WithModel(model string) AgentOption {
	return func(a *Agent) { a.model = model }
}

func WithMaxTokens(n int) AgentOption {
	return func(a *Agent) {
		if n > 0 {
			a.maxTokens = int32(n)
		}
	}
}

func WithTemperature(t float64) AgentOption {
	return func(a *Agent) { a.temperature = float32(t) }
}

// WithTimeout bounds every LLM call.
func WithTimeout(d time.Duration) AgentOption {
	return func(a *Agent) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithDisplaySlots sets how many offered slots the model should show.
func WithDisplaySlots(n int) AgentOption {
	return func(a *Agent) {
		if n > 0 {
			a.displaySlots = n
		}
	}
}

// WithMaxHistory caps the number of prior messages sent to the model.
func WithMaxHistory(n int) AgentOption {
	return func(a *Agent) {
		if n > 0 {
			a.maxHistory = n
		}
	}
}

func WithLogger(logger *logging.Logger) AgentOption {
	return func(a *Agent) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func WithMetrics(m *metrics.AssistantMetrics) AgentOption {
	return func(a *Agent) { a.metrics = m }
}

func WithTracer(tracer trace.Tracer) AgentOption {
	return func(a *Agent) {
		if tracer != nil {
			a.tracer = tracer
		}
	}
}

// NewAgent wires an Agent around an LLM client and a slot finder.
func NewAgent(llm LLMClient, finder *appointments.Finder, opts ...AgentOption) *Agent {
	if llm == nil {
		panic("assistant: llm client cannot be nil")
	}
	if finder == nil {
		finder = appointments.NewFinder(nil, nil)
	}
	a := &Agent{
		llm:          llm,
		finder:       finder,
		tools:        MustBookingTools(),
		maxTokens:    defaultMaxTokens,
		temperature:  defaultTemperature,
		timeout:      defaultLLMTimeout,
		displaySlots: defaultDisplaySlots,
		maxHistory:   defaultHistoryLength,
		logger:       logging.Default(),
		tracer:       otel.Tracer("appointments.internal.assistant"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Turn processes one user message against the given session.
func (a *Agent) Turn(ctx context.Context, in TurnInput) TurnResult {
	ctx, span := a.tracer.Start(ctx, "assistant.turn")
	defer span.End()
	span.SetAttributes(attribute.String("assistant.conversation_id", in.ConversationID))

	logger := a.logger.WithConversation(in.ConversationID)
	prior := in.Session.clone()

	message := strings.TrimSpace(in.Message)
	if message == "" {
		return a.finish(span, logger, TurnResult{
			Reply:   msgEmptyInput,
			Session: prior,
			State:   StateAwaitingInput,
			Outcome: OutcomePrompted,
		})
	}

	req := LLMRequest{
		Model:       a.model,
		System:      []string{buildSystemPrompt(a.finder.Normalizer().Now(), prior.Offer, a.displaySlots)},
		Messages:    append(a.trimHistory(prior.History), ChatMessage{Role: ChatRoleUser, Content: message}),
		Tools:       a.tools,
		MaxTokens:   a.maxTokens,
		Temperature: a.temperature,
	}
	resp, err := a.complete(ctx, "decide", req)
	if err != nil {
		return a.finish(span, logger, transportFailure(prior, err))
	}

	if len(resp.ToolCalls) == 0 {
		reply := strings.TrimSpace(resp.Text)
		if reply == "" {
			reply = msgNoReply
		}
		next := prior
		next.History = a.appendHistory(prior.History, message, reply)
		return a.finish(span, logger, TurnResult{
			Reply:   reply,
			Session: next,
			State:   StateAwaitingInput,
			Outcome: OutcomeResponded,
		})
	}

	call := resp.ToolCalls[0]
	if len(resp.ToolCalls) > 1 {
		logger.Warn("model requested several tools; only the first is executed", "count", len(resp.ToolCalls))
	}
	if call.ID == "" {
		call.ID = "call_" + uuid.NewString()
	}
	resp.ToolCalls = []ToolCall{call}

	switch call.Name {
	case ToolQueryAppointments:
		return a.finish(span, logger, a.handleQuery(ctx, prior, message, req, resp))
	case ToolSelectSlot:
		return a.finish(span, logger, a.handleSelect(ctx, prior, message, req, resp))
	default:
		a.metrics.ObserveToolCall(call.Name, "unknown")
		return a.finish(span, logger, parseFailure(prior, call.Name,
			&ToolArgumentParseError{Tool: call.Name, Err: errors.New("unknown tool")}))
	}
}

func (a *Agent) handleQuery(ctx context.Context, prior Session, message string, req LLMRequest, decided LLMResponse) TurnResult {
	call := decided.ToolCalls[0]

	var args appointments.PartialQuery
	if err := decodeArgs(call, &args); err != nil {
		a.metrics.ObserveToolCall(call.Name, "parse_error")
		return parseFailure(prior, call.Name, err)
	}

	result, offer, searchErr := a.finder.Search(args, prior.Preferences)
	next := prior
	outcome := OutcomeOffered
	if searchErr != nil {
		outcome = OutcomeFormatError
		a.metrics.ObserveToolCall(call.Name, "format_error")
	} else {
		next.Offer = offer
		next.Preferences = appointments.Merge(args, prior.Preferences)
		if len(offer) == 0 {
			outcome = OutcomeNoSlots
		}
		a.metrics.ObserveToolCall(call.Name, "ok")
		a.metrics.ObserveOfferedSlots(len(offer))
	}

	reply, err := a.followUp(ctx, req, decided, result)
	if err != nil {
		return transportFailure(prior, err)
	}
	if reply == "" {
		reply = summarizeSearch(result, a.displaySlots)
	}
	next.History = a.appendHistory(prior.History, message, reply)

	return TurnResult{
		Reply:              reply,
		Session:            next,
		State:              StateAwaitingInput,
		Outcome:            outcome,
		Tool:               call.Name,
		Search:             &result,
		PreferencesUpdated: searchErr == nil,
		Err:                searchErr,
	}
}

func (a *Agent) handleSelect(ctx context.Context, prior Session, message string, req LLMRequest, decided LLMResponse) TurnResult {
	call := decided.ToolCalls[0]

	var args SelectSlotArgs
	if err := decodeArgs(call, &args); err != nil {
		a.metrics.ObserveToolCall(call.Name, "parse_error")
		return parseFailure(prior, call.Name, err)
	}

	next := prior
	sel, verr := appointments.Validate(args.SelectedSlot, prior.Offer)
	var payload selectionToolResult
	if verr == nil {
		payload = selectionToolResult{
			Success:      true,
			SelectedSlot: &sel.Value,
			Message:      "Successfully selected appointment: " + sel.Value,
		}
		next.Offer = nil
		a.metrics.ObserveToolCall(call.Name, "ok")
	} else {
		payload = selectionToolResult{Success: false, Error: selectionErrorMessage(verr)}
		var invalid *appointments.InvalidSelectionError
		if errors.As(verr, &invalid) {
			payload.AvailableSlots = invalid.Alternatives
		}
		a.metrics.ObserveToolCall(call.Name, "invalid")
	}

	reply, err := a.followUp(ctx, req, decided, payload)
	if err != nil {
		return transportFailure(prior, err)
	}
	if reply == "" {
		if verr == nil {
			reply = fmt.Sprintf("Your appointment is booked for %s.", sel.Value)
		} else {
			reply = payload.Error
		}
	}
	next.History = a.appendHistory(prior.History, message, reply)

	if verr != nil {
		return TurnResult{
			Reply:   reply,
			Session: next,
			State:   StateAwaitingInput,
			Outcome: OutcomeInvalidSelection,
			Tool:    call.Name,
			Err:     verr,
		}
	}
	return TurnResult{
		Reply:                reply,
		Session:              next,
		State:                StateComplete,
		Outcome:              OutcomeSelected,
		Tool:                 call.Name,
		Selection:            &sel,
		ConversationComplete: true,
	}
}

// followUp feeds the tool result back to the model for the user-facing
// reply. Tools stay declared so providers accept the tool exchange, but
// further calls are disabled.
func (a *Agent) followUp(ctx context.Context, req LLMRequest, decided LLMResponse, result any) (string, error) {
	call := decided.ToolCalls[0]
	payload, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("assistant: encode %s result: %w", call.Name, err)
	}

	follow := req
	follow.Messages = append(append([]ChatMessage(nil), req.Messages...),
		ChatMessage{Role: ChatRoleAssistant, Content: strings.TrimSpace(decided.Text), ToolCalls: []ToolCall{call}},
		ChatMessage{Role: ChatRoleTool, Content: string(payload), ToolCallID: call.ID, Name: call.Name},
	)
	follow.DisableToolUse = true
	follow.Temperature = followUpTemperature

	resp, err := a.complete(ctx, "follow_up", follow)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

func (a *Agent) complete(ctx context.Context, stage string, req LLMRequest) (LLMResponse, error) {
	ctx, span := a.tracer.Start(ctx, "assistant.llm."+stage)
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	resp, err := a.llm.Complete(callCtx, req)
	if err != nil {
		span.RecordError(err)
		a.metrics.ObserveLLMLatency("error", time.Since(start).Seconds())
		return LLMResponse{}, &TransportError{Stage: stage, Err: err}
	}
	a.metrics.ObserveLLMLatency("ok", time.Since(start).Seconds())
	if span.IsRecording() {
		span.SetAttributes(
			attribute.Int("assistant.llm.tool_calls", len(resp.ToolCalls)),
			attribute.Int("assistant.llm.output_tokens", int(resp.Usage.OutputTokens)),
		)
	}
	return resp, nil
}

func (a *Agent) finish(span trace.Span, logger *logging.Logger, res TurnResult) TurnResult {
	span.SetAttributes(
		attribute.String("assistant.outcome", string(res.Outcome)),
		attribute.Int("assistant.offered_slots", len(res.Session.Offer)),
	)
	a.metrics.ObserveTurn(string(res.Outcome))

	attrs := []any{
		"outcome", res.Outcome,
		"state", res.State,
		"offered_slots", len(res.Session.Offer),
	}
	if res.Tool != "" {
		attrs = append(attrs, "tool", res.Tool)
	}
	switch {
	case res.Outcome == OutcomeTransportError:
		span.RecordError(res.Err)
		logger.Error("booking turn failed", append(attrs, "error", res.Err)...)
	case res.Err != nil:
		logger.Warn("booking turn rejected input", append(attrs, "error", res.Err)...)
	default:
		logger.Info("booking turn processed", attrs...)
	}
	return res
}

func (a *Agent) trimHistory(history []ChatMessage) []ChatMessage {
	if len(history) > a.maxHistory {
		history = history[len(history)-a.maxHistory:]
	}
	return append([]ChatMessage(nil), history...)
}

func (a *Agent) appendHistory(history []ChatMessage, user, reply string) []ChatMessage {
	out := append(append([]ChatMessage(nil), history...),
		ChatMessage{Role: ChatRoleUser, Content: user},
		ChatMessage{Role: ChatRoleAssistant, Content: reply},
	)
	if len(out) > a.maxHistory {
		out = out[len(out)-a.maxHistory:]
	}
	return out
}

func transportFailure(prior Session, err error) TurnResult {
	return TurnResult{
		Reply:                msgTransport,
		Session:              prior,
		State:                StateAwaitingInput,
		Outcome:              OutcomeTransportError,
		ConversationComplete: true,
		Err:                  err,
	}
}

func parseFailure(prior Session, tool string, err error) TurnResult {
	return TurnResult{
		Reply:   msgRephrase,
		Session: prior,
		State:   StateAwaitingInput,
		Outcome: OutcomeParseError,
		Tool:    tool,
		Err:     err,
	}
}

func selectionErrorMessage(err error) string {
	var invalid *appointments.InvalidSelectionError
	switch {
	case errors.Is(err, appointments.ErrNoActiveOffer):
		return "No appointment options are currently available to select from"
	case errors.As(err, &invalid):
		return fmt.Sprintf("Invalid slot selection: %s. Available options are: %s",
			invalid.Selected, strings.Join(invalid.Alternatives, ", "))
	default:
		return err.Error()
	}
}
