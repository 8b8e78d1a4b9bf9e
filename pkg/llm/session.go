package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/policyforge/policyforge/pkg/activation"
)

// maxToolRounds bounds the model→tool→model loop so a model that keeps
// requesting calls cannot spin forever.
const maxToolRounds = 5

// Session runs a function-calling conversation: the model is offered the
// namespace's tool surface, its tool calls are dispatched to the
// namespace, and results are appended as tool messages until the model
// answers in plain content.
type Session struct {
	client Client
	ns     activation.Namespace
	tools  []ToolDefinition
	logger *slog.Logger

	history []Message
}

// NewSession starts a conversation over an activated namespace.
func NewSession(client Client, ns activation.Namespace, tools []ToolDefinition, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		client: client,
		ns:     ns,
		tools:  tools,
		logger: logger.With("component", "llm.session"),
		history: []Message{{
			Role: RoleSystem,
			Content: "You are a corporate travel policy assistant. Use the " +
				"provided policy functions to answer questions; do not guess " +
				"policy outcomes yourself.",
		}},
	}
}

// Ask appends a user question, runs the tool loop, and returns the
// model's final content.
func (s *Session) Ask(ctx context.Context, question string) (string, error) {
	s.history = append(s.history, Message{Role: RoleUser, Content: question})

	for round := 0; round < maxToolRounds; round++ {
		resp, err := s.client.Chat(ctx, s.history, s.tools)
		if err != nil {
			return "", err
		}
		if len(resp.ToolCalls) == 0 {
			s.history = append(s.history, Message{Role: RoleAssistant, Content: resp.Content})
			return resp.Content, nil
		}

		s.history = append(s.history, Message{
			Role:      RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			result := s.dispatch(ctx, call)
			s.history = append(s.history, Message{
				Role:       RoleTool,
				Content:    result,
				ToolCallID: call.ID,
			})
		}
	}
	return "", fmt.Errorf("tool-call loop exceeded %d rounds", maxToolRounds)
}

// dispatch runs one tool call against the namespace. Failures become
// error payloads for the model rather than aborting the conversation.
func (s *Session) dispatch(ctx context.Context, call ToolCall) string {
	var args map[string]any
	if len(call.Arguments) > 0 {
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			s.logger.Warn("tool call has undecodable arguments", "function", call.Name, "error", err)
			return fmt.Sprintf(`{"error": "invalid arguments: %s"}`, err)
		}
	}

	result, err := s.ns.Call(ctx, call.Name, args)
	if err != nil {
		s.logger.Warn("tool call failed", "function", call.Name, "error", err)
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf(`{"error": "unencodable result: %s"}`, err)
	}
	s.logger.Debug("tool call dispatched", "function", call.Name)
	return string(payload)
}
