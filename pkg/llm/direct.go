package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/policyforge/policyforge/pkg/activation"
)

// DirectClient is the no-LLM fallback: it treats each user message as a
// literal `{"function": ..., "args": {...}}` request and routes it
// straight to the namespace. It lets the demo flow and the session
// machinery run without model credentials.
type DirectClient struct {
	ns activation.Namespace
}

func NewDirectClient(ns activation.Namespace) *DirectClient {
	return &DirectClient{ns: ns}
}

type directRequest struct {
	Function string         `json:"function"`
	Args     map[string]any `json:"args"`
}

// Chat decodes the last user message as a direct function request and
// returns the call result as JSON content. Tools are ignored; there is
// no model in the loop.
func (c *DirectClient) Chat(ctx context.Context, messages []Message, _ []ToolDefinition) (*Response, error) {
	var last *Message
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			last = &messages[i]
			break
		}
	}
	if last == nil {
		return nil, fmt.Errorf("direct: no user message to route")
	}

	var req directRequest
	if err := json.Unmarshal([]byte(last.Content), &req); err != nil {
		return nil, fmt.Errorf("direct: request must be {\"function\", \"args\"} JSON: %w", err)
	}
	if req.Function == "" {
		return nil, fmt.Errorf("direct: missing function name")
	}

	result, err := c.ns.Call(ctx, req.Function, req.Args)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("direct: encode result: %w", err)
	}
	return &Response{Content: string(payload)}, nil
}
