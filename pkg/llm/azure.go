package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"

	"github.com/policyforge/policyforge/pkg/config"
)

// AzureClient talks to an Azure OpenAI chat-completions deployment.
// Outbound calls are rate limited; requests time out after 30 seconds.
type AzureClient struct {
	endpoint    string
	deployment  string
	apiVersion  string
	apiKey      string
	bearerToken string
	limiter     *rate.Limiter
	httpClient  *http.Client
}

// AzureOption configures an AzureClient.
type AzureOption func(*AzureClient)

// WithBearerToken switches auth from the api-key header to a bearer
// token (Entra ID). The token's expiry is checked client-side on every
// call so an expired credential fails fast instead of as a 401.
func WithBearerToken(token string) AzureOption {
	return func(c *AzureClient) { c.bearerToken = token }
}

// WithRateLimit overrides the default outbound limit of 5 req/s.
func WithRateLimit(r rate.Limit, burst int) AzureOption {
	return func(c *AzureClient) { c.limiter = rate.NewLimiter(r, burst) }
}

// WithHTTPClient replaces the HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) AzureOption {
	return func(c *AzureClient) { c.httpClient = hc }
}

// NewAzureClient builds a client from resolved configuration.
func NewAzureClient(cfg config.AzureConfig, opts ...AzureOption) (*AzureClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("azure endpoint is required")
	}
	c := &AzureClient{
		endpoint:   strings.TrimSuffix(cfg.Endpoint, "/"),
		deployment: cfg.Deployment,
		apiVersion: cfg.APIVersion,
		apiKey:     cfg.APIKey,
		limiter:    rate.NewLimiter(rate.Limit(5), 5),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.apiKey == "" && c.bearerToken == "" {
		return nil, fmt.Errorf("azure credentials are required (api key or bearer token)")
	}
	return c, nil
}

type azureTool struct {
	Type     string         `json:"type"`
	Function ToolDefinition `json:"function"`
}

type azureMessage struct {
	Role       string          `json:"role"`
	Content    string          `json:"content"`
	ToolCalls  []azureToolCall `json:"tool_calls,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
}

type azureToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type azureRequest struct {
	Messages []azureMessage `json:"messages"`
	Tools    []azureTool    `json:"tools,omitempty"`
}

type azureResponse struct {
	Choices []struct {
		Message azureMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Chat sends one chat-completion request with the given tool surface.
func (c *AzureClient) Chat(ctx context.Context, messages []Message, tools []ToolDefinition) (*Response, error) {
	if err := c.checkBearerExpiry(); err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req := azureRequest{Messages: make([]azureMessage, 0, len(messages))}
	for _, m := range messages {
		am := azureMessage{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			atc := azureToolCall{ID: tc.ID, Type: "function"}
			atc.Function.Name = tc.Name
			atc.Function.Arguments = string(tc.Arguments)
			am.ToolCalls = append(am.ToolCalls, atc)
		}
		req.Messages = append(req.Messages, am)
	}
	for _, t := range tools {
		req.Tools = append(req.Tools, azureTool{Type: "function", Function: t})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("azure: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		c.endpoint, c.deployment, c.apiVersion)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("azure: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.bearerToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.bearerToken)
	} else {
		httpReq.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("azure: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("azure: status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var azResp azureResponse
	if err := json.NewDecoder(resp.Body).Decode(&azResp); err != nil {
		return nil, fmt.Errorf("azure: decode response: %w", err)
	}
	if azResp.Error != nil {
		return nil, fmt.Errorf("azure: %s: %s", azResp.Error.Code, azResp.Error.Message)
	}
	if len(azResp.Choices) == 0 {
		return nil, fmt.Errorf("azure: empty choices in response")
	}

	choice := azResp.Choices[0].Message
	out := &Response{Content: choice.Content}
	for _, tc := range choice.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	return out, nil
}

// checkBearerExpiry parses the bearer token without verifying its
// signature — verification is the service's job — purely to refuse an
// already-expired credential before spending a request on it.
func (c *AzureClient) checkBearerExpiry() error {
	if c.bearerToken == "" {
		return nil
	}
	claims := jwt.MapClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(c.bearerToken, claims); err != nil {
		return fmt.Errorf("azure: malformed bearer token: %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	if time.Now().After(exp.Time) {
		return fmt.Errorf("azure: bearer token expired at %s", exp.Time.Format(time.RFC3339))
	}
	return nil
}
