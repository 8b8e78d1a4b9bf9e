package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/policyforge/policyforge/pkg/config"
)

func azureTestConfig(endpoint string) config.AzureConfig {
	return config.AzureConfig{
		Endpoint:   endpoint,
		APIKey:     "test-key",
		Deployment: "gpt-4",
		APIVersion: "2024-02-15-preview",
	}
}

func TestAzureClientChat(t *testing.T) {
	var gotPath, gotKey string
	var gotReq azureRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		gotKey = r.Header.Get("api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		_, _ = w.Write([]byte(`{
		  "choices": [{"message": {
		    "content": "",
		    "tool_calls": [{"id": "call_1", "type": "function",
		      "function": {"name": "check_flight_approval", "arguments": "{\"cost\": 1200}"}}]
		  }}]
		}`))
	}))
	defer srv.Close()

	client, err := NewAzureClient(azureTestConfig(srv.URL))
	require.NoError(t, err)

	resp, err := client.Chat(context.Background(),
		[]Message{{Role: RoleUser, Content: "check a flight"}},
		[]ToolDefinition{{Name: "check_flight_approval", Description: "..."}},
	)
	require.NoError(t, err)

	require.Equal(t, "/openai/deployments/gpt-4/chat/completions?api-version=2024-02-15-preview", gotPath)
	require.Equal(t, "test-key", gotKey)
	require.Len(t, gotReq.Tools, 1)
	require.Equal(t, "function", gotReq.Tools[0].Type)

	require.Len(t, resp.ToolCalls, 1)
	require.Equal(t, "check_flight_approval", resp.ToolCalls[0].Name)
	require.JSONEq(t, `{"cost": 1200}`, string(resp.ToolCalls[0].Arguments))
}

func TestAzureClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error": {"code": "429", "message": "rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client, err := NewAzureClient(azureTestConfig(srv.URL))
	require.NoError(t, err)

	_, err = client.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "429")
}

func TestAzureClientRequiresCredentials(t *testing.T) {
	_, err := NewAzureClient(config.AzureConfig{Endpoint: "https://example.openai.azure.com"})
	require.Error(t, err)

	_, err = NewAzureClient(config.AzureConfig{APIKey: "key"})
	require.Error(t, err)
}

// unsignedToken builds a syntactically valid JWT with the given expiry.
// The signature is garbage; expiry checking never verifies it.
func unsignedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	enc := func(v any) string {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		return base64.RawURLEncoding.EncodeToString(b)
	}
	header := enc(map[string]string{"alg": "RS256", "typ": "JWT"})
	claims := enc(map[string]any{"exp": exp.Unix()})
	return fmt.Sprintf("%s.%s.%s", header, claims, base64.RawURLEncoding.EncodeToString([]byte("sig")))
}

func TestAzureClientExpiredBearerFailsFast(t *testing.T) {
	requested := false
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		requested = true
	}))
	defer srv.Close()

	cfg := azureTestConfig(srv.URL)
	cfg.APIKey = ""
	client, err := NewAzureClient(cfg, WithBearerToken(unsignedToken(t, time.Now().Add(-time.Hour))))
	require.NoError(t, err)

	_, err = client.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "expired")
	require.False(t, requested, "expired token must fail before any request is sent")
}

func TestAzureClientValidBearerIsSent(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"choices": [{"message": {"content": "ok"}}]}`))
	}))
	defer srv.Close()

	cfg := azureTestConfig(srv.URL)
	cfg.APIKey = ""
	token := unsignedToken(t, time.Now().Add(time.Hour))
	client, err := NewAzureClient(cfg, WithBearerToken(token))
	require.NoError(t, err)

	resp, err := client.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)
	require.NoError(t, err)
	require.Equal(t, "ok", resp.Content)
	require.Equal(t, "Bearer "+token, gotAuth)
}
