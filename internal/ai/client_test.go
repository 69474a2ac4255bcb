package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyEnv = "INTENTMERGE_TEST_API_KEY"

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	t.Setenv(testKeyEnv, "test-key")
	client, err := New(Config{
		Endpoint:  srv.URL,
		Model:     "test-model",
		APIKeyEnv: testKeyEnv,
	})
	require.NoError(t, err)
	return client
}

func TestNewRequiresAPIKey(t *testing.T) {
	t.Setenv(testKeyEnv, "")
	_, err := New(Config{APIKeyEnv: testKeyEnv})
	assert.EqualError(t, err, "ai: "+testKeyEnv+" is required")
}

func TestCompleteReturnsAssistantText(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "merged code"}},
			},
		})
	})

	out, err := client.Complete(context.Background(), "system prompt", "user prompt")
	require.NoError(t, err)
	assert.Equal(t, "merged code", out)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "test-model", gotReq.Model)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Equal(t, "user prompt", gotReq.Messages[1].Content)
}

func TestCompleteHTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	_, err := client.Complete(context.Background(), "s", "u")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestCompleteAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "model overloaded"},
		})
	})

	_, err := client.Complete(context.Background(), "s", "u")
	assert.EqualError(t, err, "ai: model overloaded")
}

func TestCompleteEmptyChoices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	})

	_, err := client.Complete(context.Background(), "s", "u")
	assert.EqualError(t, err, "ai: empty completion")
}
