/*
 * Copyright 2025 Scholarsys Labs.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarsys/paperscout/pkg/logger"
	"github.com/scholarsys/paperscout/pkg/models"
)

func completionJSON(content string) string {
	return `{
		"id": "chatcmpl-test",
		"object": "chat.completion",
		"created": 1700000000,
		"model": "test-model",
		"choices": [
			{"index": 0, "message": {"role": "assistant", "content": ` + mustJSON(content) + `}, "finish_reason": "stop"}
		],
		"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
	}`
}

func mustJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func newTestClient(t *testing.T, handler http.Handler) *OpenAIClient {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewOpenAIClient(Config{
		BaseURL:    server.URL,
		APIKey:     "test-key",
		Model:      "test-model",
		MaxRetries: -1,
	}, logger.NewTestLogger())
	require.NoError(t, err)

	return client
}

func TestOpenAIClient_ChatSuccess(t *testing.T) {
	var gotBody map[string]interface{}

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "/chat/completions")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionJSON(`{"papers": []}`)))
	}))

	resp, err := client.Chat(context.Background(), ChatRequest{
		System:   "You find related papers.",
		Prompt:   "Find papers related to X.",
		JSONOnly: true,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"papers": []}`, resp.Content)
	assert.Equal(t, 15, resp.TokensUsed)

	assert.Equal(t, "test-model", gotBody["model"])

	messages, ok := gotBody["messages"].([]interface{})
	require.True(t, ok)
	require.Len(t, messages, 2)

	system := messages[0].(map[string]interface{})
	assert.Equal(t, "system", system["role"])
	assert.Equal(t, "You find related papers.", system["content"])

	user := messages[1].(map[string]interface{})
	assert.Equal(t, "user", user["role"])

	format, ok := gotBody["response_format"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "json_object", format["type"])
}

func TestOpenAIClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantKind models.ErrorKind
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, wantKind: models.ErrorKindRateLimited},
		{name: "server error", status: http.StatusInternalServerError, wantKind: models.ErrorKindTransport},
		{name: "bad gateway", status: http.StatusBadGateway, wantKind: models.ErrorKindTransport},
		{name: "unauthorized", status: http.StatusUnauthorized, wantKind: models.ErrorKindProtocol},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error": {"message": "nope"}}`))
			}))

			_, err := client.Chat(context.Background(), ChatRequest{Prompt: "hello"})
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, models.KindOf(err))
		})
	}
}

func TestOpenAIClient_NoChoicesIsProtocolError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "x", "object": "chat.completion", "choices": [], "usage": {"total_tokens": 0}}`))
	}))

	_, err := client.Chat(context.Background(), ChatRequest{Prompt: "hello"})
	require.Error(t, err)
	assert.Equal(t, models.ErrorKindProtocol, models.KindOf(err))
}

func TestOpenAIClient_CanceledContext(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(completionJSON("late")))
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Chat(ctx, ChatRequest{Prompt: "hello"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewOpenAIClient_RequiresAPIKey(t *testing.T) {
	_, err := NewOpenAIClient(Config{Model: "m"}, logger.NewTestLogger())
	require.ErrorIs(t, err, errMissingAPIKey)
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: `{"a":1}`, want: `{"a":1}`},
		{name: "json fence", in: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "bare fence", in: "```\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "padded", in: "  {\"a\":1}  ", want: `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripCodeFence(tt.in))
		})
	}
}
