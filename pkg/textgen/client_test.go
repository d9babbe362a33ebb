package textgen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatCompletion(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/chat/completions", r.URL.Path)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

			var req ChatCompletionRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "test-model", req.Model)
			require.Len(t, req.Messages, 2)
			assert.Equal(t, "system", req.Messages[0].Role)

			json.NewEncoder(w).Encode(ChatCompletionResponse{ //nolint:errcheck
				ID: "cmpl-1",
				Choices: []Choice{
					{Message: Message{Role: "assistant", Content: "Here is your proposal."}},
				},
				Usage: Usage{PromptTokens: 100, CompletionTokens: 50},
			})
		}))
		defer srv.Close()

		c := NewClient("test-key", WithBaseURL(srv.URL), WithModel("test-model"))
		resp, err := c.ChatCompletion(context.Background(), ChatCompletionRequest{
			Messages: []Message{
				{Role: "system", Content: "You write proposals."},
				{Role: "user", Content: "Write one."},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "Here is your proposal.", resp.Choices[0].Message.Content)
		assert.Equal(t, 50, resp.Usage.CompletionTokens)
	})

	t.Run("server error carries status and truncated body", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(strings.Repeat("x", 2000))) //nolint:errcheck
		}))
		defer srv.Close()

		c := NewClient("k", WithBaseURL(srv.URL))
		_, err := c.ChatCompletion(context.Background(), ChatCompletionRequest{})
		require.Error(t, err)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
		assert.LessOrEqual(t, len(apiErr.Body), maxErrorBody+3)
		assert.True(t, strings.HasSuffix(apiErr.Body, "..."))
	})

	t.Run("empty choices is an error", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			json.NewEncoder(w).Encode(ChatCompletionResponse{ID: "cmpl-2"}) //nolint:errcheck
		}))
		defer srv.Close()

		c := NewClient("k", WithBaseURL(srv.URL))
		_, err := c.ChatCompletion(context.Background(), ChatCompletionRequest{})
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Contains(t, apiErr.Reason, "no choices")
	})

	t.Run("malformed body is an error", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte("not json")) //nolint:errcheck
		}))
		defer srv.Close()

		c := NewClient("k", WithBaseURL(srv.URL))
		_, err := c.ChatCompletion(context.Background(), ChatCompletionRequest{})
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Contains(t, apiErr.Reason, "unmarshal")
	})

	t.Run("default model fills empty request model", func(t *testing.T) {
		t.Parallel()
		var gotModel string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req ChatCompletionRequest
			json.NewDecoder(r.Body).Decode(&req) //nolint:errcheck
			gotModel = req.Model
			json.NewEncoder(w).Encode(ChatCompletionResponse{ //nolint:errcheck
				Choices: []Choice{{Message: Message{Content: "ok"}}},
			})
		}))
		defer srv.Close()

		c := NewClient("k", WithBaseURL(srv.URL), WithModel("configured-model"))
		_, err := c.ChatCompletion(context.Background(), ChatCompletionRequest{})
		require.NoError(t, err)
		assert.Equal(t, "configured-model", gotModel)
	})
}
