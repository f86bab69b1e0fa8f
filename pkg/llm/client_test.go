package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"persona-chat-go/internal/config"
)

type recordingWriter struct {
	chunks []string
}

func (w *recordingWriter) WriteMessage(_ int, data []byte) error {
	w.chunks = append(w.chunks, string(data))
	return nil
}

func testConfig(baseURL string) config.LLMConfig {
	return config.LLMConfig{
		APIKey:  "sk-test",
		BaseURL: baseURL,
		Model:   "gpt-3.5-turbo",
		Generation: config.LLMGenerationConfig{
			Temperature: 0.7,
			TopP:        1.0,
			MaxTokens:   150,
		},
	}
}

func TestComplete_SendsRequestAndTrimsReply(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"  olá!\n"}}]}`)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL + "/"))
	reply, err := c.Complete(context.Background(), []Message{
		{Role: "system", Content: "P"},
		{Role: "user", Content: "oi"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "olá!", reply)

	assert.Equal(t, "gpt-3.5-turbo", got.Model)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	require.NotNil(t, got.MaxTokens)
	assert.Equal(t, 150, *got.MaxTokens)
	require.NotNil(t, got.Temperature)
	assert.InDelta(t, 0.7, *got.Temperature, 1e-9)
}

func TestComplete_ExplicitParamsWin(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = fmt.Fprint(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer srv.Close()

	maxTokens := 10
	_, err := NewClient(testConfig(srv.URL)).Complete(context.Background(), []Message{{Role: "user", Content: "x"}}, &GenerationParams{MaxTokens: &maxTokens})
	require.NoError(t, err)
	require.NotNil(t, got.MaxTokens)
	assert.Equal(t, 10, *got.MaxTokens)
	assert.Nil(t, got.Temperature)
}

func TestComplete_ErrorCategories(t *testing.T) {
	cases := []struct {
		status int
		check  func(t *testing.T, err error)
	}{
		{http.StatusUnauthorized, func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrAuthentication) }},
		{http.StatusForbidden, func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrAuthentication) }},
		{http.StatusTooManyRequests, func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrRateLimit) }},
		{http.StatusInternalServerError, func(t *testing.T, err error) {
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
			assert.Equal(t, "boom", apiErr.Body)
		}},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = fmt.Fprint(w, "boom")
			}))
			defer srv.Close()

			_, err := NewClient(testConfig(srv.URL)).Complete(context.Background(), []Message{{Role: "user", Content: "x"}}, nil)
			require.Error(t, err)
			tc.check(t, err)
		})
	}
}

func TestComplete_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	_, err := NewClient(testConfig(srv.URL)).Complete(context.Background(), nil, nil)
	require.Error(t, err)
}

func TestStream_ForwardsChunks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Ol\"}}]}\n\n")
		_, _ = fmt.Fprint(w, ": keep-alive\n\n")
		_, _ = fmt.Fprint(w, "data: not-json\n\n")
		_, _ = fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"á\"}}]}\n\n")
		_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	w := &recordingWriter{}
	reply, err := NewClient(testConfig(srv.URL)).Stream(context.Background(), []Message{{Role: "user", Content: "oi"}}, nil, w)
	require.NoError(t, err)
	assert.Equal(t, "Olá", reply)
	assert.Equal(t, []string{"Ol", "á"}, w.chunks)
}
