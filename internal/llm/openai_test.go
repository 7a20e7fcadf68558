package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOpenAIClient(url string) *OpenAIClient {
	cfg := DefaultOpenAIConfig("sk-test")
	cfg.BaseURL = url
	cfg.RetryBackoff = time.Millisecond
	cfg.Timeout = 5 * time.Second
	return NewOpenAIClient(cfg)
}

func TestOpenAIClient_CompleteWithSystem(t *testing.T) {
	var got openAIRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" {\"feedstock\": \"corn stover\"} "}}]}`))
	}))
	defer srv.Close()

	c := testOpenAIClient(srv.URL)
	resp, err := c.CompleteWithSystem(context.Background(), "sys", "user")
	require.NoError(t, err)

	assert.Equal(t, `{"feedstock": "corn stover"}`, resp)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "sys", got.Messages[0].Content)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
}

func TestOpenAIClient_DefaultSystemPrompt(t *testing.T) {
	var got openAIRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{}"}}]}`))
	}))
	defer srv.Close()

	_, err := testOpenAIClient(srv.URL).Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, defaultSystemPrompt, got.Messages[0].Content)
}

func TestOpenAIClient_RetriesOnRateLimit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"ok\":true}"}}]}`))
	}))
	defer srv.Close()

	resp, err := testOpenAIClient(srv.URL).CompleteWithSystem(context.Background(), "s", "u")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, resp)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestOpenAIClient_DropsResponseFormatWhenRejected(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openAIRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		atomic.AddInt32(&calls, 1)
		if req.ResponseFormat != nil {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"response_format not supported"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{}"}}]}`))
	}))
	defer srv.Close()

	_, err := testOpenAIClient(srv.URL).CompleteWithSystem(context.Background(), "s", "u")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestOpenAIClient_ResendWithoutResponseFormatIsNotARetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openAIRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		atomic.AddInt32(&calls, 1)
		if req.ResponseFormat != nil {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"response_format not supported"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"ok\":true}"}}]}`))
	}))
	defer srv.Close()

	cfg := DefaultOpenAIConfig("sk-test")
	cfg.BaseURL = srv.URL
	cfg.MaxRetries = 0
	cfg.Timeout = 5 * time.Second
	resp, err := NewOpenAIClient(cfg).CompleteWithSystem(context.Background(), "s", "u")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, resp)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestOpenAIClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"client error", http.StatusUnauthorized, `bad key`, "status 401"},
		{"api error", http.StatusOK, `{"error":{"message":"quota"}}`, "quota"},
		{"no choices", http.StatusOK, `{"choices":[]}`, "no completion"},
		{"bad json", http.StatusOK, `not json`, "failed to parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := testOpenAIClient(srv.URL).CompleteWithSystem(context.Background(), "s", "u")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestOpenAIClient_MissingKey(t *testing.T) {
	c := NewOpenAIClient(OpenAIConfig{Model: "m"})
	_, err := c.Complete(context.Background(), "x")
	assert.Error(t, err)
}
