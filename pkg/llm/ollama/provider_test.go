package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"ai-report-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaProvider_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gemma:2b", req.Model)
		assert.False(t, req.Stream)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "assistant", req.Messages[1].Role)

		_ = json.NewEncoder(w).Encode(ollamaChatResponse{
			Message: ollamaMessage{Role: "assistant", Content: "extracted"},
			Done:    true,
		})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "gemma:2b")
	out, err := p.Chat(context.Background(), []llm.Message{
		{Role: "user", Content: "q"},
		{Role: "model", Content: "a"},
	})
	require.NoError(t, err)
	assert.Equal(t, "extracted", out)
}

func TestOllamaProvider_StatusClassification(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantTransient bool
	}{
		{name: "overloaded", status: http.StatusServiceUnavailable, wantTransient: true},
		{name: "rate limited", status: http.StatusTooManyRequests, wantTransient: true},
		{name: "model missing", status: http.StatusNotFound, wantTransient: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":"nope"}`))
			}))
			defer srv.Close()

			_, err := NewOllamaProvider(srv.URL, "m").Generate(context.Background(), "hi")
			require.Error(t, err)

			var statusErr *llm.StatusError
			require.ErrorAs(t, err, &statusErr)
			assert.Equal(t, tt.status, statusErr.StatusCode)
			assert.Equal(t, tt.wantTransient, llm.IsTransient(err))
		})
	}
}
