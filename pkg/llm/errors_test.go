package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "rate limited", err: &StatusError{Provider: "ollama", StatusCode: 429}, want: true},
		{name: "server error", err: &StatusError{Provider: "ollama", StatusCode: 503}, want: true},
		{name: "bad request", err: &StatusError{Provider: "ollama", StatusCode: 400}, want: false},
		{name: "unauthorized", err: &StatusError{Provider: "ollama", StatusCode: 401}, want: false},
		{name: "wrapped status", err: fmt.Errorf("call: %w", &StatusError{StatusCode: 502}), want: true},
		{name: "explicit transient", err: Transient(errors.New("boom")), want: true},
		{name: "explicit permanent", err: Permanent(context.DeadlineExceeded), want: false},
		{name: "deadline", err: fmt.Errorf("do: %w", context.DeadlineExceeded), want: true},
		{name: "canceled", err: fmt.Errorf("do: %w", context.Canceled), want: false},
		{name: "plain error", err: errors.New("unknown"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
			if tt.err != nil {
				assert.Equal(t, !tt.want, IsPermanent(tt.err))
			}
		})
	}
}

func TestStatusErrorTruncatesBody(t *testing.T) {
	body := make([]byte, 500)
	for i := range body {
		body[i] = 'x'
	}
	err := &StatusError{Provider: "huggingface", StatusCode: 500, Body: string(body)}

	assert.Less(t, len(err.Error()), 260)
	assert.Contains(t, err.Error(), "status 500")
}
