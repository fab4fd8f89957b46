package llm

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProvider struct {
	calls atomic.Int32
}

func (c *countingProvider) Chat(ctx context.Context, history []Message, options ...Option) (string, error) {
	c.calls.Add(1)
	return "ok", nil
}

func (c *countingProvider) Generate(ctx context.Context, prompt string, options ...Option) (string, error) {
	c.calls.Add(1)
	return "ok", nil
}

func TestNewRateLimitedProvider_DisabledReturnsNext(t *testing.T) {
	next := &countingProvider{}
	assert.Same(t, next, NewRateLimitedProvider(next, 0, 1))
}

func TestRateLimitedProvider_PassesThrough(t *testing.T) {
	next := &countingProvider{}
	p := NewRateLimitedProvider(next, 6000, 5)

	for i := 0; i < 5; i++ {
		out, err := p.Generate(context.Background(), "hi")
		require.NoError(t, err)
		assert.Equal(t, "ok", out)
	}
	assert.EqualValues(t, 5, next.calls.Load())
}

func TestRateLimitedProvider_CanceledIsNotTransient(t *testing.T) {
	next := &countingProvider{}
	p := NewRateLimitedProvider(next, 1, 1)

	// drain the single token
	_, err := p.Generate(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Generate(ctx, "second")
	require.Error(t, err)
	assert.False(t, IsTransient(err))
	assert.EqualValues(t, 1, next.calls.Load())
}

func TestRateLimitedProvider_ShortDeadlineIsTransient(t *testing.T) {
	next := &countingProvider{}
	p := NewRateLimitedProvider(next, 1, 1)

	_, err := p.Generate(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = p.Generate(ctx, "second")
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}
