package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimitedProvider gates every call on a shared token bucket so that
// concurrent callers back off before the upstream rate limit is hit.
type RateLimitedProvider struct {
	next    LLMProvider
	limiter *rate.Limiter
}

var _ LLMProvider = (*RateLimitedProvider)(nil)

// NewRateLimitedProvider allows requestsPerMinute calls with the given burst.
// A non-positive requestsPerMinute returns next unchanged.
func NewRateLimitedProvider(next LLMProvider, requestsPerMinute, burst int) LLMProvider {
	if requestsPerMinute <= 0 {
		return next
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitedProvider{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst),
	}
}

func (p *RateLimitedProvider) wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("rate limiter: %w", ctx.Err())
		}
		// Wait fails fast when the deadline is shorter than the delay.
		return Transient(fmt.Errorf("rate limiter: %w", err))
	}
	return nil
}

func (p *RateLimitedProvider) Chat(ctx context.Context, history []Message, options ...Option) (string, error) {
	if err := p.wait(ctx); err != nil {
		return "", err
	}
	return p.next.Chat(ctx, history, options...)
}

func (p *RateLimitedProvider) Generate(ctx context.Context, prompt string, options ...Option) (string, error) {
	if err := p.wait(ctx); err != nil {
		return "", err
	}
	return p.next.Generate(ctx, prompt, options...)
}
