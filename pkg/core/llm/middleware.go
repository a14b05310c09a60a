package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

type timeoutProvider struct {
	Provider
	timeout time.Duration
}

// WithTimeout bounds every GenerateResponse call on p.
func WithTimeout(p Provider, timeout time.Duration) Provider {
	if timeout <= 0 {
		return p
	}
	return &timeoutProvider{Provider: p, timeout: timeout}
}

func (t *timeoutProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := t.Provider.GenerateResponse(ctx, prompt, systemPrompt, options)
		done <- result{text, err}
	}()

	// Providers that ignore ctx still cannot hold the caller past the deadline.
	select {
	case r := <-done:
		return r.text, r.err
	case <-ctx.Done():
		return "", fmt.Errorf("model call exceeded %s: %w", t.timeout, ctx.Err())
	}
}

type rateLimitedProvider struct {
	Provider
	limiter *rate.Limiter
}

// WithRateLimit caps p at rps requests per second with the given burst.
func WithRateLimit(p Provider, rps float64, burst int) Provider {
	if burst < 1 {
		burst = 1
	}
	return &rateLimitedProvider{Provider: p, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *rateLimitedProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	return r.Provider.GenerateResponse(ctx, prompt, systemPrompt, options)
}
