package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimitedClient wraps an LLMClient with a process-wide token bucket.
// Generation calls are the only suspension points in the intake flow, so
// backpressure is applied here rather than in the orchestration logic.
type RateLimitedClient struct {
	inner   LLMClient
	limiter *rate.Limiter
}

// NewRateLimitedClient allows rps sustained calls per second with a burst
// of burst. rps <= 0 disables limiting.
func NewRateLimitedClient(inner LLMClient, rps float64, burst int) *RateLimitedClient {
	var limiter *rate.Limiter
	if rps > 0 {
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return &RateLimitedClient{inner: inner, limiter: limiter}
}

func (r *RateLimitedClient) wait(ctx context.Context) error {
	if r.limiter == nil {
		return nil
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}
	return nil
}

func (r *RateLimitedClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	if err := r.wait(ctx); err != nil {
		return "", err
	}
	return r.inner.Generate(ctx, prompt, params)
}

func (r *RateLimitedClient) GenerateStructured(ctx context.Context, schema Schema, prompt string, params GenerationParams) (json.RawMessage, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.GenerateStructured(ctx, schema, prompt, params)
}
