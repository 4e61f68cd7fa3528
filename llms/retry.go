package llms

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Retrying wraps a Client with the two-retry exponential-backoff policy
// spec.md §7 requires for LLM errors on reflection. builder.Build wraps the
// scheduler's one client with it, so reflection, planning, alternative
// generation and diagnosis calls are all retried; the planners fall back to
// heuristics once the retries are used up.
type Retrying struct {
	inner      Client
	maxRetries uint
}

// NewRetrying wraps inner with maxRetries additional attempts beyond the
// first (spec.md's "up to two retries" means three attempts total).
func NewRetrying(inner Client, maxRetries uint) *Retrying {
	if maxRetries == 0 {
		maxRetries = 2
	}
	return &Retrying{inner: inner, maxRetries: maxRetries}
}

func (r *Retrying) ModelName() string { return r.inner.ModelName() }

func (r *Retrying) Chat(ctx context.Context, messages []Message, opts Options) (Response, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.Multiplier = 2.0

	return backoff.Retry(ctx, func() (Response, error) {
		return r.inner.Chat(ctx, messages, opts)
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(r.maxRetries+1))
}

func (r *Retrying) ChatStreaming(ctx context.Context, messages []Message, opts Options) (<-chan StreamChunk, error) {
	// Streaming responses can't be transparently retried mid-stream; a
	// failure to even start the stream is retried the same way Chat is.
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.Multiplier = 2.0

	return backoff.Retry(ctx, func() (<-chan StreamChunk, error) {
		return r.inner.ChatStreaming(ctx, messages, opts)
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(r.maxRetries+1))
}
