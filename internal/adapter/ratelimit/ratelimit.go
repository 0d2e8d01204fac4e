// Package ratelimit throttles calls to hosted providers with a shared token
// bucket.
package ratelimit

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"ragqa/internal/port"
)

// NewLimiter returns a limiter allowing rps requests per second with the given
// burst. A non-positive rps disables limiting and yields nil.
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// Embedder waits for a token before every provider call. A batch costs one
// token since providers count requests, not inputs.
type Embedder struct {
	next    port.Embedder
	limiter *rate.Limiter
}

var _ port.Embedder = (*Embedder)(nil)

// WrapEmbedder returns next unchanged when limiter is nil.
func WrapEmbedder(next port.Embedder, limiter *rate.Limiter) port.Embedder {
	if limiter == nil {
		return next
	}
	return &Embedder{next: next, limiter: limiter}
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return e.next.Embed(ctx, text)
}

func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return e.next.EmbedBatch(ctx, texts)
}

func (e *Embedder) Dimension() int    { return e.next.Dimension() }
func (e *Embedder) ModelName() string { return e.next.ModelName() }

type LLM struct {
	next    port.LLM
	limiter *rate.Limiter
}

var _ port.LLM = (*LLM)(nil)

func WrapLLM(next port.LLM, limiter *rate.Limiter) port.LLM {
	if limiter == nil {
		return next
	}
	return &LLM{next: next, limiter: limiter}
}

func (l *LLM) Complete(ctx context.Context, prompt string) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}
	return l.next.Complete(ctx, prompt)
}

func (l *LLM) ModelName() string { return l.next.ModelName() }
