// Package llmprovider implements the provider abstraction (spec.md §4.5):
// one adapter per vendor, each exposing chat_completion_stream as a
// protocol.Chunk channel and deriving responses_stream from it through
// internal/agent/stream.DeriveResponsesStream, so the normalizer is
// written once and every adapter gets it for free.
package llmprovider

import (
	"context"
	"time"

	"github.com/brandlll-lee/cokra/internal/agent/stream"
	"github.com/brandlll-lee/cokra/internal/protocol"
)

// ChatCompletionStream is the one method every adapter must implement
// against its vendor's native SSE dialect.
type ChatCompletionStream interface {
	ChatCompletionStream(ctx context.Context, req protocol.ChatRequest) (<-chan protocol.Chunk, error)
}

// Adapter wraps a ChatCompletionStream implementation and satisfies
// turnexec.ModelClient by deriving responses_stream through the shared
// projector. Vendor packages embed Adapter rather than reimplementing
// ResponsesStream.
type Adapter struct {
	ChatCompletionStream
}

func (a Adapter) ResponsesStream(ctx context.Context, req protocol.ChatRequest) (<-chan protocol.ResponseEvent, error) {
	chunks, err := a.ChatCompletionStream.ChatCompletionStream(ctx, req)
	if err != nil {
		return nil, err
	}
	return stream.DeriveResponsesStream(chunks), nil
}

// RetryConfig holds the shared linear-backoff retry policy, grounded on
// internal/agent/providers/base.go's BaseProvider.
type RetryConfig struct {
	MaxRetries int
	RetryDelay time.Duration
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	return c
}

// Retry runs op with linear backoff, stopping early if isRetryable
// reports the error as terminal.
func Retry(ctx context.Context, cfg RetryConfig, isRetryable func(error) bool, op func() error) error {
	cfg = cfg.withDefaults()
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := op()
		if err == nil {
			return nil
		}
		lastErr = err
		if isRetryable == nil || !isRetryable(err) {
			return err
		}
		if attempt >= cfg.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.RetryDelay * time.Duration(attempt)):
		}
	}
	return lastErr
}
