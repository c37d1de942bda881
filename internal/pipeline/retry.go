package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultMaxRetries is the number of compile attempts per chunk.
const DefaultMaxRetries = 3

// DefaultRetryDelay is the fixed pause between attempts.
const DefaultRetryDelay = 500 * time.Millisecond

// errRetryAbandoned marks a chunk whose retries were cut short because the
// render itself ended. It is not a chunk failure.
var errRetryAbandoned = errors.New("retry abandoned")

// compileWithRetry runs up to opts.MaxRetries attempts, each bounded by
// opts.ChunkTimeout and detached from caller cancellation so an attempt in
// flight finishes. Between attempts it calls the memory relief hook and
// waits opts.RetryDelay, giving up with errRetryAbandoned if ctx is done.
func (r *Renderer) compileWithRetry(ctx context.Context, fragment string, data map[string]any, opts Options, onRetry func(attempt int, err error)) (string, error) {
	var lastErr error
	for attempt := range opts.MaxRetries {
		if attempt > 0 {
			onRetry(attempt, lastErr)
			if opts.MemoryRelief != nil {
				opts.MemoryRelief()
			}
			select {
			case <-time.After(opts.RetryDelay):
			case <-ctx.Done():
				return "", fmt.Errorf("%w after attempt %d: %v", errRetryAbandoned, attempt, lastErr)
			}
		}
		out, err := r.compileOnce(ctx, fragment, data, opts.ChunkTimeout)
		if err == nil {
			return out, nil
		}
		lastErr = err
	}
	return "", lastErr
}

// compileOnce bounds a single compile by timeout even when the compiler
// ignores its context.
func (r *Renderer) compileOnce(ctx context.Context, fragment string, data map[string]any, timeout time.Duration) (string, error) {
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- result{err: fmt.Errorf("compiler panic: %v", p)}
			}
		}()
		out, err := r.compiler.Compile(actx, fragment, data)
		done <- result{out: out, err: err}
	}()

	select {
	case res := <-done:
		return res.out, res.err
	case <-actx.Done():
		return "", fmt.Errorf("chunk compile: %w", actx.Err())
	}
}
