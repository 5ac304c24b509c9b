// Package retry provides bounded exponential-backoff retries for transient
// failures at the tool-invocation boundary inside a worker.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jdgilhuly/go_pillar_eval/pkg/evalerr"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 500 * time.Millisecond
)

// Policy bounds how often and how long an operation is retried.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// Default returns the reference policy: three retries after 0.5s, 1s and 2s.
func Default() Policy {
	return Policy{MaxRetries: DefaultMaxRetries, BaseDelay: DefaultBaseDelay}
}

// None returns a policy that never retries.
func None() Policy {
	return Policy{}
}

// Backoff returns the delay before retry attempt n (1-based).
func (p Policy) Backoff(n int) time.Duration {
	if n < 1 {
		return 0
	}
	return p.BaseDelay * time.Duration(math.Pow(2, float64(n-1)))
}

// Do runs op until it succeeds, returns a non-transient error, the retries
// are exhausted or ctx is done. Only evalerr.ToolInvocationError is retried.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("retry cancelled after %d attempt(s): %w", attempt, ctx.Err())
			case <-time.After(p.Backoff(attempt)):
			}
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		if !evalerr.IsTransient(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("failed after %d attempts: %w", p.MaxRetries+1, lastErr)
}

// Value is Do for operations that return a result.
func Value[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := Do(ctx, p, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
