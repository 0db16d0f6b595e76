package pipeline

import (
	"context"
	"time"

	"gitsmart/internal/config"
	"gitsmart/internal/faults"
	"gitsmart/internal/logging"
)

// RetryPolicy bounds retries of generation calls. Transient failures (network,
// rate limit) retry with exponential backoff up to MaxAttempts; a rate-limit
// response's server-provided minimum delay overrides the computed backoff when
// it is longer. Non-transient failures return immediately.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// sleep is swapped out by tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// PolicyFromConfig builds the policy from the retry section.
func PolicyFromConfig(cfg *config.Config) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    cfg.Retry.MaxAttempts,
		InitialBackoff: cfg.GetInitialBackoff(),
		MaxBackoff:     cfg.GetMaxBackoff(),
	}
}

// Execute runs fn up to MaxAttempts times. On exhaustion it returns a
// TimeoutError wrapping the last transient failure.
func (p RetryPolicy) Execute(ctx context.Context, fn func(context.Context) (string, error)) (string, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	delay := p.InitialBackoff
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		if !faults.Transient(err) {
			return "", err
		}
		lastErr = err
		if attempt == attempts {
			break
		}

		wait := delay
		if wait > p.MaxBackoff && p.MaxBackoff > 0 {
			wait = p.MaxBackoff
		}
		if ra := faults.RetryAfterOf(err); ra > wait {
			wait = ra
		}
		logging.PipelineDebug("attempt %d/%d failed (%v); retrying in %v", attempt, attempts, err, wait)
		if err := sleep(ctx, wait); err != nil {
			return "", faults.Wrap(faults.KindTimeout, err, "cancelled during retry backoff")
		}
		delay *= 2
	}
	return "", faults.Wrap(faults.KindTimeout, lastErr, "retry budget exhausted after %d attempts", attempts)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
