// AngelaMos | 2026
// connect.go

package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	pingTimeout        = 5 * time.Second
	startupRetryWindow = 30 * time.Second
)

// dial probes a store with exponential backoff until it answers, the retry
// window closes or ctx is cancelled.
func dial(
	ctx context.Context,
	store string,
	window time.Duration,
	probe func(context.Context) error,
) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxInterval = 5 * time.Second
	policy.MaxElapsedTime = window

	attempts := 0
	op := func() error {
		attempts++
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		return probe(pingCtx)
	}

	onRetry := func(err error, wait time.Duration) {
		slog.WarnContext(ctx, "store not reachable yet",
			"store", store,
			"attempt", attempts,
			"retry_in", wait.String(),
			"error", err,
		)
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(policy, ctx), onRetry); err != nil {
		return fmt.Errorf("%s unreachable after %d attempts: %w", store, attempts, err)
	}
	return nil
}

func ping(ctx context.Context, store string, probe func(context.Context) error) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := probe(pingCtx); err != nil {
		return fmt.Errorf("%s ping: %w", store, err)
	}
	return nil
}
