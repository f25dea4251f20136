package extract

import (
	"context"
	"fmt"
	"time"
)

// abandonGrace is how long runWithTimeout waits for a cancelled worker to
// return before giving up on it.
const abandonGrace = 2 * time.Second

// runWithTimeout runs fn with a context that expires after limit. The call
// returns no later than limit plus abandonGrace even if fn ignores ctx; a
// context.DeadlineExceeded error signals the timeout.
func runWithTimeout(ctx context.Context, limit time.Duration, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic: %v", r)
			}
		}()
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		if err != nil && ctx.Err() != nil {
			return fmt.Errorf("%w: %w", ctx.Err(), err)
		}
		return err
	case <-ctx.Done():
	}

	grace := time.NewTimer(abandonGrace)
	defer grace.Stop()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: %w", ctx.Err(), err)
		}
	case <-grace.C:
	}
	return ctx.Err()
}
