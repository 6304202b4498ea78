package bridge

import (
	"context"
	"time"
)

// connectFunc is a loop body that runs until it errors or ctx is done,
// e.g. a bus-observing drain loop.
type connectFunc func(ctx context.Context) error

// runConnectionLoop retries connect with a fixed backoff until ctx is
// canceled, so a bridge whose Join fails (for example, because the
// directory is unreachable) keeps retrying instead of exiting. Adapted
// from the teacher's
// exchanges.RunConnectionLoop.
func runConnectionLoop(ctx context.Context, name string, connect connectFunc) error {
	for {
		if err := connect(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("disconnected, reconnecting", "component", name, "err", err)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(3 * time.Second):
			}
		}
	}
}
