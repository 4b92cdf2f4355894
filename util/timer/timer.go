package timer

import (
	"context"
	"time"
)

// Poll calls cond every interval until it returns true or ctx is done.
func Poll(ctx context.Context, interval time.Duration, cond func() bool) error {
	if cond() {
		return nil
	}

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if cond() {
				return nil
			}
		}
	}
}
