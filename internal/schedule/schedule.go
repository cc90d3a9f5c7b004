package schedule

import (
	"context"
	"time"
)

// RunAt calls execute at runAt, or right away once runAt has passed. The call
// is dropped if ctx is done first. The returned stop function cancels a
// pending call and reports whether it did so.
func RunAt(ctx context.Context, runAt time.Time, execute func(ctx context.Context)) (stop func() bool) {
	t := time.AfterFunc(time.Until(runAt), func() {
		if ctx.Err() != nil {
			return
		}
		execute(ctx)
	})
	release := context.AfterFunc(ctx, func() {
		t.Stop()
	})
	return func() bool {
		release()
		return t.Stop()
	}
}
