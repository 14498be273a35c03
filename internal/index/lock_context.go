package index

import (
	"context"
	"time"
)

// timeoutContext returns a context that is cancelled after d, detached from
// any parent: the index lock is a short, local, best-effort wait and does
// not need to participate in a caller's cancellation tree.
func timeoutContext(d time.Duration) context.Context {
	ctx, _ := context.WithTimeout(context.Background(), d) //nolint:lostcancel // released at deadline
	return ctx
}
