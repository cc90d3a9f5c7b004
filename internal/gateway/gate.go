package gateway

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DefaultConnectInterval is the minimum time between two connection attempts.
const DefaultConnectInterval = 6 * time.Second

// ConnectGate spaces out connection attempts. Sessions that must coordinate
// share one gate.
type ConnectGate struct {
	limiter *rate.Limiter
}

// NewConnectGate allows one connect per interval. A zero interval disables
// the gate.
func NewConnectGate(interval time.Duration) *ConnectGate {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &ConnectGate{limiter: rate.NewLimiter(limit, 1)}
}

func (g *ConnectGate) Wait(ctx context.Context) error {
	return g.limiter.Wait(ctx)
}
