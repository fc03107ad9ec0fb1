package fetcher

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Gate enforces the process-wide minimum-interval rate shaping of
// §4.A/§5: every outbound request start is spaced at least minGap
// apart, and requests originating from the Discovery Engine are
// additionally spaced at least discoveryMinGap apart from one
// another. golang.org/x/time/rate.Limiter.Wait grants reservations
// in call order, which is what gives the shared gate its fairness
// (§5 "a waiter's wakeup order matches arrival order").
type Gate struct {
	normal    *rate.Limiter
	discovery *rate.Limiter
}

// NewGate constructs a rate gate from the configured minimum gaps.
func NewGate(minGap, discoveryMinGap time.Duration) *Gate {
	if minGap <= 0 {
		minGap = 100 * time.Millisecond
	}
	if discoveryMinGap <= 0 {
		discoveryMinGap = 200 * time.Millisecond
	}
	return &Gate{
		normal:    rate.NewLimiter(rate.Every(minGap), 1),
		discovery: rate.NewLimiter(rate.Every(discoveryMinGap), 1),
	}
}

// Wait blocks until the shared gate admits the next request start. A
// discovery request additionally waits on the stricter discovery
// gate, so back-to-back discovery probes are spaced further apart
// than the baseline.
func (g *Gate) Wait(ctx context.Context, discovery bool) error {
	if err := g.normal.Wait(ctx); err != nil {
		return err
	}
	if discovery {
		if err := g.discovery.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}
