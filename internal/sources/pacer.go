package sources

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Pacer enforces a collaborator's request pacing. Every client calls Wait
// before touching the network; several collaborators ban clients that exceed
// their published limits, so pacing is not optional.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer builds a pacer allowing requestsPerSecond sustained with a burst
// of one. A non-positive rate falls back to one request per second.
func NewPacer(requestsPerSecond float64) *Pacer {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1)}
}

// Wait blocks until the next request slot, or returns early when the context
// is cancelled.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.limiter == nil {
		return nil
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("pace request: %w", err)
	}
	return nil
}
