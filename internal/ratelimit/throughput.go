package ratelimit

import "golang.org/x/time/rate"

// ThroughputGuard is the bid-path admission check. The bid path has no
// per-account quota; its limiting factor is the latency budget, so a
// single token bucket shields the engine from exchange floods without
// tracking accounts.
type ThroughputGuard struct {
	limiter *rate.Limiter
}

// NewThroughputGuard builds a guard sustaining perSecond decisions with
// the given burst.
func NewThroughputGuard(perSecond float64, burst int) *ThroughputGuard {
	return &ThroughputGuard{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Allow reports whether one more opportunity may enter the decision
// pipeline right now. Never blocks.
func (g *ThroughputGuard) Allow() bool {
	return g.limiter.Allow()
}
