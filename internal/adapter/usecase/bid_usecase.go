package usecase

import (
	"context"
	"time"

	"nimbus-ads/internal/bidding"
	"nimbus-ads/internal/core/domain"
	"nimbus-ads/internal/ratelimit"
)

// BidUseCase implements port.BidUseCase. The bid path skips the
// per-account limiter; a process-wide token bucket sheds load instead,
// answering over-rate opportunities with an immediate no-bid.
type BidUseCase struct {
	guard  *ratelimit.ThroughputGuard
	engine *bidding.Engine
}

// NewBidUseCase wires the real-time decision path.
func NewBidUseCase(guard *ratelimit.ThroughputGuard, engine *bidding.Engine) *BidUseCase {
	return &BidUseCase{guard: guard, engine: engine}
}

// Decide evaluates one opportunity. A shed opportunity still gets a
// well-formed no-bid decision so the exchange never waits.
func (u *BidUseCase) Decide(ctx context.Context, opp domain.BidOpportunity) domain.BidDecision {
	if !u.guard.Allow() {
		return domain.BidDecision{
			RequestID: opp.RequestID,
			Reason:    "throughput limit",
			Status:    domain.BidRejected,
			DecidedAt: time.Now().UTC(),
		}
	}
	return u.engine.Decide(ctx, opp)
}

// RecordOutcome reports a settled auction to the engine.
func (u *BidUseCase) RecordOutcome(ctx context.Context, requestID string, status domain.BidStatus, winPrice, revenue float64) error {
	return u.engine.RecordOutcome(ctx, requestID, status, winPrice, revenue)
}
