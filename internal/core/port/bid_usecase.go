package port

import (
	"context"

	"nimbus-ads/internal/core/domain"
)

// BidUseCase answers exchange bid opportunities against the cached
// allocation snapshot. Decide never performs blocking I/O; outcome
// recording is asynchronous and batched.
type BidUseCase interface {
	// Decide evaluates one opportunity and always returns a decision;
	// invalid input resolves to a no-bid, never an error.
	Decide(ctx context.Context, opp domain.BidOpportunity) domain.BidDecision

	// RecordOutcome reports the settled auction result for a prior
	// decision, with any conversion revenue attributed to it. Unknown
	// request ids are ignored.
	RecordOutcome(ctx context.Context, requestID string, status domain.BidStatus, winPrice, revenue float64) error
}
