package configs

import "time"

// LowBudgetPolicy selects what the bid engine does when a matched
// segment has less than LowBudgetThreshold of its daily budget left.
type LowBudgetPolicy string

const (
	// LowBudgetDiscount keeps bidding at a reduced price.
	LowBudgetDiscount LowBudgetPolicy = "discount"
	// LowBudgetDecline stops bidding for the segment.
	LowBudgetDecline LowBudgetPolicy = "decline"
)

// Bidding configures the real-time decision engine.
type Bidding struct {
	// LatencyBudget is the soft response target. It is enforced by
	// keeping the decision path free of blocking I/O, not by
	// cancellation; overruns are logged.
	LatencyBudget time.Duration `env:"LATENCY_BUDGET" envDefault:"100ms"`

	// MaxFloorPrice filters opportunities whose floor is not worth
	// evaluating.
	MaxFloorPrice float64 `env:"MAX_FLOOR_PRICE" envDefault:"15.00"`
	// MinMatchScore is the relevance threshold for segment matching.
	MinMatchScore float64 `env:"MIN_MATCH_SCORE" envDefault:"0.5"`
	// MinConversionProbability is the lowest estimate worth a bid.
	MinConversionProbability float64 `env:"MIN_CONVERSION_PROBABILITY" envDefault:"0.05"`

	// LowBudgetThreshold is the remaining-budget fraction below which
	// LowBudgetPolicy applies.
	LowBudgetThreshold float64         `env:"LOW_BUDGET_THRESHOLD" envDefault:"0.10"`
	LowBudgetPolicy    LowBudgetPolicy `env:"LOW_BUDGET_POLICY" envDefault:"discount"`
	// LowBudgetDiscountFactor shades the price under the discount policy.
	LowBudgetDiscountFactor float64 `env:"LOW_BUDGET_DISCOUNT_FACTOR" envDefault:"0.70"`

	// Win-rate band the strategy nudges bids toward. Below NudgeUpBelow
	// the adjustment factor rises; above WinRateMax it falls.
	WinRateMax   float64 `env:"WIN_RATE_MAX" envDefault:"0.40"`
	NudgeUpBelow float64 `env:"NUDGE_UP_BELOW" envDefault:"0.15"`

	// FlushInterval paces the outcome batcher that feeds adjustments.
	FlushInterval time.Duration `env:"FLUSH_INTERVAL" envDefault:"15s"`

	// CacheRefreshInterval paces the repository-driven plan cache
	// refresh. Picks up campaigns activated by other processes.
	CacheRefreshInterval time.Duration `env:"CACHE_REFRESH_INTERVAL" envDefault:"5m"`
}
