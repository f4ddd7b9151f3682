package domain

import "time"

// ChannelSplit divides a segment's daily budget across the three
// delivery channels. Weights are fractions summing to 1.
type ChannelSplit struct {
	Search       float64 `json:"search"`
	Social       float64 `json:"social"`
	Programmatic float64 `json:"programmatic"`
}

// DefaultChannelSplit is the 40/40/20 split applied unless overridden.
func DefaultChannelSplit() ChannelSplit {
	return ChannelSplit{Search: 0.40, Social: 0.40, Programmatic: 0.20}
}

// SegmentAllocation is the per-segment slice of an allocation plan.
type SegmentAllocation struct {
	SegmentID   string       `json:"segment_id"`
	DailyBudget float64      `json:"daily_budget"`
	Split       ChannelSplit `json:"split"`
	MaxCPC      float64      `json:"max_cpc"`
	// CurrentSpend is cumulative spend for the current day, maintained
	// by the bid path's outcome tracking, never by the plan itself.
	CurrentSpend float64 `json:"current_spend"`
}

// RemainingToday returns the unspent portion of the daily budget.
func (a SegmentAllocation) RemainingToday() float64 {
	if r := a.DailyBudget - a.CurrentSpend; r > 0 {
		return r
	}
	return 0
}

// AllocationPlan is the budget plan owned by exactly one campaign.
// Only the allocation engine produces or revises plans; readers treat a
// plan as immutable.
type AllocationPlan struct {
	CampaignID  string  `json:"campaign_id"`
	TotalBudget float64 `json:"total_budget"`
	// DailyBudget is TotalBudget / 30.
	DailyBudget float64 `json:"daily_budget"`
	// TestBudget is the fixed 20% reserve for testing new audiences and
	// creatives; it is never distributed across segments.
	TestBudget  float64             `json:"test_budget"`
	Allocations []SegmentAllocation `json:"allocations"`

	TotalSpent float64   `json:"total_spent"`
	Fallback   bool      `json:"fallback,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// MainBudget is the distributable portion, total minus the test reserve.
func (p *AllocationPlan) MainBudget() float64 {
	return p.TotalBudget - p.TestBudget
}

// TotalDailyAllocation sums the per-segment daily budgets.
func (p *AllocationPlan) TotalDailyAllocation() float64 {
	var sum float64
	for _, a := range p.Allocations {
		sum += a.DailyBudget
	}
	return sum
}

// AllocationBySegment finds the slice for a segment.
func (p *AllocationPlan) AllocationBySegment(segmentID string) (SegmentAllocation, bool) {
	for _, a := range p.Allocations {
		if a.SegmentID == segmentID {
			return a, true
		}
	}
	return SegmentAllocation{}, false
}
