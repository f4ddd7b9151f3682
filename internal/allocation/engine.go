package allocation

import (
	"math"
	"time"

	"github.com/rotisserie/eris"

	"nimbus-ads/internal/config/configs"
	"nimbus-ads/internal/core/domain"
)

// Overspend tolerance on the distributable budget. The sum of segment
// daily budgets must stay within this fraction of the main daily budget.
const budgetTolerance = 0.05

// Days a monthly budget is spread over.
const daysPerMonth = 30

// Minimum clicks a segment's daily budget should afford, used to cap the
// bid ceiling on thin budgets.
const minClicksPerDay = 10

// Engine computes and revises per-segment budget shares and bid
// ceilings. It is a pure function of its inputs: no hidden state, so it
// is safely callable from both the creation path and the optimization
// path, and identical inputs always yield identical plans.
type Engine struct {
	cfg configs.Budget
}

// NewEngine builds an engine with the given knobs.
func NewEngine(cfg configs.Budget) *Engine {
	return &Engine{cfg: cfg}
}

// Allocate distributes totalBudget across segments. It reserves the test
// fraction, splits the remainder proportionally to priority scores,
// applies the default channel split per segment and computes a bid
// ceiling per segment. The returned plan's allocated spend is within
// ±5% of the distributable budget; a violation would be a programming
// error, not an input condition.
func (e *Engine) Allocate(campaignID string, totalBudget float64, segments []domain.Segment) (*domain.AllocationPlan, error) {
	if totalBudget <= 0 {
		return nil, eris.Errorf("allocate: non-positive budget %.2f", totalBudget)
	}
	if len(segments) == 0 {
		return nil, eris.New("allocate: no audience segments provided")
	}

	testBudget := totalBudget * e.cfg.TestFraction
	mainDaily := (totalBudget - testBudget) / daysPerMonth

	totalPriority := 0.0
	for _, s := range segments {
		totalPriority += s.PriorityScore
	}

	allocs := make([]domain.SegmentAllocation, 0, len(segments))
	for _, s := range segments {
		share := 1.0 / float64(len(segments))
		if totalPriority > 0 {
			share = s.PriorityScore / totalPriority
		}
		daily := mainDaily * share
		allocs = append(allocs, domain.SegmentAllocation{
			SegmentID:   s.ID,
			DailyBudget: roundCents(daily),
			Split:       domain.DefaultChannelSplit(),
			MaxCPC:      e.maxCPC(s, daily),
		})
	}

	return &domain.AllocationPlan{
		CampaignID:  campaignID,
		TotalBudget: totalBudget,
		DailyBudget: totalBudget / daysPerMonth,
		TestBudget:  testBudget,
		Allocations: allocs,
		UpdatedAt:   time.Now().UTC(),
	}, nil
}

// Adjust revises a plan from observed performance. Segments with at
// least MinSampleClicks are scaled by the mode's multipliers when their
// ROAS crosses a threshold; everything else is left alone. Budgets are
// floored and the whole plan renormalized so the total still conforms
// to the ±5% tolerance. The input plan is not mutated.
func (e *Engine) Adjust(plan *domain.AllocationPlan, perf map[string]domain.SegmentPerformance, mode domain.OptimizationMode) *domain.AllocationPlan {
	up, down := 1.5, 0.7
	if mode == domain.ModeAggressive {
		up, down = 1.7, 0.5
	}

	out := *plan
	out.Allocations = append([]domain.SegmentAllocation(nil), plan.Allocations...)

	for i := range out.Allocations {
		a := &out.Allocations[i]
		p, ok := perf[a.SegmentID]
		if !ok || p.Clicks < e.cfg.MinSampleClicks {
			continue
		}
		switch roas := p.ROAS(); {
		case roas > e.cfg.ScaleUpROAS:
			a.DailyBudget *= up
		case roas < e.cfg.ScaleDownROAS:
			a.DailyBudget *= down
		}
		if a.DailyBudget < e.cfg.DailyFloor {
			a.DailyBudget = e.cfg.DailyFloor
		}
		a.DailyBudget = roundCents(a.DailyBudget)
	}

	e.renormalize(&out)
	out.UpdatedAt = time.Now().UTC()
	return &out
}

// FallbackPlan is the fixed conservative substitute used when the
// allocation worker fails or times out: the whole main daily budget on
// one default segment with an equal channel split and a modest ceiling.
func (e *Engine) FallbackPlan(campaignID string, totalBudget float64) *domain.AllocationPlan {
	testBudget := totalBudget * e.cfg.TestFraction
	mainDaily := (totalBudget - testBudget) / daysPerMonth
	return &domain.AllocationPlan{
		CampaignID:  campaignID,
		TotalBudget: totalBudget,
		DailyBudget: totalBudget / daysPerMonth,
		TestBudget:  testBudget,
		Allocations: []domain.SegmentAllocation{{
			SegmentID:   "default",
			DailyBudget: roundCents(mainDaily),
			Split:       domain.DefaultChannelSplit(),
			MaxCPC:      2.00,
		}},
		Fallback:  true,
		UpdatedAt: time.Now().UTC(),
	}
}

// maxCPC prices a segment's bid ceiling: expected click value against
// the target ROAS, scaled by size class, clamped to the bid bounds, then
// capped so the daily budget affords at least minClicksPerDay clicks.
func (e *Engine) maxCPC(s domain.Segment, dailyBudget float64) float64 {
	cpc := e.cfg.ConversionValue * s.ConversionProbability / e.cfg.TargetROAS
	cpc *= s.Size.SizeMultiplier()
	cpc = clamp(cpc, e.cfg.BidFloor, e.cfg.BidCap)

	if dailyBudget > 0 && dailyBudget/cpc < minClicksPerDay {
		cpc = math.Max(e.cfg.BidFloor, dailyBudget/minClicksPerDay)
	}
	return roundCents(cpc)
}

// renormalize scales all segment budgets proportionally when the total
// drifts outside the tolerance band around the main daily budget, then
// re-applies the floor.
func (e *Engine) renormalize(plan *domain.AllocationPlan) {
	mainDaily := plan.MainBudget() / daysPerMonth
	total := plan.TotalDailyAllocation()
	if total <= 0 || mainDaily <= 0 {
		return
	}

	ratio := total / mainDaily
	if ratio <= 1+budgetTolerance && ratio >= 1-budgetTolerance {
		return
	}

	factor := mainDaily / total
	for i := range plan.Allocations {
		a := &plan.Allocations[i]
		a.DailyBudget = roundCents(a.DailyBudget * factor)
		if a.DailyBudget < e.cfg.DailyFloor {
			a.DailyBudget = e.cfg.DailyFloor
		}
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
