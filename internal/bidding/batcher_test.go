package bidding

import (
	"context"
	"sync"
	"testing"

	"nimbus-ads/internal/core/domain"
	"nimbus-ads/internal/core/port"
)

// stubRepo records the persistence calls the batcher makes and serves
// a fixed campaign list to the cache refresher.
type stubRepo struct {
	mu        sync.Mutex
	campaigns []domain.Campaign
	logged    []domain.BidDecision
	settled   []domain.BidOutcome
	logErr    error
	settleErr error
	statusErr error
}

func (r *stubRepo) GetCampaign(context.Context, string) (*domain.Campaign, error) {
	return nil, port.ErrNotFound
}

func (r *stubRepo) PutCampaign(context.Context, *domain.Campaign) error { return nil }

func (r *stubRepo) QueryByAccount(context.Context, string, port.QueryFilters) ([]domain.Campaign, error) {
	return nil, nil
}

func (r *stubRepo) QueryByStatus(_ context.Context, status domain.CampaignStatus) ([]domain.Campaign, error) {
	if r.statusErr != nil {
		return nil, r.statusErr
	}
	var out []domain.Campaign
	for _, c := range r.campaigns {
		if c.Status == status {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *stubRepo) GetAllocation(context.Context, string) (*domain.AllocationPlan, error) {
	return nil, port.ErrNotFound
}

func (r *stubRepo) PutAllocation(context.Context, *domain.AllocationPlan) error { return nil }

func (r *stubRepo) LogBidDecisions(_ context.Context, decisions []domain.BidDecision) error {
	if r.logErr != nil {
		return r.logErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logged = append(r.logged, decisions...)
	return nil
}

func (r *stubRepo) SettleBid(_ context.Context, outcome domain.BidOutcome) error {
	if r.settleErr != nil {
		return r.settleErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settled = append(r.settled, outcome)
	return nil
}

// stubAdjuster records adjustment calls and returns a fixed plan.
type stubAdjuster struct {
	mu    sync.Mutex
	calls []string
	perf  map[string]domain.SegmentPerformance
	plan  *domain.AllocationPlan
	err   error
}

func (a *stubAdjuster) AdjustFromPerformance(_ context.Context, campaignID string, perf map[string]domain.SegmentPerformance, _ domain.OptimizationMode) (*domain.AllocationPlan, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, campaignID)
	a.perf = perf
	if a.err != nil {
		return nil, a.err
	}
	return a.plan, nil
}

// TestFlushPersistsAndAdjusts runs one flush over mixed outcomes and
// checks the log, the settlements, the accumulated window and the cache
// republish.
func TestFlushPersistsAndAdjusts(t *testing.T) {
	repo := &stubRepo{}
	newPlan := &domain.AllocationPlan{
		CampaignID:  "camp-1",
		TotalBudget: 5000,
		Allocations: []domain.SegmentAllocation{
			{SegmentID: "seg-a", DailyBudget: 99, MaxCPC: 4.00},
		},
	}
	adjuster := &stubAdjuster{plan: newPlan}
	cache := NewPlanCache()
	cache.Publish(activeView())

	b := NewOutcomeBatcher(testBiddingConfig(), repo, adjuster, cache, discardLogger())

	b.AddDecision(domain.BidDecision{RequestID: "r1", CampaignID: "camp-1", SegmentID: "seg-a", Bid: true, Price: 3.20})
	b.AddDecision(domain.BidDecision{RequestID: "r2", Reason: "no matching audience segments"})
	b.AddOutcome(domain.BidOutcome{RequestID: "r1", CampaignID: "camp-1", SegmentID: "seg-a", Status: domain.BidWon, WinPrice: 2.80, Revenue: 12})
	b.AddOutcome(domain.BidOutcome{RequestID: "r3", CampaignID: "camp-1", SegmentID: "seg-a", Status: domain.BidLost})

	if err := b.Flush(context.Background()); err != nil {
		t.Fatalf("Flush error: %v", err)
	}

	if len(repo.logged) != 2 {
		t.Fatalf("expected 2 logged decisions, got %d", len(repo.logged))
	}
	if len(repo.settled) != 2 {
		t.Fatalf("expected 2 settlements, got %d", len(repo.settled))
	}

	if len(adjuster.calls) != 1 || adjuster.calls[0] != "camp-1" {
		t.Fatalf("expected one adjustment for camp-1, got %v", adjuster.calls)
	}
	// Only the win contributes to the window.
	p := adjuster.perf["seg-a"]
	if p.Clicks != 1 || p.Spend != 2.80 || p.Revenue != 12 {
		t.Fatalf("unexpected accumulated performance %+v", p)
	}

	view := cache.Get("camp-1")
	if view == nil {
		t.Fatal("campaign dropped from cache")
	}
	if got := view.Plan.Allocations[0].DailyBudget; got != 99 {
		t.Fatalf("adjusted plan not republished, daily %.2f", got)
	}
}

// TestFlushEmptyIsNoop verifies an empty buffer touches nothing.
func TestFlushEmptyIsNoop(t *testing.T) {
	repo := &stubRepo{}
	adjuster := &stubAdjuster{}
	b := NewOutcomeBatcher(testBiddingConfig(), repo, adjuster, NewPlanCache(), discardLogger())

	if err := b.Flush(context.Background()); err != nil {
		t.Fatalf("Flush error: %v", err)
	}
	if len(repo.logged) != 0 || len(adjuster.calls) != 0 {
		t.Fatal("empty flush must not call the repo or the adjuster")
	}
}

// TestFlushAccumulatesAcrossBatches checks the observation window grows
// across flushes instead of resetting.
func TestFlushAccumulatesAcrossBatches(t *testing.T) {
	repo := &stubRepo{}
	adjuster := &stubAdjuster{plan: &domain.AllocationPlan{CampaignID: "camp-1"}}
	cache := NewPlanCache()
	cache.Publish(activeView())

	b := NewOutcomeBatcher(testBiddingConfig(), repo, adjuster, cache, discardLogger())

	for i := 0; i < 2; i++ {
		b.AddOutcome(domain.BidOutcome{RequestID: "r", CampaignID: "camp-1", SegmentID: "seg-a", Status: domain.BidWon, WinPrice: 1.00, Revenue: 3})
		if err := b.Flush(context.Background()); err != nil {
			t.Fatalf("Flush %d error: %v", i, err)
		}
	}

	if got := adjuster.perf["seg-a"].Clicks; got != 2 {
		t.Fatalf("expected 2 accumulated clicks, got %d", got)
	}
}

// TestFlushHoldsAdjustmentWithoutRevenue settles a run of wins with no
// attributed revenue and expects the budgets left alone. Conversions
// land later than clicks; a window with spend but no revenue yet must
// not read as a zero-return segment.
func TestFlushHoldsAdjustmentWithoutRevenue(t *testing.T) {
	repo := &stubRepo{}
	adjuster := &stubAdjuster{plan: &domain.AllocationPlan{CampaignID: "camp-1"}}
	cache := NewPlanCache()
	cache.Publish(activeView())

	b := NewOutcomeBatcher(testBiddingConfig(), repo, adjuster, cache, discardLogger())

	for i := 0; i < 60; i++ {
		b.AddOutcome(domain.BidOutcome{RequestID: "r", CampaignID: "camp-1", SegmentID: "seg-a", Status: domain.BidWon, WinPrice: 0.10})
	}
	if err := b.Flush(context.Background()); err != nil {
		t.Fatalf("Flush error: %v", err)
	}

	if len(adjuster.calls) != 0 {
		t.Fatalf("expected no adjustment without revenue, got %v", adjuster.calls)
	}
	alloc, ok := cache.Get("camp-1").Plan.AllocationBySegment("seg-a")
	if !ok {
		t.Fatal("seg-a missing from cached plan")
	}
	if alloc.DailyBudget != 80 {
		t.Fatalf("daily budget moved to %.2f without revenue data", alloc.DailyBudget)
	}

	// Revenue arriving later releases the held window.
	b.AddOutcome(domain.BidOutcome{RequestID: "r61", CampaignID: "camp-1", SegmentID: "seg-a", Status: domain.BidWon, WinPrice: 0.10, Revenue: 25})
	if err := b.Flush(context.Background()); err != nil {
		t.Fatalf("Flush error: %v", err)
	}
	if len(adjuster.calls) != 1 {
		t.Fatalf("expected one adjustment after revenue, got %v", adjuster.calls)
	}
	p := adjuster.perf["seg-a"]
	if p.Clicks != 61 || p.Revenue != 25 {
		t.Fatalf("unexpected accumulated performance %+v", p)
	}
}

// TestFlushStampsSpendOnRepublish checks republished plans carry the
// accumulated spend per segment and in total.
func TestFlushStampsSpendOnRepublish(t *testing.T) {
	repo := &stubRepo{}
	newPlan := &domain.AllocationPlan{
		CampaignID:  "camp-1",
		DailyBudget: 120,
		Allocations: []domain.SegmentAllocation{
			{SegmentID: "seg-a", DailyBudget: 80, MaxCPC: 4.00},
			{SegmentID: "seg-b", DailyBudget: 40, MaxCPC: 3.00},
		},
	}
	adjuster := &stubAdjuster{plan: newPlan}
	cache := NewPlanCache()
	cache.Publish(activeView())

	b := NewOutcomeBatcher(testBiddingConfig(), repo, adjuster, cache, discardLogger())

	b.AddOutcome(domain.BidOutcome{RequestID: "r1", CampaignID: "camp-1", SegmentID: "seg-a", Status: domain.BidWon, WinPrice: 2.50, Revenue: 10})
	b.AddOutcome(domain.BidOutcome{RequestID: "r2", CampaignID: "camp-1", SegmentID: "seg-a", Status: domain.BidWon, WinPrice: 1.50, Revenue: 6})
	if err := b.Flush(context.Background()); err != nil {
		t.Fatalf("Flush error: %v", err)
	}

	plan := cache.Get("camp-1").Plan
	alloc, ok := plan.AllocationBySegment("seg-a")
	if !ok {
		t.Fatal("seg-a missing from republished plan")
	}
	if alloc.CurrentSpend != 4.00 {
		t.Fatalf("expected 4.00 current spend, got %.2f", alloc.CurrentSpend)
	}
	if got := alloc.RemainingToday(); got != 76.00 {
		t.Fatalf("expected 76.00 remaining, got %.2f", got)
	}
	if plan.TotalSpent != 4.00 {
		t.Fatalf("expected 4.00 total spent, got %.2f", plan.TotalSpent)
	}
}

// TestFlushSkipsUncachedCampaigns verifies outcomes for campaigns no
// longer in the cache settle without triggering an adjustment.
func TestFlushSkipsUncachedCampaigns(t *testing.T) {
	repo := &stubRepo{}
	adjuster := &stubAdjuster{}
	b := NewOutcomeBatcher(testBiddingConfig(), repo, adjuster, NewPlanCache(), discardLogger())

	b.AddOutcome(domain.BidOutcome{RequestID: "r1", CampaignID: "gone", SegmentID: "s", Status: domain.BidWon, WinPrice: 1})
	if err := b.Flush(context.Background()); err != nil {
		t.Fatalf("Flush error: %v", err)
	}
	if len(repo.settled) != 1 {
		t.Fatalf("expected the outcome settled, got %d", len(repo.settled))
	}
	if len(adjuster.calls) != 0 {
		t.Fatalf("expected no adjustment, got %v", adjuster.calls)
	}
}
