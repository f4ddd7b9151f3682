package coordinator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"nimbus-ads/internal/allocation"
	"nimbus-ads/internal/config/configs"
	"nimbus-ads/internal/core/domain"
	"nimbus-ads/internal/core/port"
	"nimbus-ads/internal/worker"
)

// fakeRepo is an in-memory port.CampaignRepository. Errors are injected
// per method.
type fakeRepo struct {
	mu          sync.Mutex
	campaigns   map[string]*domain.Campaign
	allocations map[string]*domain.AllocationPlan

	putCampaignErr   error
	putAllocationErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		campaigns:   make(map[string]*domain.Campaign),
		allocations: make(map[string]*domain.AllocationPlan),
	}
}

func (r *fakeRepo) GetCampaign(_ context.Context, id string) (*domain.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *fakeRepo) PutCampaign(_ context.Context, c *domain.Campaign) error {
	if r.putCampaignErr != nil {
		return r.putCampaignErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.campaigns[c.ID] = &cp
	return nil
}

func (r *fakeRepo) QueryByAccount(_ context.Context, accountID string, _ port.QueryFilters) ([]domain.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Campaign
	for _, c := range r.campaigns {
		if c.AccountID == accountID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeRepo) QueryByStatus(_ context.Context, status domain.CampaignStatus) ([]domain.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Campaign
	for _, c := range r.campaigns {
		if c.Status == status {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeRepo) GetAllocation(_ context.Context, campaignID string) (*domain.AllocationPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.allocations[campaignID]
	if !ok {
		return nil, port.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakeRepo) PutAllocation(_ context.Context, p *domain.AllocationPlan) error {
	if r.putAllocationErr != nil {
		return r.putAllocationErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.allocations[p.CampaignID] = &cp
	return nil
}

func (r *fakeRepo) LogBidDecisions(_ context.Context, _ []domain.BidDecision) error { return nil }

func (r *fakeRepo) SettleBid(_ context.Context, _ domain.BidOutcome) error { return nil }

// slowWorker wraps another worker and delays its Handle.
type slowWorker struct {
	port.Worker
	delay time.Duration
}

func (w *slowWorker) Handle(ctx context.Context, msg domain.AgentMessage) domain.AgentResponse {
	time.Sleep(w.delay)
	return w.Worker.Handle(ctx, msg)
}

// failingWorker always reports failure from Handle.
type failingWorker struct {
	port.Worker
}

func (w *failingWorker) Handle(_ context.Context, msg domain.AgentMessage) domain.AgentResponse {
	return domain.AgentResponse{
		Agent:         w.Name(),
		CorrelationID: msg.CorrelationID,
		Error:         "simulated failure",
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func budgetCfg() configs.Budget {
	return configs.Budget{
		TestFraction:    0.20,
		ConversionValue: 50,
		TargetROAS:      3.0,
		BidFloor:        0.50,
		BidCap:          10.00,
		ScaleUpROAS:     4.0,
		ScaleDownROAS:   1.0,
		MinSampleClicks: 50,
		DailyFloor:      5.00,
	}
}

func defaultWorkers() []port.Worker {
	logger := discardLogger()
	return []port.Worker{
		worker.NewCreative(logger),
		worker.NewAudience(logger),
		allocation.NewWorker(allocation.NewEngine(budgetCfg()), logger),
	}
}

func testCampaign() *domain.Campaign {
	return &domain.Campaign{
		ID:               "camp-1",
		AccountID:        "acct-1",
		BusinessGoal:     "increase online sales",
		MonthlyBudget:    5000,
		TargetAudience:   "young professionals interested in fitness",
		Products:         []string{"Protein Bars"},
		OptimizationMode: domain.ModeStandard,
	}
}

// TestCoordinateHappyPath runs a full round and checks the synthesized
// strategy plus persistence.
func TestCoordinateHappyPath(t *testing.T) {
	repo := newFakeRepo()
	c := New(defaultWorkers(), repo, 5*time.Second, discardLogger())

	campaign := testCampaign()
	strategy, err := c.Coordinate(context.Background(), campaign)
	if err != nil {
		t.Fatalf("Coordinate error: %v", err)
	}

	if strategy.RequiresReview {
		t.Fatal("healthy round must not require review")
	}
	if len(strategy.Variants) == 0 {
		t.Fatal("expected creative variants")
	}
	if len(strategy.Segments) == 0 {
		t.Fatal("expected audience segments")
	}
	if strategy.Allocation == nil {
		t.Fatal("expected an allocation plan")
	}
	// The allocation must cover the audience worker's segments, proving
	// the dataflow between the two specialists.
	for _, seg := range strategy.Segments {
		if _, ok := strategy.Allocation.AllocationBySegment(seg.ID); !ok {
			t.Fatalf("segment %s missing from the plan", seg.ID)
		}
	}

	if _, err := repo.GetCampaign(context.Background(), campaign.ID); err != nil {
		t.Fatalf("campaign not persisted: %v", err)
	}
	if _, err := repo.GetAllocation(context.Background(), campaign.ID); err != nil {
		t.Fatalf("allocation not persisted: %v", err)
	}
}

// TestCoordinateWorkerFailure checks a failed worker degrades to its
// fallback and flags review, while the round still succeeds.
func TestCoordinateWorkerFailure(t *testing.T) {
	logger := discardLogger()
	workers := []port.Worker{
		worker.NewCreative(logger),
		&failingWorker{Worker: worker.NewAudience(logger)},
		allocation.NewWorker(allocation.NewEngine(budgetCfg()), logger),
	}
	c := New(workers, newFakeRepo(), 5*time.Second, logger)

	strategy, err := c.Coordinate(context.Background(), testCampaign())
	if err != nil {
		t.Fatalf("Coordinate error: %v", err)
	}

	if !strategy.RequiresReview {
		t.Fatal("degraded round must require review")
	}
	st := strategy.Workers[worker.AudienceWorkerName]
	if !st.Fallback {
		t.Fatal("audience status must mark the fallback")
	}
	if st.Error == "" {
		t.Fatal("audience status must carry the failure")
	}
	if len(strategy.Segments) != 1 || !strategy.Segments[0].Fallback {
		t.Fatalf("expected one fallback segment, got %+v", strategy.Segments)
	}
	if strategy.EstimatedLaunch != "48-72 hours (requires review)" {
		t.Fatalf("unexpected launch estimate %q", strategy.EstimatedLaunch)
	}
}

// TestCoordinateDeadline verifies a worker that outlives the deadline
// contributes its fallback instead of stalling the round.
func TestCoordinateDeadline(t *testing.T) {
	logger := discardLogger()
	workers := []port.Worker{
		&slowWorker{Worker: worker.NewCreative(logger), delay: 500 * time.Millisecond},
		worker.NewAudience(logger),
		allocation.NewWorker(allocation.NewEngine(budgetCfg()), logger),
	}
	c := New(workers, newFakeRepo(), 50*time.Millisecond, logger)

	start := time.Now()
	strategy, err := c.Coordinate(context.Background(), testCampaign())
	if err != nil {
		t.Fatalf("Coordinate error: %v", err)
	}
	if took := time.Since(start); took > 400*time.Millisecond {
		t.Fatalf("round waited for the slow worker: %v", took)
	}

	st := strategy.Workers[worker.CreativeWorkerName]
	if !st.Fallback || st.Error != "deadline exceeded" {
		t.Fatalf("expected deadline fallback, got %+v", st)
	}
	if len(strategy.Variants) == 0 {
		t.Fatal("fallback variants missing")
	}
}

// TestCoordinatePersistenceFailure is the one hard error: the round
// fails when the campaign cannot be stored.
func TestCoordinatePersistenceFailure(t *testing.T) {
	repo := newFakeRepo()
	repo.putCampaignErr = port.ErrPersistence
	c := New(defaultWorkers(), repo, 5*time.Second, discardLogger())

	if _, err := c.Coordinate(context.Background(), testCampaign()); !errors.Is(err, port.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
}

// TestHandleOptimizationMixedActions applies a valid pause alongside an
// unknown action and checks the round reports both without failing.
func TestHandleOptimizationMixedActions(t *testing.T) {
	repo := newFakeRepo()
	c := New(defaultWorkers(), repo, 5*time.Second, discardLogger())

	campaign := testCampaign()
	if _, err := c.Coordinate(context.Background(), campaign); err != nil {
		t.Fatalf("Coordinate error: %v", err)
	}
	segID := campaign.Segments[0].ID

	actions := []domain.OptimizationAction{
		{Type: domain.ActionPauseSegment, SegmentID: segID},
		{Type: "teleport_budget"},
	}
	result, err := c.HandleOptimization(context.Background(), campaign.ID, actions, domain.ModeStandard)
	if err != nil {
		t.Fatalf("HandleOptimization error: %v", err)
	}

	if len(result.Applied) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(result.Applied))
	}
	if !result.Applied[0].OK {
		t.Fatalf("pause failed: %+v", result.Applied[0])
	}
	if result.Applied[1].OK || result.Applied[1].Error == "" {
		t.Fatalf("unknown action must fail with an error, got %+v", result.Applied[1])
	}

	stored, err := repo.GetCampaign(context.Background(), campaign.ID)
	if err != nil {
		t.Fatalf("campaign not persisted: %v", err)
	}
	if stored.LastOptimizedAt == nil {
		t.Fatal("optimization timestamp not recorded")
	}
	paused, _ := stored.Allocation.AllocationBySegment(segID)
	if paused.DailyBudget != 0 {
		t.Fatalf("paused segment still funded: %.2f", paused.DailyBudget)
	}
}

// TestAdjustFromPerformanceSerialized runs concurrent adjustments for
// one campaign and checks the persisted plan still respects the budget
// tolerance.
func TestAdjustFromPerformanceSerialized(t *testing.T) {
	repo := newFakeRepo()
	c := New(defaultWorkers(), repo, 5*time.Second, discardLogger())

	campaign := testCampaign()
	if _, err := c.Coordinate(context.Background(), campaign); err != nil {
		t.Fatalf("Coordinate error: %v", err)
	}
	segID := campaign.Segments[0].ID

	perf := map[string]domain.SegmentPerformance{
		segID: {SegmentID: segID, Clicks: 100, Spend: 100, Revenue: 600},
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.AdjustFromPerformance(context.Background(), campaign.ID, perf, domain.ModeStandard); err != nil {
				t.Errorf("AdjustFromPerformance error: %v", err)
			}
		}()
	}
	wg.Wait()

	plan, err := repo.GetAllocation(context.Background(), campaign.ID)
	if err != nil {
		t.Fatalf("allocation not persisted: %v", err)
	}
	mainDaily := plan.MainBudget() / 30
	if ratio := plan.TotalDailyAllocation() / mainDaily; ratio > 1.05 || ratio < 0.95 {
		t.Fatalf("concurrent adjustments broke the tolerance: total %.2f vs %.2f",
			plan.TotalDailyAllocation(), mainDaily)
	}
}
