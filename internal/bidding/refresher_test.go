package bidding

import (
	"context"
	"errors"
	"testing"

	"nimbus-ads/internal/core/domain"
)

func storedCampaign(id string, status domain.CampaignStatus, withPlan bool) domain.Campaign {
	c := domain.Campaign{
		ID:               id,
		AccountID:        "acc-1",
		Status:           status,
		OptimizationMode: domain.ModeStandard,
		Segments: []domain.Segment{
			{ID: id + "-seg", CampaignID: id, PriorityScore: 0.8, ConversionProbability: 0.2},
		},
	}
	if withPlan {
		c.Allocation = &domain.AllocationPlan{
			CampaignID:  id,
			TotalBudget: 3000,
			DailyBudget: 100,
			Allocations: []domain.SegmentAllocation{
				{SegmentID: id + "-seg", DailyBudget: 80, Split: domain.DefaultChannelSplit(), MaxCPC: 2.00},
			},
		}
	}
	return c
}

// TestRefreshWarmsCacheFromStorage loads the active set into an empty
// cache, the state a freshly restarted process starts from.
func TestRefreshWarmsCacheFromStorage(t *testing.T) {
	repo := &stubRepo{campaigns: []domain.Campaign{
		storedCampaign("camp-1", domain.StatusActive, true),
		storedCampaign("camp-2", domain.StatusDraft, true),
		storedCampaign("camp-3", domain.StatusActive, false),
	}}
	cache := NewPlanCache()
	r := NewCacheRefresher(repo, cache, 0, discardLogger())

	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh error: %v", err)
	}

	if cache.Len() != 1 {
		t.Fatalf("expected 1 cached campaign, got %d", cache.Len())
	}
	view := cache.Get("camp-1")
	if view == nil {
		t.Fatal("active campaign missing from cache")
	}
	if got := view.Plan.DailyBudget; got != 100 {
		t.Fatalf("expected stored plan cached, daily %.2f", got)
	}
	// Draft campaigns and campaigns without a plan stay out.
	if cache.Get("camp-2") != nil || cache.Get("camp-3") != nil {
		t.Fatal("non-biddable campaigns leaked into the cache")
	}
}

// TestRefreshDropsDeactivatedCampaigns swaps generations so campaigns
// paused or removed outside this process stop being bid on.
func TestRefreshDropsDeactivatedCampaigns(t *testing.T) {
	repo := &stubRepo{campaigns: []domain.Campaign{
		storedCampaign("camp-1", domain.StatusActive, true),
		storedCampaign("camp-2", domain.StatusActive, true),
	}}
	cache := NewPlanCache()
	r := NewCacheRefresher(repo, cache, 0, discardLogger())

	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if cache.Len() != 2 {
		t.Fatalf("expected 2 cached campaigns, got %d", cache.Len())
	}

	repo.campaigns = []domain.Campaign{
		storedCampaign("camp-2", domain.StatusActive, true),
	}
	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if cache.Get("camp-1") != nil {
		t.Fatal("deactivated campaign still cached")
	}
	if cache.Get("camp-2") == nil {
		t.Fatal("surviving campaign dropped")
	}
}

// TestRefreshFailureKeepsGeneration leaves the cache serving the last
// good snapshot when the repository is unavailable.
func TestRefreshFailureKeepsGeneration(t *testing.T) {
	repo := &stubRepo{campaigns: []domain.Campaign{
		storedCampaign("camp-1", domain.StatusActive, true),
	}}
	cache := NewPlanCache()
	r := NewCacheRefresher(repo, cache, 0, discardLogger())

	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh error: %v", err)
	}

	repo.statusErr = errors.New("connection refused")
	if err := r.Refresh(context.Background()); err == nil {
		t.Fatal("expected an error from a failing repository")
	}
	if cache.Get("camp-1") == nil {
		t.Fatal("failed refresh must not clear the cache")
	}
}
