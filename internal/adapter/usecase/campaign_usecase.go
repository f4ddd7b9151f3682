// Package usecase implements the primary ports over the coordinator,
// the bid engine and the admission controllers.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"nimbus-ads/internal/bidding"
	"nimbus-ads/internal/coordinator"
	"nimbus-ads/internal/core/domain"
	"nimbus-ads/internal/core/port"
	"nimbus-ads/internal/ratelimit"
)

// CampaignUseCase implements port.CampaignUseCase. Every inbound call
// passes the per-account sliding-window limiter before any work starts;
// rejected calls cost nothing beyond the admission check.
type CampaignUseCase struct {
	limiter *ratelimit.SlidingWindow
	coord   *coordinator.Coordinator
	repo    port.CampaignRepository
	cache   *bidding.PlanCache
}

// NewCampaignUseCase wires the creation and optimization paths.
func NewCampaignUseCase(limiter *ratelimit.SlidingWindow, coord *coordinator.Coordinator, repo port.CampaignRepository, cache *bidding.PlanCache) *CampaignUseCase {
	return &CampaignUseCase{limiter: limiter, coord: coord, repo: repo, cache: cache}
}

// CreateCampaign admits the request, runs one coordination round and
// publishes the synthesized plan to the bid cache. Worker failures
// degrade to fallbacks inside the round; only admission rejection,
// invalid input and persistence loss surface as errors.
func (u *CampaignUseCase) CreateCampaign(ctx context.Context, req port.CampaignRequest) (*port.CampaignResponse, error) {
	if d := u.limiter.Allow(req.AccountID); !d.Allowed {
		return nil, &port.RateLimitedError{RetryAfter: d.RetryAfter}
	}

	mode := req.Mode
	if mode == "" {
		mode = domain.ModeStandard
	}
	now := time.Now().UTC()
	campaign := &domain.Campaign{
		ID:               uuid.NewString(),
		AccountID:        req.AccountID,
		Status:           domain.StatusDraft,
		BusinessGoal:     req.BusinessGoal,
		MonthlyBudget:    req.MonthlyBudget,
		TargetAudience:   req.TargetAudience,
		Products:         req.Products,
		OptimizationMode: mode,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := campaign.Validate(); err != nil {
		return nil, eris.Wrap(err, "create campaign")
	}

	strategy, err := u.coord.Coordinate(ctx, campaign)
	if err != nil {
		return nil, eris.Wrap(err, "create campaign")
	}

	u.publish(campaign)

	return &port.CampaignResponse{
		CampaignID:      campaign.ID,
		Status:          campaign.Status,
		EstimatedLaunch: strategy.EstimatedLaunch,
		RequiresReview:  strategy.RequiresReview,
	}, nil
}

// Optimize admits the request and applies the given actions, then
// republishes the bid cache so decisions see the revised plan.
func (u *CampaignUseCase) Optimize(ctx context.Context, accountID, campaignID string, actions []domain.OptimizationAction, mode domain.OptimizationMode) (*domain.OptimizationResult, error) {
	if d := u.limiter.Allow(accountID); !d.Allowed {
		return nil, &port.RateLimitedError{RetryAfter: d.RetryAfter}
	}
	if mode == "" {
		mode = domain.ModeStandard
	}

	// Ownership check before any mutation. A campaign belonging to a
	// different account is indistinguishable from a missing one.
	campaign, err := u.repo.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, eris.Wrapf(err, "optimize campaign %s", campaignID)
	}
	if campaign.AccountID != accountID {
		return nil, eris.Wrapf(port.ErrNotFound, "optimize campaign %s", campaignID)
	}

	result, err := u.coord.HandleOptimization(ctx, campaignID, actions, mode)
	if err != nil {
		return nil, eris.Wrap(err, "optimize campaign")
	}

	if campaign, err := u.repo.GetCampaign(ctx, campaignID); err == nil {
		u.publish(campaign)
	}
	return result, nil
}

// GetCampaign returns a campaign by id.
func (u *CampaignUseCase) GetCampaign(ctx context.Context, id string) (*domain.Campaign, error) {
	campaign, err := u.repo.GetCampaign(ctx, id)
	if err != nil {
		return nil, eris.Wrapf(err, "get campaign %s", id)
	}
	return campaign, nil
}

// ListCampaigns returns an account's campaigns, newest first.
func (u *CampaignUseCase) ListCampaigns(ctx context.Context, accountID string, f port.QueryFilters) ([]domain.Campaign, error) {
	campaigns, err := u.repo.QueryByAccount(ctx, accountID, f)
	if err != nil {
		return nil, eris.Wrapf(err, "list campaigns for %s", accountID)
	}
	return campaigns, nil
}

// publish mirrors a campaign's current strategy into the bid cache. A
// campaign without an allocation is dropped from the cache instead.
func (u *CampaignUseCase) publish(campaign *domain.Campaign) {
	if campaign.Allocation == nil {
		u.cache.Drop(campaign.ID)
		return
	}
	u.cache.Publish(bidding.CampaignView{
		CampaignID: campaign.ID,
		Status:     campaign.Status,
		Mode:       campaign.OptimizationMode,
		Segments:   campaign.Segments,
		Plan:       *campaign.Allocation,
	})
}
