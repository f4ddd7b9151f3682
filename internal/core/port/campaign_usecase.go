package port

import (
	"context"
	"errors"
	"time"

	"nimbus-ads/internal/core/domain"
)

// ErrRateLimited is returned when admission control rejects a request.
// It is not an orchestration error; callers receive a retry-after hint.
var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimitedError carries the retry hint alongside ErrRateLimited.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string { return ErrRateLimited.Error() }

func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }

// CampaignRequest is the inbound creation request.
type CampaignRequest struct {
	AccountID      string                  `json:"account_id"`
	BusinessGoal   string                  `json:"business_goal"`
	MonthlyBudget  float64                 `json:"monthly_budget"`
	TargetAudience string                  `json:"target_audience"`
	Products       []string                `json:"products"`
	Mode           domain.OptimizationMode `json:"optimization_mode,omitempty"`
}

// CampaignResponse is the creation result handed back to the HTTP layer.
type CampaignResponse struct {
	CampaignID      string                `json:"campaign_id"`
	Status          domain.CampaignStatus `json:"status"`
	EstimatedLaunch string                `json:"estimated_launch"`
	RequiresReview  bool                  `json:"requires_review"`
}

// CampaignUseCase is the primary port for the creation and optimization
// paths. Both pass through per-account admission control first.
type CampaignUseCase interface {
	// CreateCampaign admits, coordinates the specialist workers and
	// returns the synthesized result. Worker failures degrade to
	// fallbacks; only persistence loss or admission rejection surface
	// as errors.
	CreateCampaign(ctx context.Context, req CampaignRequest) (*CampaignResponse, error)

	// Optimize applies externally-decided actions to a campaign,
	// continuing past individual action failures.
	Optimize(ctx context.Context, accountID, campaignID string, actions []domain.OptimizationAction, mode domain.OptimizationMode) (*domain.OptimizationResult, error)

	// GetCampaign returns a campaign by id for the stats surface.
	GetCampaign(ctx context.Context, id string) (*domain.Campaign, error)

	// ListCampaigns returns an account's campaigns, newest first,
	// optionally narrowed by status.
	ListCampaigns(ctx context.Context, accountID string, f QueryFilters) ([]domain.Campaign, error)
}
