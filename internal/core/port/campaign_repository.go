package port

import (
	"context"
	"errors"

	"nimbus-ads/internal/core/domain"
)

var (
	// ErrNotFound is returned when an entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrPersistence marks a hard storage failure. It is the only error
	// class the coordinator surfaces to the caller; creation may be
	// retried with the same idempotency context.
	ErrPersistence = errors.New("persistence unavailable")
)

// QueryFilters narrows account-scoped campaign queries.
type QueryFilters struct {
	Status domain.CampaignStatus
	Limit  int
}

// CampaignRepository is the outbound persistence port: a keyed document
// store. The core treats it as durable and never relies on
// read-after-write consistency across documents. Implementations must be
// safe for concurrent use.
type CampaignRepository interface {
	// GetCampaign returns a campaign by id, ErrNotFound when absent.
	GetCampaign(ctx context.Context, id string) (*domain.Campaign, error)
	// PutCampaign creates or replaces a campaign document.
	PutCampaign(ctx context.Context, c *domain.Campaign) error
	// QueryByAccount lists an account's campaigns, newest first.
	QueryByAccount(ctx context.Context, accountID string, f QueryFilters) ([]domain.Campaign, error)
	// QueryByStatus lists all campaigns in the given lifecycle state.
	// Backs the bid cache refresh; campaigns may be activated outside
	// this process.
	QueryByStatus(ctx context.Context, status domain.CampaignStatus) ([]domain.Campaign, error)

	// GetAllocation returns the current plan for a campaign.
	GetAllocation(ctx context.Context, campaignID string) (*domain.AllocationPlan, error)
	// PutAllocation creates or replaces a campaign's plan.
	PutAllocation(ctx context.Context, p *domain.AllocationPlan) error

	// LogBidDecisions appends immutable decision records. Called off the
	// bid hot path in batches.
	LogBidDecisions(ctx context.Context, decisions []domain.BidDecision) error
	// SettleBid records the auction result for a prior decision.
	SettleBid(ctx context.Context, outcome domain.BidOutcome) error
}
