package domain

import (
	"fmt"
	"time"
)

// CampaignStatus is the lifecycle state of a campaign. Campaigns are
// soft-deleted by moving them to StatusCompleted, never removed.
type CampaignStatus string

const (
	StatusDraft     CampaignStatus = "draft"
	StatusActive    CampaignStatus = "active"
	StatusPaused    CampaignStatus = "paused"
	StatusCompleted CampaignStatus = "completed"
)

// OptimizationMode selects the adjustment multipliers applied by the
// allocation engine. It is always passed explicitly, never stored as
// branching object state.
type OptimizationMode string

const (
	ModeStandard   OptimizationMode = "standard"
	ModeAggressive OptimizationMode = "aggressive"
)

// Monthly budget bounds in USD accepted for a campaign.
const (
	MinMonthlyBudget = 100.0
	MaxMonthlyBudget = 100_000.0
)

// Campaign represents an advertising campaign together with its
// synthesized strategy. Money amounts are USD.
type Campaign struct {
	ID        string         `json:"id"`
	AccountID string         `json:"account_id"`
	Status    CampaignStatus `json:"status"`

	BusinessGoal   string   `json:"business_goal"`
	MonthlyBudget  float64  `json:"monthly_budget"`
	TargetAudience string   `json:"target_audience"`
	Products       []string `json:"products"`

	// Strategy components filled in by synthesis. Allocation is owned by
	// the allocation engine; nothing else mutates it.
	Variants   []CreativeVariant `json:"variants,omitempty"`
	Segments   []Segment         `json:"segments,omitempty"`
	Allocation *AllocationPlan   `json:"allocation,omitempty"`

	Performance      PerformanceSnapshot `json:"performance"`
	OptimizationMode OptimizationMode    `json:"optimization_mode"`

	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	LastOptimizedAt *time.Time `json:"last_optimized_at,omitempty"`
}

// Validate checks the request-supplied fields of a campaign.
func (c *Campaign) Validate() error {
	if c.AccountID == "" {
		return fmt.Errorf("campaign: account id is required")
	}
	if c.BusinessGoal == "" {
		return fmt.Errorf("campaign: business goal is required")
	}
	if c.MonthlyBudget < MinMonthlyBudget || c.MonthlyBudget > MaxMonthlyBudget {
		return fmt.Errorf("campaign: monthly budget %.2f outside [%.2f, %.2f]",
			c.MonthlyBudget, MinMonthlyBudget, MaxMonthlyBudget)
	}
	if len(c.Products) == 0 {
		return fmt.Errorf("campaign: at least one product is required")
	}
	return nil
}

// PerformanceSnapshot aggregates lifetime campaign metrics.
type PerformanceSnapshot struct {
	Spend       float64 `json:"spend"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	Conversions int64   `json:"conversions"`
	ROAS        float64 `json:"roas"`
}
