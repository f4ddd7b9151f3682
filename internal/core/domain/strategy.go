package domain

import "time"

// CreativeVariant is one ad variation produced by the creative worker.
type CreativeVariant struct {
	ID           string `json:"id"`
	Headline     string `json:"headline"`
	Body         string `json:"body"`
	CallToAction string `json:"call_to_action"`
	Status       string `json:"status"`
	ComplianceOK bool   `json:"compliance_ok"`
	Fallback     bool   `json:"fallback,omitempty"`
}

// WorkerStatus records how one specialist worker fared during a
// coordination round.
type WorkerStatus struct {
	OK       bool
	Fallback bool
	Error    string
}

// CampaignStrategy is the synthesized output of one coordination round:
// the merged worker results plus launch estimation.
type CampaignStrategy struct {
	CampaignID    string
	CorrelationID string

	Variants   []CreativeVariant
	Segments   []Segment
	Allocation *AllocationPlan

	Workers         map[string]WorkerStatus
	RequiresReview  bool
	EstimatedLaunch string
	SynthesizedAt   time.Time
}

// Optimization action types routed by the coordinator.
type ActionType string

const (
	ActionPauseSegment    ActionType = "pause_segment"
	ActionPauseVariant    ActionType = "pause_variant"
	ActionScaleSegment    ActionType = "scale_segment"
	ActionAdjustBudget    ActionType = "adjust_budget"
	ActionRefreshCreative ActionType = "refresh_creative"
)

// OptimizationAction is one externally-decided change to apply.
type OptimizationAction struct {
	Type      ActionType `json:"type"`
	SegmentID string     `json:"segment_id,omitempty"`
	VariantID string     `json:"variant_id,omitempty"`
	// Performance backs scale/adjust actions; the allocation engine
	// decides the actual multipliers.
	Performance map[string]SegmentPerformance `json:"performance,omitempty"`
}

// ActionOutcome is the per-action result; failures do not stop the
// remaining actions.
type ActionOutcome struct {
	Type     ActionType `json:"type"`
	TargetID string     `json:"target_id,omitempty"`
	OK       bool       `json:"ok"`
	Fallback bool       `json:"fallback,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// OptimizationResult aggregates the outcomes of one optimization request.
type OptimizationResult struct {
	CampaignID    string          `json:"campaign_id"`
	CorrelationID string          `json:"correlation_id"`
	Applied       []ActionOutcome `json:"applied"`
	AppliedAt     time.Time       `json:"applied_at"`
}
