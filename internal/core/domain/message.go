package domain

import "time"

// Message types understood by the specialist workers.
const (
	TaskGenerateCreatives = "generate_creatives"
	TaskIdentifyAudiences = "identify_audiences"
	TaskAllocateBudget    = "allocate_budget"
	TaskAdjustBudget      = "adjust_budget"
)

// AgentMessage is the correlation-id tagged envelope the coordinator
// sends to a worker. It exists only for one coordination round and is
// never persisted.
type AgentMessage struct {
	Type          string
	Sender        string
	CorrelationID string
	SentAt        time.Time

	Task TaskPayload
}

// TaskPayload carries the campaign context a worker needs. Fields beyond
// the campaign basics are set per message type.
type TaskPayload struct {
	CampaignID     string
	BusinessGoal   string
	MonthlyBudget  float64
	TargetAudience string
	Products       []string
	Mode           OptimizationMode

	// Allocation inputs, set for budget tasks.
	Segments    []Segment
	Plan        *AllocationPlan
	Performance map[string]SegmentPerformance
}

// AgentResponse is a worker's reply. Exactly one of the Result fields is
// populated depending on the worker type. A failed call carries OK=false
// and an error string; the coordinator substitutes the worker's fallback
// and tags the sub-result Fallback=true.
type AgentResponse struct {
	Agent         string
	CorrelationID string
	OK            bool
	Error         string
	Fallback      bool
	RespondedAt   time.Time

	Result ResultPayload
}

// ResultPayload is the union of worker outputs.
type ResultPayload struct {
	Variants []CreativeVariant
	Segments []Segment
	Plan     *AllocationPlan
}

// SegmentPerformance is the per-segment observation window fed into
// budget adjustments.
type SegmentPerformance struct {
	SegmentID   string  `json:"segment_id"`
	Impressions int64   `json:"impressions"`
	Clicks      int64   `json:"clicks"`
	Conversions int64   `json:"conversions"`
	Spend       float64 `json:"spend"`
	Revenue     float64 `json:"revenue"`
}

// ROAS is revenue over spend; zero when nothing was spent.
func (p SegmentPerformance) ROAS() float64 {
	if p.Spend <= 0 {
		return 0
	}
	return p.Revenue / p.Spend
}
