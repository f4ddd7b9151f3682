package domain

import "time"

// BidStatus tracks a bid decision through the auction lifecycle.
type BidStatus string

const (
	BidSubmitted BidStatus = "submitted"
	BidRejected  BidStatus = "rejected"
	BidWon       BidStatus = "won"
	BidLost      BidStatus = "lost"
)

// UserProfile is the anonymous viewer description carried by a bid
// opportunity.
type UserProfile struct {
	UserID       string            `json:"user_id"`
	Demographics Demographics      `json:"demographics"`
	Interests    []string          `json:"interests"`
	Behaviors    []string          `json:"behaviors"`
	DeviceType   string            `json:"device_type,omitempty"`
	Location     map[string]string `json:"location,omitempty"`
}

// Inventory describes the slot being auctioned.
type Inventory struct {
	InventoryID   string  `json:"inventory_id"`
	Channel       string  `json:"channel"` // search, social, programmatic
	PlacementType string  `json:"placement_type"`
	FloorPrice    float64 `json:"floor_price"`
}

// BidOpportunity is one inbound request from the exchange. Ephemeral;
// only the resulting decision is logged.
type BidOpportunity struct {
	RequestID string      `json:"request_id"`
	Timestamp time.Time   `json:"timestamp"`
	Profile   UserProfile `json:"user_profile"`
	Inventory Inventory   `json:"inventory"`
	TimeoutMS int         `json:"timeout_ms"`
}

// BidDecision is the verdict on one opportunity. Decisions are immutable
// outcome records once logged; the auction result arrives later via a
// BidOutcome.
type BidDecision struct {
	RequestID  string
	CampaignID string
	SegmentID  string

	Bid    bool
	Price  float64
	Reason string
	Status BidStatus

	ProcessingTime time.Duration
	DecidedAt      time.Time
}

// BidOutcome reports the settled auction result for a prior decision.
type BidOutcome struct {
	RequestID  string
	CampaignID string
	SegmentID  string
	Status     BidStatus
	WinPrice   float64
	// Revenue observed downstream of the click, when attribution has
	// caught up; zero until then.
	Revenue    float64
	RecordedAt time.Time
}
