package domain

// SegmentSize classifies the estimated audience size of a segment.
type SegmentSize string

const (
	SizeSmall  SegmentSize = "small"  // < 100k users
	SizeMedium SegmentSize = "medium" // 100k - 1M users
	SizeLarge  SegmentSize = "large"  // > 1M users
)

// SizeMultiplier returns the bid-ceiling multiplier for the size class.
// Large segments carry more competitive pressure and get a higher ceiling.
func (s SegmentSize) SizeMultiplier() float64 {
	switch s {
	case SizeLarge:
		return 1.3
	case SizeSmall:
		return 0.8
	default:
		return 1.0
	}
}

// Demographics describes who a segment targets. Gender "all" matches any
// profile.
type Demographics struct {
	AgeRange string `json:"age_range"`
	Gender   string `json:"gender"`
	Income   string `json:"income,omitempty"`
}

// Segment is a scored audience slice. Segments are immutable once
// produced for a creation cycle and replaced wholesale on re-targeting.
type Segment struct {
	ID         string `json:"id"`
	CampaignID string `json:"campaign_id"`
	Name       string `json:"name"`

	Demographics Demographics `json:"demographics"`
	Interests    []string     `json:"interests,omitempty"`
	Behaviors    []string     `json:"behaviors,omitempty"`

	Size                  SegmentSize `json:"size"`
	ConversionProbability float64     `json:"conversion_probability"` // [0,1]
	PriorityScore         float64     `json:"priority_score"`         // [0,1]

	// Fallback marks a segment produced by the conservative substitute
	// when the audience worker failed or timed out.
	Fallback bool `json:"fallback,omitempty"`
}
