package configs

// Budget holds the allocation engine's knobs. Defaults follow the
// economics the platform was tuned with: a $50 average conversion value
// against a 3.0 target ROAS.
type Budget struct {
	// TestFraction is the share of the total budget reserved for testing
	// new audiences and creatives.
	TestFraction float64 `env:"TEST_FRACTION" envDefault:"0.20"`

	// ConversionValue is the estimated value of one conversion in USD.
	ConversionValue float64 `env:"CONVERSION_VALUE" envDefault:"50"`
	// TargetROAS is the return multiple bids are priced against.
	TargetROAS float64 `env:"TARGET_ROAS" envDefault:"3.0"`

	// BidFloor and BidCap bound every max CPC.
	BidFloor float64 `env:"BID_FLOOR" envDefault:"0.50"`
	BidCap   float64 `env:"BID_CAP" envDefault:"10.00"`

	// ScaleUpROAS and ScaleDownROAS are the adjustment thresholds.
	ScaleUpROAS   float64 `env:"SCALE_UP_ROAS" envDefault:"4.0"`
	ScaleDownROAS float64 `env:"SCALE_DOWN_ROAS" envDefault:"1.0"`
	// MinSampleClicks gates adjustments so noise is not reacted to.
	MinSampleClicks int64 `env:"MIN_SAMPLE_CLICKS" envDefault:"50"`
	// DailyFloor is the minimum per-segment daily budget once active.
	DailyFloor float64 `env:"DAILY_FLOOR" envDefault:"5.00"`
}
