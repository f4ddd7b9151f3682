package configs

import "time"

// Rate configures admission control. The standard path uses a sliding
// per-account window; the bid path uses a token-bucket throughput guard
// because its limiting factor is the latency budget, not a quota.
type Rate struct {
	// Ceiling is the maximum requests per account within Window on the
	// standard path.
	Ceiling int `env:"CEILING" envDefault:"100"`
	// Window is the trailing admission window.
	Window time.Duration `env:"WINDOW" envDefault:"60s"`

	// BidPerSecond is the sustained rate of the bid-path guard.
	BidPerSecond float64 `env:"BID_PER_SECOND" envDefault:"5000"`
	// BidBurst is the bucket size of the bid-path guard.
	BidBurst int `env:"BID_BURST" envDefault:"1000"`
}
