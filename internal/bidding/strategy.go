package bidding

import (
	"sync"

	"nimbus-ads/internal/config/configs"
)

// Strategy adjustment cadence and factor bounds.
const (
	strategyAdjustEvery = 100
	minAdjustFactor     = 0.5
	maxAdjustFactor     = 2.0
)

// campaignStrategy tracks rolling win rate and the resulting price
// shading factor for one campaign.
type campaignStrategy struct {
	totalBids int64
	wins      int64
	factor    float64
}

func (s *campaignStrategy) winRate() float64 {
	if s.totalBids == 0 {
		return 0
	}
	return float64(s.wins) / float64(s.totalBids)
}

// StrategyBook nudges future bid prices toward the target win-rate band.
// A win rate below the up-nudge threshold raises the factor 5%, above
// the band's ceiling lowers it 5%; adjustments happen every 100 bids so
// single auctions do not whipsaw prices.
type StrategyBook struct {
	cfg configs.Bidding

	mu         sync.Mutex
	byCampaign map[string]*campaignStrategy
}

// NewStrategyBook builds an empty book.
func NewStrategyBook(cfg configs.Bidding) *StrategyBook {
	return &StrategyBook{cfg: cfg, byCampaign: make(map[string]*campaignStrategy)}
}

// Factor returns the current shading factor for a campaign.
func (b *StrategyBook) Factor(campaignID string) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.byCampaign[campaignID]; ok {
		return s.factor
	}
	return 1.0
}

// Observe records one settled auction and revisits the factor on the
// adjustment cadence. Returns the factor in force after the observation.
func (b *StrategyBook) Observe(campaignID string, won bool) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.byCampaign[campaignID]
	if !ok {
		s = &campaignStrategy{factor: 1.0}
		b.byCampaign[campaignID] = s
	}

	s.totalBids++
	if won {
		s.wins++
	}

	if s.totalBids >= strategyAdjustEvery && s.totalBids%strategyAdjustEvery == 0 {
		switch rate := s.winRate(); {
		case rate < b.cfg.NudgeUpBelow:
			s.factor *= 1.05
			if s.factor > maxAdjustFactor {
				s.factor = maxAdjustFactor
			}
		case rate > b.cfg.WinRateMax:
			s.factor *= 0.95
			if s.factor < minAdjustFactor {
				s.factor = minAdjustFactor
			}
		}
	}
	return s.factor
}

// WinRate reports the campaign's rolling win rate.
func (b *StrategyBook) WinRate(campaignID string) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.byCampaign[campaignID]; ok {
		return s.winRate()
	}
	return 0
}
