// Package bidding answers exchange bid opportunities against a cached
// view of the current allocations inside a strict latency budget, and
// feeds settled outcomes back into budget adjustments.
package bidding

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"nimbus-ads/internal/config/configs"
	"nimbus-ads/internal/core/domain"
)

// Channels the engine will evaluate inventory on.
var supportedChannels = map[string]bool{
	"search":       true,
	"social":       true,
	"programmatic": true,
}

// Pending decisions retained for outcome resolution. Past the cap new
// decisions are still answered but their outcomes cannot be attributed.
const maxPending = 100_000

type pendingBid struct {
	campaignID string
	segmentID  string
	price      float64
}

// Engine is the real-time decision pipeline. Decide never touches
// persistent storage: it reads the plan cache, engine-local spend
// counters and the strategy book, all in-process. Decision records and
// outcomes leave through the batcher off the hot path.
type Engine struct {
	cfg        configs.Bidding
	cache      *PlanCache
	strategies *StrategyBook
	sink       *OutcomeBatcher
	logger     *slog.Logger
	now        func() time.Time

	spendMu sync.RWMutex
	// spend tracks today's cumulative spend in cents per campaign/segment.
	spend map[spendKey]int64

	pendingMu sync.Mutex
	pending   map[string]pendingBid
}

type spendKey struct {
	campaignID string
	segmentID  string
}

// NewEngine builds the decision engine.
func NewEngine(cfg configs.Bidding, cache *PlanCache, strategies *StrategyBook, sink *OutcomeBatcher, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:        cfg,
		cache:      cache,
		strategies: strategies,
		sink:       sink,
		logger:     logger,
		now:        time.Now,
		spend:      make(map[spendKey]int64),
		pending:    make(map[string]pendingBid),
	}
}

// Decide evaluates one opportunity. Every stage short-circuits to a
// no-bid; invalid input is a no-bid too, never an error. The returned
// decision carries the measured processing time.
func (e *Engine) Decide(ctx context.Context, opp domain.BidOpportunity) domain.BidDecision {
	start := e.now()

	if reason, ok := e.relevant(opp); !ok {
		return e.finish(start, domain.BidDecision{RequestID: opp.RequestID, Reason: reason, Status: domain.BidRejected})
	}

	view, seg, ok := e.matchSegment(opp.Profile)
	if !ok {
		return e.finish(start, domain.BidDecision{RequestID: opp.RequestID, Reason: "no matching audience segments", Status: domain.BidRejected})
	}

	alloc, ok := view.Plan.AllocationBySegment(seg.ID)
	if !ok {
		return e.finish(start, domain.BidDecision{
			RequestID: opp.RequestID, CampaignID: view.CampaignID, SegmentID: seg.ID,
			Reason: "segment has no allocation", Status: domain.BidRejected,
		})
	}

	// Conservative remaining budget: the smaller of the local spend
	// counters and what the published plan already carries.
	remaining := alloc.DailyBudget - e.spentToday(view.CampaignID, seg.ID)
	if planRemaining := alloc.RemainingToday(); planRemaining < remaining {
		remaining = planRemaining
	}
	if remaining <= 0 {
		return e.finish(start, domain.BidDecision{
			RequestID: opp.RequestID, CampaignID: view.CampaignID, SegmentID: seg.ID,
			Reason: "budget exhausted", Status: domain.BidRejected,
		})
	}

	discount := 1.0
	if remaining < alloc.DailyBudget*e.cfg.LowBudgetThreshold {
		if e.cfg.LowBudgetPolicy == configs.LowBudgetDecline {
			return e.finish(start, domain.BidDecision{
				RequestID: opp.RequestID, CampaignID: view.CampaignID, SegmentID: seg.ID,
				Reason: "declining on low remaining budget", Status: domain.BidRejected,
			})
		}
		discount = e.cfg.LowBudgetDiscountFactor
	}

	price := e.price(view.CampaignID, seg, alloc.MaxCPC, discount)
	if price < opp.Inventory.FloorPrice {
		return e.finish(start, domain.BidDecision{
			RequestID: opp.RequestID, CampaignID: view.CampaignID, SegmentID: seg.ID,
			Reason: "bid below floor price", Status: domain.BidRejected,
		})
	}

	decision := e.finish(start, domain.BidDecision{
		RequestID:  opp.RequestID,
		CampaignID: view.CampaignID,
		SegmentID:  seg.ID,
		Bid:        true,
		Price:      price,
		Reason:     "matched segment within budget",
		Status:     domain.BidSubmitted,
	})
	e.remember(decision)
	return decision
}

// RecordOutcome attributes a settled auction to its decision, updates
// the win-rate strategy and spend counters and queues the outcome for
// the adjustment loop. Revenue is the conversion value attributed to
// the impression, if known. Unknown request ids are dropped.
func (e *Engine) RecordOutcome(ctx context.Context, requestID string, status domain.BidStatus, winPrice, revenue float64) error {
	e.pendingMu.Lock()
	bid, ok := e.pending[requestID]
	if ok {
		delete(e.pending, requestID)
	}
	e.pendingMu.Unlock()
	if !ok {
		e.logger.Debug("outcome for unknown bid", slog.String("request_id", requestID))
		return nil
	}

	won := status == domain.BidWon
	e.strategies.Observe(bid.campaignID, won)
	if won && winPrice > 0 {
		e.addSpend(bid.campaignID, bid.segmentID, winPrice)
	}

	e.sink.AddOutcome(domain.BidOutcome{
		RequestID:  requestID,
		CampaignID: bid.campaignID,
		SegmentID:  bid.segmentID,
		Status:     status,
		WinPrice:   winPrice,
		Revenue:    revenue,
		RecordedAt: e.now().UTC(),
	})
	return nil
}

// relevant is the cheap first gate: structural validity, supported
// channel, sane floor and a non-empty cache.
func (e *Engine) relevant(opp domain.BidOpportunity) (string, bool) {
	switch {
	case opp.RequestID == "" || opp.Profile.UserID == "":
		return "invalid opportunity", false
	case opp.Inventory.FloorPrice < 0:
		return "invalid floor price", false
	case !supportedChannels[opp.Inventory.Channel]:
		return "unsupported channel", false
	case opp.Inventory.FloorPrice > e.cfg.MaxFloorPrice:
		return "floor price too high", false
	case len(e.cache.Active()) == 0:
		return "no active campaigns", false
	}
	return "", true
}

// matchSegment picks the highest-priority segment whose descriptor
// matches the profile. Ties on priority break on the lowest segment id
// so identical inputs always decide identically.
func (e *Engine) matchSegment(profile domain.UserProfile) (*CampaignView, domain.Segment, bool) {
	var (
		bestView *CampaignView
		bestSeg  domain.Segment
		found    bool
	)
	for _, view := range e.cache.Active() {
		for _, seg := range view.Segments {
			score := matchScore(profile, seg)
			if score < e.cfg.MinMatchScore {
				continue
			}
			if seg.ConversionProbability*score < e.cfg.MinConversionProbability {
				continue
			}
			if !found ||
				seg.PriorityScore > bestSeg.PriorityScore ||
				(seg.PriorityScore == bestSeg.PriorityScore && seg.ID < bestSeg.ID) {
				bestView, bestSeg, found = view, seg, true
			}
		}
	}
	return bestView, bestSeg, found
}

// price shades the segment ceiling by conversion confidence, the
// win-rate strategy factor and any low-budget discount. The ceiling is
// a hard cap.
func (e *Engine) price(campaignID string, seg domain.Segment, maxCPC, discount float64) float64 {
	price := maxCPC * (0.5 + seg.ConversionProbability)
	price *= e.strategies.Factor(campaignID)
	price *= discount
	if price > maxCPC {
		price = maxCPC
	}
	return math.Round(price*100) / 100
}

func (e *Engine) finish(start time.Time, d domain.BidDecision) domain.BidDecision {
	d.ProcessingTime = e.now().Sub(start)
	d.DecidedAt = e.now().UTC()

	if d.ProcessingTime > e.cfg.LatencyBudget {
		e.logger.Warn("bid decision exceeded latency budget",
			slog.String("request_id", d.RequestID),
			slog.Duration("took", d.ProcessingTime),
			slog.Duration("budget", e.cfg.LatencyBudget))
	}

	e.sink.AddDecision(d)
	return d
}

func (e *Engine) remember(d domain.BidDecision) {
	e.pendingMu.Lock()
	defer e.pendingMu.Unlock()
	if len(e.pending) >= maxPending {
		return
	}
	e.pending[d.RequestID] = pendingBid{campaignID: d.CampaignID, segmentID: d.SegmentID, price: d.Price}
}

func (e *Engine) spentToday(campaignID, segmentID string) float64 {
	e.spendMu.RLock()
	defer e.spendMu.RUnlock()
	return float64(e.spend[spendKey{campaignID, segmentID}]) / 100
}

func (e *Engine) addSpend(campaignID, segmentID string, amount float64) {
	e.spendMu.Lock()
	defer e.spendMu.Unlock()
	e.spend[spendKey{campaignID, segmentID}] += int64(math.Round(amount * 100))
}

// ResetDailySpend clears the day's spend counters. Called by the daily
// rollover.
func (e *Engine) ResetDailySpend() {
	e.spendMu.Lock()
	defer e.spendMu.Unlock()
	e.spend = make(map[spendKey]int64)
}

// matchScore weighs demographics 40%, interest overlap 30% and behavior
// overlap 30%.
func matchScore(profile domain.UserProfile, seg domain.Segment) float64 {
	var demo float64
	if profile.Demographics.AgeRange != "" && seg.Demographics.AgeRange != "" {
		if profile.Demographics.AgeRange == seg.Demographics.AgeRange {
			demo += 0.5
		} else if adjacentAgeRanges(profile.Demographics.AgeRange, seg.Demographics.AgeRange) {
			demo += 0.25
		}
	}
	if seg.Demographics.Gender == "all" || (profile.Demographics.Gender != "" && profile.Demographics.Gender == seg.Demographics.Gender) {
		demo += 0.5
	}

	score := demo * 0.4
	score += overlap(profile.Interests, seg.Interests) * 0.3
	score += overlap(profile.Behaviors, seg.Behaviors) * 0.3
	return math.Min(1.0, score)
}

// overlap is the fraction of wanted entries present in have.
func overlap(have, want []string) float64 {
	if len(have) == 0 || len(want) == 0 {
		return 0
	}
	set := make(map[string]bool, len(have))
	for _, h := range have {
		set[h] = true
	}
	var n int
	for _, w := range want {
		if set[w] {
			n++
		}
	}
	return float64(n) / float64(len(want))
}

var ageOrder = []string{"18-24", "25-34", "30-45", "35-50", "45-60", "50-65", "60+"}

func adjacentAgeRanges(a, b string) bool {
	ia, ib := -1, -1
	for i, r := range ageOrder {
		if r == a {
			ia = i
		}
		if r == b {
			ib = i
		}
	}
	if ia < 0 || ib < 0 {
		return false
	}
	if d := ia - ib; d == 1 || d == -1 {
		return true
	}
	return false
}
