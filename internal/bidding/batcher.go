package bidding

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"nimbus-ads/internal/config/configs"
	"nimbus-ads/internal/core/domain"
	"nimbus-ads/internal/core/port"
)

// Buffer caps. A full buffer drops the oldest entries; decisions and
// outcomes are advisory records, losing some under pressure beats
// blocking the bid path.
const (
	maxBufferedDecisions = 50_000
	maxBufferedOutcomes  = 50_000
)

// Adjuster runs one serialized budget adjustment for a campaign.
// Implemented by the coordinator.
type Adjuster interface {
	AdjustFromPerformance(ctx context.Context, campaignID string, perf map[string]domain.SegmentPerformance, mode domain.OptimizationMode) (*domain.AllocationPlan, error)
}

// OutcomeBatcher moves the slow half of the bid path off the decision
// pipeline. Decisions and settled outcomes buffer in memory and flush on
// an interval: decisions go to the log, outcomes settle individually,
// and accumulated per-campaign performance drives a budget adjustment
// whose new plan is republished to the cache.
type OutcomeBatcher struct {
	cfg      configs.Bidding
	repo     port.CampaignRepository
	adjuster Adjuster
	cache    *PlanCache
	logger   *slog.Logger

	mu        sync.Mutex
	decisions []domain.BidDecision
	outcomes  []domain.BidOutcome

	// perf accumulates the observation window per campaign and segment
	// across flushes. A won auction is one paid click; WinPrice is its
	// cost.
	perf map[string]map[string]domain.SegmentPerformance
}

// NewOutcomeBatcher builds a batcher over the given sinks.
func NewOutcomeBatcher(cfg configs.Bidding, repo port.CampaignRepository, adjuster Adjuster, cache *PlanCache, logger *slog.Logger) *OutcomeBatcher {
	return &OutcomeBatcher{
		cfg:      cfg,
		repo:     repo,
		adjuster: adjuster,
		cache:    cache,
		logger:   logger,
		perf:     make(map[string]map[string]domain.SegmentPerformance),
	}
}

// AddDecision buffers one decision record for the next flush.
func (b *OutcomeBatcher) AddDecision(d domain.BidDecision) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.decisions) >= maxBufferedDecisions {
		b.decisions = b.decisions[1:]
	}
	b.decisions = append(b.decisions, d)
}

// AddOutcome buffers one settled outcome for the next flush.
func (b *OutcomeBatcher) AddOutcome(o domain.BidOutcome) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.outcomes) >= maxBufferedOutcomes {
		b.outcomes = b.outcomes[1:]
	}
	b.outcomes = append(b.outcomes, o)
}

// Run flushes on the configured interval until ctx is done, then drains
// once more so shutdown loses nothing buffered.
func (b *OutcomeBatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := b.Flush(ctx); err != nil {
				b.logger.Error("bid batch flush failed", slog.Any("error", err))
			}
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := b.Flush(drainCtx); err != nil {
				b.logger.Error("final bid batch flush failed", slog.Any("error", err))
			}
			return ctx.Err()
		}
	}
}

// Flush persists the buffered batch. Decision logging and outcome
// settlement run concurrently; adjustments follow once both land so the
// observation window never gets ahead of the settled record.
func (b *OutcomeBatcher) Flush(ctx context.Context) error {
	b.mu.Lock()
	decisions := b.decisions
	outcomes := b.outcomes
	b.decisions = nil
	b.outcomes = nil
	b.mu.Unlock()

	if len(decisions) == 0 && len(outcomes) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	if len(decisions) > 0 {
		g.Go(func() error {
			if err := b.repo.LogBidDecisions(gctx, decisions); err != nil {
				return eris.Wrap(err, "flush: log decisions")
			}
			return nil
		})
	}
	if len(outcomes) > 0 {
		g.Go(func() error {
			for _, o := range outcomes {
				if err := b.repo.SettleBid(gctx, o); err != nil {
					return eris.Wrapf(err, "flush: settle bid %s", o.RequestID)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	touched := b.accumulate(outcomes)
	b.adjustCampaigns(ctx, touched)

	b.logger.Debug("bid batch flushed",
		slog.Int("decisions", len(decisions)),
		slog.Int("outcomes", len(outcomes)),
		slog.Int("campaigns_adjusted", len(touched)))
	return nil
}

// accumulate folds won outcomes into the rolling performance window and
// returns the campaign ids that gained data.
func (b *OutcomeBatcher) accumulate(outcomes []domain.BidOutcome) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	seen := make(map[string]bool)
	for _, o := range outcomes {
		if o.Status != domain.BidWon || o.CampaignID == "" {
			continue
		}
		bySeg, ok := b.perf[o.CampaignID]
		if !ok {
			bySeg = make(map[string]domain.SegmentPerformance)
			b.perf[o.CampaignID] = bySeg
		}
		p := bySeg[o.SegmentID]
		p.SegmentID = o.SegmentID
		p.Impressions++
		p.Clicks++
		p.Spend += o.WinPrice
		p.Revenue += o.Revenue
		bySeg[o.SegmentID] = p
		seen[o.CampaignID] = true
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	return ids
}

// adjustCampaigns fans the budget adjustments out per campaign and
// republishes the resulting plans. Failures are logged and skipped; the
// next flush retries with a bigger window.
func (b *OutcomeBatcher) adjustCampaigns(ctx context.Context, campaignIDs []string) {
	g := new(errgroup.Group)
	for _, id := range campaignIDs {
		id := id
		view := b.cache.Get(id)
		if view == nil {
			continue
		}
		perf := b.performanceView(id)
		if len(perf) == 0 {
			continue
		}
		g.Go(func() error {
			plan, err := b.adjuster.AdjustFromPerformance(ctx, id, perf, view.Mode)
			if err != nil {
				b.logger.Warn("outcome-driven adjustment failed",
					slog.String("campaign_id", id),
					slog.Any("error", err))
				return nil
			}
			b.cache.Publish(CampaignView{
				CampaignID: view.CampaignID,
				Status:     view.Status,
				Mode:       view.Mode,
				Segments:   view.Segments,
				Plan:       b.stampSpend(id, *plan),
			})
			return nil
		})
	}
	_ = g.Wait()
}

// stampSpend writes the accumulated spend onto a plan copy so cached
// plans carry per-segment CurrentSpend and the campaign's TotalSpent.
func (b *OutcomeBatcher) stampSpend(campaignID string, plan domain.AllocationPlan) domain.AllocationPlan {
	b.mu.Lock()
	defer b.mu.Unlock()

	bySeg := b.perf[campaignID]
	allocs := append([]domain.SegmentAllocation(nil), plan.Allocations...)
	var total float64
	for i := range allocs {
		allocs[i].CurrentSpend = bySeg[allocs[i].SegmentID].Spend
		total += allocs[i].CurrentSpend
	}
	plan.Allocations = allocs
	plan.TotalSpent = total
	return plan
}

// performanceView copies the accumulated window for one campaign,
// keeping only segments with attributed revenue. The adjustment is
// ROAS-driven; a window where no conversion has been reported yet says
// nothing about segment health and must not read as ROAS zero.
func (b *OutcomeBatcher) performanceView(campaignID string) map[string]domain.SegmentPerformance {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]domain.SegmentPerformance, len(b.perf[campaignID]))
	for segID, p := range b.perf[campaignID] {
		if p.Revenue <= 0 {
			continue
		}
		out[segID] = p
	}
	return out
}
