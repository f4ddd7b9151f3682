package bidding

import (
	"context"
	"log/slog"
	"time"

	"github.com/rotisserie/eris"

	"nimbus-ads/internal/core/domain"
	"nimbus-ads/internal/core/port"
)

// CacheRefresher rebuilds the plan cache from storage on an interval.
// Campaigns are created and adjusted through other processes too; the
// TTL refresh keeps every instance serving from the current active set
// instead of only what it published itself.
type CacheRefresher struct {
	repo     port.CampaignRepository
	cache    *PlanCache
	interval time.Duration
	logger   *slog.Logger
}

// NewCacheRefresher builds a refresher over the given repository.
func NewCacheRefresher(repo port.CampaignRepository, cache *PlanCache, interval time.Duration, logger *slog.Logger) *CacheRefresher {
	return &CacheRefresher{
		repo:     repo,
		cache:    cache,
		interval: interval,
		logger:   logger,
	}
}

// Run warms the cache immediately, then refreshes on the interval until
// ctx is done. Refresh failures keep the previous generation serving.
func (r *CacheRefresher) Run(ctx context.Context) error {
	if err := r.Refresh(ctx); err != nil {
		r.logger.Error("plan cache warm-up failed", slog.Any("error", err))
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := r.Refresh(ctx); err != nil {
				r.logger.Error("plan cache refresh failed", slog.Any("error", err))
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Refresh loads the active campaigns and swaps the cache in one
// generation. Campaigns without an allocation plan are not biddable yet
// and stay out of the cache.
func (r *CacheRefresher) Refresh(ctx context.Context) error {
	campaigns, err := r.repo.QueryByStatus(ctx, domain.StatusActive)
	if err != nil {
		return eris.Wrap(err, "refresh: query active campaigns")
	}

	views := make([]CampaignView, 0, len(campaigns))
	for _, c := range campaigns {
		if c.Allocation == nil {
			continue
		}
		views = append(views, CampaignView{
			CampaignID: c.ID,
			Status:     c.Status,
			Mode:       c.OptimizationMode,
			Segments:   c.Segments,
			Plan:       *c.Allocation,
		})
	}
	r.cache.ReplaceAll(views)

	r.logger.Debug("plan cache refreshed", slog.Int("campaigns", len(views)))
	return nil
}
