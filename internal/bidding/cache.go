package bidding

import (
	"sort"
	"sync"
	"sync/atomic"

	"nimbus-ads/internal/core/domain"
)

// CampaignView is the slice of campaign state the decision pipeline
// needs: active segments sorted for deterministic matching and the
// current allocation. Views are immutable once published.
type CampaignView struct {
	CampaignID string
	Status     domain.CampaignStatus
	Mode       domain.OptimizationMode
	Segments   []domain.Segment
	Plan       domain.AllocationPlan
}

// snapshot is one immutable generation of the cache.
type snapshot struct {
	campaigns map[string]*CampaignView
}

// PlanCache gives the bid path lock-free reads of the current
// allocations. The allocation engine's output is published by a single
// writer as an atomic swap of a whole snapshot; readers observe either
// the old or the new generation, never a partial write.
type PlanCache struct {
	writeMu sync.Mutex
	current atomic.Pointer[snapshot]
}

// NewPlanCache builds an empty cache.
func NewPlanCache() *PlanCache {
	c := &PlanCache{}
	c.current.Store(&snapshot{campaigns: map[string]*CampaignView{}})
	return c
}

// normalize gives a view a stable segment order: priority descending,
// id ascending on ties.
func normalize(view CampaignView) CampaignView {
	segs := append([]domain.Segment(nil), view.Segments...)
	sort.Slice(segs, func(i, j int) bool {
		if segs[i].PriorityScore != segs[j].PriorityScore {
			return segs[i].PriorityScore > segs[j].PriorityScore
		}
		return segs[i].ID < segs[j].ID
	})
	view.Segments = segs
	return view
}

// Publish installs or replaces a campaign's view. Copy-on-write: the
// previous generation stays valid for in-flight readers.
func (c *PlanCache) Publish(view CampaignView) {
	view = normalize(view)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	old := c.current.Load()
	next := &snapshot{campaigns: make(map[string]*CampaignView, len(old.campaigns)+1)}
	for id, v := range old.campaigns {
		next.campaigns[id] = v
	}
	next.campaigns[view.CampaignID] = &view
	c.current.Store(next)
}

// ReplaceAll swaps the whole cache for a fresh generation built from
// the given views. Campaigns absent from views disappear; in-flight
// readers keep the snapshot they already hold.
func (c *PlanCache) ReplaceAll(views []CampaignView) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	next := &snapshot{campaigns: make(map[string]*CampaignView, len(views))}
	for _, view := range views {
		v := normalize(view)
		next.campaigns[v.CampaignID] = &v
	}
	c.current.Store(next)
}

// Drop removes a campaign from the cache.
func (c *PlanCache) Drop(campaignID string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	old := c.current.Load()
	if _, ok := old.campaigns[campaignID]; !ok {
		return
	}
	next := &snapshot{campaigns: make(map[string]*CampaignView, len(old.campaigns))}
	for id, v := range old.campaigns {
		if id != campaignID {
			next.campaigns[id] = v
		}
	}
	c.current.Store(next)
}

// Get returns the view for one campaign, nil when absent.
func (c *PlanCache) Get(campaignID string) *CampaignView {
	return c.current.Load().campaigns[campaignID]
}

// Active returns the views of all active campaigns in the current
// generation. The returned views must not be mutated.
func (c *PlanCache) Active() []*CampaignView {
	snap := c.current.Load()
	views := make([]*CampaignView, 0, len(snap.campaigns))
	for _, v := range snap.campaigns {
		if v.Status == domain.StatusActive {
			views = append(views, v)
		}
	}
	return views
}

// Len reports the number of cached campaigns.
func (c *PlanCache) Len() int {
	return len(c.current.Load().campaigns)
}
