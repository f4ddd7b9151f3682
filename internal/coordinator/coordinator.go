// Package coordinator fans campaign work out to the specialist workers,
// bounds their response time with a single deadline, substitutes
// per-worker fallbacks on failure and synthesizes the results into one
// campaign strategy.
package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"nimbus-ads/internal/allocation"
	"nimbus-ads/internal/core/domain"
	"nimbus-ads/internal/core/port"
	"nimbus-ads/internal/worker"
)

const senderName = "campaign_orchestrator"

// Coordinator drives one coordination round per campaign request. Worker
// calls run in parallel under a global deadline; a worker that errors or
// overruns contributes its fallback instead, tagged so the strategy
// records the degradation. Only persistence loss fails a round.
type Coordinator struct {
	workers  []port.Worker
	repo     port.CampaignRepository
	logger   *slog.Logger
	deadline time.Duration

	// adjustLocks serializes allocation adjustments per campaign so two
	// renormalizations never race the budget tolerance.
	adjustLocks sync.Map // campaignID -> *sync.Mutex
}

// New builds a coordinator over the given specialists.
func New(workers []port.Worker, repo port.CampaignRepository, deadline time.Duration, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		workers:  workers,
		repo:     repo,
		logger:   logger,
		deadline: deadline,
	}
}

// Coordinate dispatches one task per worker concurrently, joins on the
// deadline and synthesizes the collected result-or-fallback set into a
// persisted strategy. Workers that miss the deadline are not cancelled;
// their late results are simply discarded.
func (c *Coordinator) Coordinate(ctx context.Context, campaign *domain.Campaign) (*domain.CampaignStrategy, error) {
	correlationID := uuid.NewString()
	task := taskFor(campaign)

	c.logger.Info("coordinating campaign request",
		slog.String("campaign_id", campaign.ID),
		slog.String("correlation_id", correlationID),
		slog.Float64("budget", campaign.MonthlyBudget))

	deadlineCtx, cancel := context.WithTimeout(ctx, c.deadline)
	defer cancel()

	// The allocation worker consumes the audience worker's segments, so
	// its task waits on segCh while the other consults are in flight.
	// Everything still joins on the one deadline.
	segCh := make(chan []domain.Segment, 1)
	if c.workerByName(worker.AudienceWorkerName) == nil {
		segCh <- campaign.Segments
	}

	responses := make([]domain.AgentResponse, len(c.workers))
	g := new(errgroup.Group)
	for i, w := range c.workers {
		i, w := i, w
		msg := domain.AgentMessage{
			Type:          messageTypeFor(w.Name()),
			Sender:        senderName,
			CorrelationID: correlationID,
			SentAt:        time.Now().UTC(),
			Task:          task,
		}
		g.Go(func() error {
			switch w.Name() {
			case worker.AudienceWorkerName:
				resp := c.consult(deadlineCtx, w, msg)
				responses[i] = resp
				segCh <- resp.Result.Segments
			case allocation.WorkerName:
				select {
				case segs := <-segCh:
					msg.Task.Segments = segs
				case <-deadlineCtx.Done():
				}
				responses[i] = c.consult(deadlineCtx, w, msg)
			default:
				responses[i] = c.consult(deadlineCtx, w, msg)
			}
			return nil
		})
	}
	// Workers never propagate errors; failures become fallbacks.
	_ = g.Wait()

	strategy, err := c.Synthesize(ctx, campaign, correlationID, responses)
	if err != nil {
		return nil, err
	}
	return strategy, nil
}

// consult waits for one worker up to the shared deadline. The actual
// call runs on a detached context so an overrunning worker is never
// force-cancelled mid-write; the buffered channel lets its late result
// be dropped without leaking the goroutine.
func (c *Coordinator) consult(ctx context.Context, w port.Worker, msg domain.AgentMessage) domain.AgentResponse {
	resCh := make(chan domain.AgentResponse, 1)
	go func() {
		resCh <- w.Handle(context.WithoutCancel(ctx), msg)
	}()

	select {
	case resp := <-resCh:
		if resp.OK {
			return resp
		}
		c.logger.Warn("worker failed, applying fallback",
			slog.String("worker", w.Name()),
			slog.String("correlation_id", msg.CorrelationID),
			slog.String("error", resp.Error))
		fb := w.Fallback(msg)
		fb.Error = resp.Error
		return fb
	case <-ctx.Done():
		c.logger.Warn("worker missed deadline, applying fallback",
			slog.String("worker", w.Name()),
			slog.String("correlation_id", msg.CorrelationID),
			slog.Duration("deadline", c.deadline))
		fb := w.Fallback(msg)
		fb.Error = "deadline exceeded"
		return fb
	}
}

// Synthesize merges the worker outputs into one strategy, estimates the
// launch timeline and persists campaign and allocation. Persistence
// failure is the only hard error; the caller may retry creation with the
// same idempotency context.
func (c *Coordinator) Synthesize(ctx context.Context, campaign *domain.Campaign, correlationID string, responses []domain.AgentResponse) (*domain.CampaignStrategy, error) {
	strategy := &domain.CampaignStrategy{
		CampaignID:    campaign.ID,
		CorrelationID: correlationID,
		Workers:       make(map[string]domain.WorkerStatus, len(responses)),
		SynthesizedAt: time.Now().UTC(),
	}

	for _, resp := range responses {
		strategy.Workers[resp.Agent] = domain.WorkerStatus{
			OK:       resp.OK && !resp.Fallback,
			Fallback: resp.Fallback,
			Error:    resp.Error,
		}
		if resp.Fallback {
			strategy.RequiresReview = true
		}
		if len(resp.Result.Variants) > 0 {
			strategy.Variants = resp.Result.Variants
		}
		if len(resp.Result.Segments) > 0 {
			strategy.Segments = resp.Result.Segments
		}
		if resp.Result.Plan != nil {
			strategy.Allocation = resp.Result.Plan
		}
	}

	strategy.EstimatedLaunch = estimateLaunch(len(strategy.Variants), len(strategy.Segments), strategy.RequiresReview)

	campaign.Variants = strategy.Variants
	campaign.Segments = strategy.Segments
	campaign.Allocation = strategy.Allocation
	campaign.Status = domain.StatusDraft
	campaign.UpdatedAt = time.Now().UTC()

	if err := c.repo.PutCampaign(ctx, campaign); err != nil {
		return nil, eris.Wrap(err, "synthesize: persist campaign")
	}
	if strategy.Allocation != nil {
		if err := c.repo.PutAllocation(ctx, strategy.Allocation); err != nil {
			return nil, eris.Wrap(err, "synthesize: persist allocation")
		}
	}

	c.logger.Info("campaign strategy synthesized",
		slog.String("campaign_id", campaign.ID),
		slog.String("correlation_id", correlationID),
		slog.Int("variants", len(strategy.Variants)),
		slog.Int("segments", len(strategy.Segments)),
		slog.Bool("requires_review", strategy.RequiresReview))

	return strategy, nil
}

// HandleOptimization applies externally-decided actions, routing each to
// its owning worker and continuing past individual failures.
func (c *Coordinator) HandleOptimization(ctx context.Context, campaignID string, actions []domain.OptimizationAction, mode domain.OptimizationMode) (*domain.OptimizationResult, error) {
	correlationID := uuid.NewString()

	campaign, err := c.repo.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, eris.Wrapf(err, "optimize: load campaign %s", campaignID)
	}

	result := &domain.OptimizationResult{
		CampaignID:    campaignID,
		CorrelationID: correlationID,
		AppliedAt:     time.Now().UTC(),
	}

	for _, action := range actions {
		var outcome domain.ActionOutcome
		switch action.Type {
		case domain.ActionPauseSegment, domain.ActionPauseVariant:
			outcome = c.applyPause(ctx, campaign, action)
		case domain.ActionScaleSegment, domain.ActionAdjustBudget:
			outcome = c.applyBudgetAction(ctx, campaign, action, mode)
		case domain.ActionRefreshCreative:
			outcome = c.applyCreativeRefresh(ctx, campaign, action)
		default:
			outcome = domain.ActionOutcome{Type: action.Type, Error: "unknown action type"}
		}
		result.Applied = append(result.Applied, outcome)
	}

	now := time.Now().UTC()
	campaign.LastOptimizedAt = &now
	campaign.UpdatedAt = now
	if err := c.repo.PutCampaign(ctx, campaign); err != nil {
		return nil, eris.Wrap(err, "optimize: persist campaign")
	}

	c.logger.Info("optimization applied",
		slog.String("campaign_id", campaignID),
		slog.String("correlation_id", correlationID),
		slog.Int("actions", len(result.Applied)))

	return result, nil
}

// AdjustFromPerformance runs one serialized allocation adjustment for a
// campaign. Used by both explicit optimization actions and the bid
// outcome loop; concurrent callers queue on the campaign's lock instead
// of racing the renormalization.
func (c *Coordinator) AdjustFromPerformance(ctx context.Context, campaignID string, perf map[string]domain.SegmentPerformance, mode domain.OptimizationMode) (*domain.AllocationPlan, error) {
	mu := c.lockFor(campaignID)
	mu.Lock()
	defer mu.Unlock()

	plan, err := c.repo.GetAllocation(ctx, campaignID)
	if err != nil {
		return nil, eris.Wrapf(err, "adjust: load allocation %s", campaignID)
	}

	w := c.workerByName(allocation.WorkerName)
	if w == nil {
		return nil, eris.New("adjust: allocation worker not registered")
	}

	msg := domain.AgentMessage{
		Type:          domain.TaskAdjustBudget,
		Sender:        senderName,
		CorrelationID: uuid.NewString(),
		SentAt:        time.Now().UTC(),
		Task: domain.TaskPayload{
			CampaignID:  campaignID,
			Mode:        mode,
			Plan:        plan,
			Performance: perf,
		},
	}
	resp := w.Handle(ctx, msg)
	if !resp.OK || resp.Result.Plan == nil {
		return nil, eris.Errorf("adjust: allocation worker failed: %s", resp.Error)
	}

	if err := c.repo.PutAllocation(ctx, resp.Result.Plan); err != nil {
		return nil, eris.Wrap(err, "adjust: persist allocation")
	}
	return resp.Result.Plan, nil
}

func (c *Coordinator) applyPause(ctx context.Context, campaign *domain.Campaign, action domain.OptimizationAction) domain.ActionOutcome {
	outcome := domain.ActionOutcome{Type: action.Type}
	switch action.Type {
	case domain.ActionPauseVariant:
		outcome.TargetID = action.VariantID
		for i := range campaign.Variants {
			if campaign.Variants[i].ID == action.VariantID {
				campaign.Variants[i].Status = "paused"
				outcome.OK = true
				return outcome
			}
		}
		outcome.Error = "variant not found"
	case domain.ActionPauseSegment:
		outcome.TargetID = action.SegmentID
		if campaign.Allocation == nil {
			outcome.Error = "no allocation"
			return outcome
		}
		for i := range campaign.Allocation.Allocations {
			if campaign.Allocation.Allocations[i].SegmentID == action.SegmentID {
				campaign.Allocation.Allocations[i].DailyBudget = 0
				outcome.OK = true
				return outcome
			}
		}
		outcome.Error = "segment not found"
	}
	return outcome
}

func (c *Coordinator) applyBudgetAction(ctx context.Context, campaign *domain.Campaign, action domain.OptimizationAction, mode domain.OptimizationMode) domain.ActionOutcome {
	outcome := domain.ActionOutcome{Type: action.Type, TargetID: action.SegmentID}
	plan, err := c.AdjustFromPerformance(ctx, campaign.ID, action.Performance, mode)
	if err != nil {
		c.logger.Warn("budget action failed",
			slog.String("campaign_id", campaign.ID),
			slog.Any("error", err))
		outcome.Error = err.Error()
		return outcome
	}
	campaign.Allocation = plan
	outcome.OK = true
	return outcome
}

func (c *Coordinator) applyCreativeRefresh(ctx context.Context, campaign *domain.Campaign, action domain.OptimizationAction) domain.ActionOutcome {
	outcome := domain.ActionOutcome{Type: action.Type, TargetID: action.VariantID}
	w := c.workerByName(worker.CreativeWorkerName)
	if w == nil {
		outcome.Error = "creative worker not registered"
		return outcome
	}

	msg := domain.AgentMessage{
		Type:          domain.TaskGenerateCreatives,
		Sender:        senderName,
		CorrelationID: uuid.NewString(),
		SentAt:        time.Now().UTC(),
		Task:          taskFor(campaign),
	}
	resp := w.Handle(ctx, msg)
	if !resp.OK {
		outcome.Error = resp.Error
		return outcome
	}
	campaign.Variants = append(campaign.Variants, resp.Result.Variants...)
	outcome.OK = true
	outcome.Fallback = resp.Fallback
	return outcome
}

func (c *Coordinator) workerByName(name string) port.Worker {
	for _, w := range c.workers {
		if w.Name() == name {
			return w
		}
	}
	return nil
}

func (c *Coordinator) lockFor(campaignID string) *sync.Mutex {
	v, _ := c.adjustLocks.LoadOrStore(campaignID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func taskFor(campaign *domain.Campaign) domain.TaskPayload {
	return domain.TaskPayload{
		CampaignID:     campaign.ID,
		BusinessGoal:   campaign.BusinessGoal,
		MonthlyBudget:  campaign.MonthlyBudget,
		TargetAudience: campaign.TargetAudience,
		Products:       campaign.Products,
		Mode:           campaign.OptimizationMode,
		Segments:       campaign.Segments,
	}
}

func messageTypeFor(workerName string) string {
	switch workerName {
	case worker.CreativeWorkerName:
		return domain.TaskGenerateCreatives
	case worker.AudienceWorkerName:
		return domain.TaskIdentifyAudiences
	case allocation.WorkerName:
		return domain.TaskAllocateBudget
	default:
		return workerName
	}
}

// estimateLaunch mirrors the launch heuristics the review team works to:
// richer strategies need more setup, review adds a manual pass.
func estimateLaunch(variants, segments int, requiresReview bool) string {
	switch {
	case requiresReview:
		return "48-72 hours (requires review)"
	case variants >= 5 && segments >= 3:
		return "24-48 hours"
	case variants >= 3 || segments >= 2:
		return "12-24 hours"
	default:
		return "6-12 hours"
	}
}
