package allocation

import (
	"context"
	"log/slog"
	"time"

	"nimbus-ads/internal/core/domain"
)

// WorkerName identifies the allocation worker in strategy status maps.
const WorkerName = "budget_optimizer"

// Worker adapts the engine to the coordinator's message envelope so it
// can be consulted like any other specialist.
type Worker struct {
	engine *Engine
	logger *slog.Logger
}

// NewWorker wraps an engine for coordination.
func NewWorker(engine *Engine, logger *slog.Logger) *Worker {
	return &Worker{engine: engine, logger: logger}
}

func (w *Worker) Name() string { return WorkerName }

// Handle answers allocate_budget and adjust_budget tasks. Any other
// message type is a failed response, which the coordinator converts to
// the fallback.
func (w *Worker) Handle(ctx context.Context, msg domain.AgentMessage) domain.AgentResponse {
	resp := domain.AgentResponse{
		Agent:         WorkerName,
		CorrelationID: msg.CorrelationID,
		RespondedAt:   time.Now().UTC(),
	}

	switch msg.Type {
	case domain.TaskAllocateBudget:
		plan, err := w.engine.Allocate(msg.Task.CampaignID, msg.Task.MonthlyBudget, msg.Task.Segments)
		if err != nil {
			w.logger.Warn("budget allocation failed",
				slog.String("campaign_id", msg.Task.CampaignID),
				slog.String("correlation_id", msg.CorrelationID),
				slog.Any("error", err))
			resp.Error = err.Error()
			return resp
		}
		resp.OK = true
		resp.Result.Plan = plan

	case domain.TaskAdjustBudget:
		if msg.Task.Plan == nil {
			resp.Error = "adjust_budget: no current plan"
			return resp
		}
		resp.OK = true
		resp.Result.Plan = w.engine.Adjust(msg.Task.Plan, msg.Task.Performance, msg.Task.Mode)

	default:
		resp.Error = "unknown message type: " + msg.Type
	}
	return resp
}

// Fallback returns the conservative equal-split plan, tagged so
// downstream consumers know a substitute was used.
func (w *Worker) Fallback(msg domain.AgentMessage) domain.AgentResponse {
	return domain.AgentResponse{
		Agent:         WorkerName,
		CorrelationID: msg.CorrelationID,
		OK:            true,
		Fallback:      true,
		RespondedAt:   time.Now().UTC(),
		Result: domain.ResultPayload{
			Plan: w.engine.FallbackPlan(msg.Task.CampaignID, msg.Task.MonthlyBudget),
		},
	}
}
