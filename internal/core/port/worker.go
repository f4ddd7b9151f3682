package port

import (
	"context"

	"nimbus-ads/internal/core/domain"
)

// Worker is a specialist consulted by the coordinator. The coordinator
// does not care whether Handle crosses a process boundary; it only sees
// the message envelope.
type Worker interface {
	// Name identifies the worker in strategy status maps.
	Name() string
	// Handle processes one task. Implementations should honour ctx but a
	// worker that overruns is simply ignored, never cancelled.
	Handle(ctx context.Context, msg domain.AgentMessage) domain.AgentResponse
	// Fallback produces the worker's fixed conservative substitute used
	// when Handle fails or misses the coordination deadline.
	Fallback(msg domain.AgentMessage) domain.AgentResponse
}
