// Package worker hosts the specialist collaborators consulted by the
// coordinator: the creative generator and the audience targeting worker.
// Both speak the same message envelope as the in-process allocation
// worker, so the coordinator does not care where they run.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"nimbus-ads/internal/core/domain"
)

// CreativeWorkerName identifies the creative generator.
const CreativeWorkerName = "creative_generator"

// Creative produces ad copy variations from campaign inputs. The
// template-driven generation here doubles as the conservative fallback
// quality bar; a model-backed generator can replace Handle without
// touching the envelope.
type Creative struct {
	logger *slog.Logger
}

// NewCreative builds the creative worker.
func NewCreative(logger *slog.Logger) *Creative {
	return &Creative{logger: logger}
}

func (c *Creative) Name() string { return CreativeWorkerName }

// Handle answers generate_creatives and refresh tasks with three
// template-based variations.
func (c *Creative) Handle(ctx context.Context, msg domain.AgentMessage) domain.AgentResponse {
	if msg.Type != domain.TaskGenerateCreatives {
		return domain.AgentResponse{
			Agent:         CreativeWorkerName,
			CorrelationID: msg.CorrelationID,
			Error:         "unknown message type: " + msg.Type,
			RespondedAt:   time.Now().UTC(),
		}
	}
	return domain.AgentResponse{
		Agent:         CreativeWorkerName,
		CorrelationID: msg.CorrelationID,
		OK:            true,
		RespondedAt:   time.Now().UTC(),
		Result:        domain.ResultPayload{Variants: templateVariants(msg.Task, false)},
	}
}

// Fallback returns the same template variants tagged as substitutes.
func (c *Creative) Fallback(msg domain.AgentMessage) domain.AgentResponse {
	return domain.AgentResponse{
		Agent:         CreativeWorkerName,
		CorrelationID: msg.CorrelationID,
		OK:            true,
		Fallback:      true,
		RespondedAt:   time.Now().UTC(),
		Result:        domain.ResultPayload{Variants: templateVariants(msg.Task, true)},
	}
}

func templateVariants(task domain.TaskPayload, fallback bool) []domain.CreativeVariant {
	product := "our product"
	if len(task.Products) > 0 {
		product = task.Products[0]
	}
	goal := titleCase(strings.ReplaceAll(task.BusinessGoal, "_", " "))
	if goal == "" {
		goal = "Grow Your Business"
	}

	headlines := []string{
		fmt.Sprintf("%s Now", goal),
		fmt.Sprintf("%s with %s", goal, product),
		fmt.Sprintf("Achieve %s with %s - Get Started Today", goal, product),
	}

	variants := make([]domain.CreativeVariant, 0, len(headlines))
	for i, h := range headlines {
		variants = append(variants, domain.CreativeVariant{
			ID:           fmt.Sprintf("var_%s_%d", task.CampaignID, i+1),
			Headline:     h,
			Body:         fmt.Sprintf("Transform your business with %s. Easy setup, powerful results.", product),
			CallToAction: "Get Started",
			Status:       "active",
			ComplianceOK: true,
			Fallback:     fallback,
		})
	}
	return variants
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
