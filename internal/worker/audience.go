package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"nimbus-ads/internal/core/domain"
)

// AudienceWorkerName identifies the audience targeting worker.
const AudienceWorkerName = "audience_targeting"

// Audience derives scored segments from the campaign's target-audience
// descriptor. The heuristics only produce allocation inputs; discovering
// better segments is a concern of whatever replaces Handle, not of the
// orchestration core.
type Audience struct {
	logger *slog.Logger
}

// NewAudience builds the audience worker.
func NewAudience(logger *slog.Logger) *Audience {
	return &Audience{logger: logger}
}

func (a *Audience) Name() string { return AudienceWorkerName }

// Handle answers identify_audiences tasks with a core segment, a lookalike
// expansion and an interest-driven slice.
func (a *Audience) Handle(ctx context.Context, msg domain.AgentMessage) domain.AgentResponse {
	if msg.Type != domain.TaskIdentifyAudiences {
		return domain.AgentResponse{
			Agent:         AudienceWorkerName,
			CorrelationID: msg.CorrelationID,
			Error:         "unknown message type: " + msg.Type,
			RespondedAt:   time.Now().UTC(),
		}
	}

	interests := extractInterests(msg.Task)
	campaignID := msg.Task.CampaignID

	segments := []domain.Segment{
		{
			ID:                    fmt.Sprintf("seg_%s_core", campaignID),
			CampaignID:            campaignID,
			Name:                  "Core Audience",
			Demographics:          domain.Demographics{AgeRange: "30-45", Gender: "all"},
			Interests:             interests,
			Behaviors:             []string{"online shopping"},
			Size:                  domain.SizeMedium,
			ConversionProbability: 0.12,
			PriorityScore:         0.85,
		},
		{
			ID:                    fmt.Sprintf("seg_%s_lookalike", campaignID),
			CampaignID:            campaignID,
			Name:                  "Lookalike Expansion",
			Demographics:          domain.Demographics{AgeRange: "25-34", Gender: "all"},
			Interests:             interests,
			Behaviors:             []string{"online shopping", "early adopter"},
			Size:                  domain.SizeLarge,
			ConversionProbability: 0.07,
			PriorityScore:         0.60,
		},
		{
			ID:                    fmt.Sprintf("seg_%s_interest", campaignID),
			CampaignID:            campaignID,
			Name:                  "Interest Slice",
			Demographics:          domain.Demographics{AgeRange: "35-50", Gender: "all"},
			Interests:             interests,
			Behaviors:             []string{"business software usage"},
			Size:                  domain.SizeSmall,
			ConversionProbability: 0.15,
			PriorityScore:         0.45,
		},
	}

	return domain.AgentResponse{
		Agent:         AudienceWorkerName,
		CorrelationID: msg.CorrelationID,
		OK:            true,
		RespondedAt:   time.Now().UTC(),
		Result:        domain.ResultPayload{Segments: segments},
	}
}

// Fallback returns one broad large segment with conservative estimates.
func (a *Audience) Fallback(msg domain.AgentMessage) domain.AgentResponse {
	campaignID := msg.Task.CampaignID
	return domain.AgentResponse{
		Agent:         AudienceWorkerName,
		CorrelationID: msg.CorrelationID,
		OK:            true,
		Fallback:      true,
		RespondedAt:   time.Now().UTC(),
		Result: domain.ResultPayload{Segments: []domain.Segment{{
			ID:                    fmt.Sprintf("seg_%s_broad", campaignID),
			CampaignID:            campaignID,
			Name:                  "Broad Target Audience",
			Demographics:          domain.Demographics{AgeRange: "25-65", Gender: "all"},
			Interests:             []string{"business", "technology"},
			Behaviors:             []string{"online shopping"},
			Size:                  domain.SizeLarge,
			ConversionProbability: 0.05,
			PriorityScore:         0.5,
			Fallback:              true,
		}}},
	}
}

func extractInterests(task domain.TaskPayload) []string {
	seen := make(map[string]struct{})
	var interests []string
	add := func(word string) {
		word = strings.ToLower(strings.Trim(word, ".,"))
		if len(word) < 4 {
			return
		}
		if _, ok := seen[word]; ok {
			return
		}
		seen[word] = struct{}{}
		interests = append(interests, word)
	}
	for _, w := range strings.Fields(task.TargetAudience) {
		add(w)
	}
	for _, p := range task.Products {
		add(p)
	}
	if len(interests) == 0 {
		interests = []string{"business", "technology"}
	}
	if len(interests) > 5 {
		interests = interests[:5]
	}
	return interests
}
