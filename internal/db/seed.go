package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"nimbus-ads/internal/core/domain"
)

// Seed inserts demo campaigns with allocations for local development.
func Seed(ctx context.Context, pool *pgxpool.Pool) error {
	goals := []string{
		"increase online sales",
		"grow newsletter signups",
		"drive app installs",
	}

	for i, goal := range goals {
		now := time.Now().UTC()
		budget := float64(3000 + i*2000)
		campaignID := uuid.NewString()

		segments := []domain.Segment{
			{
				ID:                    fmt.Sprintf("seed-%d-core", i+1),
				CampaignID:            campaignID,
				Name:                  "Core Audience",
				Demographics:          domain.Demographics{AgeRange: "25-34", Gender: "all", Income: "medium"},
				Interests:             []string{"shopping", "technology"},
				Size:                  domain.SizeMedium,
				ConversionProbability: 0.12,
				PriorityScore:         0.85,
			},
			{
				ID:                    fmt.Sprintf("seed-%d-broad", i+1),
				CampaignID:            campaignID,
				Name:                  "Broad Reach",
				Demographics:          domain.Demographics{AgeRange: "25-65", Gender: "all", Income: "all"},
				Interests:             []string{"shopping"},
				Size:                  domain.SizeLarge,
				ConversionProbability: 0.06,
				PriorityScore:         0.55,
			},
		}

		daily := budget / 30
		plan := &domain.AllocationPlan{
			CampaignID:  campaignID,
			TotalBudget: budget,
			DailyBudget: daily,
			TestBudget:  budget * 0.20,
			Allocations: []domain.SegmentAllocation{
				{SegmentID: segments[0].ID, DailyBudget: daily * 0.80 * 0.6, Split: domain.DefaultChannelSplit(), MaxCPC: 2.00},
				{SegmentID: segments[1].ID, DailyBudget: daily * 0.80 * 0.4, Split: domain.DefaultChannelSplit(), MaxCPC: 1.10},
			},
			UpdatedAt: now,
		}

		campaign := &domain.Campaign{
			ID:               campaignID,
			AccountID:        fmt.Sprintf("seed-account-%d", i+1),
			Status:           domain.StatusActive,
			BusinessGoal:     goal,
			MonthlyBudget:    budget,
			TargetAudience:   "adults interested in online shopping",
			Products:         []string{fmt.Sprintf("Product %d", i+1)},
			Segments:         segments,
			Allocation:       plan,
			OptimizationMode: domain.ModeStandard,
			CreatedAt:        now,
			UpdatedAt:        now,
		}

		campaignDoc, err := json.Marshal(campaign)
		if err != nil {
			return err
		}
		_, err = pool.Exec(ctx, `INSERT INTO campaigns (id, account_id, status, doc, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6) ON CONFLICT DO NOTHING`,
			campaign.ID, campaign.AccountID, campaign.Status, campaignDoc, now, now)
		if err != nil {
			return err
		}

		planDoc, err := json.Marshal(plan)
		if err != nil {
			return err
		}
		_, err = pool.Exec(ctx, `INSERT INTO allocations (campaign_id, doc, updated_at)
VALUES ($1,$2,$3) ON CONFLICT DO NOTHING`, plan.CampaignID, planDoc, now)
		if err != nil {
			return err
		}
	}
	return nil
}
