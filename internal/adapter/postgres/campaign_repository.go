// Package postgres implements the campaign repository over pgxpool.
// Campaigns and allocation plans are stored as jsonb documents keyed by
// id; bid decisions are an append-only relational log.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"nimbus-ads/internal/core/domain"
	"nimbus-ads/internal/core/port"
)

// CampaignRepository implements port.CampaignRepository using pgxpool.
type CampaignRepository struct {
	pool *pgxpool.Pool
}

// NewCampaignRepository returns a new repository instance.
func NewCampaignRepository(pool *pgxpool.Pool) *CampaignRepository {
	return &CampaignRepository{pool: pool}
}

// GetCampaign returns a campaign by id.
func (r *CampaignRepository) GetCampaign(ctx context.Context, id string) (*domain.Campaign, error) {
	const query = `SELECT doc FROM campaigns WHERE id = $1`

	var raw []byte
	if err := r.pool.QueryRow(ctx, query, id).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, port.ErrNotFound
		}
		return nil, persistence("get campaign", err)
	}

	var c domain.Campaign
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, persistence("decode campaign", err)
	}
	return &c, nil
}

// PutCampaign creates or replaces a campaign document.
func (r *CampaignRepository) PutCampaign(ctx context.Context, c *domain.Campaign) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return persistence("encode campaign", err)
	}

	const query = `
        INSERT INTO campaigns (id, account_id, status, doc, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (id) DO UPDATE
        SET status = EXCLUDED.status,
            doc = EXCLUDED.doc,
            updated_at = EXCLUDED.updated_at`
	if _, err = r.pool.Exec(ctx, query, c.ID, c.AccountID, c.Status, raw, c.CreatedAt, c.UpdatedAt); err != nil {
		return persistence("put campaign", err)
	}
	return nil
}

// QueryByAccount lists an account's campaigns, newest first.
func (r *CampaignRepository) QueryByAccount(ctx context.Context, accountID string, f port.QueryFilters) ([]domain.Campaign, error) {
	query := `SELECT doc FROM campaigns WHERE account_id = $1`
	args := []any{accountID}
	if f.Status != "" {
		query += ` AND status = $2`
		args = append(args, f.Status)
	}
	query += ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, f.Limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, persistence("query campaigns", err)
	}
	campaigns, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Campaign, error) {
		var raw []byte
		if err := row.Scan(&raw); err != nil {
			return domain.Campaign{}, err
		}
		var c domain.Campaign
		err := json.Unmarshal(raw, &c)
		return c, err
	})
	if err != nil {
		return nil, persistence("collect campaigns", err)
	}
	return campaigns, nil
}

// QueryByStatus lists all campaigns in the given lifecycle state.
func (r *CampaignRepository) QueryByStatus(ctx context.Context, status domain.CampaignStatus) ([]domain.Campaign, error) {
	const query = `SELECT doc FROM campaigns WHERE status = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, status)
	if err != nil {
		return nil, persistence("query campaigns by status", err)
	}
	campaigns, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Campaign, error) {
		var raw []byte
		if err := row.Scan(&raw); err != nil {
			return domain.Campaign{}, err
		}
		var c domain.Campaign
		err := json.Unmarshal(raw, &c)
		return c, err
	})
	if err != nil {
		return nil, persistence("collect campaigns by status", err)
	}
	return campaigns, nil
}

// GetAllocation returns the current plan for a campaign.
func (r *CampaignRepository) GetAllocation(ctx context.Context, campaignID string) (*domain.AllocationPlan, error) {
	const query = `SELECT doc FROM allocations WHERE campaign_id = $1`

	var raw []byte
	if err := r.pool.QueryRow(ctx, query, campaignID).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, port.ErrNotFound
		}
		return nil, persistence("get allocation", err)
	}

	var p domain.AllocationPlan
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, persistence("decode allocation", err)
	}
	return &p, nil
}

// PutAllocation creates or replaces a campaign's plan.
func (r *CampaignRepository) PutAllocation(ctx context.Context, p *domain.AllocationPlan) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return persistence("encode allocation", err)
	}

	const query = `
        INSERT INTO allocations (campaign_id, doc, updated_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (campaign_id) DO UPDATE
        SET doc = EXCLUDED.doc,
            updated_at = EXCLUDED.updated_at`
	if _, err = r.pool.Exec(ctx, query, p.CampaignID, raw, p.UpdatedAt); err != nil {
		return persistence("put allocation", err)
	}
	return nil
}

// LogBidDecisions appends decision records in one batch. Replays of the
// same request id are ignored; decisions are immutable once logged.
func (r *CampaignRepository) LogBidDecisions(ctx context.Context, decisions []domain.BidDecision) error {
	if len(decisions) == 0 {
		return nil
	}

	const query = `
        INSERT INTO bid_decisions
            (request_id, campaign_id, segment_id, bid, price, reason, status, processing_time_us, decided_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (request_id) DO NOTHING`

	batch := &pgx.Batch{}
	for _, d := range decisions {
		batch.Queue(query,
			d.RequestID, d.CampaignID, d.SegmentID, d.Bid, d.Price,
			d.Reason, d.Status, d.ProcessingTime.Microseconds(), d.DecidedAt)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return persistence("log bid decisions", err)
	}
	return nil
}

// SettleBid records the auction result on the prior decision row.
// Settling an unlogged decision is a no-op; the flush that logs it will
// land in the same batch cycle or earlier.
func (r *CampaignRepository) SettleBid(ctx context.Context, outcome domain.BidOutcome) error {
	const query = `
        UPDATE bid_decisions
        SET status = $2, win_price = $3, revenue = $4, settled_at = $5
        WHERE request_id = $1`
	_, err := r.pool.Exec(ctx, query,
		outcome.RequestID, outcome.Status, outcome.WinPrice, outcome.Revenue, outcome.RecordedAt)
	if err != nil {
		return persistence("settle bid", err)
	}
	return nil
}

// persistence tags a storage failure with the sentinel the core checks.
func persistence(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", port.ErrPersistence, op, err)
}
