package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"nimbus-ads/internal/core/domain"
	"nimbus-ads/internal/core/port"
)

// handleStatsOverview lists an account's campaigns with their current
// performance totals. It accepts a required `account_id` query parameter
// plus optional `status` and `limit`. Invalid parameters result in
// HTTP 400. Internal errors produce HTTP 500.
func (h *Handler) handleStatsOverview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	accountID := q.Get("account_id")
	if accountID == "" {
		http.Error(w, "missing account_id", http.StatusBadRequest)
		return
	}

	var filters port.QueryFilters
	if s := q.Get("status"); s != "" {
		switch status := domain.CampaignStatus(s); status {
		case domain.StatusDraft, domain.StatusActive, domain.StatusPaused, domain.StatusCompleted:
			filters.Status = status
		default:
			http.Error(w, "invalid status", http.StatusBadRequest)
			return
		}
	}
	if l := q.Get("limit"); l != "" {
		limit, err := strconv.Atoi(l)
		if err != nil || limit < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		filters.Limit = limit
	}

	campaigns, err := h.campaigns.ListCampaigns(r.Context(), accountID, filters)
	if err != nil {
		h.logger.Error("stats error", slog.Any("error", err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	type row struct {
		CampaignID  string                     `json:"campaign_id"`
		Status      domain.CampaignStatus      `json:"status"`
		Goal        string                     `json:"business_goal"`
		Budget      float64                    `json:"monthly_budget"`
		Performance domain.PerformanceSnapshot `json:"performance"`
	}
	out := make([]row, 0, len(campaigns))
	for _, c := range campaigns {
		out = append(out, row{
			CampaignID:  c.ID,
			Status:      c.Status,
			Goal:        c.BusinessGoal,
			Budget:      c.MonthlyBudget,
			Performance: c.Performance,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err = json.NewEncoder(w).Encode(out); err != nil {
		h.logger.Error("encode response error", slog.Any("error", err))
	}
}
