package httpadapter

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"nimbus-ads/internal/core/domain"
	"nimbus-ads/internal/core/port"
)

// handleCreateCampaign accepts a campaign creation request and runs one
// coordination round. Rate-limited accounts get HTTP 429 with a
// Retry-After header; invalid input produces HTTP 400. Degraded rounds
// still succeed, flagged requires_review in the body.
func (h *Handler) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req port.CampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	resp, err := h.campaigns.CreateCampaign(r.Context(), req)
	if err != nil {
		var limited *port.RateLimitedError
		switch {
		case errors.As(err, &limited):
			h.writeRateLimited(w, limited)
		case errors.Is(err, port.ErrPersistence):
			h.logger.Error("create campaign error", slog.Any("error", err))
			http.Error(w, "internal error", http.StatusInternalServerError)
		default:
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err = json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("encode response error", slog.Any("error", err))
	}
}

// handleGetCampaign returns one campaign by id. Unknown ids produce
// HTTP 404.
func (h *Handler) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "campaignID")
	if id == "" {
		http.Error(w, "missing campaign id", http.StatusBadRequest)
		return
	}

	campaign, err := h.campaigns.GetCampaign(r.Context(), id)
	if err != nil {
		if errors.Is(err, port.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		h.logger.Error("get campaign error", slog.Any("error", err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err = json.NewEncoder(w).Encode(campaign); err != nil {
		h.logger.Error("encode response error", slog.Any("error", err))
	}
}

// optimizeRequest is the inbound optimization payload.
type optimizeRequest struct {
	AccountID string                      `json:"account_id"`
	Mode      domain.OptimizationMode     `json:"optimization_mode,omitempty"`
	Actions   []domain.OptimizationAction `json:"actions"`
}

// handleOptimize applies externally-decided optimization actions to a
// campaign. Individual action failures do not fail the request; each
// action's outcome is reported in the body.
func (h *Handler) handleOptimize(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")
	if campaignID == "" {
		http.Error(w, "missing campaign id", http.StatusBadRequest)
		return
	}

	var req optimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.AccountID == "" {
		http.Error(w, "missing account_id", http.StatusBadRequest)
		return
	}

	result, err := h.campaigns.Optimize(r.Context(), req.AccountID, campaignID, req.Actions, req.Mode)
	if err != nil {
		var limited *port.RateLimitedError
		switch {
		case errors.As(err, &limited):
			h.writeRateLimited(w, limited)
		case errors.Is(err, port.ErrNotFound):
			http.NotFound(w, r)
		default:
			h.logger.Error("optimize error", slog.Any("error", err))
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err = json.NewEncoder(w).Encode(result); err != nil {
		h.logger.Error("encode response error", slog.Any("error", err))
	}
}

// writeRateLimited answers HTTP 429 with the retry hint rounded up to
// whole seconds, the granularity Retry-After supports.
func (h *Handler) writeRateLimited(w http.ResponseWriter, limited *port.RateLimitedError) {
	seconds := int(math.Ceil(limited.RetryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
}
