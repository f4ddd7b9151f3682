package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"nimbus-ads/internal/core/domain"
)

// bidResponse is the wire shape of a decision. Rejections carry the
// reason so the exchange integration can be debugged from its own logs.
type bidResponse struct {
	RequestID        string  `json:"request_id"`
	Bid              bool    `json:"bid"`
	Price            float64 `json:"price,omitempty"`
	CampaignID       string  `json:"campaign_id,omitempty"`
	SegmentID        string  `json:"segment_id,omitempty"`
	Reason           string  `json:"reason"`
	ProcessingTimeMS float64 `json:"processing_time_ms"`
}

// handleBid answers one bid opportunity. The decision path never fails:
// malformed JSON is the only 400, everything else resolves to a bid or a
// reasoned no-bid with HTTP 200.
func (h *Handler) handleBid(w http.ResponseWriter, r *http.Request) {
	var opp domain.BidOpportunity
	if err := json.NewDecoder(r.Body).Decode(&opp); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	decision := h.bids.Decide(r.Context(), opp)

	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(bidResponse{
		RequestID:        decision.RequestID,
		Bid:              decision.Bid,
		Price:            decision.Price,
		CampaignID:       decision.CampaignID,
		SegmentID:        decision.SegmentID,
		Reason:           decision.Reason,
		ProcessingTimeMS: float64(decision.ProcessingTime) / float64(time.Millisecond),
	})
	if err != nil {
		h.logger.Error("encode response error", slog.Any("error", err))
	}
}

// outcomeRequest reports the settled auction result for a prior bid.
type outcomeRequest struct {
	Status   domain.BidStatus `json:"status"`
	WinPrice float64          `json:"win_price,omitempty"`
	Revenue  float64          `json:"revenue,omitempty"`
}

// handleBidOutcome records a win or loss notification from the exchange.
// Unknown request ids are accepted and dropped; the exchange retries on
// anything but 2xx and a stale id is not worth a retry storm.
func (h *Handler) handleBidOutcome(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")
	if requestID == "" {
		http.Error(w, "missing request id", http.StatusBadRequest)
		return
	}

	var req outcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Status != domain.BidWon && req.Status != domain.BidLost {
		http.Error(w, "status must be won or lost", http.StatusBadRequest)
		return
	}
	if req.Status == domain.BidWon && req.WinPrice <= 0 {
		http.Error(w, "won outcome requires a positive win_price", http.StatusBadRequest)
		return
	}
	if req.Revenue < 0 {
		http.Error(w, "revenue must not be negative", http.StatusBadRequest)
		return
	}

	if err := h.bids.RecordOutcome(r.Context(), requestID, req.Status, req.WinPrice, req.Revenue); err != nil {
		h.logger.Error("record outcome error", slog.Any("error", err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
