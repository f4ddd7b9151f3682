package httpadapter

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"nimbus-ads/internal/core/port"
)

// Handler contains dependencies and routes. It is an inbound adapter for
// HTTP. Campaign management and the bid exchange surface share one
// router; the usecases behind them enforce their own admission rules.
type Handler struct {
	campaigns port.CampaignUseCase
	bids      port.BidUseCase
	logger    *slog.Logger
	router    chi.Router
}

// NewHandler creates a handler with all routes configured.
func NewHandler(campaigns port.CampaignUseCase, bids port.BidUseCase, logger *slog.Logger) *Handler {
	h := &Handler{campaigns: campaigns, bids: bids, logger: logger}
	r := chi.NewRouter()

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/campaigns", h.handleCreateCampaign)
		r.Get("/campaigns/{campaignID}", h.handleGetCampaign)
		r.Post("/campaigns/{campaignID}/optimize", h.handleOptimize)

		r.Post("/bids", h.handleBid)
		r.Post("/bids/{requestID}/outcome", h.handleBidOutcome)

		r.Get("/stats/overview", h.handleStatsOverview)
	})
	h.router = r
	return h
}

// Router returns the underlying http.Handler.
func (h *Handler) Router() http.Handler {
	return h.router
}
