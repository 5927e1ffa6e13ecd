package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/arbdesk/arbdesk/internal/domain"
)

// OpportunityService defines the cache operations the handler requires.
type OpportunityService interface {
	Arbitrage(ctx context.Context) ([]domain.ArbOpportunity, time.Time)
	Income(ctx context.Context) ([]domain.IncomeOpportunity, time.Time)
	Refresh(ctx context.Context) domain.RefreshOutcome
	Status() domain.CacheStatus
}

// OpportunityHandler serves the opportunity cache HTTP endpoints.
type OpportunityHandler struct {
	cache  OpportunityService
	logger *slog.Logger
}

// NewOpportunityHandler creates an OpportunityHandler with the given service.
func NewOpportunityHandler(cache OpportunityService, logger *slog.Logger) *OpportunityHandler {
	return &OpportunityHandler{cache: cache, logger: logger}
}

type arbitrageResponse struct {
	OK       bool                    `json:"ok"`
	Data     []domain.ArbOpportunity `json:"data"`
	CachedAt time.Time               `json:"cachedAt"`
	Count    int                     `json:"count"`
}

type incomeResponse struct {
	OK       bool                       `json:"ok"`
	Data     []domain.IncomeOpportunity `json:"data"`
	CachedAt time.Time                  `json:"cachedAt"`
	Count    int                        `json:"count"`
}

// ListArbitrage returns the cached arbitrage opportunities, refreshing first
// when the snapshot is stale.
// GET /api/arbitrage
func (h *OpportunityHandler) ListArbitrage(w http.ResponseWriter, r *http.Request) {
	opps, cachedAt := h.cache.Arbitrage(r.Context())
	if opps == nil {
		opps = []domain.ArbOpportunity{}
	}
	writeJSON(w, http.StatusOK, arbitrageResponse{
		OK:       true,
		Data:     opps,
		CachedAt: cachedAt,
		Count:    len(opps),
	})
}

// ListIncome returns the cached income opportunities.
// GET /api/income
func (h *OpportunityHandler) ListIncome(w http.ResponseWriter, r *http.Request) {
	opps, cachedAt := h.cache.Income(r.Context())
	if opps == nil {
		opps = []domain.IncomeOpportunity{}
	}
	writeJSON(w, http.StatusOK, incomeResponse{
		OK:       true,
		Data:     opps,
		CachedAt: cachedAt,
		Count:    len(opps),
	})
}

// Refresh forces a cache refresh unless one is already running.
// POST /api/refresh
func (h *OpportunityHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	outcome := h.cache.Refresh(r.Context())
	writeJSON(w, http.StatusOK, outcome)
}

// Status reports the cache state.
// GET /api/status
func (h *OpportunityHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cache.Status())
}
