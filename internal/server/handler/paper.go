package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/arbdesk/arbdesk/internal/domain"
	"github.com/arbdesk/arbdesk/internal/service"
)

// PaperService defines the ledger operations the handler requires.
type PaperService interface {
	Execute(ctx context.Context, req service.ExecuteRequest) (domain.PaperTrade, error)
	Close(ctx context.Context, tradeID, resolution string, finalPnL *float64) (domain.PaperTrade, error)
	AutoScan(ctx context.Context, candidates []domain.ArbOpportunity) (domain.ScanResult, error)
	Config() domain.PaperConfig
	UpdateConfig(ctx context.Context, patch domain.PaperConfigPatch) domain.PaperConfig
	Trades(status domain.PaperTradeStatus) ([]domain.PaperTrade, int)
	PnL() domain.PnLSummary
}

// PaperHandler serves the paper-trading HTTP endpoints. Auto-scan falls back
// to the opportunity cache when the caller supplies no candidates, so the
// handler holds both services.
type PaperHandler struct {
	ledger PaperService
	cache  OpportunityService
	logger *slog.Logger
}

// NewPaperHandler creates a PaperHandler with the given services.
func NewPaperHandler(ledger PaperService, cache OpportunityService, logger *slog.Logger) *PaperHandler {
	return &PaperHandler{ledger: ledger, cache: cache, logger: logger}
}

type executeTradeRequest struct {
	MarketID      string   `json:"marketId"`
	MarketName    string   `json:"marketName"`
	YesPrice      float64  `json:"yesPrice"`
	NoPrice       float64  `json:"noPrice"`
	ProfitPercent *float64 `json:"profitPercent"`
	Strategy      string   `json:"strategy"`
}

type closeTradeRequest struct {
	Resolution string   `json:"resolution"`
	FinalPnL   *float64 `json:"finalPnl"`
}

type executeTradeResponse struct {
	OK    bool              `json:"ok"`
	Trade domain.PaperTrade `json:"trade"`
}

type closeTradeResponse struct {
	OK    bool              `json:"ok"`
	Trade domain.PaperTrade `json:"trade"`
	PnL   float64           `json:"pnl"`
}

type listTradesResponse struct {
	OK          bool                `json:"ok"`
	Trades      []domain.PaperTrade `json:"trades"`
	Count       int                 `json:"count"`
	TotalTrades int                 `json:"totalTrades"`
}

type pnlResponse struct {
	OK      bool                `json:"ok"`
	Summary domain.PnLSummary   `json:"summary"`
	Trades  []domain.PaperTrade `json:"trades"`
}

// ListTrades returns paper trades, optionally filtered by ?status=.
// GET /api/paper/trades
func (h *PaperHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	status := domain.PaperTradeStatus(r.URL.Query().Get("status"))
	switch status {
	case "", domain.PaperTradeOpen, domain.PaperTradeClosed, domain.PaperTradeSettled:
	default:
		writeError(w, http.StatusBadRequest, "invalid status filter")
		return
	}

	trades, total := h.ledger.Trades(status)
	if trades == nil {
		trades = []domain.PaperTrade{}
	}
	writeJSON(w, http.StatusOK, listTradesResponse{
		OK:          true,
		Trades:      trades,
		Count:       len(trades),
		TotalTrades: total,
	})
}

// GetPnL returns the ledger performance summary alongside the full trade
// list backing it.
// GET /api/paper/pnl
func (h *PaperHandler) GetPnL(w http.ResponseWriter, r *http.Request) {
	trades, _ := h.ledger.Trades("")
	if trades == nil {
		trades = []domain.PaperTrade{}
	}
	writeJSON(w, http.StatusOK, pnlResponse{
		OK:      true,
		Summary: h.ledger.PnL(),
		Trades:  trades,
	})
}

// ExecuteTrade opens a simulated trade.
// POST /api/paper/execute
func (h *PaperHandler) ExecuteTrade(w http.ResponseWriter, r *http.Request) {
	var req executeTradeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	trade, err := h.ledger.Execute(r.Context(), service.ExecuteRequest{
		MarketID:      req.MarketID,
		MarketName:    req.MarketName,
		YesPrice:      req.YesPrice,
		NoPrice:       req.NoPrice,
		ProfitPercent: req.ProfitPercent,
		Strategy:      req.Strategy,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrValidation):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrConflict):
			writeError(w, http.StatusConflict, "an open trade already exists for this market")
		default:
			h.logger.ErrorContext(r.Context(), "handler: execute trade failed",
				slog.String("market_id", req.MarketID),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to execute trade")
		}
		return
	}

	writeJSON(w, http.StatusCreated, executeTradeResponse{OK: true, Trade: trade})
}

// CloseTrade closes or settles an open trade.
// POST /api/paper/close/{id}
func (h *PaperHandler) CloseTrade(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	// An empty body means close without resolution.
	var req closeTradeRequest
	if err := decodeBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	trade, err := h.ledger.Close(r.Context(), id, req.Resolution, req.FinalPnL)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "trade not found")
		case errors.Is(err, domain.ErrInvalidState):
			writeError(w, http.StatusBadRequest, "trade is not open")
		case errors.Is(err, domain.ErrValidation):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.ErrorContext(r.Context(), "handler: close trade failed",
				slog.String("trade_id", id),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to close trade")
		}
		return
	}

	// pnl reports cumulative realized P&L including this close.
	writeJSON(w, http.StatusOK, closeTradeResponse{
		OK:    true,
		Trade: trade,
		PnL:   h.ledger.PnL().RealizedPnL,
	})
}

// GetConfig returns the paper-trading configuration.
// GET /api/paper/config
func (h *PaperHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ledger.Config())
}

// UpdateConfig applies a partial configuration update.
// POST /api/paper/config
func (h *PaperHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var patch domain.PaperConfigPatch
	if err := decodeBody(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	writeJSON(w, http.StatusOK, h.ledger.UpdateConfig(r.Context(), patch))
}

type autoScanRequest struct {
	Opportunities []domain.ArbOpportunity `json:"opportunities"`
}

type autoScanResponse struct {
	OK          bool                `json:"ok"`
	Executed    int                 `json:"executed"`
	Skipped     int                 `json:"skipped"`
	Trades      []domain.PaperTrade `json:"trades"`
	SkipReasons []string            `json:"skipReasons"`
}

// AutoScan runs one auto-execution pass over caller-supplied candidates,
// taken in the order given. An empty body falls back to the current cached
// arbitrage snapshot.
// POST /api/paper/auto-scan
func (h *PaperHandler) AutoScan(w http.ResponseWriter, r *http.Request) {
	var req autoScanRequest
	if err := decodeBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	candidates := req.Opportunities
	if candidates == nil {
		candidates, _ = h.cache.Arbitrage(r.Context())
	}

	result, err := h.ledger.AutoScan(r.Context(), candidates)
	if err != nil {
		if errors.Is(err, domain.ErrAutoTradingDisabled) {
			writeError(w, http.StatusBadRequest, "auto trading is disabled")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: auto-scan failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "auto-scan failed")
		return
	}

	trades := result.Trades
	if trades == nil {
		trades = []domain.PaperTrade{}
	}
	reasons := result.SkipReasons
	if reasons == nil {
		reasons = []string{}
	}
	writeJSON(w, http.StatusOK, autoScanResponse{
		OK:          true,
		Executed:    result.Executed,
		Skipped:     result.Skipped,
		Trades:      trades,
		SkipReasons: reasons,
	})
}
