package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbdesk/arbdesk/internal/domain"
)

func TestListArbitrage(t *testing.T) {
	cachedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cache := &stubCache{
		arbs: []domain.ArbOpportunity{
			{MarketID: "m1", YesPrice: 0.45, NoPrice: 0.5, ProfitPercent: 5},
		},
		cachedAt: cachedAt,
	}
	h := NewOpportunityHandler(cache, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/arbitrage", nil)
	rec := httptest.NewRecorder()

	h.ListArbitrage(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	var resp struct {
		OK       bool                    `json:"ok"`
		Data     []domain.ArbOpportunity `json:"data"`
		CachedAt time.Time               `json:"cachedAt"`
		Count    int                     `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "m1", resp.Data[0].MarketID)
	assert.Equal(t, 1, resp.Count)
	assert.True(t, resp.CachedAt.Equal(cachedAt))
}

func TestListArbitrageEmptyIsArray(t *testing.T) {
	h := NewOpportunityHandler(&stubCache{}, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/arbitrage", nil)
	rec := httptest.NewRecorder()

	h.ListArbitrage(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"data":[]`)
	assert.Contains(t, rec.Body.String(), `"count":0`)
}

func TestListIncome(t *testing.T) {
	cache := &stubCache{
		income: []domain.IncomeOpportunity{
			{Protocol: "aave-v3", Asset: "USDC", APY: 4.2, TVL: 1.2e9, Risk: "low"},
		},
	}
	h := NewOpportunityHandler(cache, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/income", nil)
	rec := httptest.NewRecorder()

	h.ListIncome(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		OK    bool                       `json:"ok"`
		Data  []domain.IncomeOpportunity `json:"data"`
		Count int                        `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "aave-v3", resp.Data[0].Protocol)
}

func TestRefresh(t *testing.T) {
	cache := &stubCache{
		outcome: domain.RefreshOutcome{
			Status:         domain.RefreshStatusRefreshed,
			ArbitrageCount: 2,
		},
	}
	h := NewOpportunityHandler(cache, discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/refresh", nil)
	rec := httptest.NewRecorder()

	h.Refresh(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.RefreshOutcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, domain.RefreshStatusRefreshed, got.Status)
	assert.Equal(t, 2, got.ArbitrageCount)
}

func TestStatus(t *testing.T) {
	cache := &stubCache{
		status: domain.CacheStatus{IsFetching: true, ArbitrageCount: 3, CacheStale: true},
	}
	h := NewOpportunityHandler(cache, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()

	h.Status(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.CacheStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.IsFetching)
	assert.True(t, got.CacheStale)
	assert.Equal(t, 3, got.ArbitrageCount)
}
