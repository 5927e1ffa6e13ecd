// Package defillama implements the income-opportunity feed over the
// DefiLlama yields API. Income rows change slowly compared to arbitrage;
// they are refreshed together with the opportunity cache but survive feed
// hiccups unchanged.
package defillama

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/arbdesk/arbdesk/internal/domain"
)

const (
	defaultMinTVL = 1_000_000 // USD
	defaultLimit  = 20
)

// Client is the REST client for the DefiLlama yields API.
type Client struct {
	baseURL    string
	minTVL     float64
	limit      int
	httpClient *http.Client
}

// New creates a yields client. baseURL is the API root, e.g.
// "https://yields.llama.fi". Non-positive minTVL/limit use defaults.
func New(baseURL string, minTVL float64, limit int) *Client {
	if minTVL <= 0 {
		minTVL = defaultMinTVL
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	return &Client{
		baseURL: baseURL,
		minTVL:  minTVL,
		limit:   limit,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiPool is one pool row in the /pools response.
type apiPool struct {
	Project    string  `json:"project"`
	Symbol     string  `json:"symbol"`
	Chain      string  `json:"chain"`
	APY        float64 `json:"apy"`
	TVLUsd     float64 `json:"tvlUsd"`
	ILRisk     string  `json:"ilRisk"`
	StableCoin bool    `json:"stablecoin"`
}

type poolsResponse struct {
	Status string    `json:"status"`
	Data   []apiPool `json:"data"`
}

// FetchIncome returns the top pools by TVL as income opportunities. Pools
// with zero APY or TVL below the floor are dropped.
func (c *Client) FetchIncome(ctx context.Context) ([]domain.IncomeOpportunity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/pools", nil)
	if err != nil {
		return nil, fmt.Errorf("defillama: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("defillama: %w: %v", domain.ErrUpstreamFetch, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("defillama: %w: read response: %v", domain.ErrUpstreamFetch, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("defillama: %w: status %d", domain.ErrUpstreamFetch, resp.StatusCode)
	}

	var pools poolsResponse
	if err := json.Unmarshal(body, &pools); err != nil {
		return nil, fmt.Errorf("defillama: %w: decode pools: %v", domain.ErrUpstreamFetch, err)
	}

	now := time.Now().UTC()
	out := make([]domain.IncomeOpportunity, 0, c.limit)

	sort.SliceStable(pools.Data, func(i, j int) bool {
		return pools.Data[i].TVLUsd > pools.Data[j].TVLUsd
	})
	for _, p := range pools.Data {
		if p.APY <= 0 || p.TVLUsd < c.minTVL {
			continue
		}
		out = append(out, domain.IncomeOpportunity{
			Protocol:  p.Project,
			Asset:     p.Symbol,
			APY:       p.APY,
			TVL:       p.TVLUsd,
			Risk:      riskBucket(p),
			Timestamp: now,
		})
		if len(out) >= c.limit {
			break
		}
	}
	return out, nil
}

// riskBucket classifies a pool with a coarse heuristic: stablecoin pools
// without impermanent-loss exposure are low risk, outsized APY is high.
func riskBucket(p apiPool) string {
	noIL := strings.EqualFold(p.ILRisk, "no") || p.ILRisk == ""
	switch {
	case p.APY > 50 || (!noIL && !p.StableCoin):
		return "high"
	case p.StableCoin && noIL:
		return "low"
	default:
		return "medium"
	}
}
