// Package polymarket implements the price-feed adapter over the Polymarket
// Gamma REST API. Loosely-typed upstream payloads are parsed into the strict
// domain schema here; anything that does not fit is skipped, never raised.
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/arbdesk/arbdesk/internal/domain"
)

const defaultPageSize = 200

// GammaClient is the REST client for the Polymarket Gamma API.
type GammaClient struct {
	baseURL    string
	pageSize   int
	httpClient *http.Client
	logger     *slog.Logger
}

// NewGammaClient creates a Gamma API client. baseURL is the API root, e.g.
// "https://gamma-api.polymarket.com". pageSize <= 0 uses the default.
func NewGammaClient(baseURL string, pageSize int, logger *slog.Logger) *GammaClient {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &GammaClient{
		baseURL:  baseURL,
		pageSize: pageSize,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.With(slog.String("component", "gamma_client")),
	}
}

// FetchSnapshot performs the single upstream fetch of a refresh: active
// markets plus event groupings, converted to the internal schema. Markets
// that fail to parse are dropped and counted, not surfaced as errors; only
// transport or payload-level failures return ErrUpstreamFetch.
func (g *GammaClient) FetchSnapshot(ctx context.Context) (domain.MarketSnapshot, error) {
	markets, skipped, err := g.fetchMarkets(ctx)
	if err != nil {
		return domain.MarketSnapshot{}, err
	}

	groups, err := g.fetchEvents(ctx)
	if err != nil {
		return domain.MarketSnapshot{}, err
	}

	if skipped > 0 {
		g.logger.DebugContext(ctx, "skipped unparseable markets",
			slog.Int("skipped", skipped),
			slog.Int("kept", len(markets)),
		)
	}

	return domain.MarketSnapshot{Markets: markets, Groups: groups}, nil
}

func (g *GammaClient) fetchMarkets(ctx context.Context) ([]domain.Market, int, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(g.pageSize))
	params.Set("offset", "0")
	params.Set("active", "true")
	params.Set("closed", "false")

	body, err := g.doGet(ctx, "/markets?"+params.Encode())
	if err != nil {
		return nil, 0, fmt.Errorf("polymarket/gamma: get markets: %w", err)
	}

	var apiMarkets []APIMarket
	if err := json.Unmarshal(body, &apiMarkets); err != nil {
		return nil, 0, fmt.Errorf("polymarket/gamma: decode markets: %w: %v", domain.ErrUpstreamFetch, err)
	}

	var skipped int
	markets := make([]domain.Market, 0, len(apiMarkets))
	for i := range apiMarkets {
		m, ok := apiMarkets[i].ToDomainMarket()
		if !ok {
			skipped++
			continue
		}
		markets = append(markets, m)
	}
	return markets, skipped, nil
}

func (g *GammaClient) fetchEvents(ctx context.Context) ([]domain.EventGroup, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(g.pageSize))
	params.Set("offset", "0")
	params.Set("active", "true")
	params.Set("closed", "false")

	body, err := g.doGet(ctx, "/events?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: get events: %w", err)
	}

	var apiEvents []APIEvent
	if err := json.Unmarshal(body, &apiEvents); err != nil {
		return nil, fmt.Errorf("polymarket/gamma: decode events: %w: %v", domain.ErrUpstreamFetch, err)
	}

	groups := make([]domain.EventGroup, 0, len(apiEvents))
	for i := range apiEvents {
		grp, ok := apiEvents[i].ToDomainGroup()
		if !ok || len(grp.Markets) < 2 {
			continue
		}
		groups = append(groups, grp)
	}
	return groups, nil
}

// doGet sends an unauthenticated GET request to the Gamma API.
func (g *GammaClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamFetch, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrUpstreamFetch, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrUpstreamFetch, resp.StatusCode, truncate(body, 200))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
