package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/arbdesk/arbdesk/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// flexFloat unmarshals from a JSON number or a numeric string; Gamma sends
// volume both ways depending on the endpoint.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Unparseable volume is not fatal; the market is still usable.
		*f = 0
		return nil
	}
	*f = flexFloat(n)
	return nil
}

// APIMarket represents a market as returned by the Polymarket Gamma API.
// Outcomes and OutcomePrices arrive as JSON-encoded string arrays inside
// strings; both must parse and agree in length for the market to be usable.
type APIMarket struct {
	ID            string    `json:"id"`
	Question      string    `json:"question"`
	Slug          string    `json:"slug"`
	Active        flexBool  `json:"active"`
	Closed        bool      `json:"closed"`
	Outcomes      string    `json:"outcomes"`      // e.g. "[\"Yes\",\"No\"]"
	OutcomePrices string    `json:"outcomePrices"` // e.g. "[\"0.45\",\"0.55\"]"
	Volume24hr    flexFloat `json:"volume24hr"`
	Volume        flexFloat `json:"volume"`
}

// APIEvent represents an event grouping one or more related markets.
type APIEvent struct {
	ID      string      `json:"id"`
	Title   string      `json:"title"`
	Slug    string      `json:"slug"`
	Active  flexBool    `json:"active"`
	Closed  bool        `json:"closed"`
	Markets []APIMarket `json:"markets"`
}

// ToDomainMarket converts an APIMarket into the strict internal schema. The
// second return value is false when the payload shape does not hold (missing
// arrays, length mismatch, non-numeric prices); such markets are skipped at
// the boundary and never reach the data model.
func (a *APIMarket) ToDomainMarket() (domain.Market, bool) {
	if a.ID == "" {
		return domain.Market{}, false
	}

	var names []string
	if err := json.Unmarshal([]byte(a.Outcomes), &names); err != nil || len(names) == 0 {
		return domain.Market{}, false
	}
	var priceStrs []string
	if err := json.Unmarshal([]byte(a.OutcomePrices), &priceStrs); err != nil {
		return domain.Market{}, false
	}
	if len(priceStrs) != len(names) {
		return domain.Market{}, false
	}

	outcomes := make([]domain.Outcome, 0, len(names))
	for i, name := range names {
		price, err := strconv.ParseFloat(strings.TrimSpace(priceStrs[i]), 64)
		if err != nil || price < 0 || price > 1 {
			return domain.Market{}, false
		}
		outcomes = append(outcomes, domain.Outcome{
			Name:  strings.TrimSpace(name),
			Price: price,
		})
	}

	vol := float64(a.Volume24hr)
	if vol == 0 {
		vol = float64(a.Volume)
	}

	return domain.Market{
		ID:       a.ID,
		Question: a.Question,
		Slug:     a.Slug,
		Outcomes: outcomes,
		Volume24: vol,
	}, true
}

// ToDomainGroup converts an APIEvent into an EventGroup. A basket is only
// priceable when every member parses: a missing leg would make a shrunken
// basket look like guaranteed profit when the full set cannot be bought. Any
// unusable member therefore rejects the whole event.
func (e *APIEvent) ToDomainGroup() (domain.EventGroup, bool) {
	g := domain.EventGroup{
		ID:    e.ID,
		Title: e.Title,
	}
	for i := range e.Markets {
		m, ok := e.Markets[i].ToDomainMarket()
		if !ok {
			return domain.EventGroup{}, false
		}
		g.Markets = append(g.Markets, m)
	}
	return g, true
}
