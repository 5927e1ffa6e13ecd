package polymarket

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainMarket(t *testing.T) {
	api := APIMarket{
		ID:            "m1",
		Question:      "Will it rain?",
		Outcomes:      `["Yes","No"]`,
		OutcomePrices: `["0.45","0.50"]`,
		Volume24hr:    1234.5,
	}

	m, ok := api.ToDomainMarket()
	require.True(t, ok)
	assert.Equal(t, "m1", m.ID)
	require.Len(t, m.Outcomes, 2)
	assert.Equal(t, "Yes", m.Outcomes[0].Name)
	assert.Equal(t, 0.45, m.Outcomes[0].Price)
	assert.Equal(t, 0.50, m.Outcomes[1].Price)
	assert.Equal(t, 1234.5, m.Volume24)
}

func TestToDomainMarketRejectsMalformedPayloads(t *testing.T) {
	cases := map[string]APIMarket{
		"missing id": {
			Outcomes:      `["Yes","No"]`,
			OutcomePrices: `["0.4","0.5"]`,
		},
		"unparseable outcomes": {
			ID:            "m",
			Outcomes:      `not json`,
			OutcomePrices: `["0.4","0.5"]`,
		},
		"length mismatch": {
			ID:            "m",
			Outcomes:      `["Yes","No"]`,
			OutcomePrices: `["0.4"]`,
		},
		"non-numeric price": {
			ID:            "m",
			Outcomes:      `["Yes","No"]`,
			OutcomePrices: `["0.4","abc"]`,
		},
		"price out of range": {
			ID:            "m",
			Outcomes:      `["Yes","No"]`,
			OutcomePrices: `["0.4","1.5"]`,
		},
		"empty outcome list": {
			ID:            "m",
			Outcomes:      `[]`,
			OutcomePrices: `[]`,
		},
	}

	for name, api := range cases {
		t.Run(name, func(t *testing.T) {
			_, ok := api.ToDomainMarket()
			assert.False(t, ok)
		})
	}
}

func TestFlexFieldsAcceptBothEncodings(t *testing.T) {
	var m APIMarket
	raw := `{"id":"m1","active":"true","outcomes":"[\"Yes\",\"No\"]",
		"outcomePrices":"[\"0.4\",\"0.5\"]","volume24hr":"99.5"}`
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	assert.True(t, bool(m.Active))
	assert.Equal(t, 99.5, float64(m.Volume24hr))

	var m2 APIMarket
	raw2 := `{"id":"m2","active":false,"volume24hr":12}`
	require.NoError(t, json.Unmarshal([]byte(raw2), &m2))
	assert.False(t, bool(m2.Active))
	assert.Equal(t, 12.0, float64(m2.Volume24hr))
}

func TestToDomainGroupConvertsAllMembers(t *testing.T) {
	ev := APIEvent{
		ID:    "ev1",
		Title: "Election",
		Markets: []APIMarket{
			{ID: "a", Outcomes: `["A"]`, OutcomePrices: `["0.3"]`},
			{ID: "b", Outcomes: `["B"]`, OutcomePrices: `["0.4"]`},
		},
	}

	g, ok := ev.ToDomainGroup()
	require.True(t, ok)
	require.Len(t, g.Markets, 2)
	assert.Equal(t, "a", g.Markets[0].ID)
	assert.Equal(t, "b", g.Markets[1].ID)
}

func TestToDomainGroupRejectsIncompleteBasket(t *testing.T) {
	// Two clean legs summing well under 1 plus one unreadable leg. Passing
	// the two clean legs through would report guaranteed profit on a basket
	// that cannot be completed, so the whole event must be rejected.
	ev := APIEvent{
		ID:    "ev1",
		Title: "Election",
		Markets: []APIMarket{
			{ID: "a", Outcomes: `["A"]`, OutcomePrices: `["0.40"]`},
			{ID: "b", Outcomes: `["B"]`, OutcomePrices: `["0.35"]`},
			{ID: "bad", Outcomes: `["C"]`, OutcomePrices: `not-json`},
		},
	}

	_, ok := ev.ToDomainGroup()
	require.False(t, ok)
}
