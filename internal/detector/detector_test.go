package detector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbdesk/arbdesk/internal/domain"
)

func binaryMarket(id string, yes, no float64) domain.Market {
	return domain.Market{
		ID:       id,
		Question: "Market " + id,
		Outcomes: []domain.Outcome{
			{Name: "Yes", Price: yes},
			{Name: "No", Price: no},
		},
	}
}

func TestDetectBinaryOpportunity(t *testing.T) {
	d := New(0)
	now := time.Now()

	snap := domain.MarketSnapshot{
		Markets: []domain.Market{binaryMarket("m1", 0.45, 0.50)},
	}

	opps := d.Detect(snap, now)
	require.Len(t, opps, 1)

	opp := opps[0]
	assert.Equal(t, "m1", opp.MarketID)
	assert.Equal(t, 0.45, opp.YesPrice)
	assert.Equal(t, 0.50, opp.NoPrice)
	assert.Equal(t, 0.95, opp.PriceSum)
	assert.Equal(t, 5.00, opp.ProfitPercent)
	assert.Equal(t, now, opp.Timestamp)
}

func TestDetectSkipsSumAtOrAboveOne(t *testing.T) {
	d := New(0)
	snap := domain.MarketSnapshot{
		Markets: []domain.Market{
			binaryMarket("fair", 0.50, 0.50),
			binaryMarket("expensive", 0.60, 0.55),
		},
	}
	assert.Empty(t, d.Detect(snap, time.Now()))
}

func TestDetectEpsilonFiltersNoise(t *testing.T) {
	d := New(0.995)
	snap := domain.MarketSnapshot{
		Markets: []domain.Market{
			binaryMarket("noise", 0.50, 0.496), // sum 0.996, inside noise band
			binaryMarket("real", 0.50, 0.45),   // sum 0.95
		},
	}
	opps := d.Detect(snap, time.Now())
	require.Len(t, opps, 1)
	assert.Equal(t, "real", opps[0].MarketID)
}

func TestDetectCaseInsensitiveAndPositionalOutcomes(t *testing.T) {
	d := New(0)
	snap := domain.MarketSnapshot{
		Markets: []domain.Market{
			{
				ID: "upper",
				Outcomes: []domain.Outcome{
					{Name: "YES", Price: 0.40},
					{Name: "NO", Price: 0.40},
				},
			},
			{
				ID: "positional",
				Outcomes: []domain.Outcome{
					{Name: "Over", Price: 0.30},
					{Name: "Under", Price: 0.30},
				},
			},
		},
	}
	opps := d.Detect(snap, time.Now())
	require.Len(t, opps, 2)
}

func TestDetectSkipsUnusableMarkets(t *testing.T) {
	d := New(0)
	snap := domain.MarketSnapshot{
		Markets: []domain.Market{
			{ID: "empty"},
			{ID: "one-sided", Outcomes: []domain.Outcome{{Name: "Yes", Price: 0.4}}},
			{ID: "no-quote", Outcomes: []domain.Outcome{
				{Name: "Yes", Price: 0},
				{Name: "No", Price: 0.3},
			}},
			{ID: "three-way-no-yesno", Outcomes: []domain.Outcome{
				{Name: "A", Price: 0.2},
				{Name: "B", Price: 0.2},
				{Name: "C", Price: 0.2},
			}},
		},
	}
	assert.Empty(t, d.Detect(snap, time.Now()))
}

func TestDetectSortedByProfitDescending(t *testing.T) {
	d := New(0)
	snap := domain.MarketSnapshot{
		Markets: []domain.Market{
			binaryMarket("small", 0.49, 0.49), // 2%
			binaryMarket("big", 0.40, 0.45),   // 15%
			binaryMarket("mid", 0.45, 0.48),   // 7%
		},
	}
	opps := d.Detect(snap, time.Now())
	require.Len(t, opps, 3)
	for i := 1; i < len(opps); i++ {
		assert.GreaterOrEqual(t, opps[i-1].ProfitPercent, opps[i].ProfitPercent)
	}
	assert.Equal(t, "big", opps[0].MarketID)
}

func TestDetectEventGroup(t *testing.T) {
	d := New(0)
	group := domain.EventGroup{
		ID:    "ev1",
		Title: "Who wins?",
		Markets: []domain.Market{
			{ID: "a", Outcomes: []domain.Outcome{{Name: "A wins", Price: 0.30}}, Volume24: 100},
			{ID: "b", Outcomes: []domain.Outcome{{Name: "B wins", Price: 0.35}}, Volume24: 200},
			{ID: "c", Outcomes: []domain.Outcome{{Name: "C wins", Price: 0.25}}, Volume24: 50},
		},
	}

	opps := d.Detect(domain.MarketSnapshot{Groups: []domain.EventGroup{group}}, time.Now())
	require.Len(t, opps, 1)

	opp := opps[0]
	assert.Equal(t, "ev1", opp.MarketID)
	assert.Equal(t, 0.90, opp.PriceSum)
	assert.Equal(t, 10.00, opp.ProfitPercent)
	assert.Equal(t, 0.35, opp.YesPrice) // max primary
	assert.Equal(t, 0.25, opp.NoPrice)  // min primary
	assert.Equal(t, 350.0, opp.Volume24)
}

func TestDetectEventGroupRejectsPartialData(t *testing.T) {
	d := New(0)
	group := domain.EventGroup{
		ID: "ev2",
		Markets: []domain.Market{
			{ID: "a", Outcomes: []domain.Outcome{{Name: "A", Price: 0.30}}},
			{ID: "b"}, // no outcomes
		},
	}
	assert.Empty(t, d.Detect(domain.MarketSnapshot{Groups: []domain.EventGroup{group}}, time.Now()))

	single := domain.EventGroup{
		ID:      "ev3",
		Markets: []domain.Market{{ID: "a", Outcomes: []domain.Outcome{{Name: "A", Price: 0.30}}}},
	}
	assert.Empty(t, d.Detect(domain.MarketSnapshot{Groups: []domain.EventGroup{single}}, time.Now()))
}

func TestDetectEmptySnapshot(t *testing.T) {
	d := New(0)
	assert.Empty(t, d.Detect(domain.MarketSnapshot{}, time.Now()))
}

func TestRounding(t *testing.T) {
	d := New(0)
	snap := domain.MarketSnapshot{
		Markets: []domain.Market{binaryMarket("m", 0.333333, 0.444444)},
	}
	opps := d.Detect(snap, time.Now())
	require.Len(t, opps, 1)
	assert.Equal(t, 0.3333, opps[0].YesPrice)
	assert.Equal(t, 0.4444, opps[0].NoPrice)
	assert.Equal(t, 0.7778, opps[0].PriceSum)
	assert.Equal(t, 22.22, opps[0].ProfitPercent)
}
