// Package detector implements price-arbitrage detection over market
// snapshots. Detection is a pure function: given the markets and event
// groupings from one upstream fetch, it returns the ranked opportunity list.
// Markets with missing outcomes or unusable prices are skipped, never
// surfaced as errors; absence of signal is a valid result.
package detector

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/arbdesk/arbdesk/internal/domain"
)

// DefaultEpsilon filters opportunities whose price sum is within noise of 1.
// A binary market summing to 0.998 is indistinguishable from fee drag.
const DefaultEpsilon = 0.995

// Detector holds the detection parameters. The zero value is not usable;
// construct with New.
type Detector struct {
	epsilon float64
}

// New creates a Detector. epsilon <= 0 or >= 1 falls back to DefaultEpsilon.
func New(epsilon float64) *Detector {
	if epsilon <= 0 || epsilon >= 1 {
		epsilon = DefaultEpsilon
	}
	return &Detector{epsilon: epsilon}
}

// Detect scans the snapshot for guaranteed-profit conditions and returns
// opportunities sorted by profit percent descending. Binary markets
// contribute when yes+no < epsilon; event groups contribute when the sum of
// every member market's primary outcome price is below epsilon.
func (d *Detector) Detect(snap domain.MarketSnapshot, now time.Time) []domain.ArbOpportunity {
	opps := make([]domain.ArbOpportunity, 0, 8)

	for _, m := range snap.Markets {
		if opp, ok := d.detectBinary(m, now); ok {
			opps = append(opps, opp)
		}
	}
	for _, g := range snap.Groups {
		if opp, ok := d.detectGroup(g, now); ok {
			opps = append(opps, opp)
		}
	}

	sort.SliceStable(opps, func(i, j int) bool {
		return opps[i].ProfitPercent > opps[j].ProfitPercent
	})
	return opps
}

// detectBinary checks a single two-sided market: buying both sides costs
// yes+no and pays out exactly 1.
func (d *Detector) detectBinary(m domain.Market, now time.Time) (domain.ArbOpportunity, bool) {
	yes, no, ok := yesNoPrices(m)
	if !ok {
		return domain.ArbOpportunity{}, false
	}

	sum := yes + no
	if sum >= d.epsilon {
		return domain.ArbOpportunity{}, false
	}

	return domain.ArbOpportunity{
		MarketID:      m.ID,
		MarketName:    m.Question,
		YesPrice:      round4(yes),
		NoPrice:       round4(no),
		PriceSum:      round4(sum),
		ProfitPercent: round2((1 - sum) * 100),
		Volume24:      m.Volume24,
		Timestamp:     now,
	}, true
}

// detectGroup checks a set of mutually exclusive markets under one event:
// buying the primary outcome of every member guarantees a payout of 1 for a
// total cost equal to the sum of primary prices. Outcome index 0 is treated
// as the primary outcome.
func (d *Detector) detectGroup(g domain.EventGroup, now time.Time) (domain.ArbOpportunity, bool) {
	if len(g.Markets) < 2 {
		return domain.ArbOpportunity{}, false
	}

	var (
		total  float64
		volume float64
		maxPx  = math.Inf(-1)
		minPx  = math.Inf(1)
	)
	for _, m := range g.Markets {
		px, ok := primaryPrice(m)
		if !ok {
			// One unreadable member invalidates the whole basket.
			return domain.ArbOpportunity{}, false
		}
		total += px
		volume += m.Volume24
		maxPx = math.Max(maxPx, px)
		minPx = math.Min(minPx, px)
	}

	if total >= d.epsilon {
		return domain.ArbOpportunity{}, false
	}

	// Max/min primary prices serve as display bounds for the basket.
	return domain.ArbOpportunity{
		MarketID:      g.ID,
		MarketName:    g.Title,
		YesPrice:      round4(maxPx),
		NoPrice:       round4(minPx),
		PriceSum:      round4(total),
		ProfitPercent: round2((1 - total) * 100),
		Volume24:      volume,
		Timestamp:     now,
	}, true
}

// yesNoPrices extracts the yes/no pair from a market. Outcome names are
// matched case-insensitively; a two-outcome market with other names falls
// back to positional matching.
func yesNoPrices(m domain.Market) (yes, no float64, ok bool) {
	var haveYes, haveNo bool
	for _, o := range m.Outcomes {
		switch strings.ToLower(strings.TrimSpace(o.Name)) {
		case "yes":
			if !haveYes {
				yes, haveYes = o.Price, true
			}
		case "no":
			if !haveNo {
				no, haveNo = o.Price, true
			}
		}
	}

	if (!haveYes || !haveNo) && len(m.Outcomes) == 2 {
		yes, no = m.Outcomes[0].Price, m.Outcomes[1].Price
		haveYes, haveNo = true, true
	}
	if !haveYes || !haveNo {
		return 0, 0, false
	}
	if !validPrice(yes) || !validPrice(no) {
		return 0, 0, false
	}
	return yes, no, true
}

// primaryPrice returns the first-listed outcome price of a market.
func primaryPrice(m domain.Market) (float64, bool) {
	if len(m.Outcomes) == 0 {
		return 0, false
	}
	px := m.Outcomes[0].Price
	if !validPrice(px) {
		return 0, false
	}
	return px, true
}

// validPrice accepts probabilities strictly inside (0,1]; zero means the
// feed had no quote.
func validPrice(p float64) bool {
	return !math.IsNaN(p) && p > 0 && p <= 1
}

func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
