package domain

// Outcome is a single named outcome of a prediction market with its current
// price. Prices are probabilities in [0,1]. Volume is optional and may be 0
// when the upstream feed does not report it.
type Outcome struct {
	Name   string  `json:"name"`
	Price  float64 `json:"price"`
	Volume float64 `json:"volume,omitempty"`
}

// Market is a normalized snapshot of one prediction market as returned by the
// price feed. Markets that fail to parse at the feed boundary never reach
// this type.
type Market struct {
	ID       string    `json:"id"`
	Question string    `json:"question"`
	Slug     string    `json:"slug,omitempty"`
	Outcomes []Outcome `json:"outcomes"`
	Volume24 float64   `json:"volume24hr"`
}

// EventGroup is a set of mutually exclusive markets grouped under one event
// (e.g. "Who wins the election?" with one market per candidate).
type EventGroup struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Markets []Market `json:"markets"`
}

// MarketSnapshot is the result of one upstream fetch: the flat market list
// plus the event groupings used for multi-outcome detection.
type MarketSnapshot struct {
	Markets []Market
	Groups  []EventGroup
}
