package domain

import "time"

// MarketStatus is the exchange-reported lifecycle state of a contract.
type MarketStatus string

const (
	MarketStatusOpen    MarketStatus = "open"
	MarketStatusActive  MarketStatus = "active"
	MarketStatusClosed  MarketStatus = "closed"
	MarketStatusSettled MarketStatus = "settled"
)

// Tradable reports whether orders may be placed against the market.
func (s MarketStatus) Tradable() bool {
	return s == MarketStatusOpen || s == MarketStatusActive
}

// Market is an exchange-quoted binary contract. Prices are 0-1 probabilities.
type Market struct {
	ID        string       `json:"id"`
	Exchange  string       `json:"exchange"`
	Title     string       `json:"title"`
	Subtitle  string       `json:"subtitle,omitempty"`
	YesPrice  float64      `json:"yes_price"`
	NoPrice   float64      `json:"no_price"`
	YesVolume float64      `json:"yes_volume"`
	NoVolume  float64      `json:"no_volume"`
	Status    MarketStatus `json:"status"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// TotalVolume is the two-sided traded volume.
func (m Market) TotalVolume() float64 {
	return m.YesVolume + m.NoVolume
}

// MarketMapping links a contest to its candidate markets and the pricing
// baseline captured when the mapping was created.
type MarketMapping struct {
	ContestID        string    `json:"contest_id"`
	Sport            Sport     `json:"sport"`
	HomeTeamName     string    `json:"home_team_name"`
	AwayTeamName     string    `json:"away_team_name"`
	League           string    `json:"league,omitempty"`
	StartTime        time.Time `json:"start_time"`
	Markets          []Market  `json:"markets"`
	PreEventHomeProb *float64  `json:"pre_event_home_prob,omitempty"`
	PreEventAwayProb *float64  `json:"pre_event_away_prob,omitempty"`
	Spread           *float64  `json:"spread,omitempty"`
	LastUpdated      time.Time `json:"last_updated"`
}

// PreEventProb returns the baseline probability for one side, or nil.
func (m MarketMapping) PreEventProb(home bool) *float64 {
	if home {
		return m.PreEventHomeProb
	}
	return m.PreEventAwayProb
}

// HasBothProbs reports whether both sides carry a non-zero baseline.
func (m MarketMapping) HasBothProbs() bool {
	return m.PreEventHomeProb != nil && m.PreEventAwayProb != nil &&
		*m.PreEventHomeProb > 0 && *m.PreEventAwayProb > 0
}

// EmptyMapping is the mapping used when market resolution yields nothing.
func EmptyMapping(c Contest) MarketMapping {
	return MarketMapping{
		ContestID:    c.ID,
		Sport:        c.Sport,
		HomeTeamName: c.Home.Name,
		AwayTeamName: c.Away.Name,
		League:       c.League,
		StartTime:    c.StartTime,
		Markets:      []Market{},
		Spread:       c.Spread,
		LastUpdated:  time.Now().UTC(),
	}
}
