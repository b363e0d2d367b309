package espn

import (
	"encoding/json"
	"strconv"
)

// scoreboard is the subset of the ESPN scoreboard payload we read.
type scoreboard struct {
	Leagues []espnLeague `json:"leagues"`
	Events  []espnEvent  `json:"events"`
}

type espnLeague struct {
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
}

type espnEvent struct {
	ID           string            `json:"id"`
	Date         string            `json:"date"`
	Name         string            `json:"name"`
	Status       espnStatus        `json:"status"`
	Competitions []espnCompetition `json:"competitions"`
}

type espnStatus struct {
	Clock        float64 `json:"clock"`
	DisplayClock string  `json:"displayClock"`
	Period       int     `json:"period"`
	Type         struct {
		Name      string `json:"name"`  // STATUS_IN_PROGRESS, STATUS_HALFTIME, ...
		State     string `json:"state"` // pre, in, post
		Completed bool   `json:"completed"`
		Detail    string `json:"detail"`
	} `json:"type"`
}

type espnCompetition struct {
	Competitors []espnCompetitor `json:"competitors"`
	Odds        []espnOdds       `json:"odds"`
}

type espnCompetitor struct {
	HomeAway string   `json:"homeAway"`
	Score    flexInt  `json:"score"`
	Team     espnTeam `json:"team"`
}

type espnTeam struct {
	ID           string `json:"id"`
	DisplayName  string `json:"displayName"`
	Abbreviation string `json:"abbreviation"`
}

type espnOdds struct {
	Details   string     `json:"details"`
	Spread    *flexFloat `json:"spread"`
	OverUnder *flexFloat `json:"overUnder"`
}

// flexInt accepts both "21" and 21. ESPN sends scores as strings on some
// endpoints and numbers on others.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexInt(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	var v float64
	if err := json.Unmarshal(b, &v); err == nil {
		*f = flexFloat(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}
