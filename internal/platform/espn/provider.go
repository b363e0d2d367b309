package espn

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/scoretrader/internal/domain"
)

// Provider implements domain.ScoreProvider for one sport.
type Provider struct {
	client *Client
	sport  domain.Sport
	league string
	path   string
	now    func() time.Time
}

// NewProvider returns a provider for sport. league selects the soccer
// competition and is ignored for other sports.
func NewProvider(client *Client, sport domain.Sport, league string) (*Provider, error) {
	path, err := SportPath(sport, league)
	if err != nil {
		return nil, err
	}
	if sport == domain.SportSoccer && league == "" {
		league = "eng.1"
	}
	return &Provider{
		client: client,
		sport:  sport,
		league: league,
		path:   path,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

var _ domain.ScoreProvider = (*Provider)(nil)

func (p *Provider) Sport() domain.Sport { return p.sport }

// Contests returns every contest on today's scoreboard.
func (p *Provider) Contests(ctx context.Context) ([]domain.Contest, error) {
	sb, err := p.client.scoreboard(ctx, p.path)
	if err != nil {
		return nil, fmt.Errorf("espn: %s scoreboard: %w", p.sport, err)
	}
	now := p.now()
	league := p.league
	if len(sb.Leagues) > 0 && sb.Leagues[0].Name != "" {
		league = sb.Leagues[0].Name
	}
	out := make([]domain.Contest, 0, len(sb.Events))
	for _, ev := range sb.Events {
		c, ok := p.parse(ev, league, now)
		if !ok {
			p.client.logger.DebugContext(ctx, "skipping malformed event",
				slog.String("sport", string(p.sport)),
				slog.String("event_id", ev.ID),
			)
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// LiveContests returns in-progress and halftime contests only.
func (p *Provider) LiveContests(ctx context.Context) ([]domain.Contest, error) {
	all, err := p.Contests(ctx)
	if err != nil {
		return nil, err
	}
	live := all[:0]
	for _, c := range all {
		if c.Status.IsLive() {
			live = append(live, c)
		}
	}
	return live, nil
}

// DetectScoringEvents compares two snapshots of this provider's sport.
func (p *Provider) DetectScoringEvents(prev map[string]domain.Contest, current []domain.Contest) []domain.ScoringEvent {
	return Detect(prev, current)
}

func (p *Provider) parse(ev espnEvent, league string, now time.Time) (domain.Contest, bool) {
	if ev.ID == "" || len(ev.Competitions) == 0 {
		return domain.Contest{}, false
	}
	comp := ev.Competitions[0]

	c := domain.Contest{
		ID:        ev.ID,
		Sport:     p.sport,
		League:    league,
		Status:    parseStatus(ev.Status),
		Period:    ev.Status.Period,
		Clock:     ev.Status.DisplayClock,
		UpdatedAt: now,
	}
	var home, away bool
	for _, cp := range comp.Competitors {
		team := domain.Team{ID: cp.Team.ID, Name: cp.Team.DisplayName, Abbreviation: cp.Team.Abbreviation}
		if cp.HomeAway == "home" {
			c.Home, c.HomeScore, home = team, int(cp.Score), true
		} else {
			c.Away, c.AwayScore, away = team, int(cp.Score), true
		}
	}
	if !home || !away {
		return domain.Contest{}, false
	}

	if t, err := time.Parse(time.RFC3339, ev.Date); err == nil {
		c.StartTime = t.UTC()
	} else if t, err := time.Parse("2006-01-02T15:04Z", ev.Date); err == nil {
		c.StartTime = t.UTC()
	}

	if p.sport == domain.SportSoccer {
		c.Minute = parseMinute(ev.Status.DisplayClock)
	}

	if len(comp.Odds) > 0 {
		o := comp.Odds[0]
		if o.Spread != nil && *o.Spread != 0 {
			v := float64(*o.Spread)
			c.Spread = &v
		}
		if o.OverUnder != nil && *o.OverUnder != 0 {
			v := float64(*o.OverUnder)
			c.OverUnder = &v
		}
	}
	return c, true
}

func parseStatus(s espnStatus) domain.ContestStatus {
	switch s.Type.Name {
	case "STATUS_HALFTIME":
		return domain.ContestHalftime
	case "STATUS_POSTPONED":
		return domain.ContestPostponed
	case "STATUS_CANCELED", "STATUS_CANCELLED":
		return domain.ContestCancelled
	case "STATUS_ABANDONED", "STATUS_FORFEIT":
		return domain.ContestAbandoned
	}
	detail := strings.ToLower(s.Type.Detail)
	switch {
	case strings.Contains(detail, "postponed"):
		return domain.ContestPostponed
	case strings.Contains(detail, "canceled"), strings.Contains(detail, "cancelled"):
		return domain.ContestCancelled
	}
	switch s.Type.State {
	case "in":
		return domain.ContestInProgress
	case "post":
		return domain.ContestFinal
	default:
		return domain.ContestScheduled
	}
}

// parseMinute reads soccer clocks such as "67'" or "45'+2'".
func parseMinute(clock string) int {
	total := 0
	for _, part := range strings.Split(clock, "+") {
		part = strings.Trim(strings.TrimSpace(part), "'")
		if n, err := strconv.Atoi(part); err == nil {
			total += n
		}
	}
	return total
}
