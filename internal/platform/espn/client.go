// Package espn reads live scoreboards from ESPN's public site API and turns
// consecutive snapshots into scoring events.
package espn

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/alanyoungcy/scoretrader/internal/domain"
)

// DefaultBaseURL is ESPN's public site API root.
const DefaultBaseURL = "https://site.api.espn.com/apis/site/v2/sports"

const (
	maxRetries    = 2
	baseRetryWait = 500 * time.Millisecond
)

// ClientConfig tunes the HTTP client.
type ClientConfig struct {
	BaseURL           string
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
}

// Client fetches scoreboards. One Client is shared by every sport provider
// so the rate limit applies to the whole process.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient builds a paced client.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 2
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		logger:  logger.With(slog.String("component", "espn")),
	}
}

// SportPath returns the scoreboard path segment for a sport. league only
// applies to soccer and defaults to the English Premier League.
func SportPath(sport domain.Sport, league string) (string, error) {
	switch sport {
	case domain.SportNFL:
		return "football/nfl", nil
	case domain.SportNBA:
		return "basketball/nba", nil
	case domain.SportMLB:
		return "baseball/mlb", nil
	case domain.SportNHL:
		return "hockey/nhl", nil
	case domain.SportSoccer:
		if league == "" {
			league = "eng.1"
		}
		return "soccer/" + league, nil
	}
	return "", fmt.Errorf("espn: %w: %q", domain.ErrUnknownSport, sport)
}

// scoreboard fetches {base}/{path}/scoreboard, retrying on 5xx and 429.
func (c *Client) scoreboard(ctx context.Context, path string) (scoreboard, error) {
	url := c.baseURL + "/" + path + "/scoreboard"

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			wait := baseRetryWait << (attempt - 1)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return scoreboard{}, ctx.Err()
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return scoreboard{}, fmt.Errorf("espn: rate limiter: %w", err)
		}

		sb, retry, err := c.fetch(ctx, url)
		if err == nil {
			return sb, nil
		}
		lastErr = err
		if !retry {
			break
		}
		c.logger.WarnContext(ctx, "scoreboard request failed, retrying",
			slog.String("path", path),
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()),
		)
	}
	return scoreboard{}, lastErr
}

func (c *Client) fetch(ctx context.Context, url string) (scoreboard, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return scoreboard{}, false, fmt.Errorf("espn: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return scoreboard{}, ctx.Err() == nil, fmt.Errorf("espn: http request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return scoreboard{}, true, fmt.Errorf("espn: %w", domain.ErrRateLimited)
	case resp.StatusCode >= 500:
		return scoreboard{}, true, fmt.Errorf("espn: HTTP %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return scoreboard{}, false, fmt.Errorf("espn: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var sb scoreboard
	if err := json.NewDecoder(resp.Body).Decode(&sb); err != nil {
		return scoreboard{}, false, fmt.Errorf("espn: decode scoreboard: %w", err)
	}
	return sb, false, nil
}
