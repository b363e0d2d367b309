// Package config defines the top-level configuration for the score trader
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/scoretrader/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by SCORETRADER_* environment variables.
type Config struct {
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
	Trading  TradingConfig  `toml:"trading"`
	Risk     RiskConfig     `toml:"risk"`
	Strategy StrategyConfig `toml:"strategy"`
	Market   MarketConfig   `toml:"market"`
	ESPN     ESPNConfig     `toml:"espn"`
	Kalshi   KalshiConfig   `toml:"kalshi"`
	Postgres PostgresConfig `toml:"postgres"`
	SQLite   SQLiteConfig   `toml:"sqlite"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Schedule ScheduleConfig `toml:"schedule"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
}

// TradingConfig controls the poll loops and order execution.
type TradingConfig struct {
	Enabled           bool     `toml:"enabled"`
	Sports            []string `toml:"sports"`
	PollInterval      duration `toml:"poll_interval"`
	ExitSweepInterval duration `toml:"exit_sweep_interval"`
	MaxHold           duration `toml:"max_hold"`
	OrderTimeout      duration `toml:"order_timeout"`
	DedupTTL          duration `toml:"dedup_ttl"`
	EventLockTTL      duration `toml:"event_lock_ttl"`
	// Orders per RateWindow across every process sharing Redis. 0 disables.
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
	HistorySize int      `toml:"history_size"`
}

// RiskConfig holds bankroll and circuit-breaker limits.
type RiskConfig struct {
	Bankroll             float64 `toml:"bankroll"`
	MaxPerTradePct       float64 `toml:"max_per_trade_pct"`
	DailyLossLimit       float64 `toml:"daily_loss_limit"`
	PerMatchMaxExposure  float64 `toml:"per_match_max_exposure"`
	TakeProfitPct        float64 `toml:"take_profit_pct"`
	StopLossPct          float64 `toml:"stop_loss_pct"`
	MaxConsecutiveErrors int     `toml:"max_consecutive_errors"`
	MaxLatencyMs         float64 `toml:"max_latency_ms"`
	MinTradeSize         float64 `toml:"min_trade_size"`
}

// StrategyConfig holds evaluator thresholds. Sports carries per-sport
// overrides keyed by sport tag.
type StrategyConfig struct {
	UnderdogThreshold float64                  `toml:"underdog_threshold"`
	MinLiquidity      float64                  `toml:"min_liquidity"`
	LimitPremium      float64                  `toml:"limit_premium"`
	ExpectedMove      float64                  `toml:"expected_move"`
	ValueFloor        float64                  `toml:"value_floor"`
	Sports            map[string]SportOverride `toml:"sports"`
}

// SportOverride replaces individual per-sport parameters. Zero values keep
// the built-in value.
type SportOverride struct {
	MinPoints         int     `toml:"min_points"`
	MaxPrice          float64 `toml:"max_price"`
	MaxDifferential   int     `toml:"max_differential"`
	UnderdogThreshold float64 `toml:"underdog_threshold"`
}

// MarketConfig tunes contest-to-market resolution.
type MarketConfig struct {
	CacheTTL           duration `toml:"cache_ttl"`
	MinMatchConfidence float64  `toml:"min_match_confidence"`
	ListLimit          int      `toml:"list_limit"`
}

// ESPNConfig holds the scoreboard client parameters.
type ESPNConfig struct {
	BaseURL           string   `toml:"base_url"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	Burst             int      `toml:"burst"`
	Timeout           duration `toml:"timeout"`
	SoccerLeague      string   `toml:"soccer_league"`
}

// KalshiConfig holds Kalshi exchange API credentials.
type KalshiConfig struct {
	BaseURL           string  `toml:"base_url"`
	ApiKey            string  `toml:"api_key"`
	RsaPrivateKeyPath string  `toml:"rsa_private_key_path"`
	EncryptedKeyPath  string  `toml:"encrypted_key_path"`
	KeyPassword       string  `toml:"key_password"`
	OrdersPerSecond   float64 `toml:"orders_per_second"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// SQLiteConfig holds the local mirror path.
type SQLiteConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled      bool   `toml:"enabled"`
	Addr         string `toml:"addr"`
	Password     string `toml:"password"`
	DB           int    `toml:"db"`
	PoolSize     int    `toml:"pool_size"`
	MaxRetries   int    `toml:"max_retries"`
	TLSEnabled   bool   `toml:"tls_enabled"`
	KeyPrefix    string `toml:"key_prefix"`
	StreamMaxLen int64  `toml:"stream_max_len"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	ArchivePrefix  string `toml:"archive_prefix"`
}

// ScheduleConfig holds cron expressions for background jobs. An empty
// expression disables the job.
type ScheduleConfig struct {
	ArchiveCron  string `toml:"archive_cron"`
	SnapshotCron string `toml:"snapshot_cron"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// APIKey guards mutating routes. Empty leaves them open.
	APIKey string `toml:"api_key"`
	// Requests per client IP per RateWindow. Needs Redis; 0 disables.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
	Cooldown          duration `toml:"cooldown"`
}

// Defaults returns a Config populated with sensible default values.
func Defaults() Config {
	return Config{
		Mode:     "trade",
		LogLevel: "info",
		Trading: TradingConfig{
			Sports:            []string{"soccer", "nfl", "nba", "mlb", "nhl"},
			PollInterval:      duration{30 * time.Second},
			ExitSweepInterval: duration{15 * time.Second},
			MaxHold:           duration{90 * time.Minute},
			OrderTimeout:      duration{10 * time.Second},
			DedupTTL:          duration{2 * time.Minute},
			EventLockTTL:      duration{10 * time.Minute},
			RateWindow:        duration{time.Second},
			HistorySize:       1000,
		},
		Risk: RiskConfig{
			Bankroll:             10000,
			MaxPerTradePct:       0.5,
			DailyLossLimit:       500,
			PerMatchMaxExposure:  200,
			TakeProfitPct:        0.15,
			StopLossPct:          0.10,
			MaxConsecutiveErrors: 5,
			MaxLatencyMs:         5000,
			MinTradeSize:         1,
		},
		Strategy: StrategyConfig{
			UnderdogThreshold: 0.5,
			MinLiquidity:      100,
			LimitPremium:      0.02,
			ExpectedMove:      0.10,
			ValueFloor:        0.50,
		},
		Market: MarketConfig{
			CacheTTL:           duration{300 * time.Second},
			MinMatchConfidence: 0.7,
			ListLimit:          200,
		},
		ESPN: ESPNConfig{
			BaseURL:           "https://site.api.espn.com/apis/site/v2/sports",
			RequestsPerSecond: 2,
			Burst:             4,
			Timeout:           duration{15 * time.Second},
			SoccerLeague:      "eng.1",
		},
		Kalshi: KalshiConfig{
			BaseURL:         "https://api.elections.kalshi.com/trade-api/v2",
			OrdersPerSecond: 5,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "scoretrader",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		SQLite: SQLiteConfig{
			Path: "data/scoretrader.db",
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     10,
			MaxRetries:   3,
			KeyPrefix:    "scoretrader",
			StreamMaxLen: 10000,
		},
		S3: S3Config{
			Region:         "us-east-1",
			ForcePathStyle: true,
			ArchivePrefix:  "archive",
		},
		Schedule: ScheduleConfig{
			ArchiveCron:  "0 4 * * *",
			SnapshotCron: "*/5 * * * *",
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
			RateLimit:   120,
			RateWindow:  duration{time.Minute},
		},
		Notify: NotifyConfig{
			Cooldown: duration{time.Minute},
		},
	}
}

// Sports parses Trading.Sports. Unknown tags are skipped; Validate reports
// them.
func (c *Config) Sports() []domain.Sport {
	out := make([]domain.Sport, 0, len(c.Trading.Sports))
	seen := make(map[domain.Sport]bool)
	for _, s := range c.Trading.Sports {
		sp, err := domain.ParseSport(s)
		if err != nil || seen[sp] {
			continue
		}
		seen[sp] = true
		out = append(out, sp)
	}
	return out
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	switch c.Mode {
	case "trade", "paper", "server", "report":
	default:
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, paper, server, report)", c.Mode))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Trading
	if len(c.Trading.Sports) == 0 && (c.Mode == "trade" || c.Mode == "paper") {
		errs = append(errs, "trading: sports must not be empty for mode "+c.Mode)
	}
	for _, s := range c.Trading.Sports {
		if _, err := domain.ParseSport(s); err != nil {
			errs = append(errs, "trading: "+err.Error())
		}
	}
	if c.Trading.PollInterval.Duration <= 0 {
		errs = append(errs, "trading: poll_interval must be > 0")
	}
	if c.Trading.ExitSweepInterval.Duration <= 0 {
		errs = append(errs, "trading: exit_sweep_interval must be > 0")
	}
	if c.Trading.OrderTimeout.Duration <= 0 {
		errs = append(errs, "trading: order_timeout must be > 0")
	}
	if c.Trading.RateLimit < 0 {
		errs = append(errs, "trading: rate_limit must be >= 0")
	}

	// Risk
	if c.Risk.Bankroll <= 0 {
		errs = append(errs, "risk: bankroll must be > 0")
	}
	if c.Risk.MaxPerTradePct <= 0 || c.Risk.MaxPerTradePct > 100 {
		errs = append(errs, fmt.Sprintf("risk: max_per_trade_pct must be in (0, 100], got %g", c.Risk.MaxPerTradePct))
	}
	if c.Risk.DailyLossLimit <= 0 {
		errs = append(errs, "risk: daily_loss_limit must be > 0")
	}
	if c.Risk.PerMatchMaxExposure <= 0 {
		errs = append(errs, "risk: per_match_max_exposure must be > 0")
	}
	if c.Risk.TakeProfitPct <= 0 || c.Risk.StopLossPct <= 0 {
		errs = append(errs, "risk: take_profit_pct and stop_loss_pct must be > 0")
	}
	if c.Risk.MaxConsecutiveErrors < 1 {
		errs = append(errs, "risk: max_consecutive_errors must be >= 1")
	}

	// Strategy
	if c.Strategy.LimitPremium < 0 || c.Strategy.LimitPremium >= 1 {
		errs = append(errs, "strategy: limit_premium must be in [0, 1)")
	}
	for tag, o := range c.Strategy.Sports {
		if _, err := domain.ParseSport(tag); err != nil {
			errs = append(errs, "strategy.sports: "+err.Error())
		}
		if o.MaxPrice < 0 || o.MaxPrice >= 1 {
			errs = append(errs, fmt.Sprintf("strategy.sports.%s: max_price must be in [0, 1)", tag))
		}
	}

	// Market
	if c.Market.MinMatchConfidence <= 0 || c.Market.MinMatchConfidence > 1 {
		errs = append(errs, "market: min_match_confidence must be in (0, 1]")
	}

	// Kalshi
	if c.Mode == "trade" {
		if c.Kalshi.BaseURL == "" {
			errs = append(errs, "kalshi: base_url must not be empty")
		}
		if c.Kalshi.EncryptedKeyPath != "" && c.Kalshi.KeyPassword == "" {
			errs = append(errs, "kalshi: key_password is required when encrypted_key_path is set")
		}
	}

	// Postgres
	if c.Postgres.Enabled {
		if c.Postgres.DSN == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
		}
	}

	if c.SQLite.Enabled && c.SQLite.Path == "" {
		errs = append(errs, "sqlite: path must not be empty")
	}
	if c.Mode == "report" && !c.SQLite.Enabled && !c.Postgres.Enabled {
		errs = append(errs, "report mode needs sqlite or postgres enabled")
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
	}

	if c.Server.Enabled || c.Mode == "server" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
			errs = append(errs, "server: rate_window must be > 0 when rate_limit is set")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
