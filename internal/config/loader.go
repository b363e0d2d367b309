package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults and applies SCORETRADER_* environment overrides. A
// missing file is not an error; the defaults and environment still apply.
// The returned Config has NOT been validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return nil, err
			}
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides overwrites Config fields whose SCORETRADER_* variable
// is set, so secrets can be injected at deploy time.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Mode, "SCORETRADER_MODE")
	setStr(&cfg.LogLevel, "SCORETRADER_LOG_LEVEL")

	// ── Trading ──
	setBool(&cfg.Trading.Enabled, "SCORETRADER_TRADING_ENABLED")
	setStringSlice(&cfg.Trading.Sports, "SCORETRADER_TRADING_SPORTS")
	setDuration(&cfg.Trading.PollInterval, "SCORETRADER_TRADING_POLL_INTERVAL")
	setDuration(&cfg.Trading.ExitSweepInterval, "SCORETRADER_TRADING_EXIT_SWEEP_INTERVAL")
	setDuration(&cfg.Trading.MaxHold, "SCORETRADER_TRADING_MAX_HOLD")
	setDuration(&cfg.Trading.OrderTimeout, "SCORETRADER_TRADING_ORDER_TIMEOUT")
	setInt(&cfg.Trading.RateLimit, "SCORETRADER_TRADING_RATE_LIMIT")

	// ── Risk ──
	setFloat64(&cfg.Risk.Bankroll, "SCORETRADER_RISK_BANKROLL")
	setFloat64(&cfg.Risk.MaxPerTradePct, "SCORETRADER_RISK_MAX_PER_TRADE_PCT")
	setFloat64(&cfg.Risk.DailyLossLimit, "SCORETRADER_RISK_DAILY_LOSS_LIMIT")
	setFloat64(&cfg.Risk.PerMatchMaxExposure, "SCORETRADER_RISK_PER_MATCH_MAX_EXPOSURE")
	setFloat64(&cfg.Risk.TakeProfitPct, "SCORETRADER_RISK_TAKE_PROFIT_PCT")
	setFloat64(&cfg.Risk.StopLossPct, "SCORETRADER_RISK_STOP_LOSS_PCT")
	setInt(&cfg.Risk.MaxConsecutiveErrors, "SCORETRADER_RISK_MAX_CONSECUTIVE_ERRORS")

	// ── ESPN ──
	setStr(&cfg.ESPN.BaseURL, "SCORETRADER_ESPN_BASE_URL")
	setStr(&cfg.ESPN.SoccerLeague, "SCORETRADER_ESPN_SOCCER_LEAGUE")

	// ── Kalshi ──
	setStr(&cfg.Kalshi.BaseURL, "SCORETRADER_KALSHI_BASE_URL")
	setStr(&cfg.Kalshi.ApiKey, "SCORETRADER_KALSHI_API_KEY")
	setStr(&cfg.Kalshi.RsaPrivateKeyPath, "SCORETRADER_KALSHI_RSA_PRIVATE_KEY_PATH")
	setStr(&cfg.Kalshi.EncryptedKeyPath, "SCORETRADER_KALSHI_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Kalshi.KeyPassword, "SCORETRADER_KALSHI_KEY_PASSWORD")
	setFloat64(&cfg.Kalshi.OrdersPerSecond, "SCORETRADER_KALSHI_ORDERS_PER_SECOND")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "SCORETRADER_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "SCORETRADER_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "SCORETRADER_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SCORETRADER_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SCORETRADER_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SCORETRADER_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SCORETRADER_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SCORETRADER_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "SCORETRADER_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "SCORETRADER_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "SCORETRADER_POSTGRES_RUN_MIGRATIONS")

	// ── SQLite ──
	setBool(&cfg.SQLite.Enabled, "SCORETRADER_SQLITE_ENABLED")
	setStr(&cfg.SQLite.Path, "SCORETRADER_SQLITE_PATH")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "SCORETRADER_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "SCORETRADER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SCORETRADER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SCORETRADER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SCORETRADER_REDIS_POOL_SIZE")
	setBool(&cfg.Redis.TLSEnabled, "SCORETRADER_REDIS_TLS_ENABLED")
	setInt64(&cfg.Redis.StreamMaxLen, "SCORETRADER_REDIS_STREAM_MAX_LEN")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "SCORETRADER_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "SCORETRADER_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SCORETRADER_S3_REGION")
	setStr(&cfg.S3.Bucket, "SCORETRADER_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SCORETRADER_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SCORETRADER_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "SCORETRADER_S3_USE_SSL")

	// ── Schedule ──
	setStr(&cfg.Schedule.ArchiveCron, "SCORETRADER_SCHEDULE_ARCHIVE_CRON")
	setStr(&cfg.Schedule.SnapshotCron, "SCORETRADER_SCHEDULE_SNAPSHOT_CRON")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "SCORETRADER_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "SCORETRADER_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "SCORETRADER_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "SCORETRADER_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "SCORETRADER_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "SCORETRADER_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SCORETRADER_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SCORETRADER_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SCORETRADER_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SCORETRADER_NOTIFY_EVENTS")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

// setStringSlice splits a comma-separated value, dropping blanks.
func setStringSlice(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var cleaned []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) > 0 {
		*dst = cleaned
	}
}
