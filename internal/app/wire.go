package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/scoretrader/internal/blob/s3"
	"github.com/alanyoungcy/scoretrader/internal/cache/memory"
	"github.com/alanyoungcy/scoretrader/internal/cache/redis"
	"github.com/alanyoungcy/scoretrader/internal/config"
	"github.com/alanyoungcy/scoretrader/internal/crypto"
	"github.com/alanyoungcy/scoretrader/internal/domain"
	"github.com/alanyoungcy/scoretrader/internal/notify"
	"github.com/alanyoungcy/scoretrader/internal/platform/espn"
	"github.com/alanyoungcy/scoretrader/internal/platform/kalshi"
	"github.com/alanyoungcy/scoretrader/internal/platform/paper"
	"github.com/alanyoungcy/scoretrader/internal/service"
	"github.com/alanyoungcy/scoretrader/internal/store"
	"github.com/alanyoungcy/scoretrader/internal/store/postgres"
	"github.com/alanyoungcy/scoretrader/internal/store/sqlite"
)

// Dependencies bundles the infrastructure the modes run on. It is built by
// Wire and torn down by the cleanup function Wire returns.
type Dependencies struct {
	// Mirrors
	Recorder domain.Recorder      // never nil
	History  domain.HistoryReader // nil when no mirror is enabled

	// Caches and messaging. Only SignalBus is always set.
	PriceCache  domain.PriceCache
	MarketCache domain.MarketCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	Archiver *s3blob.Archiver
	Notifier *notify.Notifier

	// Venue and feeds. Unset in report mode.
	Exchange  domain.Exchange
	Markets   service.MarketSource
	Providers []domain.ScoreProvider
}

// needsVenue reports whether the mode talks to Kalshi and ESPN.
func needsVenue(mode string) bool {
	return mode != "report"
}

// Wire constructs the dependencies enabled by cfg for its mode and returns
// them with a cleanup function that releases them in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	base := logger
	logger = logger.With(slog.String("component", "wire"))

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(what string, err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %s: %w", what, err)
	}

	deps := &Dependencies{}
	var recorders []domain.Recorder

	// --- Postgres mirror ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail("postgres", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail("postgres migrations", err)
			}
		}
		rec := postgres.NewRecorder(pgClient.Pool())
		recorders = append(recorders, rec)
		deps.History = rec
		logger.InfoContext(ctx, "postgres mirror enabled")
	}

	// --- SQLite mirror ---
	if cfg.SQLite.Enabled {
		st, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return fail("sqlite", err)
		}
		closers = append(closers, func() { _ = st.Close() })
		recorders = append(recorders, st)
		if deps.History == nil {
			deps.History = st
		}
		logger.InfoContext(ctx, "sqlite mirror enabled", slog.String("path", cfg.SQLite.Path))
	}

	deps.Recorder = store.NewMultiRecorder(recorders...)

	if !needsVenue(cfg.Mode) {
		return deps, cleanup, nil
	}

	// --- Redis, or the in-process bus when it is disabled ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			KeyPrefix:  cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return fail("redis", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.PriceCache = redis.NewPriceCache(redisClient, cfg.Market.CacheTTL.Duration)
		deps.MarketCache = redis.NewMarketCache(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient, cfg.Redis.StreamMaxLen)
	} else {
		deps.SignalBus = memory.NewSignalBus(int(cfg.Redis.StreamMaxLen))
		logger.InfoContext(ctx, "redis disabled, using in-process signal bus")
	}

	// --- S3 archive ---
	if cfg.S3.Enabled {
		if deps.History == nil {
			logger.WarnContext(ctx, "s3 enabled without a mirror, archiving disabled")
		} else {
			s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
				Endpoint:       cfg.S3.Endpoint,
				Region:         cfg.S3.Region,
				Bucket:         cfg.S3.Bucket,
				AccessKey:      cfg.S3.AccessKey,
				SecretKey:      cfg.S3.SecretKey,
				UseSSL:         cfg.S3.UseSSL,
				ForcePathStyle: cfg.S3.ForcePathStyle,
			})
			if err != nil {
				return fail("s3", err)
			}
			deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), deps.History, deps.Recorder, cfg.S3.ArchivePrefix)
		}
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, cfg.Notify.Cooldown.Duration, base)

	// --- Kalshi ---
	kc := kalshi.NewClient(cfg.Kalshi.BaseURL, cfg.Kalshi.ApiKey, cfg.Kalshi.OrdersPerSecond)
	key, err := crypto.LoadKalshiKey(crypto.KeyConfig{
		PEMPath:          cfg.Kalshi.RsaPrivateKeyPath,
		EncryptedKeyPath: cfg.Kalshi.EncryptedKeyPath,
		KeyPassword:      cfg.Kalshi.KeyPassword,
	})
	switch {
	case errors.Is(err, crypto.ErrNoKey):
		logger.WarnContext(ctx, "no kalshi key configured, requests are unsigned")
	case err != nil:
		return fail("kalshi key", err)
	default:
		kc.SetPrivateKey(key)
	}
	kx := kalshi.NewExchange(kc)
	deps.Markets = kx
	if cfg.Mode == "paper" {
		deps.Exchange = paper.NewExchange()
	} else {
		deps.Exchange = kx
	}

	// --- ESPN ---
	ec := espn.NewClient(espn.ClientConfig{
		BaseURL:           cfg.ESPN.BaseURL,
		RequestsPerSecond: cfg.ESPN.RequestsPerSecond,
		Burst:             cfg.ESPN.Burst,
		Timeout:           cfg.ESPN.Timeout.Duration,
	}, base)
	for _, sport := range cfg.Sports() {
		league := ""
		if sport == domain.SportSoccer {
			league = cfg.ESPN.SoccerLeague
		}
		p, err := espn.NewProvider(ec, sport, league)
		if err != nil {
			return fail("espn provider", err)
		}
		deps.Providers = append(deps.Providers, p)
	}

	logger.InfoContext(ctx, "dependencies wired",
		slog.String("exchange", deps.Exchange.Name()),
		slog.Int("providers", len(deps.Providers)),
		slog.Bool("redis", cfg.Redis.Enabled),
		slog.Bool("archive", deps.Archiver != nil),
		slog.Bool("notify", deps.Notifier.Enabled()),
	)
	return deps, cleanup, nil
}
