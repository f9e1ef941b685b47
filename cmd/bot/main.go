package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sentry "github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "github.com/lib/pq"

	"github.com/solmate-labs/solmate-bot/internal/bot"
	"github.com/solmate-labs/solmate-bot/internal/database"
	"github.com/solmate-labs/solmate-bot/internal/flipflop"
	"github.com/solmate-labs/solmate-bot/internal/health"
	"github.com/solmate-labs/solmate-bot/internal/i18n"
	"github.com/solmate-labs/solmate-bot/internal/idempotency"
	"github.com/solmate-labs/solmate-bot/internal/lifecycle"
	"github.com/solmate-labs/solmate-bot/internal/middleware"
	"github.com/solmate-labs/solmate-bot/internal/ratelimit"
	"github.com/solmate-labs/solmate-bot/internal/repository"
	"github.com/solmate-labs/solmate-bot/internal/sigcache"
	"github.com/solmate-labs/solmate-bot/internal/solana"
	"github.com/solmate-labs/solmate-bot/internal/wallet"
	"github.com/solmate-labs/solmate-bot/pkg/config"
	"github.com/solmate-labs/solmate-bot/pkg/graceful"
	"github.com/solmate-labs/solmate-bot/pkg/logger"
	pkgredis "github.com/solmate-labs/solmate-bot/pkg/redis"
)

const (
	signatureCacheTTL  = time.Hour
	gaugeInterval      = 15 * time.Second
	cleanupInterval    = time.Hour
	shutdownTimeout    = 10 * time.Second
	sentryFlushTimeout = 2 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, _, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	sentryEnabled := cfg.Sentry.DSN != ""
	if sentryEnabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Sentry.DSN,
			Environment:      cfg.Sentry.Environment,
			TracesSampleRate: cfg.Sentry.TracesSampleRate,
		}); err != nil {
			slog.Error("failed to init sentry", slog.Any("error", err))
			os.Exit(1)
		}
		defer sentry.Flush(sentryFlushTimeout)
	}

	log := logger.New(cfg.Logging, sentryEnabled)
	log.Info("starting solmate bot", slog.String("env", cfg.AppEnv), slog.String("http_port", cfg.Server.HTTPPort))

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.Error("error closing database", slog.Any("error", cerr))
		}
	}()

	if err := db.PingContext(ctx); err != nil {
		log.Error("failed to ping database", slog.Any("error", err))
		os.Exit(1)
	}

	if err := database.NewMigrator(db, log).ApplyDir(ctx, "migrations"); err != nil {
		log.Error("failed to apply migrations", slog.Any("error", err))
		os.Exit(1)
	}

	catalog, err := i18n.Load("en")
	if err != nil {
		log.Error("failed to load translations", slog.Any("error", err))
		os.Exit(1)
	}
	go func() {
		if err := catalog.Watch(ctx, log); err != nil {
			log.Warn("translation hot reload unavailable", slog.Any("error", err))
		}
	}()

	// Redis backs rate limiting and update idempotency. Without it the bot
	// still runs, with an in-memory limiter and no update deduplication.
	var (
		rdb                *pkgredis.Client
		limiter            ratelimit.Limiter
		idempotencyManager idempotency.Manager
	)

	if cfg.Redis.Addr != "" {
		rdb, err = pkgredis.New(ctx, cfg.Redis)
		if err != nil {
			log.Error("failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if cerr := rdb.Close(); cerr != nil {
				log.Error("error closing redis", slog.Any("error", cerr))
			}
		}()

		limiter = ratelimit.NewAdaptiveLimiter(
			ratelimit.NewRedisLimiter(rdb.Client, log),
			ratelimit.NewMemoryLimiter(log),
			log,
		)
		idempotencyManager = idempotency.NewManager(idempotency.NewRedisStore(rdb.Client, log), log)

		go ratelimit.NewCleaner(rdb.Client, log, cleanupInterval).Run(ctx)
		go idempotency.NewCleaner(rdb.Client, log, cleanupInterval).Run(ctx)
	} else {
		log.Warn("redis is not configured, using in-memory rate limiting")
		limiter = ratelimit.NewMemoryLimiter(log)
	}

	rules := ratelimit.NewRules(cfg.Limits)
	rateLimitMw := middleware.NewRateLimitMiddleware(limiter, rules, catalog, log)

	wallets := wallet.NewService(
		repository.NewWalletRepository(db, log),
		repository.NewSettingsRepository(db, log),
		log,
	)
	chain := solana.NewService(cfg.Solana, log)
	protocol := flipflop.New(cfg.Flipflop, log)
	sigs := sigcache.New(log, signatureCacheTTL)

	b, err := bot.New(*cfg, log, db, wallets, chain, protocol, sigs, catalog, idempotencyManager, rateLimitMw)
	if err != nil {
		log.Error("failed to initialize bot", slog.Any("error", err))
		os.Exit(1)
	}

	checker := health.NewChecker(log)
	checker.AddCheck("database", health.NewDBChecker(db))
	if rdb != nil {
		checker.AddCheck("redis", health.NewRedisChecker(rdb.Client))
	}
	checker.AddCheck("solana", chain)
	checker.AddCheck("telegram", health.NewTelegramChecker(b.Telebot()))

	go b.Registry().Run(ctx)
	go sigs.Run(ctx)
	go reportFlowGauges(ctx, b)
	go b.Start()

	httpServer := graceful.NewServer(log, &http.Server{
		Addr:              ":" + cfg.Server.HTTPPort,
		Handler:           httpHandler(log, checker),
		ReadHeaderTimeout: 5 * time.Second,
	}, shutdownTimeout)

	go func() {
		if err := httpServer.ListenAndServe(ctx); err != nil {
			log.Error("http server stopped", slog.Any("error", err))
		}
	}()

	<-ctx.Done()

	shutdown := lifecycle.NewShutdown(log)
	shutdown.Register("telegram-bot", func(context.Context) error {
		b.Stop()
		return nil
	})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := shutdown.Execute(shutdownCtx); err != nil {
		log.Error("shutdown finished with errors", slog.Any("error", err))
	}

	log.Info("solmate bot stopped")
}

func httpHandler(log *slog.Logger, checker *health.Checker) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		results := checker.Check(r.Context())

		status := http.StatusOK
		for _, result := range results {
			if result != "OK" {
				status = http.StatusServiceUnavailable
				break
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(results)
	})

	return logger.Middleware(middleware.New(log)(mux))
}

func reportFlowGauges(ctx context.Context, b *bot.Bot) {
	ticker := time.NewTicker(gaugeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.Registry().ReportGauges()
		}
	}
}
