// Command bot runs the market signal notifier: the scheduled watchlist
// monitor, the Telegram admin command surface, the WebSocket signal feed,
// and the metrics/health endpoint, all in one process.
package main

import (
	"context"
	"log"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"signal-botv1/config"
	"signal-botv1/internal/bot"
	"signal-botv1/internal/gateway"
	"signal-botv1/internal/logger"
	"signal-botv1/internal/marketdata"
	"signal-botv1/internal/metrics"
	"signal-botv1/internal/monitor"
	"signal-botv1/internal/notification"
	redisstore "signal-botv1/internal/store/redis"
	sqlitestore "signal-botv1/internal/store/sqlite"

	goredis "github.com/go-redis/redis/v8"
)

func main() {
	// Optional .env for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	logger.Init("signal-bot", slog.LevelInfo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := sqlitestore.New(sqlitestore.Config{Path: cfg.SQLitePath})
	if err != nil {
		log.Fatalf("[bot] sqlite open: %v", err)
	}
	defer store.Close()

	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()

	// Redis is optional: without it every pass fetches from the upstream.
	var (
		barCache marketdata.BarCache
		rdb      *goredis.Client
	)
	if cfg.RedisAddr != "" {
		cache, err := redisstore.NewCache(redisstore.CacheConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			slog.Warn("redis unavailable, price cache disabled", slog.Any("error", err))
		} else {
			barCache = cache
			rdb = cache.Client()
		}
	}

	breaker := marketdata.NewBreaker(3, 2*time.Minute)
	breaker.OnStateChange = func(from, to marketdata.BreakerState) {
		prom.FetchBreakerState.Set(float64(to))
		if to == marketdata.BreakerOpen {
			prom.FetchBreakerTrips.Inc()
		}
		slog.Warn("fetch breaker state change",
			slog.String("from", from.String()),
			slog.String("to", to.String()))
	}
	source := marketdata.NewCachedSource(
		marketdata.NewClient(cfg.ChartBaseURL), barCache, breaker, cfg.PriceCacheTTL)

	var notifier notification.Notifier
	switch cfg.NotifyBackend {
	case "webhook":
		notifier = notification.NewWebhookNotifier(cfg.WebhookURL)
	case "log":
		notifier = notification.NewLogNotifier()
	default:
		notifier = notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID)
	}

	hub := gateway.NewHub(0)
	hub.OnClientCount = func(n int) { prom.WSClients.Set(float64(n)) }

	mon := monitor.New(monitor.Options{
		Store:    store,
		Data:     source,
		Notifier: notifier,
		Feed:     hub,
		Metrics:  prom,
		Health:   health,
		Indicators: monitor.IndicatorConfig{
			BollingerWindow: cfg.BollingerWindow,
			BollingerStdDev: 2,
			RPPLookbackDays: cfg.RPPLookbackDays,
		},
	})

	srv := metrics.NewServer(cfg.MetricsAddr, health, hub)
	srv.Start()
	health.StartLivenessChecker(ctx, rdb, store.DB(), 30*time.Second)

	if watchlist, err := store.Watchlist(); err == nil {
		interval, _ := store.CheckInterval()
		if err := notifier.Send(ctx, notification.FormatStartup(watchlist, interval)); err != nil {
			slog.Warn("startup notification failed", slog.Any("error", err))
		}
	}

	go mon.Run(ctx)

	if cfg.BotEnabled() {
		go bot.New(cfg.TelegramBotToken, cfg.AdminUserID, store, mon).Run(ctx)
	} else {
		slog.Warn("command bot disabled: TELEGRAM_BOT_TOKEN or TELEGRAM_ADMIN_ID not set")
	}

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Stop(shutdownCtx)
}
