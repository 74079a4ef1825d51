package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BatmanBruc/vpn-subscription-bot/internal/config"
	"github.com/BatmanBruc/vpn-subscription-bot/internal/handlers"
	"github.com/BatmanBruc/vpn-subscription-bot/internal/logger"
	"github.com/BatmanBruc/vpn-subscription-bot/internal/metrics"
	"github.com/BatmanBruc/vpn-subscription-bot/internal/middleware"
	"github.com/BatmanBruc/vpn-subscription-bot/internal/notify"
	"github.com/BatmanBruc/vpn-subscription-bot/internal/poller"
	"github.com/BatmanBruc/vpn-subscription-bot/internal/reconcile"
	"github.com/BatmanBruc/vpn-subscription-bot/internal/webhook"
	"github.com/BatmanBruc/vpn-subscription-bot/internal/yookassa"
	"github.com/BatmanBruc/vpn-subscription-bot/store"
	"github.com/BatmanBruc/vpn-subscription-bot/types"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = config.LoadEnvFiles("config.env", ".env")

	cfg, err := config.Load()
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	for _, w := range cfg.Warnings {
		log.Warn().Msg(w)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pgStore, err := store.NewPostgresStore(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Postgres")
	}
	defer pgStore.Close()

	var flow types.FlowStore
	rdb, err := store.NewRedisClient(ctx, cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Prefix)
	if err != nil {
		log.Warn().Err(err).Str("addr", cfg.Redis.Addr()).Msg("redis unavailable, purchase flow kept in memory")
		flow = store.NewMemoryFlowStore(time.Duration(cfg.FlowTTLHours) * time.Hour)
	} else {
		defer rdb.Close()
		flow = store.NewRedisFlowStore(rdb, cfg.FlowTTLHours)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rec := metrics.NewPrometheus(reg, cfg.MetricsNamespace)

	botLog := logger.Component(log, "bot")
	b, err := bot.New(
		cfg.BotToken,
		bot.WithHTTPClient(50*time.Second, &http.Client{Timeout: 70 * time.Second}),
		bot.WithErrorsHandler(func(err error) {
			botLog.Warn().Err(err).Msg("telegram error")
		}),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create bot")
	}

	provider := yookassa.NewClient(yookassa.Config{
		ShopID:    cfg.YooKassa.ShopID,
		SecretKey: cfg.YooKassa.SecretKey,
		APIURL:    cfg.YooKassa.APIURL,
		ReturnURL: cfg.YooKassa.ReturnURL,
	}, &http.Client{Timeout: 30 * time.Second}, rec)
	if cfg.YooKassa.ShopID == "" || cfg.YooKassa.SecretKey == "" {
		log.Warn().Msg("YooKassa credentials not set, payment links and polling will fail")
	}

	engine := reconcile.NewEngine(pgStore, notify.NewTelegramNotifier(b, 5*time.Second),
		reconcile.WithMetrics(rec),
		reconcile.WithLogger(logger.Component(log, "reconcile")),
	)

	srv := webhook.NewServer(webhook.Config{
		Addr:           cfg.HTTPAddr,
		YooMoneySecret: cfg.YooMoney.NotificationSecret,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	}, engine, rec, logger.Component(log, "webhook"))

	poll := poller.NewPoller(pgStore, provider, engine, rec, logger.Component(log, "poller"), poller.Config{
		Interval:    cfg.Poll.Interval,
		ItemTimeout: cfg.Poll.ItemTimeout,
		Grace:       cfg.Poll.Grace,
		Workers:     cfg.Poll.Workers,
	})

	h := handlers.NewHandlers(pgStore, pgStore, pgStore, provider, flow, handlers.Config{
		TrialDays:   cfg.Trial.Days,
		TrialServer: cfg.Trial.Server,
		FlowTTL:     time.Duration(cfg.FlowTTLHours) * time.Hour,
	}, botLog)

	chain := middleware.NewMiddlewares(botLog).Chain(h.MainHandler)
	b.RegisterHandlerMatchFunc(func(update *models.Update) bool {
		return update.Message != nil
	}, chain)
	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, "", bot.MatchTypePrefix, chain)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		return poll.Run(gctx)
	})
	g.Go(func() error {
		log.Info().Msg("bot started, press Ctrl+C to stop")
		b.Start(gctx)
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("shutdown with error")
		os.Exit(1)
	}
	log.Info().Msg("stopped")
}
