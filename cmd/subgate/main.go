package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/insightbot/subgate/migrations"
	"github.com/insightbot/subgate/pkg/config"
	"github.com/insightbot/subgate/pkg/dispatch"
	"github.com/insightbot/subgate/pkg/httpserver"
	"github.com/insightbot/subgate/pkg/logger"
	"github.com/insightbot/subgate/pkg/pg"
	"github.com/insightbot/subgate/pkg/ratelimit"
	"github.com/insightbot/subgate/pkg/redis"
	"github.com/insightbot/subgate/storage/postgres"
	"github.com/insightbot/subgate/svc/checker"
	"github.com/insightbot/subgate/svc/notify"
	"github.com/insightbot/subgate/svc/payment"
	"github.com/insightbot/subgate/svc/subscription"
)

const serviceName = "subgate"

func main() {
	if err := run(); err != nil {
		slog.Error("service stopped", logger.Error(err))
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := config.LoadEnv(); err != nil {
		return err
	}
	cfg, err := config.Load[config.Config]()
	if err != nil {
		return err
	}

	log := logger.New(
		logger.WithEnvironment(cfg.App.Env, serviceName),
		logger.WithLevelString(cfg.App.LogLevel))
	slog.SetDefault(log)

	pool, err := pg.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, migrations.FS, log); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	subStore := postgres.NewSubscriptionRepository(pool)
	eventStore := postgres.NewEventRepository(pool)
	abuseStore := postgres.NewAbuseRepository(pool)
	payStore := postgres.NewPaymentRepository(pool)

	notifier, err := buildNotifier(cfg.Telegram, log)
	if err != nil {
		return fmt.Errorf("build notifier: %w", err)
	}

	guard := subscription.NewTrialAbuseGuard(abuseStore,
		cfg.Subscription.TrialCooldownDays,
		cfg.Subscription.MaxTrialsPerCreator,
		subscription.WithGuardLogger(log))

	engine := subscription.NewEngine(subStore, eventStore, guard,
		cfg.Subscription.TrialDays,
		subscription.WithNotifier(notifier),
		subscription.WithLogger(log))

	var plansSrc subscription.PlansListSource = subscription.DefaultPlans(cfg.Subscription.PriceUSD)
	if cfg.Subscription.PlansFile != "" {
		plansSrc = subscription.YAMLPlansSource{Path: cfg.Subscription.PlansFile}
	}
	plans, err := subscription.LoadPlans(ctx, plansSrc)
	if err != nil {
		return fmt.Errorf("load plans: %w", err)
	}

	processor := payment.NewProcessor(cfg.Payment.BaseURL, cfg.Payment.APIKey, cfg.Payment.RequestTimeout)
	defer processor.Close()

	gateway := payment.NewGateway(payStore, eventStore, engine, processor, plans,
		payment.GatewayConfig{
			SupportedCurrencies: cfg.Payment.SupportedCurrencies,
			IPNSecret:           cfg.Payment.IPNSecret,
			WebhookURL:          cfg.Payment.WebhookURL,
			InvoiceExpiration:   cfg.Payment.InvoiceExpiration,
			Production:          cfg.App.IsProduction(),
		},
		payment.WithGatewayLogger(log))

	throttle, closeThrottle, err := buildWebhookThrottle(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("build webhook throttle: %w", err)
	}
	defer closeThrottle()

	handler := payment.NewHandler(gateway, log, payment.WithThrottle(throttle))

	sweeper := checker.New(subStore, eventStore,
		cfg.Subscription.GracePeriodDays, cfg.Checker.Hour,
		checker.WithNotifier(notifier),
		checker.WithLogger(log),
		checker.WithErrorCooldown(cfg.Checker.ErrorCooldown))

	checkerCtx, stopChecker := context.WithCancel(ctx)
	checkerDone := make(chan struct{})
	go func() {
		defer close(checkerDone)
		if err := sweeper.Run(checkerCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("subscription checker stopped", logger.Error(err))
		}
	}()

	srv := httpserver.New(cfg.Server, httpserver.WithLogger(log))
	runErr := srv.Run(ctx, handler.Router(pg.Healthcheck(pool)))

	// The listener is down, so no webhook can race the final sweeps;
	// stop the checker and wait for it before the pool closes.
	stopChecker()
	<-checkerDone

	return runErr
}

// buildNotifier wires the outbound path: Telegram when a bot token is
// configured, log-only delivery otherwise.
func buildNotifier(cfg config.TelegramConfig, log *slog.Logger) (*notify.Service, error) {
	var messenger notify.Messenger
	if cfg.BotToken != "" {
		tg, err := notify.NewTelegramMessenger(cfg.BotToken)
		if err != nil {
			return nil, err
		}
		messenger = tg
	} else {
		log.Warn("telegram bot token is not set, notifications will only be logged")
		messenger = notify.NewLogMessenger(log)
	}

	limiter, err := ratelimit.NewLimiter(cfg.MessagesPerSecond, cfg.MessagesPerSecond)
	if err != nil {
		return nil, err
	}

	dispatcher, err := dispatch.New(messenger.SendMessage, limiter,
		dispatch.WithMaxConcurrent(cfg.MaxConcurrent),
		dispatch.WithLogger(log))
	if err != nil {
		return nil, err
	}

	return notify.NewWithDispatcher(dispatcher, notify.WithLogger(log)), nil
}

// buildWebhookThrottle keys IPN rate limiting per client IP, backed by
// Redis when configured so the limit holds across instances.
func buildWebhookThrottle(ctx context.Context, cfg config.Config, log *slog.Logger) (*ratelimit.Keyed, func(), error) {
	limit := ratelimit.Config{
		Capacity:       cfg.Payment.WebhookRatePerMinute,
		RefillRate:     cfg.Payment.WebhookRatePerMinute,
		RefillInterval: time.Minute,
	}

	if cfg.Redis.URL != "" {
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}

		store, err := ratelimit.NewRedisStore(client)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		keyed, err := ratelimit.NewKeyed(store, limit)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		log.Info("webhook throttle backed by redis")
		return keyed, func() { client.Close() }, nil
	}

	store := ratelimit.NewMemoryStore()
	keyed, err := ratelimit.NewKeyed(store, limit)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return keyed, store.Close, nil
}
