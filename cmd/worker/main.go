package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/checkout-bookkeeper/internal/bootstrap"
	"github.com/angelmondragon/checkout-bookkeeper/internal/feecalculations"
	stripewebhook "github.com/angelmondragon/checkout-bookkeeper/internal/webhooks/stripe"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/config"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/db"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/logger"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/migrate"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/pubsub"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/redis"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "worker"

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker exited", err)
		os.Exit(1)
	}
	logg.Info(ctx, "worker shutting down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, pubsubClient.Close()) }()

	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		return err
	}

	var tax feecalculations.TaxCalculator
	if cfg.FeatureFlags.CollectTax {
		tax = feecalculations.NewStripeTaxCalculator(stripeClient)
	}
	co, err := bootstrap.NewCheckout(dbClient, stripeClient, tax, logg)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	webhookService, err := bootstrap.NewStripeWebhook(cfg, dbClient, co, redisClient, registry, logg)
	if err != nil {
		return err
	}
	eventConsumer, err := stripewebhook.NewConsumer(webhookService, pubsubClient.ProcessorEventsSubscription(), logg)
	if err != nil {
		return err
	}

	service, err := NewService(ServiceParams{
		Config:   cfg,
		Logger:   logg,
		DB:       dbClient,
		Redis:    redisClient,
		PubSub:   pubsubClient,
		Consumer: eventConsumer,
		Gatherer: registry,
	})
	if err != nil {
		return err
	}

	logCtx := logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"stripe_env":  stripeClient.Environment(),
	})
	logg.Info(logCtx, "starting worker")
	return service.Run(ctx)
}
