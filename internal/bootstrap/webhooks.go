package bootstrap

import (
	"github.com/prometheus/client_golang/prometheus"

	stripewebhook "github.com/angelmondragon/checkout-bookkeeper/internal/webhooks/stripe"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/config"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/db"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/logger"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/metrics"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/redis"
)

const processorEventScope = "stripe-event"

// NewStripeWebhook wires the processor event service. Both ingest paths share
// the redis guard scope so an event seen over HTTP is skipped on Pub/Sub.
func NewStripeWebhook(
	cfg *config.Config,
	client *db.Client,
	co *Checkout,
	store redis.IdempotencyStore,
	reg prometheus.Registerer,
	logg *logger.Logger,
) (*stripewebhook.Service, error) {
	guard, err := stripewebhook.NewIdempotencyGuard(store, cfg.Eventing.ProcessorEventTTL, processorEventScope)
	if err != nil {
		return nil, err
	}
	return stripewebhook.NewService(stripewebhook.ServiceParams{
		Reconciler:        co.Reconciler,
		Committer:         co.Committer,
		TransactionRunner: client,
		Guard:             guard,
		Logger:            logg,
		Metrics:           metrics.NewReconcileMetrics(reg),
	})
}
