package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/checkout-bookkeeper/api/controllers"
	webhookcontrollers "github.com/angelmondragon/checkout-bookkeeper/api/controllers/webhooks"
	"github.com/angelmondragon/checkout-bookkeeper/api/middleware"
	checkoutsvc "github.com/angelmondragon/checkout-bookkeeper/internal/checkout"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/config"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/db"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/logger"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/metrics"
	"github.com/angelmondragon/checkout-bookkeeper/pkg/redis"
)

type redisClient interface {
	redis.IdempotencyStore
	Ping(context.Context) error
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisC redisClient,
	gatherer prometheus.Gatherer,
	checkoutService checkoutsvc.Service,
	stripeWebhookService webhookcontrollers.StripeWebhookService,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	var redisP interface{ Ping(context.Context) error }
	var store redis.IdempotencyStore
	if redisC != nil {
		redisP = redisC
		store = redisC
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(gatherer))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(stripeWebhookService, cfg.Stripe.WebhookSecret, logg))
	})

	r.Route("/api/v1/checkout-sessions", func(r chi.Router) {
		r.Use(
			middleware.CORS(cfg.CORS.AllowedOrigins),
			middleware.Idempotency(store, logg),
		)
		r.Patch("/{sessionId}", controllers.EditCheckoutSession(checkoutService, logg))
		r.Post("/{sessionId}/complete-without-payment", controllers.CompleteCheckoutSessionWithoutPayment(checkoutService, logg))
	})

	return r
}
