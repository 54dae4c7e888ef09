package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scribeflow/scribeflow-backend/api/controllers"
	webhookcontrollers "github.com/scribeflow/scribeflow-backend/api/controllers/webhooks"
	"github.com/scribeflow/scribeflow-backend/api/middleware"
	"github.com/scribeflow/scribeflow-backend/internal/catalog"
	"github.com/scribeflow/scribeflow-backend/internal/entitlements"
	subscriptionsvc "github.com/scribeflow/scribeflow-backend/internal/subscriptions"
	polarwebhook "github.com/scribeflow/scribeflow-backend/internal/webhooks/polar"
	"github.com/scribeflow/scribeflow-backend/pkg/config"
	"github.com/scribeflow/scribeflow-backend/pkg/logger"
	"github.com/scribeflow/scribeflow-backend/pkg/metrics"
	"github.com/scribeflow/scribeflow-backend/pkg/polar"
	"github.com/scribeflow/scribeflow-backend/pkg/redis"
)

type RouterParams struct {
	Config              *config.Config
	Logger              *logger.Logger
	Redis               *redis.Client
	PolarClient         *polar.Client
	CatalogService      *catalog.Service
	SubscriptionService *subscriptionsvc.Service
	EntitlementsService *entitlements.Service
	CustomerFinder      controllers.CustomerFinder
	WebhookService      *polarwebhook.Service
	WebhookGuard        *polarwebhook.IdempotencyGuard
	MetricsRegistry     *prometheus.Registry
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	webhookMetrics := metrics.NewWebhookMetrics(params.MetricsRegistry)

	publicPolicy := middleware.NewRateLimitPolicy(
		"public",
		cfg.RateLimit.PublicWindow,
		cfg.RateLimit.PublicIPLimit,
		cfg.RateLimit.PublicEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		if params.Redis != nil {
			r.Get("/ready", controllers.HealthReady(cfg, params.Redis))
		} else {
			r.Get("/ready", controllers.HealthReady(cfg, nil))
		}
	})

	if params.MetricsRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(params.MetricsRegistry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/webhook", func(r chi.Router) {
		r.Post("/polar", webhookcontrollers.PolarWebhook(params.WebhookService, params.PolarClient, params.WebhookGuard, webhookMetrics, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(publicPolicy, params.Redis, logg))
			r.Get("/products", controllers.ListProducts(params.CatalogService, logg))
			r.Get("/subscriptions", controllers.ListSubscriptions(params.SubscriptionService, logg))
			r.Get("/checkout", controllers.Checkout(params.PolarClient, cfg.Polar.SuccessURL, logg))
		})

		r.Route("/me", func(r chi.Router) {
			r.Use(middleware.Auth(cfg.Auth, logg))
			r.Get("/usage", controllers.MyUsage(params.EntitlementsService, logg))
			r.Get("/subscription", controllers.MySubscription(params.CustomerFinder, params.SubscriptionService, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.Auth(cfg.Auth, logg))
			r.Post("/products/sync", controllers.SyncProducts(params.CatalogService, logg))
		})
	})

	return r
}
