package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/arkio/order-assistant-go/internal/domain"
	"github.com/arkio/order-assistant-go/internal/infra/observability"
	"github.com/arkio/order-assistant-go/internal/port"
)

var tracer = otel.Tracer("handler")

// Replier answers a chat message given the prior conversation.
type Replier interface {
	GetReply(ctx context.Context, message string, history []domain.ConversationTurn) string
}

// OrderGetter looks up a single order by identifier.
type OrderGetter interface {
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services bundles what the routes call into. Nil members disable their
// routes' dependency (health reports the store as skipped).
type Services struct {
	Assistant Replier
	Orders    OrderGetter
	Insights  port.InsightsProvider
	Predictor port.DelayPredictor
	Store     Pinger
}

// Options configures cross-cutting router behaviour.
type Options struct {
	// JWTSecret enables HS256 bearer authentication on /v1 when non-empty.
	JWTSecret      string
	AllowedOrigins []string
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svc Services, opts Options, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svc.Store))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		if opts.JWTSecret != "" {
			r.Use(JWTAuthMiddleware([]byte(opts.JWTSecret), logger))
		}

		r.Post("/chat", chatHandler(svc.Assistant, logger))
		r.Get("/orders/{orderId}", getOrderHandler(svc.Orders, logger))
		r.Get("/insights", insightsHandler(svc.Insights, logger))
		r.Post("/predictions", predictionsHandler(svc.Predictor, logger))
		r.Get("/metrics/assistant", assistantMetricsHandler(metrics))
	})

	return r
}

func healthzHandler(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "order-assistant", Status: "healthy", LastChecked: now},
		}

		if store != nil {
			start := time.Now()
			err := store.Ping(r.Context())
			h := domain.ServiceHealth{
				Name:        "supabase",
				Status:      "healthy",
				LatencyMs:   time.Since(start).Milliseconds(),
				LastChecked: now,
			}
			if err != nil {
				h.Status = "degraded"
				h.Error = err.Error()
			}
			services = append(services, h)
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func assistantMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetAssistantSnapshot())
	}
}
