package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/arkio/order-assistant-go/internal/config"
	"github.com/arkio/order-assistant-go/internal/domain"
	"github.com/arkio/order-assistant-go/internal/handler"
	"github.com/arkio/order-assistant-go/internal/infra/cache"
	"github.com/arkio/order-assistant-go/internal/infra/client"
	"github.com/arkio/order-assistant-go/internal/infra/observability"
	"github.com/arkio/order-assistant-go/internal/infra/resilience"
	"github.com/arkio/order-assistant-go/internal/infra/supabase"
	"github.com/arkio/order-assistant-go/internal/infra/tokens"
	"github.com/arkio/order-assistant-go/internal/intent"
	"github.com/arkio/order-assistant-go/internal/service"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("orders_table", cfg.OrdersTable),
		zap.String("model", cfg.Model),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("completion_timeout", cfg.CompletionTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Int("max_concurrency", cfg.MaxConcurrency),
		zap.Int("history_window", cfg.HistoryWindow),
		zap.Bool("api_auth", cfg.APIJWTSecret != ""),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(context.Background(), "order-assistant", cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Intent tables ---
	table, err := intent.LoadTable(cfg.IntentsFile)
	if err != nil {
		logger.Fatal("failed to load intent tables", zap.String("path", cfg.IntentsFile), zap.Error(err))
	}
	matcher, err := intent.NewMatcher(table)
	if err != nil {
		logger.Fatal("invalid intent tables", zap.Error(err))
	}

	// --- Cache ---
	insightsCache := cache.New[*domain.BusinessInsights](cfg.CacheTTL)
	defer insightsCache.Close()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	storeBreaker := resilience.NewCircuitBreaker("supabase", metrics.SetBreakerState)
	completionBreaker := resilience.NewCircuitBreaker("openrouter", metrics.SetBreakerState)
	bulkhead := resilience.NewBulkhead(cfg.MaxConcurrency)

	// --- Clients ---
	// Outbound calls carry the request's trace context upstream.
	transport := otelhttp.NewTransport(http.DefaultTransport)

	store := supabase.NewClient(
		&http.Client{Timeout: cfg.HTTPTimeout, Transport: transport},
		cfg.SupabaseURL,
		cfg.SupabaseAnonKey,
		cfg.SupabaseServiceKey,
		cfg.OrdersTable,
		storeBreaker,
		resilienceCfg,
		logger,
	)

	completion := client.NewCompletionClient(
		&http.Client{Timeout: cfg.CompletionTimeout, Transport: transport},
		client.CompletionOptions{
			BaseURL: cfg.OpenRouterBaseURL,
			APIKey:  cfg.OpenRouterAPIKey,
			Referer: cfg.AppURL,
			Title:   cfg.AppTitle,
		},
		completionBreaker,
		resilienceCfg,
		tokens.NewCounter(),
	)

	// --- Services ---
	predictor := service.NewDelayPredictionService(store, nil)
	insights := service.NewInsightsService(store, insightsCache, metrics, nil)
	orders := service.NewOrderService(store)

	assistant := service.NewAssistant(
		service.NewContextBuilder(store, matcher, bulkhead, metrics, logger),
		service.NewEnrichers(matcher, predictor, insights, metrics, logger),
		completion,
		service.AssistantConfig{
			Model:         cfg.Model,
			MaxTokens:     cfg.CompletionMaxTokens,
			Temperature:   cfg.CompletionTemperature,
			Timeout:       cfg.CompletionTimeout,
			HistoryWindow: cfg.HistoryWindow,
			Name:          cfg.AssistantName,
		},
		metrics,
		logger,
	)

	// --- Router ---
	router := handler.NewRouter(
		handler.Services{
			Assistant: assistant,
			Orders:    orders,
			Insights:  insights,
			Predictor: predictor,
			Store:     store,
		},
		handler.Options{
			JWTSecret:      cfg.APIJWTSecret,
			AllowedOrigins: cfg.CORSAllowedOrigins,
		},
		metrics,
		logger,
	)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.CompletionTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
