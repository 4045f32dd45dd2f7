package service_test

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/arkio/order-assistant-go/internal/domain"
	"github.com/arkio/order-assistant-go/internal/infra/observability"
	"github.com/arkio/order-assistant-go/internal/infra/resilience"
	"github.com/arkio/order-assistant-go/internal/intent"
	"github.com/arkio/order-assistant-go/internal/service"
)

// --- Mocks ---

type mockStore struct {
	mu      sync.Mutex
	queries []domain.OrderQuery
	find    func(q domain.OrderQuery) (*domain.OrderPage, error)
	// findCtx takes precedence over find when the caller's context matters.
	findCtx func(ctx context.Context, q domain.OrderQuery) (*domain.OrderPage, error)
}

func (m *mockStore) FindOrders(ctx context.Context, q domain.OrderQuery) (*domain.OrderPage, error) {
	m.mu.Lock()
	m.queries = append(m.queries, q)
	m.mu.Unlock()
	if m.findCtx != nil {
		return m.findCtx(ctx, q)
	}
	if m.find == nil {
		return &domain.OrderPage{}, nil
	}
	return m.find(q)
}

func (m *mockStore) Ping(_ context.Context) error { return nil }

func (m *mockStore) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queries)
}

type mockPredictor struct {
	mu    sync.Mutex
	ids   [][]string
	preds []domain.DelayPrediction
	err   error
}

func (m *mockPredictor) PredictDelays(_ context.Context, ids []string) ([]domain.DelayPrediction, error) {
	m.mu.Lock()
	m.ids = append(m.ids, ids)
	m.mu.Unlock()
	return m.preds, m.err
}

type mockInsights struct {
	insights *domain.BusinessInsights
	err      error
}

func (m *mockInsights) GetInsights(_ context.Context) (*domain.BusinessInsights, error) {
	return m.insights, m.err
}

type mockCompletion struct {
	mu       sync.Mutex
	requests []*domain.CompletionRequest
	complete func(ctx context.Context) (*domain.CompletionResponse, error)
}

func (m *mockCompletion) Complete(ctx context.Context, req *domain.CompletionRequest) (*domain.CompletionResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.complete == nil {
		return &domain.CompletionResponse{Content: "ok"}, nil
	}
	return m.complete(ctx)
}

// --- Helpers ---

type fixture struct {
	store      *mockStore
	predictor  *mockPredictor
	insights   *mockInsights
	completion *mockCompletion
	metrics    *observability.Metrics
	assistant  *service.Assistant
}

func newFixture(t *testing.T, table intent.Table, cfg service.AssistantConfig) *fixture {
	t.Helper()

	matcher, err := intent.NewMatcher(table)
	if err != nil {
		t.Fatalf("NewMatcher: %v", err)
	}

	f := &fixture{
		store:      &mockStore{},
		predictor:  &mockPredictor{},
		insights:   &mockInsights{insights: &domain.BusinessInsights{}},
		completion: &mockCompletion{},
		metrics:    observability.NewMetrics(),
	}
	logger := zap.NewNop()

	contexts := service.NewContextBuilder(f.store, matcher, resilience.NewBulkhead(4), f.metrics, logger)
	enrichers := service.NewEnrichers(matcher, f.predictor, f.insights, f.metrics, logger)
	f.assistant = service.NewAssistant(contexts, enrichers, f.completion, cfg, f.metrics, logger)
	return f
}

func defaultConfig() service.AssistantConfig {
	return service.AssistantConfig{
		Model:         "test/model",
		MaxTokens:     1000,
		Temperature:   0.7,
		HistoryWindow: 10,
		Name:          "ARKIO",
	}
}

func strPtr(s string) *string { return &s }

func order(id string, status domain.OrderStatus, total float64) domain.Order {
	return domain.Order{
		OrderID:         id,
		CustomerName:    "Asha Rao",
		CustomerEmail:   "asha@example.com",
		ProductName:     "Running Shoes",
		ProductCategory: "Footwear",
		ProductBrand:    "Nike",
		Quantity:        1,
		TotalAmount:     total,
		OrderStatus:     status,
		PaymentStatus:   "Completed",
		OrderDate:       domain.MustTimestamp("2026-10-01"),
	}
}
