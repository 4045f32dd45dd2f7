// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the service layer
// from the Supabase and OpenRouter adapters.
package port

import (
	"context"

	"github.com/arkio/order-assistant-go/internal/domain"
)

// OrderStore runs read-only queries against the hosted order table.
type OrderStore interface {
	FindOrders(ctx context.Context, q domain.OrderQuery) (*domain.OrderPage, error)
	Ping(ctx context.Context) error
}

// DelayPredictor scores delivery-delay risk for a set of orders.
type DelayPredictor interface {
	PredictDelays(ctx context.Context, orderIDs []string) ([]domain.DelayPrediction, error)
}

// InsightsProvider produces the business analytics snapshot.
type InsightsProvider interface {
	GetInsights(ctx context.Context) (*domain.BusinessInsights, error)
}

// CompletionCaller invokes the remote chat-completion endpoint.
type CompletionCaller interface {
	Complete(ctx context.Context, req *domain.CompletionRequest) (*domain.CompletionResponse, error)
}

// TokenCounter estimates how many tokens a text costs for a model.
type TokenCounter interface {
	Count(model, text string) int
}

// SnapshotCache caches derived values with TTL and collapses concurrent
// loads of the same key.
type SnapshotCache[T any] interface {
	GetOrLoad(key string, load func() (T, error)) (value T, hit bool, err error)
	Delete(key string)
}
