package service

import (
	"context"
	"strings"

	"github.com/arkio/order-assistant-go/internal/domain"
	"github.com/arkio/order-assistant-go/internal/port"
)

// OrderService serves direct order lookups.
type OrderService struct {
	store port.OrderStore
}

func NewOrderService(store port.OrderStore) *OrderService {
	return &OrderService{store: store}
}

// GetOrder returns the order with the exact identifier id.
func (s *OrderService) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, &domain.ErrValidation{Field: "orderId", Message: "required"}
	}

	ctx, span := tracer.Start(ctx, "OrderService.GetOrder")
	defer span.End()

	page, err := s.store.FindOrders(ctx, domain.OrderQuery{
		Filters: []domain.Filter{{Column: "order_id", Op: domain.OpEq, Value: id}},
		Limit:   1,
	})
	if err != nil {
		return nil, err
	}
	if len(page.Orders) == 0 {
		return nil, &domain.ErrNotFound{Resource: "order", ID: id}
	}
	return &page.Orders[0], nil
}
