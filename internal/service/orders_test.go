package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/arkio/order-assistant-go/internal/domain"
	"github.com/arkio/order-assistant-go/internal/service"
)

func TestGetOrder(t *testing.T) {
	store := &mockStore{find: func(q domain.OrderQuery) (*domain.OrderPage, error) {
		if q.Filters[0].Value == "OD1" {
			return &domain.OrderPage{Orders: []domain.Order{order("OD1", domain.StatusPacked, 10)}}, nil
		}
		return &domain.OrderPage{}, nil
	}}
	svc := service.NewOrderService(store)

	o, err := svc.GetOrder(context.Background(), " OD1 ")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if o.OrderID != "OD1" {
		t.Errorf("expected OD1, got %s", o.OrderID)
	}
	q := store.queries[0]
	if q.Filters[0].Op != domain.OpEq || q.Limit != 1 {
		t.Errorf("expected exact lookup with limit 1, got %+v", q)
	}

	_, err = svc.GetOrder(context.Background(), "OD404")
	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) {
		t.Errorf("expected not found, got %v", err)
	}

	_, err = svc.GetOrder(context.Background(), "")
	var ve *domain.ErrValidation
	if !errors.As(err, &ve) {
		t.Errorf("expected validation error, got %v", err)
	}
}
