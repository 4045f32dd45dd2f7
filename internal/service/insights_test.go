package service_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/arkio/order-assistant-go/internal/domain"
	"github.com/arkio/order-assistant-go/internal/infra/cache"
	"github.com/arkio/order-assistant-go/internal/infra/observability"
	"github.com/arkio/order-assistant-go/internal/service"
)

var insightsNow = time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)

func dated(o domain.Order, daysAgo int) domain.Order {
	o.OrderDate = domain.Timestamp{Time: insightsNow.AddDate(0, 0, -daysAgo)}
	return o
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func insightsOrders() []domain.Order {
	a := order("OD1", domain.StatusDelivered, 300)
	a.CustomerState = "Karnataka"

	b := order("OD2", domain.StatusInTransit, 100)
	b.CustomerState = "Karnataka"
	b.ProductName = "Backpack"
	b.ProductCategory = "Bags"
	b.Quantity = 3

	c := order("OD3", domain.StatusCancelled, 999)
	c.CustomerEmail = "ravi@example.com"
	c.CustomerName = "Ravi"

	d := order("OD4", domain.StatusDelivered, 200)
	d.CustomerEmail = ""
	d.CustomerName = "Meera"
	d.CustomerState = "Kerala"

	return []domain.Order{dated(a, 5), dated(b, 10), dated(c, 12), dated(d, 40)}
}

func TestComputeInsights(t *testing.T) {
	in := service.ComputeInsights(insightsOrders(), insightsNow)

	if !approx(in.Revenue.TotalRevenue, 600) {
		t.Errorf("expected revenue 600 without cancelled orders, got %v", in.Revenue.TotalRevenue)
	}
	if !approx(in.Revenue.AverageOrderValue, 200) {
		t.Errorf("expected AOV 200, got %v", in.Revenue.AverageOrderValue)
	}
	// last 30 days: 400, previous 30 days: 200
	if !approx(in.Revenue.RevenueGrowth, 100) {
		t.Errorf("expected growth 100%%, got %v", in.Revenue.RevenueGrowth)
	}

	if in.CustomerBehavior.TotalCustomers != 3 {
		t.Errorf("expected 3 customers, got %d", in.CustomerBehavior.TotalCustomers)
	}
	if !approx(in.CustomerBehavior.AverageOrdersPerCustomer, 4.0/3.0) {
		t.Errorf("unexpected orders per customer %v", in.CustomerBehavior.AverageOrdersPerCustomer)
	}

	top := in.ProductPerformance.TopSellingProducts
	if len(top) != 2 || top[0].Name != "Backpack" || top[0].Units != 3 {
		t.Errorf("expected Backpack to lead by units, got %+v", top)
	}
	cats := in.ProductPerformance.CategoryPerformance
	if len(cats) != 2 || cats[0].Category != "Footwear" || !approx(cats[0].Revenue, 500) {
		t.Errorf("expected Footwear to lead by revenue, got %+v", cats)
	}

	regions := in.GeographicSales.TopRegions
	if in.GeographicSales.TotalRegions != 2 || regions[0].Region != "Karnataka" || regions[0].Orders != 2 {
		t.Errorf("unexpected regions %+v", regions)
	}

	if in.PredictiveForecast.GrowthTrend != "increasing" {
		t.Errorf("expected increasing trend, got %q", in.PredictiveForecast.GrowthTrend)
	}
	if !approx(in.PredictiveForecast.NextMonthRevenue, 800) {
		t.Errorf("expected forecast 800, got %v", in.PredictiveForecast.NextMonthRevenue)
	}
	if !approx(in.PredictiveForecast.Confidence, 50.4) {
		t.Errorf("expected confidence 50.4, got %v", in.PredictiveForecast.Confidence)
	}
	if len(in.KeyInsights) == 0 || len(in.Recommendations) == 0 {
		t.Error("expected narrative insights and recommendations")
	}
	if !in.GeneratedAt.Equal(insightsNow) {
		t.Errorf("unexpected GeneratedAt %v", in.GeneratedAt)
	}
}

func TestComputeInsights_Empty(t *testing.T) {
	in := service.ComputeInsights(nil, insightsNow)

	if in.Revenue.TotalRevenue != 0 || in.CustomerBehavior.TotalCustomers != 0 {
		t.Errorf("expected zero snapshot, got %+v", in)
	}
	if in.PredictiveForecast.GrowthTrend != "stable" {
		t.Errorf("expected stable trend, got %q", in.PredictiveForecast.GrowthTrend)
	}
	if in.KeyInsights == nil || in.Recommendations == nil {
		t.Error("expected non-nil lists")
	}
}

func TestGetInsights_CachesSnapshot(t *testing.T) {
	store := &mockStore{find: func(domain.OrderQuery) (*domain.OrderPage, error) {
		return &domain.OrderPage{Orders: insightsOrders()}, nil
	}}
	c := cache.New[*domain.BusinessInsights](time.Minute)
	defer c.Close()
	metrics := observability.NewMetrics()
	svc := service.NewInsightsService(store, c, metrics, func() time.Time { return insightsNow })

	first, err := svc.GetInsights(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	second, err := svc.GetInsights(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if first != second {
		t.Error("expected cached snapshot on second call")
	}
	if store.calls() != 1 {
		t.Errorf("expected 1 store read, got %d", store.calls())
	}
	if metrics.CounterValue("cache_hits", "insights") != 1 || metrics.CounterValue("cache_misses", "insights") != 1 {
		t.Error("expected one hit and one miss")
	}
	if cols := store.queries[0].Columns; len(cols) != len(service.InsightsColumns) {
		t.Errorf("expected insights projection, got %v", cols)
	}
}

func TestGetInsights_ErrorNotCached(t *testing.T) {
	fail := true
	store := &mockStore{find: func(domain.OrderQuery) (*domain.OrderPage, error) {
		if fail {
			return nil, errors.New("unavailable")
		}
		return &domain.OrderPage{}, nil
	}}
	c := cache.New[*domain.BusinessInsights](time.Minute)
	defer c.Close()
	svc := service.NewInsightsService(store, c, observability.NewMetrics(), nil)

	if _, err := svc.GetInsights(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	fail = false
	if _, err := svc.GetInsights(context.Background()); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if store.calls() != 2 {
		t.Errorf("expected 2 store reads, got %d", store.calls())
	}
}

func TestGetInsights_SharedLoadSurvivesCallerCancel(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	store := &mockStore{findCtx: func(ctx context.Context, _ domain.OrderQuery) (*domain.OrderPage, error) {
		once.Do(func() { close(started) })
		select {
		case <-release:
			return &domain.OrderPage{Orders: insightsOrders()}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}}
	c := cache.New[*domain.BusinessInsights](time.Minute)
	defer c.Close()
	svc := service.NewInsightsService(store, c, observability.NewMetrics(), func() time.Time { return insightsNow })

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	errB := make(chan error, 1)

	go func() {
		_, err := svc.GetInsights(ctxA)
		errA <- err
	}()
	<-started
	go func() {
		in, err := svc.GetInsights(context.Background())
		if err == nil && in.Revenue.TotalRevenue == 0 {
			err = errors.New("expected a computed snapshot")
		}
		errB <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancelA()
	time.Sleep(20 * time.Millisecond)
	close(release)

	for name, ch := range map[string]chan error{"cancelled caller": errA, "waiting caller": errB} {
		select {
		case err := <-ch:
			if err != nil {
				t.Errorf("%s: expected snapshot, got %v", name, err)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("%s: GetInsights did not return", name)
		}
	}
}
