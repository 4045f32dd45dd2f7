package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/arkio/order-assistant-go/internal/domain"
	"github.com/arkio/order-assistant-go/internal/format"
	"github.com/arkio/order-assistant-go/internal/infra/observability"
	"github.com/arkio/order-assistant-go/internal/port"
)

const insightsCacheKey = "insights:all"

// insightsLoadTimeout bounds a snapshot load. The load is shared by every
// concurrent caller, so it does not inherit any one caller's cancellation.
const insightsLoadTimeout = 30 * time.Second

// InsightsColumns is the projection read to build the business snapshot.
var InsightsColumns = []string{
	"order_id", "customer_email", "customer_name", "customer_state",
	"product_name", "product_category", "quantity", "total_amount",
	"order_status", "order_date",
}

// InsightsService computes the business analytics snapshot over the whole
// order store and caches it.
type InsightsService struct {
	store   port.OrderStore
	cache   port.SnapshotCache[*domain.BusinessInsights]
	metrics *observability.Metrics
	now     func() time.Time
}

// NewInsightsService creates the analytics service. now may be nil.
func NewInsightsService(store port.OrderStore, cache port.SnapshotCache[*domain.BusinessInsights], metrics *observability.Metrics, now func() time.Time) *InsightsService {
	if now == nil {
		now = time.Now
	}
	return &InsightsService{store: store, cache: cache, metrics: metrics, now: now}
}

// GetInsights returns the cached snapshot or computes a fresh one.
func (s *InsightsService) GetInsights(ctx context.Context) (*domain.BusinessInsights, error) {
	ctx, span := tracer.Start(ctx, "InsightsService.GetInsights")
	defer span.End()

	in, hit, err := s.cache.GetOrLoad(insightsCacheKey, func() (*domain.BusinessInsights, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), insightsLoadTimeout)
		defer cancel()

		page, err := s.store.FindOrders(loadCtx, domain.OrderQuery{Columns: InsightsColumns})
		if err != nil {
			return nil, fmt.Errorf("load orders for insights: %w", err)
		}
		return ComputeInsights(page.Orders, s.now()), nil
	})
	if hit {
		s.metrics.IncrCacheHit("insights")
	} else {
		s.metrics.IncrCacheMiss("insights")
	}
	if err != nil {
		return nil, err
	}
	return in, nil
}

type tally struct {
	key     string
	orders  int
	units   int
	revenue float64
}

// ranking accumulates tallies in first-seen order.
type ranking struct {
	index map[string]int
	items []tally
}

func newRanking() *ranking { return &ranking{index: make(map[string]int)} }

func (r *ranking) add(key string, units int, revenue float64) {
	i, ok := r.index[key]
	if !ok {
		i = len(r.items)
		r.index[key] = i
		r.items = append(r.items, tally{key: key})
	}
	r.items[i].orders++
	r.items[i].units += units
	r.items[i].revenue += revenue
}

func (r *ranking) sorted(less func(a, b tally) bool) []tally {
	out := make([]tally, len(r.items))
	copy(out, r.items)
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// ComputeInsights derives the snapshot from orders as of now. Cancelled and
// returned orders count for customers but not for revenue.
func ComputeInsights(orders []domain.Order, now time.Time) *domain.BusinessInsights {
	in := &domain.BusinessInsights{
		KeyInsights:     []string{},
		Recommendations: []string{},
		GeneratedAt:     now,
	}

	products := newRanking()
	categories := newRanking()
	regions := newRanking()
	customers := make(map[string]int)

	var (
		revenue, last30, prev30 float64
		sold, lost              int
	)
	lastStart := now.Add(-30 * 24 * time.Hour)
	prevStart := now.Add(-60 * 24 * time.Hour)

	for i := range orders {
		o := &orders[i]

		key := strings.ToLower(strings.TrimSpace(o.CustomerEmail))
		if key == "" {
			key = strings.ToLower(strings.TrimSpace(o.CustomerName))
		}
		if key != "" {
			customers[key]++
		}

		if o.OrderStatus == domain.StatusCancelled || o.OrderStatus == domain.StatusReturned {
			lost++
			continue
		}

		sold++
		revenue += o.TotalAmount
		products.add(o.ProductName, o.Quantity, o.TotalAmount)
		categories.add(o.ProductCategory, o.Quantity, o.TotalAmount)
		if o.CustomerState != "" {
			regions.add(o.CustomerState, o.Quantity, o.TotalAmount)
		}

		if o.OrderDate.Valid() {
			switch t := o.OrderDate.Time; {
			case t.After(lastStart) && !t.After(now):
				last30 += o.TotalAmount
			case t.After(prevStart) && !t.After(lastStart):
				prev30 += o.TotalAmount
			}
		}
	}

	// Revenue
	in.Revenue.TotalRevenue = revenue
	if sold > 0 {
		in.Revenue.AverageOrderValue = revenue / float64(sold)
	}
	switch {
	case prev30 > 0:
		in.Revenue.RevenueGrowth = (last30 - prev30) / prev30 * 100
	case last30 > 0:
		in.Revenue.RevenueGrowth = 100
	}

	// Customers
	repeat := 0
	for _, n := range customers {
		if n > 1 {
			repeat++
		}
	}
	in.CustomerBehavior.TotalCustomers = len(customers)
	if len(customers) > 0 {
		in.CustomerBehavior.CustomerRetentionRate = float64(repeat) / float64(len(customers)) * 100
		in.CustomerBehavior.AverageOrdersPerCustomer = float64(len(orders)) / float64(len(customers))
	}

	// Products and categories
	in.ProductPerformance.TotalProducts = len(products.items)
	for _, t := range top(products.sorted(func(a, b tally) bool {
		if a.units != b.units {
			return a.units > b.units
		}
		return a.revenue > b.revenue
	}), 5) {
		in.ProductPerformance.TopSellingProducts = append(in.ProductPerformance.TopSellingProducts,
			domain.ProductSales{Name: t.key, Units: t.units, Revenue: t.revenue})
	}
	for _, t := range categories.sorted(byRevenue) {
		in.ProductPerformance.CategoryPerformance = append(in.ProductPerformance.CategoryPerformance,
			domain.CategorySales{Category: t.key, Orders: t.orders, Revenue: t.revenue})
	}

	// Regions
	in.GeographicSales.TotalRegions = len(regions.items)
	for _, t := range top(regions.sorted(byRevenue), 5) {
		in.GeographicSales.TopRegions = append(in.GeographicSales.TopRegions,
			domain.RegionSales{Region: t.key, Orders: t.orders, Revenue: t.revenue})
	}

	// Forecast
	growth := in.Revenue.RevenueGrowth
	in.PredictiveForecast.NextMonthRevenue = last30 * (1 + growth/100)
	switch {
	case growth > 5:
		in.PredictiveForecast.GrowthTrend = "increasing"
	case growth < -5:
		in.PredictiveForecast.GrowthTrend = "decreasing"
	default:
		in.PredictiveForecast.GrowthTrend = "stable"
	}
	in.PredictiveForecast.Confidence = math.Min(95, 50+float64(len(orders))/10)

	lostRate := 0.0
	if len(orders) > 0 {
		lostRate = float64(lost) / float64(len(orders)) * 100
	}
	narrate(in, lostRate)
	return in
}

func byRevenue(a, b tally) bool { return a.revenue > b.revenue }

func top(ts []tally, n int) []tally {
	if len(ts) > n {
		return ts[:n]
	}
	return ts
}

// narrate fills the key insights and recommendations from the figures.
func narrate(in *domain.BusinessInsights, lostRate float64) {
	growth := in.Revenue.RevenueGrowth
	switch {
	case growth > 0:
		in.KeyInsights = append(in.KeyInsights, fmt.Sprintf("Revenue grew %s over the previous 30 days", format.Percent(growth)))
	case growth < 0:
		in.KeyInsights = append(in.KeyInsights, fmt.Sprintf("Revenue fell %s over the previous 30 days", format.Percent(-growth)))
	default:
		in.KeyInsights = append(in.KeyInsights, "Revenue is flat compared with the previous 30 days")
	}
	if cs := in.ProductPerformance.CategoryPerformance; len(cs) > 0 {
		in.KeyInsights = append(in.KeyInsights, fmt.Sprintf("%s is the leading category with %s in revenue", cs[0].Category, format.USD(cs[0].Revenue)))
	}
	if in.CustomerBehavior.TotalCustomers > 0 {
		in.KeyInsights = append(in.KeyInsights, fmt.Sprintf("%s of customers placed more than one order", format.Percent(in.CustomerBehavior.CustomerRetentionRate)))
	}
	if rs := in.GeographicSales.TopRegions; len(rs) > 0 {
		in.KeyInsights = append(in.KeyInsights, fmt.Sprintf("%s is the top region with %d orders", rs[0].Region, rs[0].Orders))
	}

	if growth < -5 {
		in.Recommendations = append(in.Recommendations, "Run a targeted promotion to recover declining sales")
	}
	if lostRate > 10 {
		in.Recommendations = append(in.Recommendations, fmt.Sprintf("Investigate the %s cancellation and return rate", format.Percent(lostRate)))
	}
	if in.CustomerBehavior.TotalCustomers > 0 && in.CustomerBehavior.CustomerRetentionRate < 30 {
		in.Recommendations = append(in.Recommendations, "Launch a loyalty program to encourage repeat purchases")
	}
	if cs := in.ProductPerformance.CategoryPerformance; len(cs) > 0 {
		in.Recommendations = append(in.Recommendations, fmt.Sprintf("Keep %s well stocked ahead of demand", cs[0].Category))
	}
	if len(in.Recommendations) == 0 {
		in.Recommendations = append(in.Recommendations, "Maintain current fulfilment performance")
	}
}
