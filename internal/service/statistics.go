package service

import (
	"sort"

	"github.com/arkio/order-assistant-go/internal/domain"
)

// ComputeStatistics summarises orders into status buckets, revenue and the
// three most frequent categories and brands. An empty input yields zeros.
func ComputeStatistics(orders []domain.Order) domain.OrderStatistics {
	s := domain.OrderStatistics{Total: len(orders)}

	categories := newCounter()
	brands := newCounter()

	for i := range orders {
		o := &orders[i]
		switch o.OrderStatus {
		case domain.StatusDelivered:
			s.Delivered++
		case domain.StatusInTransit, domain.StatusShipped, domain.StatusOutForDelivery:
			s.InTransit++
		case domain.StatusOrderPlaced, domain.StatusConfirmed, domain.StatusPacked:
			s.Pending++
		case domain.StatusCancelled, domain.StatusReturned:
			s.Cancelled++
		}
		s.TotalRevenue += o.TotalAmount
		categories.add(o.ProductCategory)
		brands.add(o.ProductBrand)
	}

	if s.Total > 0 {
		s.AverageOrderValue = s.TotalRevenue / float64(s.Total)
	}
	s.TopCategories = categories.top(3)
	s.TopBrands = brands.top(3)
	return s
}

// counter tallies labels and remembers first-seen order for tie breaks.
type counter struct {
	index   map[string]int
	buckets []domain.CountBucket
}

func newCounter() *counter {
	return &counter{index: make(map[string]int)}
}

func (c *counter) add(label string) {
	if i, ok := c.index[label]; ok {
		c.buckets[i].Count++
		return
	}
	c.index[label] = len(c.buckets)
	c.buckets = append(c.buckets, domain.CountBucket{Label: label, Count: 1})
}

func (c *counter) top(n int) []domain.CountBucket {
	out := make([]domain.CountBucket, len(c.buckets))
	copy(out, c.buckets)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > n {
		out = out[:n]
	}
	return out
}
