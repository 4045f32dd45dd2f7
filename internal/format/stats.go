package format

import (
	"fmt"
	"strings"

	"github.com/arkio/order-assistant-go/internal/domain"
)

// Statistics renders the order statistics section.
func Statistics(s domain.OrderStatistics) string {
	return fmt.Sprintf("📊 **Order Statistics:**\n"+
		"- Total Orders: %d\n"+
		"- Delivered: %d\n"+
		"- In Transit: %d\n"+
		"- Pending: %d\n"+
		"- Cancelled: %d\n"+
		"- Total Revenue: %s\n"+
		"- Average Order Value: %s\n\n"+
		"📦 **Top Categories:** %s\n\n"+
		"🏷️ **Top Brands:** %s",
		s.Total, s.Delivered, s.InTransit, s.Pending, s.Cancelled,
		Rupees(s.TotalRevenue), Rupees(s.AverageOrderValue),
		buckets(s.TopCategories), buckets(s.TopBrands))
}

func buckets(bs []domain.CountBucket) string {
	parts := make([]string, len(bs))
	for i, b := range bs {
		parts[i] = fmt.Sprintf("%s: %d", b.Label, b.Count)
	}
	return strings.Join(parts, ", ")
}
