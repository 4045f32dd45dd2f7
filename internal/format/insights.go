package format

import (
	"strconv"
	"strings"

	"github.com/arkio/order-assistant-go/internal/domain"
)

// Dashboard renders the business intelligence block.
func Dashboard(in *domain.BusinessInsights) string {
	topProduct, topCategory, topRegion := "N/A", "N/A", "N/A"
	if ps := in.ProductPerformance.TopSellingProducts; len(ps) > 0 && ps[0].Name != "" {
		topProduct = ps[0].Name
	}
	if cs := in.ProductPerformance.CategoryPerformance; len(cs) > 0 && cs[0].Category != "" {
		topCategory = cs[0].Category
	}
	if rs := in.GeographicSales.TopRegions; len(rs) > 0 && rs[0].Region != "" {
		topRegion = rs[0].Region
	}

	var b strings.Builder
	b.WriteString("📊 **BUSINESS INTELLIGENCE DASHBOARD** 📊\n\n")

	b.WriteString("**Revenue Overview:**\n")
	b.WriteString("• Total Revenue: " + USD(in.Revenue.TotalRevenue) + "\n")
	b.WriteString("• Revenue Growth: " + Percent(in.Revenue.RevenueGrowth) + "\n")
	b.WriteString("• Average Order Value: " + USD(in.Revenue.AverageOrderValue) + "\n\n")

	b.WriteString("**Customer Analytics:**\n")
	b.WriteString("• Total Customers: " + Grouped(float64(in.CustomerBehavior.TotalCustomers)) + "\n")
	b.WriteString("• Customer Retention Rate: " + Percent(in.CustomerBehavior.CustomerRetentionRate) + "\n")
	b.WriteString("• Average Orders per Customer: " + strconv.FormatFloat(in.CustomerBehavior.AverageOrdersPerCustomer, 'f', 1, 64) + "\n\n")

	b.WriteString("**Product Performance:**\n")
	b.WriteString("• Total Products: " + strconv.Itoa(in.ProductPerformance.TotalProducts) + "\n")
	b.WriteString("• Top Product: " + topProduct + "\n")
	b.WriteString("• Top Category: " + topCategory + "\n\n")

	b.WriteString("**Geographic Reach:**\n")
	b.WriteString("• Active Regions: " + strconv.Itoa(in.GeographicSales.TotalRegions) + "\n")
	b.WriteString("• Top Region: " + topRegion + "\n\n")

	b.WriteString("**Forecast:**\n")
	b.WriteString("• Next Month Revenue: " + USD(in.PredictiveForecast.NextMonthRevenue) + "\n")
	b.WriteString("• Growth Trend: " + in.PredictiveForecast.GrowthTrend + "\n")
	b.WriteString("• Confidence: " + strconv.FormatFloat(in.PredictiveForecast.Confidence, 'f', 0, 64) + "%\n\n")

	b.WriteString("**Key Insights:**\n")
	b.WriteString(bullets(in.KeyInsights, 3))
	b.WriteString("\n\n**Recommendations:**\n")
	b.WriteString(bullets(in.Recommendations, 3))

	return b.String()
}

func bullets(items []string, max int) string {
	if len(items) > max {
		items = items[:max]
	}
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = "• " + it
	}
	return strings.Join(lines, "\n")
}
