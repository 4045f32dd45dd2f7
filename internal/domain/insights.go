package domain

import "time"

// ============================================================
// Delay prediction
// ============================================================

// RiskFactor is one contributor to an order's delay probability.
type RiskFactor struct {
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Weight      float64 `json:"weight"`
}

// DelayPrediction is computed on demand per order and never persisted.
type DelayPrediction struct {
	OrderID               string       `json:"orderId"`
	DelayProbability      float64      `json:"delayProbability"` // 0-100
	RiskFactors           []RiskFactor `json:"riskFactors"`
	PredictedDeliveryDate time.Time    `json:"predictedDeliveryDate"`
	Recommendations       []string     `json:"recommendations"`
}

// ============================================================
// Business insights snapshot
// ============================================================

type RevenueInsights struct {
	TotalRevenue      float64 `json:"totalRevenue"`
	RevenueGrowth     float64 `json:"revenueGrowth"`
	AverageOrderValue float64 `json:"averageOrderValue"`
}

type CustomerBehavior struct {
	TotalCustomers           int     `json:"totalCustomers"`
	CustomerRetentionRate    float64 `json:"customerRetentionRate"`
	AverageOrdersPerCustomer float64 `json:"averageOrdersPerCustomer"`
}

type ProductSales struct {
	Name    string  `json:"name"`
	Units   int     `json:"units"`
	Revenue float64 `json:"revenue"`
}

type CategorySales struct {
	Category string  `json:"category"`
	Orders   int     `json:"orders"`
	Revenue  float64 `json:"revenue"`
}

type ProductPerformance struct {
	TotalProducts       int             `json:"totalProducts"`
	TopSellingProducts  []ProductSales  `json:"topSellingProducts"`
	CategoryPerformance []CategorySales `json:"categoryPerformance"`
}

type RegionSales struct {
	Region  string  `json:"region"`
	Orders  int     `json:"orders"`
	Revenue float64 `json:"revenue"`
}

type GeographicSales struct {
	TotalRegions int           `json:"totalRegions"`
	TopRegions   []RegionSales `json:"topRegions"`
}

type RevenueForecast struct {
	NextMonthRevenue float64 `json:"nextMonthRevenue"`
	GrowthTrend      string  `json:"growthTrend"` // increasing, decreasing, stable
	Confidence       float64 `json:"confidence"`
}

// BusinessInsights is an aggregate snapshot over the whole order store.
type BusinessInsights struct {
	Revenue            RevenueInsights    `json:"revenue"`
	CustomerBehavior   CustomerBehavior   `json:"customerBehavior"`
	ProductPerformance ProductPerformance `json:"productPerformance"`
	GeographicSales    GeographicSales    `json:"geographicSales"`
	PredictiveForecast RevenueForecast    `json:"predictiveForecast"`
	KeyInsights        []string           `json:"keyInsights"`
	Recommendations    []string           `json:"recommendations"`
	GeneratedAt        time.Time          `json:"generatedAt"`
}

// ============================================================
// Order statistics (statistics matcher)
// ============================================================

// CountBucket is a label with its frequency.
type CountBucket struct {
	Label string
	Count int
}

// OrderStatistics summarises every record in the store.
type OrderStatistics struct {
	Total             int
	Delivered         int
	InTransit         int
	Pending           int
	Cancelled         int
	TotalRevenue      float64
	AverageOrderValue float64
	TopCategories     []CountBucket
	TopBrands         []CountBucket
}
