package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/arkio/order-assistant-go/internal/domain"
	"github.com/arkio/order-assistant-go/internal/format"
	"github.com/arkio/order-assistant-go/internal/port"
)

// Risk factor weights, in evaluation order.
const (
	weightOverdue           = 45
	weightNoTracking        = 20
	weightCarrierUnassigned = 15
	weightBacklog           = 25
	weightPaymentPending    = 10
	weightMissingEstimate   = 10
	weightPeakVolume        = 5

	backlogAfter      = 72 * time.Hour
	defaultTransit    = 7 * 24 * time.Hour
	peakQuantity      = 5
	maxPredictionIDs  = 50
	probabilityPerDay = 20.0
)

var settledPayments = map[string]bool{"completed": true, "paid": true, "success": true}

// DelayPredictionService scores delivery-delay risk from the order record
// alone: lifecycle stage, tracking, carrier, payment and dates.
type DelayPredictionService struct {
	store port.OrderStore
	now   func() time.Time
}

// NewDelayPredictionService creates the predictor. now may be nil.
func NewDelayPredictionService(store port.OrderStore, now func() time.Time) *DelayPredictionService {
	if now == nil {
		now = time.Now
	}
	return &DelayPredictionService{store: store, now: now}
}

// PredictDelays scores the given orders. Unknown ids are skipped; results
// follow the order of orderIDs.
func (s *DelayPredictionService) PredictDelays(ctx context.Context, orderIDs []string) ([]domain.DelayPrediction, error) {
	ids := dedupe(orderIDs)
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > maxPredictionIDs {
		return nil, &domain.ErrValidation{Field: "orderIds", Message: fmt.Sprintf("at most %d orders per request", maxPredictionIDs)}
	}

	ctx, span := tracer.Start(ctx, "DelayPredictionService.PredictDelays")
	defer span.End()
	span.SetAttributes(attribute.Int("orders", len(ids)))

	page, err := s.store.FindOrders(ctx, domain.OrderQuery{
		Filters: []domain.Filter{{Column: "order_id", Op: domain.OpIn, Values: ids}},
		Limit:   len(ids),
	})
	if err != nil {
		return nil, fmt.Errorf("load orders for prediction: %w", err)
	}

	byID := make(map[string]*domain.Order, len(page.Orders))
	for i := range page.Orders {
		byID[page.Orders[i].OrderID] = &page.Orders[i]
	}

	now := s.now()
	out := make([]domain.DelayPrediction, 0, len(ids))
	for _, id := range ids {
		if o, ok := byID[id]; ok {
			out = append(out, Predict(o, now))
		}
	}
	return out, nil
}

// Predict scores a single order at time now.
func Predict(o *domain.Order, now time.Time) domain.DelayPrediction {
	p := domain.DelayPrediction{
		OrderID:         o.OrderID,
		RiskFactors:     []domain.RiskFactor{},
		Recommendations: []string{},
	}

	if o.IsClosed() {
		p.PredictedDeliveryDate = baseDelivery(o, now)
		if o.ActualDelivery.Valid() {
			p.PredictedDeliveryDate = o.ActualDelivery.Time
		}
		return p
	}

	add := func(typ, desc string, weight float64, rec string) {
		p.RiskFactors = append(p.RiskFactors, domain.RiskFactor{Type: typ, Description: desc, Weight: weight})
		p.Recommendations = append(p.Recommendations, rec)
		p.DelayProbability += weight
	}

	if o.ExpectedDelivery.Valid() && o.ExpectedDelivery.Before(now) {
		add("overdue",
			"Expected delivery "+format.Date(o.ExpectedDelivery)+" has passed",
			weightOverdue,
			"Contact the carrier for an updated delivery estimate")
	}
	if o.HasShipped() && isBlank(o.TrackingNumber) {
		add("no_tracking",
			"Shipped without a tracking number",
			weightNoTracking,
			"Request a tracking number from the seller")
	}
	if o.HasShipped() && isBlank(o.CarrierName) {
		add("carrier_unassigned",
			"No carrier assigned to the shipment",
			weightCarrierUnassigned,
			"Confirm the carrier handling the shipment")
	}
	if awaitingDispatch(o) && o.OrderDate.Valid() && now.Sub(o.OrderDate.Time) > backlogAfter {
		add("fulfilment_backlog",
			fmt.Sprintf("Still %s %d days after ordering", o.OrderStatus, int(now.Sub(o.OrderDate.Time).Hours()/24)),
			weightBacklog,
			"Escalate fulfilment with the seller")
	}
	if !settledPayments[strings.ToLower(o.PaymentStatus)] {
		add("payment_pending",
			"Payment status is "+orUnknown(o.PaymentStatus),
			weightPaymentPending,
			"Follow up on the pending payment")
	}
	if !o.ExpectedDelivery.Valid() {
		add("missing_estimate",
			"No expected delivery date",
			weightMissingEstimate,
			"Share an expected delivery date with the customer")
	}
	if o.Quantity >= peakQuantity {
		add("peak_volume",
			fmt.Sprintf("Large quantity (%d units)", o.Quantity),
			weightPeakVolume,
			"Verify stock for the bulk quantity")
	}

	p.DelayProbability = math.Max(0, math.Min(100, p.DelayProbability))
	slip := time.Duration(math.Ceil(p.DelayProbability/probabilityPerDay)) * 24 * time.Hour
	p.PredictedDeliveryDate = baseDelivery(o, now).Add(slip)
	return p
}

func baseDelivery(o *domain.Order, now time.Time) time.Time {
	switch {
	case o.ExpectedDelivery.Valid():
		return o.ExpectedDelivery.Time
	case o.OrderDate.Valid():
		return o.OrderDate.Add(defaultTransit)
	default:
		return now.Add(defaultTransit)
	}
}

func awaitingDispatch(o *domain.Order) bool {
	switch o.OrderStatus {
	case domain.StatusOrderPlaced, domain.StatusConfirmed, domain.StatusPacked:
		return true
	}
	return false
}

func isBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
