package format

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arkio/order-assistant-go/internal/domain"
)

// HighRiskThreshold is the delay probability above which an order is
// reported as at risk.
const HighRiskThreshold = 50.0

// DelayRisk renders the alert block when any prediction exceeds
// HighRiskThreshold, the all-clear block otherwise, and nothing when there
// are no predictions.
func DelayRisk(preds []domain.DelayPrediction) string {
	if len(preds) == 0 {
		return ""
	}

	var high []domain.DelayPrediction
	for _, p := range preds {
		if p.DelayProbability > HighRiskThreshold {
			high = append(high, p)
		}
	}

	if len(high) == 0 {
		return "✅ **PREDICTIVE INTELLIGENCE**: All analyzed orders are on track with low delay risk. " +
			"Current delivery estimates appear reliable based on fulfilment, tracking and carrier data."
	}

	var b strings.Builder
	b.WriteString("🚨 **PREDICTIVE INTELLIGENCE ALERT** 🚨\n")
	for _, p := range high {
		types := make([]string, len(p.RiskFactors))
		for i, rf := range p.RiskFactors {
			types[i] = rf.Type
		}
		recs := p.Recommendations
		if len(recs) > 2 {
			recs = recs[:2]
		}
		fmt.Fprintf(&b, "\n• Order %s: %s%% delay risk\n", p.OrderID, strconv.FormatFloat(p.DelayProbability, 'f', 0, 64))
		fmt.Fprintf(&b, "  Risk factors: %s\n", strings.Join(types, ", "))
		fmt.Fprintf(&b, "  Predicted delivery: %s\n", ShortDate(p.PredictedDeliveryDate))
		fmt.Fprintf(&b, "  Recommendations: %s\n", strings.Join(recs, ", "))
	}
	fmt.Fprintf(&b, "\n⚡ **AI Prediction Summary**: %d order(s) at risk of delay. "+
		"Consider proactive customer notification and alternative shipping options.", len(high))

	return b.String()
}
