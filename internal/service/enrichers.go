package service

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/arkio/order-assistant-go/internal/format"
	"github.com/arkio/order-assistant-go/internal/infra/observability"
	"github.com/arkio/order-assistant-go/internal/intent"
	"github.com/arkio/order-assistant-go/internal/port"
)

// Enricher names used in logs and metrics.
const (
	EnricherDelayRisk = "delay_risk"
	EnricherBusiness  = "business"
)

// Enrichers add derived sections to the prompt. Failures never propagate:
// the section is left out, logged and counted.
type Enrichers struct {
	matcher   *intent.Matcher
	predictor port.DelayPredictor
	insights  port.InsightsProvider
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewEnrichers creates the enrichment stage.
func NewEnrichers(matcher *intent.Matcher, predictor port.DelayPredictor, insights port.InsightsProvider, metrics *observability.Metrics, logger *zap.Logger) *Enrichers {
	return &Enrichers{
		matcher:   matcher,
		predictor: predictor,
		insights:  insights,
		metrics:   metrics,
		logger:    logger,
	}
}

// DelayRisk scores the orders referenced in the context blob. It returns ""
// when the blob is empty, no identifiers are found or prediction fails.
func (e *Enrichers) DelayRisk(ctx context.Context, blob string) string {
	if strings.TrimSpace(blob) == "" {
		return ""
	}

	ids := e.matcher.ExtractPredictionIDs(blob)
	if len(ids) == 0 {
		return ""
	}

	ctx, span := tracer.Start(ctx, "Enrichers.DelayRisk")
	defer span.End()
	span.SetAttributes(attribute.Int("orders", len(ids)))

	preds, err := e.predictor.PredictDelays(ctx, ids)
	if err != nil {
		span.RecordError(err)
		e.fail(EnricherDelayRisk, err)
		return ""
	}
	return format.DelayRisk(preds)
}

// Business renders the analytics dashboard when the message asks for it.
func (e *Enrichers) Business(ctx context.Context, message string) string {
	if !e.matcher.BusinessTriggered(message) {
		return ""
	}

	ctx, span := tracer.Start(ctx, "Enrichers.Business")
	defer span.End()

	in, err := e.insights.GetInsights(ctx)
	if err != nil {
		span.RecordError(err)
		e.fail(EnricherBusiness, err)
		return ""
	}
	return format.Dashboard(in)
}

// Visual returns the scanning help text when the message asks for it.
func (e *Enrichers) Visual(message string) string {
	if !e.matcher.VisualTriggered(message) {
		return ""
	}
	return format.VisualHelp
}

func (e *Enrichers) fail(enricher string, err error) {
	e.logger.Warn("enrichment failed, continuing without it",
		zap.String("enricher", enricher),
		zap.Error(err),
	)
	e.metrics.IncrEnrichmentFailure(enricher)
}
