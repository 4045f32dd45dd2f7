package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/arkio/order-assistant-go/internal/domain"
	"github.com/arkio/order-assistant-go/internal/format"
	"github.com/arkio/order-assistant-go/internal/infra/observability"
	"github.com/arkio/order-assistant-go/internal/infra/resilience"
	"github.com/arkio/order-assistant-go/internal/intent"
	"github.com/arkio/order-assistant-go/internal/port"
)

// SectionSeparator joins the sections of the context blob.
const SectionSeparator = "\n\n---\n\n"

// ContextBuilder runs the planned order lookups for a message and joins
// their sections into the context blob.
type ContextBuilder struct {
	store    port.OrderStore
	matcher  *intent.Matcher
	bulkhead *resilience.Bulkhead
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewContextBuilder creates a ContextBuilder. bulkhead bounds how many
// lookups hit the store at once.
func NewContextBuilder(store port.OrderStore, matcher *intent.Matcher, bulkhead *resilience.Bulkhead, metrics *observability.Metrics, logger *zap.Logger) *ContextBuilder {
	return &ContextBuilder{
		store:    store,
		matcher:  matcher,
		bulkhead: bulkhead,
		metrics:  metrics,
		logger:   logger,
	}
}

// Build returns the context blob for message. Lookups run concurrently but
// sections keep evaluation order. A failed lookup is logged and counted and
// contributes nothing; no lookup firing yields "".
func (b *ContextBuilder) Build(ctx context.Context, message string) string {
	ctx, span := tracer.Start(ctx, "ContextBuilder.Build")
	defer span.End()

	start := time.Now()
	defer func() {
		b.metrics.RecordRequestDuration("context", time.Since(start))
	}()

	plans := b.matcher.Plan(message)
	span.SetAttributes(attribute.Int("intent.plans", len(plans)))
	if len(plans) == 0 {
		return ""
	}

	sections := make([]string, len(plans))
	g, gCtx := errgroup.WithContext(ctx)

	for i, p := range plans {
		i, p := i, p
		b.metrics.IncrIntentMatch(string(p.Kind))

		g.Go(func() error {
			err := b.bulkhead.Do(gCtx, func() error {
				page, err := b.store.FindOrders(gCtx, p.Query)
				if err != nil {
					return err
				}
				sections[i] = renderSection(p, page)
				return nil
			})
			if err != nil {
				b.logger.Warn("order lookup failed",
					zap.String("intent", string(p.Kind)),
					zap.String("label", p.Label),
					zap.Error(err),
				)
				b.metrics.IncrExternalError("order_store")
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]string, 0, len(sections))
	for _, s := range sections {
		if s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, SectionSeparator)
}

// renderSection formats one lookup result. Statistics always render; every
// other lookup contributes nothing without rows.
func renderSection(p intent.Plan, page *domain.OrderPage) string {
	if page == nil {
		page = &domain.OrderPage{}
	}
	if p.Kind == intent.KindStatistics {
		return format.Statistics(ComputeStatistics(page.Orders))
	}

	rows := page.Orders
	if len(rows) == 0 {
		return ""
	}

	switch p.Kind {
	case intent.KindIdentifier:
		return "Found order:\n" + format.Order(&rows[0])
	case intent.KindCustomer:
		return fmt.Sprintf("Found %d order(s) for \"%s\":\n%s", len(rows), p.Label, format.Orders(rows))
	case intent.KindStatus:
		total := page.Total
		if total < len(rows) {
			total = len(rows)
		}
		s := fmt.Sprintf("Found %d orders with status \"%s\":\n%s", total, p.Label, format.Orders(rows))
		if total > p.Query.Limit {
			s += fmt.Sprintf("\n\n...and %d more orders.", total-p.Query.Limit)
		}
		return s
	case intent.KindProduct:
		return fmt.Sprintf("Found %d order(s) matching \"%s\":\n%s", len(rows), p.Label, format.Orders(rows))
	case intent.KindLocation:
		return fmt.Sprintf("Found %d orders with current location info:\n%s", len(rows), format.Orders(rows))
	case intent.KindTracking:
		return fmt.Sprintf("Found %d orders with tracking numbers:\n%s", len(rows), format.Orders(rows))
	case intent.KindRecent:
		return "Recent orders:\n" + format.Orders(rows)
	}
	return ""
}
