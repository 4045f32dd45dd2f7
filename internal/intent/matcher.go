package intent

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/arkio/order-assistant-go/internal/domain"
)

// Kind identifies which lookup produced a Plan.
type Kind string

const (
	KindIdentifier Kind = "identifier"
	KindCustomer   Kind = "customer"
	KindStatus     Kind = "status"
	KindProduct    Kind = "product"
	KindLocation   Kind = "location"
	KindStatistics Kind = "statistics"
	KindTracking   Kind = "tracking"
	KindRecent     Kind = "recent"
)

// StatisticsColumns is the projection read by the statistics lookup.
var StatisticsColumns = []string{"order_status", "total_amount", "product_category", "product_brand"}

// Plan is one read the message asked for. Label carries the matched value
// (order id token, customer name, canonical status or search term) used in
// the section header.
type Plan struct {
	Kind  Kind
	Label string
	Query domain.OrderQuery
}

// Matcher evaluates a Table against chat messages. It is safe for
// concurrent use.
type Matcher struct {
	table        Table
	orderID      *regexp.Regexp
	term         *regexp.Regexp
	predictionID *regexp.Regexp
	stopWords    map[string]bool
}

// NewMatcher compiles the table's patterns.
func NewMatcher(t Table) (*Matcher, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	stop := make(map[string]bool, len(t.StopWords))
	for _, w := range t.StopWords {
		stop[strings.ToLower(w)] = true
	}

	return &Matcher{
		table:        t,
		orderID:      regexp.MustCompile(t.OrderIDPattern),
		term:         regexp.MustCompile(fmt.Sprintf(`\b[a-zA-Z]{%d,}\b`, t.MinTermLength)),
		predictionID: regexp.MustCompile(t.PredictionIDPattern),
		stopWords:    stop,
	}, nil
}

// Table returns the table the matcher was built from.
func (m *Matcher) Table() Table { return m.table }

// Plan returns the reads for every lookup that fires on message, in
// evaluation order. No lookup firing yields an empty slice.
func (m *Matcher) Plan(message string) []Plan {
	lower := strings.ToLower(message)
	var plans []Plan

	plans = append(plans, m.identifier(message)...)
	plans = append(plans, m.customers(message, lower)...)
	plans = append(plans, m.statuses(lower)...)
	plans = append(plans, m.products(message, lower)...)

	if containsAny(lower, m.table.LocationTriggers) {
		plans = append(plans, Plan{
			Kind: KindLocation,
			Query: domain.OrderQuery{
				Filters:    []domain.Filter{{Column: "current_location", Op: domain.OpNotNull}},
				NewestDate: true,
				Limit:      m.table.Limits.Location,
			},
		})
	}

	if containsAny(lower, m.table.StatisticsTriggers) {
		plans = append(plans, Plan{
			Kind:  KindStatistics,
			Query: domain.OrderQuery{Columns: StatisticsColumns},
		})
	}

	if containsAny(lower, m.table.TrackingTriggers) {
		plans = append(plans, Plan{
			Kind: KindTracking,
			Query: domain.OrderQuery{
				Filters:    []domain.Filter{{Column: "tracking_number", Op: domain.OpNotNull}},
				NewestDate: true,
				Limit:      m.table.Limits.Tracking,
			},
		})
	}

	if containsAny(lower, m.table.RecencyTriggers) {
		plans = append(plans, Plan{
			Kind:  KindRecent,
			Query: domain.OrderQuery{NewestDate: true, Limit: m.table.Limits.Recent},
		})
	}

	return plans
}

func (m *Matcher) identifier(message string) []Plan {
	token := m.orderID.FindString(message)
	if token == "" {
		return nil
	}
	token = strings.ToUpper(token)
	return []Plan{{
		Kind:  KindIdentifier,
		Label: token,
		Query: domain.OrderQuery{
			Filters: []domain.Filter{{Column: "order_id", Op: domain.OpILike, Value: token}},
			Limit:   m.table.Limits.Identifier,
		},
	}}
}

func (m *Matcher) customers(message, lower string) []Plan {
	// Lowercasing some runes changes their byte width; slice the lowered
	// text in that case so indexes stay valid.
	source := message
	if len(source) != len(lower) {
		source = lower
	}

	var plans []Plan
	for _, trigger := range m.table.NameTriggers {
		idx := strings.Index(lower, strings.ToLower(trigger))
		if idx < 0 {
			continue
		}
		rest := source[idx+len(trigger):]
		if end := strings.IndexAny(rest, m.table.NameTerminators); end >= 0 {
			rest = rest[:end]
		}
		name := strings.TrimSpace(rest)
		if len([]rune(name)) < m.table.MinNameLength {
			continue
		}
		plans = append(plans, Plan{
			Kind:  KindCustomer,
			Label: name,
			Query: domain.OrderQuery{
				Filters:    []domain.Filter{{Column: "customer_name", Op: domain.OpILike, Value: name}},
				NewestDate: true,
				Limit:      m.table.Limits.Customer,
			},
		})
	}
	return plans
}

func (m *Matcher) statuses(lower string) []Plan {
	var plans []Plan
	for _, sk := range m.table.StatusKeywords {
		if !strings.Contains(lower, strings.ToLower(sk.Keyword)) {
			continue
		}
		plans = append(plans, Plan{
			Kind:  KindStatus,
			Label: sk.Status,
			Query: domain.OrderQuery{
				Filters:    []domain.Filter{{Column: "order_status", Op: domain.OpEq, Value: sk.Status}},
				NewestDate: true,
				Limit:      m.table.Limits.Status,
				CountExact: true,
			},
		})
	}
	return plans
}

func (m *Matcher) products(message, lower string) []Plan {
	if !containsAny(lower, m.table.ProductTriggers) {
		return nil
	}

	var plans []Plan
	seen := make(map[string]bool)
	for _, term := range m.SearchTerms(message) {
		key := strings.ToLower(term)
		if seen[key] {
			continue
		}
		seen[key] = true
		plans = append(plans, Plan{
			Kind:  KindProduct,
			Label: term,
			Query: domain.OrderQuery{
				AnyOf: []domain.Filter{
					{Column: "product_name", Op: domain.OpILike, Value: term},
					{Column: "product_brand", Op: domain.OpILike, Value: term},
					{Column: "product_category", Op: domain.OpILike, Value: term},
				},
				NewestDate: true,
				Limit:      m.table.Limits.Product,
			},
		})
	}
	return plans
}

// SearchTerms returns the alphabetic tokens of message long enough to search
// for and not on the stop list, in message order.
func (m *Matcher) SearchTerms(message string) []string {
	var terms []string
	for _, tok := range m.term.FindAllString(message, -1) {
		if m.stopWords[strings.ToLower(tok)] {
			continue
		}
		terms = append(terms, tok)
	}
	return terms
}

// BusinessTriggered reports whether the message asks for business analytics.
func (m *Matcher) BusinessTriggered(message string) bool {
	return containsAny(strings.ToLower(message), m.table.BusinessTriggers)
}

// VisualTriggered reports whether the message asks about image scanning.
func (m *Matcher) VisualTriggered(message string) bool {
	return containsAny(strings.ToLower(message), m.table.VisualTriggers)
}

// ExtractPredictionIDs returns the order identifiers captured by the
// prediction pattern in the context blob, de-duplicated, in order.
func (m *Matcher) ExtractPredictionIDs(blob string) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, match := range m.predictionID.FindAllStringSubmatch(blob, -1) {
		id := match[1]
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

func containsAny(lower string, triggers []string) bool {
	for _, t := range triggers {
		if strings.Contains(lower, strings.ToLower(t)) {
			return true
		}
	}
	return false
}
