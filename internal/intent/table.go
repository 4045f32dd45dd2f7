// Package intent turns a free-text chat message into bounded order-store
// reads. Every trigger list lives in a Table so operators can tune the
// heuristics without a rebuild.
package intent

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/arkio/order-assistant-go/internal/domain"
)

// StatusKeyword maps a phrase in the message to a canonical order status.
type StatusKeyword struct {
	Keyword string `koanf:"keyword"`
	Status  string `koanf:"status"`
}

// Limits caps the number of rows each lookup reads.
type Limits struct {
	Identifier int `koanf:"identifier"`
	Customer   int `koanf:"customer"`
	Status     int `koanf:"status"`
	Product    int `koanf:"product"`
	Location   int `koanf:"location"`
	Tracking   int `koanf:"tracking"`
	Recent     int `koanf:"recent"`
}

// Table holds every trigger list, pattern and limit used by the Matcher.
type Table struct {
	OrderIDPattern      string          `koanf:"order_id_pattern"`
	NameTriggers        []string        `koanf:"name_triggers"`
	NameTerminators     string          `koanf:"name_terminators"`
	MinNameLength       int             `koanf:"min_name_length"`
	StatusKeywords      []StatusKeyword `koanf:"status_keywords"`
	ProductTriggers     []string        `koanf:"product_triggers"`
	StopWords           []string        `koanf:"stop_words"`
	MinTermLength       int             `koanf:"min_term_length"`
	LocationTriggers    []string        `koanf:"location_triggers"`
	StatisticsTriggers  []string        `koanf:"statistics_triggers"`
	TrackingTriggers    []string        `koanf:"tracking_triggers"`
	RecencyTriggers     []string        `koanf:"recency_triggers"`
	BusinessTriggers    []string        `koanf:"business_triggers"`
	VisualTriggers      []string        `koanf:"visual_triggers"`
	PredictionIDPattern string          `koanf:"prediction_id_pattern"`
	Limits              Limits          `koanf:"limits"`
}

// DefaultTable returns the built-in heuristics.
func DefaultTable() Table {
	return Table{
		OrderIDPattern:  `\b[A-Za-z]{2}\d+\b`,
		NameTriggers:    []string{"order for", "orders of", "track order of", "find order for", "orders by", "customer", "my order"},
		NameTerminators: ",.?!",
		MinNameLength:   3,
		StatusKeywords: []StatusKeyword{
			{Keyword: "delivered", Status: string(domain.StatusDelivered)},
			{Keyword: "in transit", Status: string(domain.StatusInTransit)},
			{Keyword: "shipped", Status: string(domain.StatusShipped)},
			{Keyword: "pending", Status: string(domain.StatusOrderPlaced)},
			{Keyword: "cancelled", Status: string(domain.StatusCancelled)},
			{Keyword: "out for delivery", Status: string(domain.StatusOutForDelivery)},
			{Keyword: "confirmed", Status: string(domain.StatusConfirmed)},
			{Keyword: "packed", Status: string(domain.StatusPacked)},
		},
		ProductTriggers: []string{"product", "brand", "item", "buy", "purchase"},
		StopWords: []string{
			"the", "what", "where", "when", "how", "can", "you", "find", "show",
			"get", "tell", "about", "order", "tracking", "product", "brand",
		},
		MinTermLength:       3,
		LocationTriggers:    []string{"location", "where", "city", "state", "address"},
		StatisticsTriggers:  []string{"statistics", "stats", "summary", "overview", "how many", "total"},
		TrackingTriggers:    []string{"tracking", "track"},
		RecencyTriggers:     []string{"recent", "latest", "new"},
		BusinessTriggers:    []string{"business", "revenue", "sales", "customer", "product", "analytics", "insights", "performance"},
		VisualTriggers:      []string{"scan", "recognize", "image", "photo", "receipt", "invoice", "visual"},
		PredictionIDPattern: `Order ID: (\S+)`,
		Limits: Limits{
			Identifier: 1,
			Customer:   5,
			Status:     5,
			Product:    3,
			Location:   5,
			Tracking:   5,
			Recent:     5,
		},
	}
}

// LoadTable overlays the YAML file at path on DefaultTable. Keys absent from
// the file keep their defaults; lists present in the file replace the
// default list. An empty path returns the defaults.
func LoadTable(path string) (Table, error) {
	t := DefaultTable()
	if path == "" {
		return t, t.Validate()
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return Table{}, fmt.Errorf("load intent table %s: %w", path, err)
	}

	var overlay Table
	if err := k.Unmarshal("", &overlay); err != nil {
		return Table{}, fmt.Errorf("decode intent table %s: %w", path, err)
	}
	t.merge(overlay)

	if err := t.Validate(); err != nil {
		return Table{}, fmt.Errorf("intent table %s: %w", path, err)
	}
	return t, nil
}

func (t *Table) merge(o Table) {
	mergeString(&t.OrderIDPattern, o.OrderIDPattern)
	mergeString(&t.NameTerminators, o.NameTerminators)
	mergeString(&t.PredictionIDPattern, o.PredictionIDPattern)

	mergeInt(&t.MinNameLength, o.MinNameLength)
	mergeInt(&t.MinTermLength, o.MinTermLength)

	mergeList(&t.NameTriggers, o.NameTriggers)
	mergeList(&t.ProductTriggers, o.ProductTriggers)
	mergeList(&t.StopWords, o.StopWords)
	mergeList(&t.LocationTriggers, o.LocationTriggers)
	mergeList(&t.StatisticsTriggers, o.StatisticsTriggers)
	mergeList(&t.TrackingTriggers, o.TrackingTriggers)
	mergeList(&t.RecencyTriggers, o.RecencyTriggers)
	mergeList(&t.BusinessTriggers, o.BusinessTriggers)
	mergeList(&t.VisualTriggers, o.VisualTriggers)
	if len(o.StatusKeywords) > 0 {
		t.StatusKeywords = o.StatusKeywords
	}

	mergeInt(&t.Limits.Identifier, o.Limits.Identifier)
	mergeInt(&t.Limits.Customer, o.Limits.Customer)
	mergeInt(&t.Limits.Status, o.Limits.Status)
	mergeInt(&t.Limits.Product, o.Limits.Product)
	mergeInt(&t.Limits.Location, o.Limits.Location)
	mergeInt(&t.Limits.Tracking, o.Limits.Tracking)
	mergeInt(&t.Limits.Recent, o.Limits.Recent)
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func mergeInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func mergeList(dst *[]string, v []string) {
	if len(v) > 0 {
		*dst = v
	}
}

var knownStatuses = map[string]bool{
	string(domain.StatusOrderPlaced):    true,
	string(domain.StatusConfirmed):      true,
	string(domain.StatusPacked):         true,
	string(domain.StatusShipped):        true,
	string(domain.StatusInTransit):      true,
	string(domain.StatusOutForDelivery): true,
	string(domain.StatusDelivered):      true,
	string(domain.StatusCancelled):      true,
	string(domain.StatusReturned):       true,
}

// Validate checks that patterns compile, limits are positive and every
// status keyword maps to a known order status.
func (t Table) Validate() error {
	var errs []error

	if _, err := regexp.Compile(t.OrderIDPattern); err != nil {
		errs = append(errs, fmt.Errorf("order_id_pattern: %w", err))
	}
	if re, err := regexp.Compile(t.PredictionIDPattern); err != nil {
		errs = append(errs, fmt.Errorf("prediction_id_pattern: %w", err))
	} else if re.NumSubexp() < 1 {
		errs = append(errs, errors.New("prediction_id_pattern: needs one capture group"))
	}

	if t.NameTerminators == "" {
		errs = append(errs, errors.New("name_terminators: must not be empty"))
	}
	if t.MinNameLength < 1 {
		errs = append(errs, errors.New("min_name_length: must be positive"))
	}
	if t.MinTermLength < 1 {
		errs = append(errs, errors.New("min_term_length: must be positive"))
	}

	seen := make(map[string]bool, len(t.StatusKeywords))
	for _, sk := range t.StatusKeywords {
		if strings.TrimSpace(sk.Keyword) == "" {
			errs = append(errs, errors.New("status_keywords: empty keyword"))
			continue
		}
		if !knownStatuses[sk.Status] {
			errs = append(errs, fmt.Errorf("status_keywords: %q maps to unknown status %q", sk.Keyword, sk.Status))
		}
		key := strings.ToLower(sk.Keyword)
		if seen[key] {
			errs = append(errs, fmt.Errorf("status_keywords: duplicate keyword %q", sk.Keyword))
		}
		seen[key] = true
	}

	limits := map[string]int{
		"identifier": t.Limits.Identifier,
		"customer":   t.Limits.Customer,
		"status":     t.Limits.Status,
		"product":    t.Limits.Product,
		"location":   t.Limits.Location,
		"tracking":   t.Limits.Tracking,
		"recent":     t.Limits.Recent,
	}
	for name, v := range limits {
		if v < 1 {
			errs = append(errs, fmt.Errorf("limits.%s: must be positive, got %d", name, v))
		}
	}

	return errors.Join(errs...)
}
