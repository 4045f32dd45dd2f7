package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/arkio/order-assistant-go/internal/domain"
)

// ============================================================
// Orders store — implements port.OrderStore
// ============================================================

// FindOrders runs one read-only query against the orders table.
func (c *Client) FindOrders(ctx context.Context, q domain.OrderQuery) (*domain.OrderPage, error) {
	ctx, span := tracer.Start(ctx, "Supabase.FindOrders")
	defer span.End()

	path, err := c.queryPath(q)
	if err != nil {
		return nil, &domain.ErrValidation{Field: "query", Message: err.Error()}
	}
	span.SetAttributes(
		attribute.String("db.table", c.table),
		attribute.Int("db.limit", q.Limit),
		attribute.Bool("db.count_exact", q.CountExact),
	)

	var extra http.Header
	if q.CountExact {
		extra = http.Header{"Prefer": []string{"count=exact"}}
	}

	var page domain.OrderPage
	err = c.execute(ctx, func() error {
		body, hdr, err := c.doRequest(ctx, path, extra)
		if err != nil {
			return err
		}

		var rows []domain.Order
		if len(body) > 0 {
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("decode orders: %w", err)
			}
		}

		page = domain.OrderPage{Orders: rows, Total: len(rows)}
		if q.CountExact {
			if total, ok := parseContentRangeTotal(hdr.Get("Content-Range")); ok {
				page.Total = total
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var open *domain.ErrCircuitOpen
		if errors.As(err, &open) {
			return nil, err
		}
		return nil, &domain.ErrExternalService{Service: "supabase/orders", Err: err}
	}

	span.SetAttributes(attribute.Int("db.rows", len(page.Orders)))
	return &page, nil
}

// Ping checks that the orders table is reachable.
func (c *Client) Ping(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Supabase.Ping")
	defer span.End()

	path := c.table + "?select=order_id&limit=1"
	if _, _, err := c.doRequest(ctx, path, nil); err != nil {
		return &domain.ErrExternalService{Service: "supabase/orders", Err: err}
	}
	return nil
}

// queryPath renders q in PostgREST query syntax.
func (c *Client) queryPath(q domain.OrderQuery) (string, error) {
	v := url.Values{}

	sel := "*"
	if len(q.Columns) > 0 {
		sel = strings.Join(q.Columns, ",")
	}
	v.Set("select", sel)

	for _, f := range q.Filters {
		expr, err := filterValue(f)
		if err != nil {
			return "", err
		}
		v.Add(f.Column, expr)
	}

	if len(q.AnyOf) > 0 {
		parts := make([]string, 0, len(q.AnyOf))
		for _, f := range q.AnyOf {
			expr, err := orFilterValue(f)
			if err != nil {
				return "", err
			}
			parts = append(parts, f.Column+"."+expr)
		}
		v.Set("or", "("+strings.Join(parts, ",")+")")
	}

	if q.NewestDate {
		v.Set("order", "order_date.desc")
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}

	return c.table + "?" + v.Encode(), nil
}

// filterValue renders a top-level filter such as ilike.*term*.
func filterValue(f domain.Filter) (string, error) {
	switch f.Op {
	case domain.OpILike:
		return "ilike.*" + f.Value + "*", nil
	case domain.OpEq:
		return "eq." + f.Value, nil
	case domain.OpNotNull:
		return "not.is.null", nil
	case domain.OpIn:
		if len(f.Values) == 0 {
			return "", fmt.Errorf("in filter on %s needs values", f.Column)
		}
		quoted := make([]string, len(f.Values))
		for i, val := range f.Values {
			quoted[i] = quote(val)
		}
		return "in.(" + strings.Join(quoted, ",") + ")", nil
	}
	return "", fmt.Errorf("unsupported filter %q on %s", f.Op, f.Column)
}

// orFilterValue renders a filter inside an or=(...) group, where reserved
// characters must be quoted.
func orFilterValue(f domain.Filter) (string, error) {
	switch f.Op {
	case domain.OpILike:
		return "ilike." + quote("*"+f.Value+"*"), nil
	case domain.OpEq:
		return "eq." + quote(f.Value), nil
	}
	return filterValue(f)
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// parseContentRangeTotal reads the total from "0-4/7" or "*/0".
func parseContentRangeTotal(h string) (int, bool) {
	i := strings.LastIndexByte(h, '/')
	if i < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(h[i+1:])
	if err != nil {
		return 0, false
	}
	return n, true
}
