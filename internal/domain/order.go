package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// ============================================================
// Orders — read-only projection of the "orders" table
// ============================================================

// OrderStatus is the lifecycle status stored in orders.order_status.
type OrderStatus string

const (
	StatusOrderPlaced    OrderStatus = "Order Placed"
	StatusConfirmed      OrderStatus = "Confirmed"
	StatusPacked         OrderStatus = "Packed"
	StatusShipped        OrderStatus = "Shipped"
	StatusInTransit      OrderStatus = "In Transit"
	StatusOutForDelivery OrderStatus = "Out for Delivery"
	StatusDelivered      OrderStatus = "Delivered"
	StatusCancelled      OrderStatus = "Cancelled"
	StatusReturned       OrderStatus = "Returned"
)

// Order is one row of the order store. It is created and mutated only by the
// order-management system; this service never writes it back.
type Order struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`

	CustomerName    string `json:"customer_name"`
	CustomerEmail   string `json:"customer_email"`
	CustomerPhone   string `json:"customer_phone"`
	CustomerAddress string `json:"customer_address"`
	CustomerCity    string `json:"customer_city"`
	CustomerState   string `json:"customer_state"`
	CustomerPincode string `json:"customer_pincode"`
	CustomerCountry string `json:"customer_country"`

	ProductID          string  `json:"product_id"`
	ProductName        string  `json:"product_name"`
	ProductCategory    string  `json:"product_category"`
	ProductSubcategory string  `json:"product_subcategory"`
	ProductBrand       string  `json:"product_brand"`
	ProductColor       *string `json:"product_color"`
	ProductSize        *string `json:"product_size"`
	ProductPrice       float64 `json:"product_price"`
	Quantity           int     `json:"quantity"`

	DiscountPercent float64 `json:"discount_percent"`
	DiscountAmount  float64 `json:"discount_amount"`
	TaxAmount       float64 `json:"tax_amount"`
	ShippingFee     float64 `json:"shipping_fee"`
	TotalAmount     float64 `json:"total_amount"`

	OrderStatus   OrderStatus `json:"order_status"`
	OrderDate     Timestamp   `json:"order_date"`
	ConfirmedDate Timestamp   `json:"confirmed_date"`
	PackedDate    Timestamp   `json:"packed_date"`
	ShippedDate   Timestamp   `json:"shipped_date"`

	TrackingNumber   *string   `json:"tracking_number"`
	CarrierName      *string   `json:"carrier_name"`
	CurrentLocation  *string   `json:"current_location"`
	ExpectedDelivery Timestamp `json:"expected_delivery"`
	ActualDelivery   Timestamp `json:"actual_delivery"`

	PaymentMethod string  `json:"payment_method"`
	PaymentStatus string  `json:"payment_status"`
	PaymentID     *string `json:"payment_id"`

	SellerName   string   `json:"seller_name"`
	SellerRating *float64 `json:"seller_rating"`

	OrderNotes  *string `json:"order_notes"`
	IsGift      bool    `json:"is_gift"`
	GiftMessage *string `json:"gift_message"`

	CreatedAt Timestamp `json:"created_at"`
	UpdatedAt Timestamp `json:"updated_at"`
}

// IsClosed reports whether the order has left the delivery pipeline.
func (o *Order) IsClosed() bool {
	switch o.OrderStatus {
	case StatusDelivered, StatusCancelled, StatusReturned:
		return true
	}
	return false
}

// HasShipped reports whether the order has been handed over to a carrier.
func (o *Order) HasShipped() bool {
	switch o.OrderStatus {
	case StatusShipped, StatusInTransit, StatusOutForDelivery, StatusDelivered:
		return true
	}
	return false
}

// ============================================================
// Timestamp — nullable timestamp column
// ============================================================

// Timestamp is a nullable PostgREST timestamp. The zero value means NULL.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp parses the timestamp shapes PostgREST and the seed data use.
func ParseTimestamp(s string) (Timestamp, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp{Time: t}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("unsupported timestamp %q", s)
}

// MustTimestamp is ParseTimestamp for literals; it panics on bad input.
func MustTimestamp(s string) Timestamp {
	ts, err := ParseTimestamp(s)
	if err != nil {
		panic(err)
	}
	return ts
}

// Valid reports whether the column was non-null.
func (t Timestamp) Valid() bool { return !t.IsZero() }

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*t = Timestamp{}
		return nil
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if !t.Valid() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339))
}

// ============================================================
// Order store queries
// ============================================================

// FilterOp is a read-only comparison supported by the order store.
type FilterOp string

const (
	OpILike   FilterOp = "ilike"   // case-insensitive substring
	OpEq      FilterOp = "eq"      // exact equality
	OpNotNull FilterOp = "notnull" // column IS NOT NULL
	OpIn      FilterOp = "in"      // column IN (values)
)

// Filter is a single predicate on a column.
type Filter struct {
	Column string
	Op     FilterOp
	Value  string
	Values []string
}

// OrderQuery describes one bounded read against the order store.
// All Filters must hold; when AnyOf is non-empty at least one of them must hold too.
type OrderQuery struct {
	Columns    []string
	Filters    []Filter
	AnyOf      []Filter
	NewestDate bool // order by order_date descending
	Limit      int  // 0 = unbounded
	CountExact bool
}

// OrderPage is the result of an OrderQuery. Total is only set when the query
// asked for an exact count.
type OrderPage struct {
	Orders []Order
	Total  int
}
