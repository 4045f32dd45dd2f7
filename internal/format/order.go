package format

import (
	"strings"

	"github.com/arkio/order-assistant-go/internal/domain"
)

// Order renders one order as a multi-line block. Optional annotations are
// omitted when unset; other missing values render as N/A or TBD.
func Order(o *domain.Order) string {
	var b strings.Builder

	line := func(parts ...string) {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		for _, p := range parts {
			b.WriteString(p)
		}
	}

	line("📦 **Order: ", o.OrderID, "**")
	line("- Customer: ", o.CustomerName)
	line("- Email: ", o.CustomerEmail)
	line("- Phone: ", o.CustomerPhone)
	line("- Address: ", o.CustomerAddress, ", ", o.CustomerCity, ", ", o.CustomerState, " - ", o.CustomerPincode)
	line("- Product: ", o.ProductName, " (", o.ProductCategory, ")")
	line("- Brand: ", o.ProductBrand)
	line("- Color: ", orNA(o.ProductColor))
	line("- Size: ", orNA(o.ProductSize))
	line("- Price: ₹", Number(o.ProductPrice), " × ", Number(float64(o.Quantity)), " = ₹", Number(o.TotalAmount))
	line("- Status: ", string(o.OrderStatus))
	line("- Payment: ", o.PaymentMethod, " (", o.PaymentStatus, ")")
	line("- Tracking: ", orNA(o.TrackingNumber))
	line("- Carrier: ", orNA(o.CarrierName))
	line("- Current Location: ", orNA(o.CurrentLocation))
	line("- Order Date: ", Date(o.OrderDate))
	line("- Expected Delivery: ", Date(o.ExpectedDelivery))
	if o.ActualDelivery.Valid() {
		line("- Delivered On: ", Date(o.ActualDelivery))
	}
	line("- Seller: ", o.SellerName)
	if o.SellerRating != nil && *o.SellerRating != 0 {
		line("- Seller Rating: ⭐", Number(*o.SellerRating), "/5")
	}
	if o.OrderNotes != nil && *o.OrderNotes != "" {
		line("- Notes: ", *o.OrderNotes)
	}
	if o.IsGift {
		line("- 🎁 This is a gift order")
	}
	if o.GiftMessage != nil && *o.GiftMessage != "" {
		line("- Gift Message: ", *o.GiftMessage)
	}

	return b.String()
}

// Orders renders each order and separates the blocks with a blank line.
func Orders(orders []domain.Order) string {
	blocks := make([]string, len(orders))
	for i := range orders {
		blocks[i] = Order(&orders[i])
	}
	return strings.Join(blocks, "\n\n")
}
