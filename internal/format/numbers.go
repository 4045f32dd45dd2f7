// Package format renders orders and derived summaries as the plain-text
// blocks embedded in the assistant's system prompt.
package format

import (
	"math"
	"strconv"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/arkio/order-assistant-go/internal/domain"
)

var printer = message.NewPrinter(language.AmericanEnglish)

// Number renders v in its shortest decimal form: 1299, 1299.5.
func Number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Grouped rounds v half up and groups thousands: 1234.5 -> "1,235".
func Grouped(v float64) string {
	return printer.Sprintf("%d", int64(math.Floor(v+0.5)))
}

// Rupees renders a rounded, grouped rupee amount.
func Rupees(v float64) string {
	return "₹" + Grouped(v)
}

// USD renders a dollar amount with cents: -1234.5 -> "-$1,234.50".
func USD(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return sign + "$" + printer.Sprintf("%.2f", v)
}

// Percent renders v with one decimal place.
func Percent(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "%"
}

// Date renders a nullable timestamp as "2 Jan 2006", or TBD when unset.
func Date(ts domain.Timestamp) string {
	if !ts.Valid() {
		return "TBD"
	}
	return ts.Format("2 Jan 2006")
}

// ShortDate renders t as month/day/year without padding.
func ShortDate(t time.Time) string {
	return t.Format("1/2/2006")
}

func orNA(s *string) string {
	if s == nil || *s == "" {
		return "N/A"
	}
	return *s
}
