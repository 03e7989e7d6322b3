// Package report renders invoice documents. Each invoice PDF carries a QR
// code that opens the customer feedback form.
package report

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/DukeRupert/rateflow/internal/domain"
)

// =============================================================================
// Generator Interface
// =============================================================================

// Generator renders an invoice and writes it to w, returning bytes written.
type Generator interface {
	Generate(ctx context.Context, data *InvoiceData, w io.Writer) (int64, error)
}

// InvoiceData is everything printed on an invoice.
type InvoiceData struct {
	BusinessName  string
	BusinessEmail string
	TaxID         string
	LogoPNG       []byte // Optional, already resized

	InvoiceNumber string
	IssuedAt      time.Time
	Customer      domain.Customer
	LineItems     []domain.LineItem
	AmountCents   int64
	Currency      string

	FeedbackURL string
	Coupon      *domain.Coupon
}

// FeedbackURL builds the public feedback link encoded in the QR code.
func FeedbackURL(baseURL, username, invoiceNumber string) string {
	return fmt.Sprintf("%s/f/%s/%s", strings.TrimSuffix(baseURL, "/"), username, invoiceNumber)
}

// =============================================================================
// Brand Colors
// =============================================================================

var BrandColors = struct {
	Primary    string
	Accent     string
	TextDark   string
	TextMuted  string
	Border     string
	Background string
}{
	Primary:    "#1D4ED8",
	Accent:     "#F59E0B",
	TextDark:   "#1F2937",
	TextMuted:  "#6B7280",
	Border:     "#E5E7EB",
	Background: "#F9FAFB",
}

// HexToRGB converts "#RRGGBB" or "RRGGBB" to components. Malformed input
// yields black.
func HexToRGB(hex string) (r, g, b int) {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return 0, 0, 0
	}
	if _, err := fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b); err != nil {
		return 0, 0, 0
	}
	return r, g, b
}

// =============================================================================
// Text Formatting Helpers
// =============================================================================

// TruncateText shortens text to maxLen runes, adding an ellipsis if needed.
func TruncateText(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

func FormatDate(t time.Time) string {
	return t.Format("January 2, 2006")
}

// FormatMoney renders an amount in minor units, e.g. 12345 usd -> "123.45 USD".
func FormatMoney(cents int64, currency string) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, cents/100, cents%100, strings.ToUpper(currency))
}
