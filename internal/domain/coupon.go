package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultCouponMaxUsage makes coupons single-use unless configured otherwise.
const DefaultCouponMaxUsage = 1

var couponCodePattern = regexp.MustCompile(`^[A-Z0-9]+$`)

// Coupon is a promotional code embedded in exactly one invoice. It has no
// identity of its own.
type Coupon struct {
	Code        string
	Description string
	ExpiryDate  time.Time
	IsUsed      bool
	UsageCount  int
	MaxUsage    int
}

// IsAvailable reports whether the coupon can still be shown to the customer.
func (c *Coupon) IsAvailable(now time.Time) bool {
	return !c.IsUsed && c.ExpiryDate.After(now)
}

// IsExpired reports whether the coupon expiry has passed.
func (c *Coupon) IsExpired(now time.Time) bool {
	return !c.ExpiryDate.After(now)
}

// Matches compares a customer-supplied code against the coupon. Customers
// may type the code in any case.
func (c *Coupon) Matches(code string) bool {
	return strings.ToUpper(strings.TrimSpace(code)) == c.Code
}

// ValidateCouponCode reports whether code is uppercase letters and digits
// only. Lowercase input is rejected, not folded.
func ValidateCouponCode(code string) bool {
	return couponCodePattern.MatchString(code)
}

// CouponSpec describes a coupon to attach. An empty Code asks for a generated one.
type CouponSpec struct {
	Code        string
	Description string
	ExpiryDate  time.Time
	MaxUsage    int
}

// AvailableCoupon is a coupon together with the invoice that carries it.
type AvailableCoupon struct {
	InvoiceID     uuid.UUID `json:"invoiceId"`
	InvoiceNumber string    `json:"invoiceNumber"`
	CustomerName  string    `json:"customerName"`
	Code          string    `json:"code"`
	Description   string    `json:"description"`
	ExpiryDate    time.Time `json:"expiryDate"`
	UsageCount    int       `json:"usageCount"`
	MaxUsage      int       `json:"maxUsage"`
}
