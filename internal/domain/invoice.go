package domain

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// MaxInvoiceNumberLength bounds the business-chosen invoice number.
	MaxInvoiceNumberLength = 64

	// MaxLineItems bounds the line items on one invoice.
	MaxLineItems = 100

	// DefaultCurrency applies when an upload names none.
	DefaultCurrency = "USD"

	DefaultInvoicePageSize = 20
	MaxInvoicePageSize     = 100
)

// Customer is the snapshot of the customer taken when the invoice is issued.
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// LineItem is one billed line on an invoice.
type LineItem struct {
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	UnitCents   int64  `json:"unitCents"`
}

// TotalCents returns quantity times unit price.
func (l LineItem) TotalCents() int64 {
	return int64(l.Quantity) * l.UnitCents
}

// Invoice is one issued invoice. (BusinessID, InvoiceNumber) is unique.
type Invoice struct {
	ID                  uuid.UUID
	BusinessID          uuid.UUID
	InvoiceNumber       string
	Customer            Customer
	LineItems           []LineItem
	AmountCents         int64
	Currency            string
	IsFeedbackSubmitted bool
	Coupon              *Coupon
	PDFKey              string
	CreatedAt           time.Time
}

// HasCoupon returns true if a coupon is attached.
func (i *Invoice) HasCoupon() bool {
	return i.Coupon != nil
}

// HasPDF returns true if a rendered PDF was stored.
func (i *Invoice) HasPDF() bool {
	return i.PDFKey != ""
}

// UploadInvoiceParams contains the fields accepted on invoice upload.
type UploadInvoiceParams struct {
	BusinessID    uuid.UUID
	InvoiceNumber string
	Customer      Customer
	LineItems     []LineItem
	Currency      string
	Coupon        *CouponSpec
}

// ComputeAmount sums the line items.
func (p UploadInvoiceParams) ComputeAmount() int64 {
	var total int64
	for _, item := range p.LineItems {
		total += item.TotalCents()
	}
	return total
}

// ListInvoicesParams contains pagination for listing invoices.
type ListInvoicesParams struct {
	BusinessID uuid.UUID
	Limit      int32
	Offset     int32
}

// ListInvoicesResult is a page of invoices.
type ListInvoicesResult struct {
	Invoices   []Invoice
	TotalCount int64
	Limit      int32
	Offset     int32
}

// HasMore returns true if there are more invoices after this page.
func (r *ListInvoicesResult) HasMore() bool {
	return int64(r.Offset)+int64(len(r.Invoices)) < r.TotalCount
}

// InvoiceCheck is what the public feedback form needs before rendering.
type InvoiceCheck struct {
	BusinessName  string `json:"businessName"`
	Username      string `json:"username"`
	InvoiceNumber string `json:"invoiceNumber"`
	CustomerName  string `json:"customerName"`
	LogoURL       string `json:"logoUrl,omitempty"`
}

// Validate normalizes the upload in place and reports the first bad field.
func (p *UploadInvoiceParams) Validate(op string) error {
	p.InvoiceNumber = strings.TrimSpace(p.InvoiceNumber)
	if p.InvoiceNumber == "" {
		return NewValidationError(op, "invoiceNumber", "Invoice number is required")
	}
	if len(p.InvoiceNumber) > MaxInvoiceNumberLength {
		return NewValidationError(op, "invoiceNumber", fmt.Sprintf("Invoice number must be at most %d characters", MaxInvoiceNumberLength))
	}
	if strings.ContainsAny(p.InvoiceNumber, "/?#") {
		return NewValidationError(op, "invoiceNumber", "Invoice number must not contain / ? or #")
	}

	p.Customer.Name = strings.TrimSpace(p.Customer.Name)
	p.Customer.Email = strings.TrimSpace(p.Customer.Email)
	p.Customer.Phone = strings.TrimSpace(p.Customer.Phone)
	if p.Customer.Name == "" {
		return NewValidationError(op, "customer.name", "Customer name is required")
	}
	if p.Customer.Email != "" {
		if _, err := mail.ParseAddress(p.Customer.Email); err != nil {
			return NewValidationError(op, "customer.email", "Customer email is invalid")
		}
	}

	if len(p.LineItems) > MaxLineItems {
		return NewValidationError(op, "lineItems", fmt.Sprintf("At most %d line items are allowed", MaxLineItems))
	}
	for i, item := range p.LineItems {
		if strings.TrimSpace(item.Description) == "" {
			return NewValidationError(op, fmt.Sprintf("lineItems[%d].description", i), "Description is required")
		}
		if item.Quantity <= 0 {
			return NewValidationError(op, fmt.Sprintf("lineItems[%d].quantity", i), "Quantity must be positive")
		}
		if item.UnitCents < 0 {
			return NewValidationError(op, fmt.Sprintf("lineItems[%d].unitCents", i), "Unit price must not be negative")
		}
	}

	p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))
	if p.Currency == "" {
		p.Currency = DefaultCurrency
	}
	if len(p.Currency) != 3 {
		return NewValidationError(op, "currency", "Currency must be a 3-letter code")
	}
	return nil
}

// ClampPage applies the default and maximum page size.
func ClampPage(limit, offset int32) (int32, int32) {
	if limit <= 0 {
		limit = DefaultInvoicePageSize
	}
	if limit > MaxInvoicePageSize {
		limit = MaxInvoicePageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
