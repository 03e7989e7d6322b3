// Package email sends the transactional mail of rateflow: invoices to
// customers and verification codes to business owners.
package email

import (
	"context"
)

// EmailService sends transactional emails.
type EmailService interface {
	// SendInvoiceEmail delivers an invoice, with its PDF attached when present,
	// and the link to the feedback form.
	SendInvoiceEmail(ctx context.Context, msg InvoiceEmail) error

	// SendVerificationCode sends a one-time code confirming a contact address.
	SendVerificationCode(ctx context.Context, to, name, code string) error
}

// Email represents a single email message.
type Email struct {
	To          string
	Subject     string
	HTMLBody    string
	TextBody    string
	Attachments []Attachment
}

// Attachment is a file attached to an Email.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// InvoiceEmail is the content of an invoice delivery.
type InvoiceEmail struct {
	To            string
	CustomerName  string
	BusinessName  string
	InvoiceNumber string
	AmountDisplay string
	FeedbackURL   string
	CouponCode    string // Empty when no coupon is attached
	PDF           *Attachment
}

// SMTPConfig holds SMTP server configuration.
type SMTPConfig struct {
	Host     string // e.g. "localhost" for Mailhog
	Port     int    // e.g. 1025 for Mailhog
	Username string // empty for Mailhog
	Password string
	From     string
	FromName string
}

const (
	DefaultFromEmail = "noreply@rateflow.app"
	DefaultFromName  = "Rateflow"
)
