package email

import (
	"bytes"
	"context"
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/smtp"
	"net/textproto"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

// verificationCodeMinutes is shown in the verification email.
const verificationCodeMinutes = 15

// SMTPEmailService sends emails via SMTP (Mailhog in development, any
// authenticated relay in production).
type SMTPEmailService struct {
	config    SMTPConfig
	templates *template.Template
	logger    *slog.Logger

	// sendMail is smtp.SendMail; replaced in tests.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPEmailService parses the embedded templates and returns the service.
func NewSMTPEmailService(config SMTPConfig, logger *slog.Logger) (*SMTPEmailService, error) {
	if config.From == "" {
		config.From = DefaultFromEmail
	}
	if config.FromName == "" {
		config.FromName = DefaultFromName
	}

	templates, err := template.New("email").Funcs(emailTemplateFuncs()).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}

	return &SMTPEmailService{
		config:    config,
		templates: templates,
		logger:    logger,
		sendMail:  smtp.SendMail,
	}, nil
}

// =============================================================================
// EmailService Interface Implementation
// =============================================================================

// SendInvoiceEmail sends the invoice with its feedback link.
func (s *SMTPEmailService) SendInvoiceEmail(ctx context.Context, msg InvoiceEmail) error {
	htmlBody, err := s.renderTemplate("invoice.html", msg)
	if err != nil {
		return fmt.Errorf("failed to render invoice email template: %w", err)
	}

	textBody := fmt.Sprintf(`Hi %s,

%s has sent you invoice %s. The PDF is attached.

How did we do? Leave a rating here:

%s
`, msg.CustomerName, msg.BusinessName, msg.InvoiceNumber, msg.FeedbackURL)
	if msg.CouponCode != "" {
		textBody += fmt.Sprintf("\nYour coupon code for your next visit: %s\n", msg.CouponCode)
	}

	email := Email{
		To:       msg.To,
		Subject:  fmt.Sprintf("Invoice %s from %s", msg.InvoiceNumber, msg.BusinessName),
		HTMLBody: htmlBody,
		TextBody: textBody,
	}
	if msg.PDF != nil {
		email.Attachments = append(email.Attachments, *msg.PDF)
	}

	return s.send(ctx, email)
}

// SendVerificationCode sends a six-digit verification code.
func (s *SMTPEmailService) SendVerificationCode(ctx context.Context, to, name, code string) error {
	data := map[string]interface{}{
		"Name":           name,
		"Code":           code,
		"ExpiresMinutes": verificationCodeMinutes,
	}

	htmlBody, err := s.renderTemplate("verification_code.html", data)
	if err != nil {
		return fmt.Errorf("failed to render verification email template: %w", err)
	}

	textBody := fmt.Sprintf(`Hi %s,

Your Rateflow verification code is %s.

It expires in %d minutes. If you did not request it, you can ignore this email.
`, name, code, verificationCodeMinutes)

	return s.send(ctx, Email{
		To:       to,
		Subject:  "Your Rateflow verification code",
		HTMLBody: htmlBody,
		TextBody: textBody,
	})
}

// =============================================================================
// Internal Methods
// =============================================================================

func (s *SMTPEmailService) send(ctx context.Context, email Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := s.buildMessage(email)
	if err != nil {
		return fmt.Errorf("failed to build email: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	var auth smtp.Auth
	if s.config.Username != "" && s.config.Password != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	if err := s.sendMail(addr, auth, s.config.From, []string{email.To}, msg); err != nil {
		s.logger.Error("failed to send email",
			"to", email.To,
			"subject", email.Subject,
			"error", err,
		)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent",
		"to", email.To,
		"subject", email.Subject,
		"attachments", len(email.Attachments),
	)

	return nil
}

// buildMessage writes a multipart/mixed message: a multipart/alternative body
// (text then HTML) followed by base64 attachments.
func (s *SMTPEmailService) buildMessage(email Email) ([]byte, error) {
	var buf bytes.Buffer

	fromHeader := mime.QEncoding.Encode("utf-8", s.config.FromName) + " <" + s.config.From + ">"
	fmt.Fprintf(&buf, "From: %s\r\n", fromHeader)
	fmt.Fprintf(&buf, "To: %s\r\n", email.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", email.Subject))
	buf.WriteString("MIME-Version: 1.0\r\n")

	mixed := multipart.NewWriter(&buf)
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", mixed.Boundary())

	var alt bytes.Buffer
	altWriter := multipart.NewWriter(&alt)
	for _, part := range []struct{ contentType, body string }{
		{"text/plain; charset=utf-8", email.TextBody},
		{"text/html; charset=utf-8", email.HTMLBody},
	} {
		w, err := altWriter.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {part.contentType},
			"Content-Transfer-Encoding": {"8bit"},
		})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(part.body)); err != nil {
			return nil, err
		}
	}
	if err := altWriter.Close(); err != nil {
		return nil, err
	}

	body, err := mixed.CreatePart(textproto.MIMEHeader{
		"Content-Type": {fmt.Sprintf("multipart/alternative; boundary=%q", altWriter.Boundary())},
	})
	if err != nil {
		return nil, err
	}
	if _, err := body.Write(alt.Bytes()); err != nil {
		return nil, err
	}

	for _, a := range email.Attachments {
		w, err := mixed.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {fmt.Sprintf("%s; name=%q", a.ContentType, a.Filename)},
			"Content-Disposition":       {fmt.Sprintf("attachment; filename=%q", a.Filename)},
			"Content-Transfer-Encoding": {"base64"},
		})
		if err != nil {
			return nil, err
		}
		if err := writeBase64Lines(w, a.Data); err != nil {
			return nil, err
		}
	}

	if err := mixed.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeBase64Lines writes data as base64 wrapped at 76 columns.
func writeBase64Lines(w interface{ Write([]byte) (int, error) }, data []byte) error {
	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > 76 {
		if _, err := w.Write([]byte(encoded[:76] + "\r\n")); err != nil {
			return err
		}
		encoded = encoded[76:]
	}
	_, err := w.Write([]byte(encoded + "\r\n"))
	return err
}

func (s *SMTPEmailService) renderTemplate(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func emailTemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"currentYear": func() int {
			return time.Now().Year()
		},
	}
}

var _ EmailService = (*SMTPEmailService)(nil)
