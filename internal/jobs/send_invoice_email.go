package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/DukeRupert/rateflow/internal/email"
	"github.com/DukeRupert/rateflow/internal/report"
	"github.com/DukeRupert/rateflow/internal/repository"
	"github.com/DukeRupert/rateflow/internal/storage"
	"github.com/DukeRupert/rateflow/internal/worker"
	"github.com/google/uuid"
)

// maxAttachmentSize caps the PDF read back from storage for one email.
const maxAttachmentSize = 10 << 20

// InvoiceReader is the subset of queries the email job needs.
type InvoiceReader interface {
	GetInvoiceByIDAndBusinessID(ctx context.Context, arg repository.GetInvoiceByIDAndBusinessIDParams) (repository.Invoice, error)
	GetBusinessByID(ctx context.Context, id uuid.UUID) (repository.Business, error)
}

// SendInvoiceEmailHandler delivers an uploaded invoice, with its PDF and
// feedback link, to the customer.
type SendInvoiceEmailHandler struct {
	queries      InvoiceReader
	storage      storage.Storage
	emailService email.EmailService
	baseURL      string
	logger       *slog.Logger
}

// NewSendInvoiceEmailHandler creates a new handler for invoice delivery jobs.
// objects may be nil, in which case the email goes out without an attachment.
func NewSendInvoiceEmailHandler(
	queries InvoiceReader,
	objects storage.Storage,
	emailService email.EmailService,
	baseURL string,
	logger *slog.Logger,
) *SendInvoiceEmailHandler {
	return &SendInvoiceEmailHandler{
		queries:      queries,
		storage:      objects,
		emailService: emailService,
		baseURL:      baseURL,
		logger:       logger,
	}
}

// Type returns the job type identifier.
func (h *SendInvoiceEmailHandler) Type() string {
	return worker.JobTypeSendInvoiceEmail
}

// Handle executes the invoice delivery job.
func (h *SendInvoiceEmailHandler) Handle(ctx context.Context, payload []byte) error {
	p, err := worker.DecodePayload[worker.SendInvoiceEmailPayload](payload)
	if err != nil {
		return err
	}

	inv, err := h.queries.GetInvoiceByIDAndBusinessID(ctx, repository.GetInvoiceByIDAndBusinessIDParams{
		ID:         p.InvoiceID,
		BusinessID: p.BusinessID,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Deleted between upload and delivery.
			h.logger.Info("Invoice gone before delivery", "invoice_id", p.InvoiceID)
			return nil
		}
		return fmt.Errorf("fetch invoice: %w", err)
	}
	if inv.CustomerEmail == "" {
		return nil
	}

	business, err := h.queries.GetBusinessByID(ctx, p.BusinessID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("fetch business: %w", err)
	}

	msg := email.InvoiceEmail{
		To:            inv.CustomerEmail,
		CustomerName:  inv.CustomerName,
		BusinessName:  business.Name,
		InvoiceNumber: inv.InvoiceNumber,
		AmountDisplay: report.FormatMoney(inv.AmountCents, inv.Currency),
		FeedbackURL:   report.FeedbackURL(h.baseURL, business.Username, inv.InvoiceNumber),
	}
	if inv.CouponCode.Valid && !inv.CouponIsUsed {
		msg.CouponCode = inv.CouponCode.String
	}

	if inv.PdfKey != "" && h.storage != nil {
		data, err := h.readPDF(ctx, inv.PdfKey)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("read invoice pdf: %w", err)
			}
			h.logger.Warn("Invoice PDF missing, sending without attachment", "invoice_id", inv.ID, "key", inv.PdfKey)
		} else {
			msg.PDF = &email.Attachment{
				Filename:    "invoice-" + inv.InvoiceNumber + ".pdf",
				ContentType: "application/pdf",
				Data:        data,
			}
		}
	}

	if err := h.emailService.SendInvoiceEmail(ctx, msg); err != nil {
		return fmt.Errorf("send invoice email: %w", err)
	}

	h.logger.Info("Invoice emailed",
		"invoice_id", inv.ID,
		"business_id", business.ID,
		"attachment", msg.PDF != nil,
	)
	return nil
}

func (h *SendInvoiceEmailHandler) readPDF(ctx context.Context, key string) ([]byte, error) {
	rc, _, err := h.storage.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(io.LimitReader(rc, maxAttachmentSize))
}
