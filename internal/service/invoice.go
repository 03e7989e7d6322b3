package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"

	"github.com/DukeRupert/rateflow/internal/auth"
	"github.com/DukeRupert/rateflow/internal/clock"
	"github.com/DukeRupert/rateflow/internal/domain"
	"github.com/DukeRupert/rateflow/internal/metrics"
	"github.com/DukeRupert/rateflow/internal/report"
	"github.com/DukeRupert/rateflow/internal/repository"
	"github.com/DukeRupert/rateflow/internal/storage"
	"github.com/DukeRupert/rateflow/internal/worker"
	"github.com/google/uuid"
)

// MaxInvoicePDFSize bounds a rendered invoice.
const MaxInvoicePDFSize = 10 << 20

// =============================================================================
// Interface Definition
// =============================================================================

// InvoiceService issues and manages invoices.
type InvoiceService interface {
	// Upload consumes an invoice-upload slot, stores the invoice and queues
	// delivery. The slot is released when the invoice cannot be stored.
	Upload(ctx context.Context, sess *auth.Session, params domain.UploadInvoiceParams) (*domain.Invoice, error)

	Get(ctx context.Context, businessID, invoiceID uuid.UUID) (*domain.Invoice, error)

	List(ctx context.Context, params domain.ListInvoicesParams) (*domain.ListInvoicesResult, error)

	// Delete removes the invoice and, best-effort, its PDF.
	Delete(ctx context.Context, businessID, invoiceID uuid.UUID) error

	// ResetData deletes every invoice, feedback row, PDF and usage counter of
	// the session business.
	ResetData(ctx context.Context, sess *auth.Session) error

	// RenderPDF renders the invoice without storing it.
	RenderPDF(ctx context.Context, businessID, invoiceID uuid.UUID, w io.Writer) error
}

// InvoiceServiceConfig holds the collaborators of InvoiceService.
type InvoiceServiceConfig struct {
	Store     repository.Store
	Quota     QuotaService
	Generator report.Generator
	Storage   storage.Storage
	BaseURL   string
	Clock     clock.Clock
	Logger    *slog.Logger
}

// =============================================================================
// Implementation
// =============================================================================

type invoiceService struct {
	store     repository.Store
	quota     QuotaService
	generator report.Generator
	storage   storage.Storage
	baseURL   string
	clock     clock.Clock
	logger    *slog.Logger
}

// NewInvoiceService creates a new InvoiceService.
func NewInvoiceService(cfg InvoiceServiceConfig) InvoiceService {
	return &invoiceService{
		store:     cfg.Store,
		quota:     cfg.Quota,
		generator: cfg.Generator,
		storage:   cfg.Storage,
		baseURL:   cfg.BaseURL,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
	}
}

// Upload runs quota, insert, coupon, PDF and email in that order. Only the
// first three can fail the request.
func (s *invoiceService) Upload(ctx context.Context, sess *auth.Session, params domain.UploadInvoiceParams) (*domain.Invoice, error) {
	const op = "invoice.upload"

	business, err := requireOwnedBusiness(ctx, s.store, op, sess)
	if err != nil {
		return nil, err
	}
	params.BusinessID = business.ID

	if err := params.Validate(op); err != nil {
		return nil, err
	}
	if params.Coupon != nil {
		// Validate before consuming quota. attachCoupon re-validates inside the transaction.
		if _, err := normalizeCouponSpec(op, *params.Coupon, s.clock); err != nil {
			return nil, err
		}
	}

	if _, err := s.quota.CheckAndConsume(ctx, business.ID, domain.UsageTypeInvoiceUpload); err != nil {
		return nil, err
	}

	inv, err := s.insert(ctx, op, params)
	if err != nil {
		if relErr := s.quota.Release(ctx, business.ID, domain.UsageTypeInvoiceUpload); relErr != nil {
			s.logger.Error("failed to release upload quota", "business_id", business.ID, "error", relErr)
		}
		return nil, err
	}
	metrics.InvoicesUploaded.Inc()

	if key, err := s.storePDF(ctx, business, inv); err != nil {
		s.logger.Error("invoice PDF not stored", "business_id", business.ID, "invoice_id", inv.ID, "error", err)
	} else {
		inv.PDFKey = key
	}

	if inv.Customer.Email != "" {
		if _, err := worker.EnqueueSendInvoiceEmail(ctx, s.store, business.ID, inv.ID); err != nil {
			s.logger.Error("failed to enqueue invoice email", "business_id", business.ID, "invoice_id", inv.ID, "error", err)
		}
	}

	s.logger.Info("Invoice uploaded",
		"business_id", business.ID,
		"invoice_id", inv.ID,
		"invoice_number", inv.InvoiceNumber,
		"has_coupon", inv.HasCoupon(),
	)
	return inv, nil
}

// insert stores the invoice and its coupon in one transaction.
func (s *invoiceService) insert(ctx context.Context, op string, params domain.UploadInvoiceParams) (*domain.Invoice, error) {
	lineItems, err := encodeJSON(params.LineItems)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to encode line items")
	}

	var inv *domain.Invoice
	err = s.store.ExecTx(ctx, func(q repository.Querier) error {
		row, err := q.CreateInvoice(ctx, repository.CreateInvoiceParams{
			BusinessID:    params.BusinessID,
			InvoiceNumber: params.InvoiceNumber,
			CustomerName:  params.Customer.Name,
			CustomerEmail: params.Customer.Email,
			CustomerPhone: params.Customer.Phone,
			LineItems:     lineItems,
			AmountCents:   params.ComputeAmount(),
			Currency:      params.Currency,
			CreatedAt:     s.clock.Now(),
		})
		if err != nil {
			if repository.IsUniqueViolation(err) {
				return domain.Conflict(op, "An invoice with this number already exists")
			}
			return domain.Internal(err, op, "failed to create invoice")
		}
		inv = repoInvoiceToDomain(row)

		if params.Coupon != nil {
			inv, err = attachCoupon(ctx, q, s.clock, op, params.BusinessID, row.ID, *params.Coupon)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// storePDF renders the invoice and records its key. Storage is optional.
func (s *invoiceService) storePDF(ctx context.Context, business repository.Business, inv *domain.Invoice) (string, error) {
	if s.storage == nil || s.generator == nil {
		return "", nil
	}

	var buf bytes.Buffer
	if err := s.render(ctx, business, inv, &buf); err != nil {
		return "", err
	}

	key := storage.InvoicePDFKey(business.ID, inv.ID)
	if err := s.storage.Put(ctx, key, &buf, storage.PutOptions{
		ContentType: "application/pdf",
		MaxSize:     MaxInvoicePDFSize,
		Overwrite:   true,
	}); err != nil {
		return "", err
	}

	if err := s.store.SetInvoicePDFKey(ctx, repository.SetInvoicePDFKeyParams{ID: inv.ID, PdfKey: key}); err != nil {
		return "", err
	}
	return key, nil
}

func (s *invoiceService) render(ctx context.Context, business repository.Business, inv *domain.Invoice, w io.Writer) error {
	data := &report.InvoiceData{
		BusinessName:  business.Name,
		BusinessEmail: business.Email,
		InvoiceNumber: inv.InvoiceNumber,
		IssuedAt:      inv.CreatedAt,
		Customer:      inv.Customer,
		LineItems:     inv.LineItems,
		AmountCents:   inv.AmountCents,
		Currency:      inv.Currency,
		FeedbackURL:   report.FeedbackURL(s.baseURL, business.Username, inv.InvoiceNumber),
		Coupon:        inv.Coupon,
	}
	if business.TaxIDVerified {
		data.TaxID = business.TaxID
	}
	if business.LogoKey != "" && s.storage != nil {
		logo, err := readObject(ctx, s.storage, business.LogoKey)
		if err != nil {
			s.logger.Warn("logo unavailable for invoice", "business_id", business.ID, "error", err)
		} else {
			data.LogoPNG = logo
		}
	}

	_, err := s.generator.Generate(ctx, data, w)
	return err
}

func readObject(ctx context.Context, store storage.Storage, key string) ([]byte, error) {
	rc, _, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (s *invoiceService) Get(ctx context.Context, businessID, invoiceID uuid.UUID) (*domain.Invoice, error) {
	const op = "invoice.get"

	row, err := s.store.GetInvoiceByIDAndBusinessID(ctx, repository.GetInvoiceByIDAndBusinessIDParams{
		ID:         invoiceID,
		BusinessID: businessID,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.InvoiceNotFound(op)
		}
		return nil, domain.Internal(err, op, "failed to load invoice")
	}
	return repoInvoiceToDomain(row), nil
}

func (s *invoiceService) List(ctx context.Context, params domain.ListInvoicesParams) (*domain.ListInvoicesResult, error) {
	const op = "invoice.list"

	limit, offset := domain.ClampPage(params.Limit, params.Offset)

	total, err := s.store.CountInvoicesByBusinessID(ctx, params.BusinessID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to count invoices")
	}

	rows, err := s.store.ListInvoicesByBusinessID(ctx, repository.ListInvoicesByBusinessIDParams{
		BusinessID: params.BusinessID,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list invoices")
	}

	invoices := make([]domain.Invoice, 0, len(rows))
	for _, row := range rows {
		invoices = append(invoices, *repoInvoiceToDomain(row))
	}

	return &domain.ListInvoicesResult{
		Invoices:   invoices,
		TotalCount: total,
		Limit:      limit,
		Offset:     offset,
	}, nil
}

func (s *invoiceService) Delete(ctx context.Context, businessID, invoiceID uuid.UUID) error {
	const op = "invoice.delete"

	row, err := s.store.DeleteInvoice(ctx, repository.DeleteInvoiceParams{
		ID:         invoiceID,
		BusinessID: businessID,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.InvoiceNotFound(op)
		}
		return domain.Internal(err, op, "failed to delete invoice")
	}

	s.deleteObjects(ctx, []string{row.PdfKey})
	s.logger.Info("Invoice deleted", "business_id", businessID, "invoice_id", invoiceID)
	return nil
}

func (s *invoiceService) ResetData(ctx context.Context, sess *auth.Session) error {
	const op = "invoice.reset_data"

	business, err := requireOwnedBusiness(ctx, s.store, op, sess)
	if err != nil {
		return err
	}

	var keys []string
	err = s.store.ExecTx(ctx, func(q repository.Querier) error {
		var err error
		keys, err = q.DeleteInvoicesByBusinessID(ctx, business.ID)
		if err != nil {
			return err
		}
		return q.DeleteUsageTrackers(ctx, business.ID)
	})
	if err != nil {
		return domain.Internal(err, op, "failed to reset data")
	}

	s.deleteObjects(ctx, keys)
	s.logger.Info("Business data reset", "business_id", business.ID, "invoices", len(keys))
	return nil
}

// deleteObjects removes stored files best-effort. Leftovers are swept by
// the prune job.
func (s *invoiceService) deleteObjects(ctx context.Context, keys []string) {
	if s.storage == nil {
		return
	}
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := s.storage.Delete(ctx, key); err != nil && !storage.IsNotFound(err) {
			s.logger.Warn("failed to delete stored file", "key", key, "error", err)
		}
	}
}

func (s *invoiceService) RenderPDF(ctx context.Context, businessID, invoiceID uuid.UUID, w io.Writer) error {
	const op = "invoice.render_pdf"

	inv, err := s.Get(ctx, businessID, invoiceID)
	if err != nil {
		return err
	}

	business, err := s.store.GetBusinessByID(ctx, businessID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.BusinessNotFound(op)
		}
		return domain.Internal(err, op, "failed to load business")
	}

	if s.generator == nil {
		return domain.Errorf(domain.ENOTIMPL, op, "PDF rendering is not configured")
	}
	if err := s.render(ctx, business, inv, w); err != nil {
		return domain.Internal(err, op, "failed to render invoice")
	}
	return nil
}
