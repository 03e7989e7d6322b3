package jobs

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DukeRupert/rateflow/internal/auth"
	"github.com/DukeRupert/rateflow/internal/clock"
	"github.com/DukeRupert/rateflow/internal/domain"
	"github.com/DukeRupert/rateflow/internal/email"
	"github.com/DukeRupert/rateflow/internal/repository"
	"github.com/DukeRupert/rateflow/internal/storage"
	"github.com/DukeRupert/rateflow/internal/worker"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStorage(t *testing.T) *storage.LocalStorage {
	t.Helper()
	s, err := storage.NewLocalStorage(storage.LocalConfig{
		BasePath: t.TempDir(),
		BaseURL:  "http://localhost:8080/files",
	}, testLogger())
	require.NoError(t, err)
	return s
}

func mustPayload(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func isPermanent(err error) bool {
	var pe *worker.PermanentError
	return errors.As(err, &pe)
}

// =============================================================================
// Fakes
// =============================================================================

type fakeQueries struct {
	invoices   map[uuid.UUID]repository.Invoice
	businesses map[uuid.UUID]repository.Business
	referenced map[string]bool
	filterErr  error
	filterArgs [][]string
}

func newFakeQueries() *fakeQueries {
	return &fakeQueries{
		invoices:   map[uuid.UUID]repository.Invoice{},
		businesses: map[uuid.UUID]repository.Business{},
		referenced: map[string]bool{},
	}
}

func (f *fakeQueries) GetInvoiceByIDAndBusinessID(ctx context.Context, arg repository.GetInvoiceByIDAndBusinessIDParams) (repository.Invoice, error) {
	inv, ok := f.invoices[arg.ID]
	if !ok || inv.BusinessID != arg.BusinessID {
		return repository.Invoice{}, sql.ErrNoRows
	}
	return inv, nil
}

func (f *fakeQueries) GetBusinessByID(ctx context.Context, id uuid.UUID) (repository.Business, error) {
	b, ok := f.businesses[id]
	if !ok {
		return repository.Business{}, sql.ErrNoRows
	}
	return b, nil
}

func (f *fakeQueries) FilterUnreferencedFileKeys(ctx context.Context, keys []string) ([]string, error) {
	f.filterArgs = append(f.filterArgs, keys)
	if f.filterErr != nil {
		return nil, f.filterErr
	}
	var out []string
	for _, k := range keys {
		if !f.referenced[k] {
			out = append(out, k)
		}
	}
	return out, nil
}

type recordingMailer struct {
	mu       sync.Mutex
	invoices []email.InvoiceEmail
	err      error
}

func (m *recordingMailer) SendInvoiceEmail(ctx context.Context, msg email.InvoiceEmail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.invoices = append(m.invoices, msg)
	return nil
}

func (m *recordingMailer) SendVerificationCode(ctx context.Context, to, name, code string) error {
	return nil
}

type stubInsights struct {
	gotBusiness uuid.UUID
	gotConsumed time.Time
	err         error
}

func (s *stubInsights) Request(ctx context.Context, sess *auth.Session) (*domain.QuotaResult, error) {
	return nil, errors.New("not used")
}

func (s *stubInsights) Generate(ctx context.Context, businessID uuid.UUID, consumedAt time.Time) (*domain.Insight, error) {
	s.gotBusiness = businessID
	s.gotConsumed = consumedAt
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Insight{ID: uuid.New(), BusinessID: businessID}, nil
}

func (s *stubInsights) Latest(ctx context.Context, businessID uuid.UUID) (*domain.Insight, error) {
	return nil, errors.New("not used")
}

// =============================================================================
// send_invoice_email
// =============================================================================

type emailFixture struct {
	queries  *fakeQueries
	storage  *storage.LocalStorage
	mailer   *recordingMailer
	handler  *SendInvoiceEmailHandler
	business repository.Business
	invoice  repository.Invoice
}

func newEmailFixture(t *testing.T) *emailFixture {
	t.Helper()
	f := &emailFixture{
		queries: newFakeQueries(),
		storage: newTestStorage(t),
		mailer:  &recordingMailer{},
	}
	f.business = repository.Business{ID: uuid.New(), Name: "Acme Plumbing", Username: "acme"}
	f.invoice = repository.Invoice{
		ID:            uuid.New(),
		BusinessID:    f.business.ID,
		InvoiceNumber: "INV-7",
		CustomerName:  "Dana",
		CustomerEmail: "dana@example.com",
		AmountCents:   34250,
		Currency:      "usd",
		CouponCode:    sql.NullString{String: "THANKS10", Valid: true},
	}
	f.queries.businesses[f.business.ID] = f.business
	f.queries.invoices[f.invoice.ID] = f.invoice
	f.handler = NewSendInvoiceEmailHandler(f.queries, f.storage, f.mailer, "https://rateflow.test/", testLogger())
	return f
}

func (f *emailFixture) payload(t *testing.T) []byte {
	return mustPayload(t, worker.SendInvoiceEmailPayload{InvoiceID: f.invoice.ID, BusinessID: f.business.ID})
}

func TestSendInvoiceEmail_DeliversWithAttachment(t *testing.T) {
	f := newEmailFixture(t)
	ctx := context.Background()

	key := storage.InvoicePDFKey(f.business.ID, f.invoice.ID)
	require.NoError(t, f.storage.Put(ctx, key, strings.NewReader("%PDF-1.4 test"), storage.PutOptions{ContentType: "application/pdf"}))
	inv := f.invoice
	inv.PdfKey = key
	f.queries.invoices[inv.ID] = inv

	assert.Equal(t, worker.JobTypeSendInvoiceEmail, f.handler.Type())
	require.NoError(t, f.handler.Handle(ctx, f.payload(t)))

	require.Len(t, f.mailer.invoices, 1)
	msg := f.mailer.invoices[0]
	assert.Equal(t, "dana@example.com", msg.To)
	assert.Equal(t, "Acme Plumbing", msg.BusinessName)
	assert.Equal(t, "342.50 USD", msg.AmountDisplay)
	assert.Equal(t, "https://rateflow.test/f/acme/INV-7", msg.FeedbackURL)
	assert.Equal(t, "THANKS10", msg.CouponCode)
	require.NotNil(t, msg.PDF)
	assert.Equal(t, "invoice-INV-7.pdf", msg.PDF.Filename)
	assert.True(t, bytes.HasPrefix(msg.PDF.Data, []byte("%PDF")))
}

func TestSendInvoiceEmail_MissingPDFStillSends(t *testing.T) {
	f := newEmailFixture(t)
	inv := f.invoice
	inv.PdfKey = storage.InvoicePDFKey(f.business.ID, f.invoice.ID)
	inv.CouponIsUsed = true
	f.queries.invoices[inv.ID] = inv

	require.NoError(t, f.handler.Handle(context.Background(), f.payload(t)))
	require.Len(t, f.mailer.invoices, 1)
	assert.Nil(t, f.mailer.invoices[0].PDF)
	assert.Empty(t, f.mailer.invoices[0].CouponCode)
}

func TestSendInvoiceEmail_SkipsWithoutWork(t *testing.T) {
	t.Run("invoice deleted", func(t *testing.T) {
		f := newEmailFixture(t)
		delete(f.queries.invoices, f.invoice.ID)
		require.NoError(t, f.handler.Handle(context.Background(), f.payload(t)))
		assert.Empty(t, f.mailer.invoices)
	})

	t.Run("no customer email", func(t *testing.T) {
		f := newEmailFixture(t)
		inv := f.invoice
		inv.CustomerEmail = ""
		f.queries.invoices[inv.ID] = inv
		require.NoError(t, f.handler.Handle(context.Background(), f.payload(t)))
		assert.Empty(t, f.mailer.invoices)
	})
}

func TestSendInvoiceEmail_Errors(t *testing.T) {
	t.Run("bad payload is permanent", func(t *testing.T) {
		f := newEmailFixture(t)
		err := f.handler.Handle(context.Background(), []byte("{"))
		require.Error(t, err)
		assert.True(t, isPermanent(err))
	})

	t.Run("mailer failure is retried", func(t *testing.T) {
		f := newEmailFixture(t)
		f.mailer.err = errors.New("smtp down")
		err := f.handler.Handle(context.Background(), f.payload(t))
		require.Error(t, err)
		assert.False(t, isPermanent(err))
	})
}

// =============================================================================
// generate_insights
// =============================================================================

func TestGenerateInsights_CallsService(t *testing.T) {
	stub := &stubInsights{}
	h := NewGenerateInsightsHandler(stub, testLogger())
	businessID := uuid.New()

	assert.Equal(t, worker.JobTypeGenerateInsights, h.Type())
	err := h.Handle(context.Background(), mustPayload(t, worker.GenerateInsightsPayload{
		BusinessID: businessID,
		ConsumedAt: testNow,
	}))
	require.NoError(t, err)
	assert.Equal(t, businessID, stub.gotBusiness)
	assert.True(t, stub.gotConsumed.Equal(testNow))
}

func TestGenerateInsights_FailureIsPermanent(t *testing.T) {
	stub := &stubInsights{err: domain.ExternalServiceFailure(errors.New("overloaded"), "insights.generate", "AI provider")}
	h := NewGenerateInsightsHandler(stub, testLogger())

	err := h.Handle(context.Background(), mustPayload(t, worker.GenerateInsightsPayload{BusinessID: uuid.New(), ConsumedAt: testNow}))
	require.Error(t, err)
	assert.True(t, isPermanent(err))
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
}

// =============================================================================
// prune_files
// =============================================================================

func putAged(t *testing.T, s *storage.LocalStorage, base, key string, age time.Duration) {
	t.Helper()
	require.NoError(t, s.Put(context.Background(), key, strings.NewReader("x"), storage.PutOptions{}))
	mtime := testNow.Add(-age)
	require.NoError(t, os.Chtimes(filepath.Join(base, filepath.FromSlash(key)), mtime, mtime))
}

func TestPruneFiles_DeletesOldOrphans(t *testing.T) {
	base := t.TempDir()
	objects, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: base, BaseURL: "http://localhost/files"}, testLogger())
	require.NoError(t, err)
	queries := newFakeQueries()
	h := NewPruneFilesHandler(queries, objects, clock.NewFakeClock(testNow), testLogger())
	ctx := context.Background()

	businessID := uuid.New()
	orphan := storage.InvoicePDFKey(businessID, uuid.New())
	kept := storage.InvoicePDFKey(businessID, uuid.New())
	fresh := storage.InvoicePDFKey(businessID, uuid.New())
	logo := storage.LogoKey(businessID)

	putAged(t, objects, base, orphan, 48*time.Hour)
	putAged(t, objects, base, kept, 48*time.Hour)
	putAged(t, objects, base, fresh, time.Hour)
	putAged(t, objects, base, logo, 48*time.Hour)
	queries.referenced[kept] = true

	assert.Equal(t, worker.JobTypePruneFiles, h.Type())
	require.NoError(t, h.Handle(ctx, mustPayload(t, worker.PruneFilesPayload{Prefix: storage.InvoicePrefix})))

	exists := func(key string) bool {
		ok, err := objects.Exists(ctx, key)
		require.NoError(t, err)
		return ok
	}
	assert.False(t, exists(orphan))
	assert.True(t, exists(kept))
	assert.True(t, exists(fresh), "objects younger than the prune age are left alone")
	assert.True(t, exists(logo), "other prefixes are untouched")

	require.Len(t, queries.filterArgs, 1)
	assert.ElementsMatch(t, []string{orphan, kept}, queries.filterArgs[0])
}

func TestPruneFiles_Errors(t *testing.T) {
	queries := newFakeQueries()
	objects := newTestStorage(t)
	h := NewPruneFilesHandler(queries, objects, clock.NewFakeClock(time.Now().Add(time.Hour)), testLogger())
	ctx := context.Background()

	err := h.Handle(ctx, mustPayload(t, worker.PruneFilesPayload{Prefix: ""}))
	require.Error(t, err)
	assert.True(t, isPermanent(err))

	require.NoError(t, objects.Put(ctx, storage.LogoKey(uuid.New()), strings.NewReader("x"), storage.PutOptions{}))
	queries.filterErr = errors.New("db down")
	err = h.Handle(ctx, mustPayload(t, worker.PruneFilesPayload{Prefix: storage.LogoPrefix, OlderThan: time.Nanosecond}))
	require.Error(t, err)
	assert.False(t, isPermanent(err))
}
