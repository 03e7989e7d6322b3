package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/DukeRupert/rateflow/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeStore is an in-memory repository.Store. Every statement mirrors the
// WHERE clause of its SQL counterpart. A transaction holds the store lock for
// its whole duration and restores a snapshot on error.
type fakeStore struct {
	mu    sync.Mutex
	state *fakeState
}

var _ repository.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{state: newFakeState()}
}

// failNext makes the next call of method return err.
func (s *fakeStore) failNext(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.failures[method] = err
}

// with runs fn with the lock held, for test inspection and setup.
func (s *fakeStore) with(fn func(st *fakeState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.state)
}

func (s *fakeStore) ExecTx(ctx context.Context, fn func(repository.Querier) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	if err := fn(s.state); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

type trackerKey struct {
	businessID uuid.UUID
	usageType  string
}

type fakeState struct {
	businesses map[uuid.UUID]repository.Business
	trackers   map[trackerKey]repository.UsageTracker
	invoices   map[uuid.UUID]repository.Invoice
	feedback   map[uuid.UUID]repository.Feedback
	orders     map[string]repository.PaymentOrder
	codes      map[uuid.UUID]repository.VerificationCode
	insights   []repository.Insight
	planEvents []repository.PlanEvent
	jobs       []repository.Job
	failures   map[string]error
}

func newFakeState() *fakeState {
	return &fakeState{
		businesses: map[uuid.UUID]repository.Business{},
		trackers:   map[trackerKey]repository.UsageTracker{},
		invoices:   map[uuid.UUID]repository.Invoice{},
		feedback:   map[uuid.UUID]repository.Feedback{},
		orders:     map[string]repository.PaymentOrder{},
		codes:      map[uuid.UUID]repository.VerificationCode{},
		failures:   map[string]error{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (st *fakeState) clone() *fakeState {
	return &fakeState{
		businesses: cloneMap(st.businesses),
		trackers:   cloneMap(st.trackers),
		invoices:   cloneMap(st.invoices),
		feedback:   cloneMap(st.feedback),
		orders:     cloneMap(st.orders),
		codes:      cloneMap(st.codes),
		insights:   append([]repository.Insight(nil), st.insights...),
		planEvents: append([]repository.PlanEvent(nil), st.planEvents...),
		jobs:       append([]repository.Job(nil), st.jobs...),
		failures:   cloneMap(st.failures),
	}
}

func (st *fakeState) fail(method string) error {
	if err, ok := st.failures[method]; ok {
		delete(st.failures, method)
		return err
	}
	return nil
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint}
}

// =============================================================================
// Businesses
// =============================================================================

func (st *fakeState) ActivatePro(ctx context.Context, arg repository.ActivateProParams) (repository.Business, error) {
	b, ok := st.businesses[arg.ID]
	if !ok {
		return repository.Business{}, sql.ErrNoRows
	}
	if b.PlanTier == "pro" && b.PlanEndDate.Valid && b.PlanEndDate.Time.After(arg.Now) {
		return repository.Business{}, sql.ErrNoRows
	}
	b.PlanTier = "pro"
	b.PlanStartDate = sql.NullTime{Time: arg.Now, Valid: true}
	b.PlanEndDate = sql.NullTime{Time: arg.EndDate, Valid: true}
	b.UpdatedAt = arg.Now
	st.businesses[b.ID] = b
	return b, nil
}

func (st *fakeState) CountPlansByTier(ctx context.Context, now time.Time) ([]repository.CountPlansByTierRow, error) {
	rows := map[string]*repository.CountPlansByTierRow{}
	for _, b := range st.businesses {
		r, ok := rows[b.PlanTier]
		if !ok {
			r = &repository.CountPlansByTierRow{PlanTier: b.PlanTier}
			rows[b.PlanTier] = r
		}
		if b.PlanTier == "free" || (b.PlanEndDate.Valid && b.PlanEndDate.Time.After(now)) {
			r.Active++
		} else {
			r.Expired++
		}
	}
	out := make([]repository.CountPlansByTierRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlanTier < out[j].PlanTier })
	return out, nil
}

func (st *fakeState) CreateBusiness(ctx context.Context, arg repository.CreateBusinessParams) (repository.Business, error) {
	if err := st.fail("CreateBusiness"); err != nil {
		return repository.Business{}, err
	}
	for _, b := range st.businesses {
		if b.Subject == arg.Subject {
			return repository.Business{}, uniqueViolation("businesses_subject_key")
		}
		if b.Username == arg.Username {
			return repository.Business{}, uniqueViolation("businesses_username_key")
		}
	}
	b := repository.Business{
		ID:        uuid.New(),
		Subject:   arg.Subject,
		Username:  arg.Username,
		Name:      arg.Name,
		Email:     arg.Email,
		PlanTier:  "free",
		CreatedAt: arg.CreatedAt,
		UpdatedAt: arg.CreatedAt,
	}
	st.businesses[b.ID] = b
	return b, nil
}

func (st *fakeState) CreatePlanEvent(ctx context.Context, arg repository.CreatePlanEventParams) error {
	st.planEvents = append(st.planEvents, repository.PlanEvent{
		ID:         uuid.New(),
		BusinessID: arg.BusinessID,
		FromTier:   arg.FromTier,
		ToTier:     arg.ToTier,
		OrderID:    arg.OrderID,
		CreatedAt:  arg.CreatedAt,
	})
	return nil
}

func (st *fakeState) DeleteBusiness(ctx context.Context, id uuid.UUID) (int64, error) {
	if _, ok := st.businesses[id]; !ok {
		return 0, nil
	}
	delete(st.businesses, id)
	delete(st.codes, id)
	for k := range st.trackers {
		if k.businessID == id {
			delete(st.trackers, k)
		}
	}
	for k, inv := range st.invoices {
		if inv.BusinessID == id {
			delete(st.invoices, k)
		}
	}
	for k, f := range st.feedback {
		if f.BusinessID == id {
			delete(st.feedback, k)
		}
	}
	for k, o := range st.orders {
		if o.BusinessID == id {
			delete(st.orders, k)
		}
	}
	kept := st.insights[:0]
	for _, in := range st.insights {
		if in.BusinessID != id {
			kept = append(kept, in)
		}
	}
	st.insights = kept
	return 1, nil
}

func (st *fakeState) GetBusinessByID(ctx context.Context, id uuid.UUID) (repository.Business, error) {
	b, ok := st.businesses[id]
	if !ok {
		return repository.Business{}, sql.ErrNoRows
	}
	return b, nil
}

func (st *fakeState) GetBusinessBySubject(ctx context.Context, subject string) (repository.Business, error) {
	for _, b := range st.businesses {
		if b.Subject == subject {
			return b, nil
		}
	}
	return repository.Business{}, sql.ErrNoRows
}

func (st *fakeState) GetBusinessByUsername(ctx context.Context, username string) (repository.Business, error) {
	for _, b := range st.businesses {
		if b.Username == username {
			return b, nil
		}
	}
	return repository.Business{}, sql.ErrNoRows
}

func (st *fakeState) MarkBusinessEmailVerified(ctx context.Context, arg repository.MarkBusinessEmailVerifiedParams) error {
	if b, ok := st.businesses[arg.ID]; ok {
		b.EmailVerified = true
		b.UpdatedAt = arg.Now
		st.businesses[b.ID] = b
	}
	return nil
}

func (st *fakeState) SetBusinessTaxID(ctx context.Context, arg repository.SetBusinessTaxIDParams) error {
	if b, ok := st.businesses[arg.ID]; ok {
		b.TaxID = arg.TaxID
		b.TaxIDVerified = arg.TaxIDVerified
		b.UpdatedAt = arg.Now
		st.businesses[b.ID] = b
	}
	return nil
}

func (st *fakeState) StartProTrial(ctx context.Context, arg repository.StartProTrialParams) (repository.Business, error) {
	b, ok := st.businesses[arg.ID]
	if !ok || b.ProTrialUsed {
		return repository.Business{}, sql.ErrNoRows
	}
	if b.PlanTier == "pro" && b.PlanEndDate.Valid && b.PlanEndDate.Time.After(arg.Now) {
		return repository.Business{}, sql.ErrNoRows
	}
	b.PlanTier = "pro-trial"
	b.PlanStartDate = sql.NullTime{Time: arg.Now, Valid: true}
	b.PlanEndDate = sql.NullTime{Time: arg.EndDate, Valid: true}
	b.ProTrialUsed = true
	b.UpdatedAt = arg.Now
	st.businesses[b.ID] = b
	return b, nil
}

func (st *fakeState) UpdateBusinessLogo(ctx context.Context, arg repository.UpdateBusinessLogoParams) error {
	if b, ok := st.businesses[arg.ID]; ok {
		b.LogoKey = arg.LogoKey
		b.UpdatedAt = arg.Now
		st.businesses[b.ID] = b
	}
	return nil
}

func (st *fakeState) UpdateBusinessProfile(ctx context.Context, arg repository.UpdateBusinessProfileParams) (repository.Business, error) {
	b, ok := st.businesses[arg.ID]
	if !ok {
		return repository.Business{}, sql.ErrNoRows
	}
	if b.Email != arg.Email {
		b.EmailVerified = false
	}
	b.Name = arg.Name
	b.Email = arg.Email
	b.UpdatedAt = arg.Now
	st.businesses[b.ID] = b
	return b, nil
}

// =============================================================================
// Usage
// =============================================================================

func (st *fakeState) DecrementUsage(ctx context.Context, arg repository.DecrementUsageParams) (int64, error) {
	k := trackerKey{arg.BusinessID, arg.UsageType}
	t, ok := st.trackers[k]
	if !ok || t.DailyCount <= 0 {
		return 0, nil
	}
	t.DailyCount--
	st.trackers[k] = t
	return 1, nil
}

func (st *fakeState) DeleteUsageTrackers(ctx context.Context, businessID uuid.UUID) error {
	for k := range st.trackers {
		if k.businessID == businessID {
			delete(st.trackers, k)
		}
	}
	return nil
}

func (st *fakeState) EnsureUsageTracker(ctx context.Context, arg repository.EnsureUsageTrackerParams) error {
	k := trackerKey{arg.BusinessID, arg.UsageType}
	if _, ok := st.trackers[k]; ok {
		return nil
	}
	st.trackers[k] = repository.UsageTracker{
		ID:         uuid.New(),
		BusinessID: arg.BusinessID,
		UsageType:  arg.UsageType,
		LastReset:  arg.LastReset,
	}
	return nil
}

func (st *fakeState) GetUsageTracker(ctx context.Context, arg repository.GetUsageTrackerParams) (repository.UsageTracker, error) {
	t, ok := st.trackers[trackerKey{arg.BusinessID, arg.UsageType}]
	if !ok {
		return repository.UsageTracker{}, sql.ErrNoRows
	}
	return t, nil
}

func (st *fakeState) IncrementUsageIfBelow(ctx context.Context, arg repository.IncrementUsageIfBelowParams) (repository.UsageTracker, error) {
	k := trackerKey{arg.BusinessID, arg.UsageType}
	t, ok := st.trackers[k]
	if !ok || t.DailyCount >= arg.DailyLimit {
		return repository.UsageTracker{}, sql.ErrNoRows
	}
	t.DailyCount++
	st.trackers[k] = t
	return t, nil
}

func (st *fakeState) ListUsageTrackers(ctx context.Context, businessID uuid.UUID) ([]repository.UsageTracker, error) {
	var out []repository.UsageTracker
	for k, t := range st.trackers {
		if k.businessID == businessID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UsageType < out[j].UsageType })
	return out, nil
}

func (st *fakeState) ResetUsageTrackerIfElapsed(ctx context.Context, arg repository.ResetUsageTrackerIfElapsedParams) (int64, error) {
	k := trackerKey{arg.BusinessID, arg.UsageType}
	t, ok := st.trackers[k]
	if !ok || !t.LastReset.Before(arg.Cutoff) {
		return 0, nil
	}
	t.DailyCount = 0
	t.LastReset = arg.Now
	st.trackers[k] = t
	return 1, nil
}

// =============================================================================
// Invoices
// =============================================================================

func (st *fakeState) AttachCoupon(ctx context.Context, arg repository.AttachCouponParams) (repository.Invoice, error) {
	inv, ok := st.invoices[arg.ID]
	if !ok || inv.BusinessID != arg.BusinessID {
		return repository.Invoice{}, sql.ErrNoRows
	}
	if inv.CouponCode.Valid && inv.CouponUsageCount > 0 {
		return repository.Invoice{}, sql.ErrNoRows
	}
	inv.CouponCode = arg.CouponCode
	inv.CouponDescription = arg.CouponDescription
	inv.CouponExpiry = arg.CouponExpiry
	inv.CouponMaxUsage = arg.CouponMaxUsage
	inv.CouponIsUsed = false
	inv.CouponUsageCount = 0
	st.invoices[inv.ID] = inv
	return inv, nil
}

func (st *fakeState) CountInvoicesByBusinessID(ctx context.Context, businessID uuid.UUID) (int64, error) {
	var n int64
	for _, inv := range st.invoices {
		if inv.BusinessID == businessID {
			n++
		}
	}
	return n, nil
}

func (st *fakeState) CreateInvoice(ctx context.Context, arg repository.CreateInvoiceParams) (repository.Invoice, error) {
	if err := st.fail("CreateInvoice"); err != nil {
		return repository.Invoice{}, err
	}
	for _, inv := range st.invoices {
		if inv.BusinessID == arg.BusinessID && inv.InvoiceNumber == arg.InvoiceNumber {
			return repository.Invoice{}, uniqueViolation("invoices_business_number_key")
		}
	}
	inv := repository.Invoice{
		ID:             uuid.New(),
		BusinessID:     arg.BusinessID,
		InvoiceNumber:  arg.InvoiceNumber,
		CustomerName:   arg.CustomerName,
		CustomerEmail:  arg.CustomerEmail,
		CustomerPhone:  arg.CustomerPhone,
		LineItems:      arg.LineItems,
		AmountCents:    arg.AmountCents,
		Currency:       arg.Currency,
		CouponMaxUsage: 1,
		CreatedAt:      arg.CreatedAt,
	}
	st.invoices[inv.ID] = inv
	return inv, nil
}

func (st *fakeState) deleteFeedbackFor(invoiceID uuid.UUID) {
	for k, f := range st.feedback {
		if f.InvoiceID == invoiceID {
			delete(st.feedback, k)
		}
	}
}

func (st *fakeState) DeleteInvoice(ctx context.Context, arg repository.DeleteInvoiceParams) (repository.Invoice, error) {
	inv, ok := st.invoices[arg.ID]
	if !ok || inv.BusinessID != arg.BusinessID {
		return repository.Invoice{}, sql.ErrNoRows
	}
	delete(st.invoices, inv.ID)
	st.deleteFeedbackFor(inv.ID)
	return inv, nil
}

func (st *fakeState) DeleteInvoicesByBusinessID(ctx context.Context, businessID uuid.UUID) ([]string, error) {
	var keys []string
	for id, inv := range st.invoices {
		if inv.BusinessID == businessID {
			keys = append(keys, inv.PdfKey)
			delete(st.invoices, id)
			st.deleteFeedbackFor(id)
		}
	}
	return keys, nil
}

func (st *fakeState) FilterUnreferencedFileKeys(ctx context.Context, keys []string) ([]string, error) {
	referenced := map[string]bool{}
	for _, inv := range st.invoices {
		referenced[inv.PdfKey] = true
	}
	for _, b := range st.businesses {
		referenced[b.LogoKey] = true
	}
	var out []string
	for _, k := range keys {
		if !referenced[k] {
			out = append(out, k)
		}
	}
	return out, nil
}

func (st *fakeState) GetInvoiceByIDAndBusinessID(ctx context.Context, arg repository.GetInvoiceByIDAndBusinessIDParams) (repository.Invoice, error) {
	inv, ok := st.invoices[arg.ID]
	if !ok || inv.BusinessID != arg.BusinessID {
		return repository.Invoice{}, sql.ErrNoRows
	}
	return inv, nil
}

func (st *fakeState) GetInvoiceByNumber(ctx context.Context, arg repository.GetInvoiceByNumberParams) (repository.Invoice, error) {
	for _, inv := range st.invoices {
		if inv.BusinessID == arg.BusinessID && inv.InvoiceNumber == arg.InvoiceNumber {
			return inv, nil
		}
	}
	return repository.Invoice{}, sql.ErrNoRows
}

func (st *fakeState) ListAvailableCoupons(ctx context.Context, arg repository.ListAvailableCouponsParams) ([]repository.Invoice, error) {
	var out []repository.Invoice
	for _, inv := range st.invoices {
		if inv.BusinessID == arg.BusinessID && inv.CouponCode.Valid && !inv.CouponIsUsed && inv.CouponExpiry.Time.After(arg.Now) {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (st *fakeState) ListInvoicesByBusinessID(ctx context.Context, arg repository.ListInvoicesByBusinessIDParams) ([]repository.Invoice, error) {
	var all []repository.Invoice
	for _, inv := range st.invoices {
		if inv.BusinessID == arg.BusinessID {
			all = append(all, inv)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID.String() < all[j].ID.String()
	})
	return page(all, arg.Limit, arg.Offset), nil
}

func page[T any](all []T, limit, offset int32) []T {
	if int(offset) >= len(all) {
		return nil
	}
	end := int(offset) + int(limit)
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}

func (st *fakeState) MarkFeedbackSubmitted(ctx context.Context, id uuid.UUID) (int64, error) {
	inv, ok := st.invoices[id]
	if !ok || inv.IsFeedbackSubmitted {
		return 0, nil
	}
	inv.IsFeedbackSubmitted = true
	st.invoices[id] = inv
	return 1, nil
}

func (st *fakeState) RedeemCoupon(ctx context.Context, arg repository.RedeemCouponParams) (repository.Invoice, error) {
	inv, ok := st.invoices[arg.ID]
	if !ok || inv.BusinessID != arg.BusinessID || !inv.CouponCode.Valid || inv.CouponIsUsed {
		return repository.Invoice{}, sql.ErrNoRows
	}
	inv.CouponUsageCount++
	inv.CouponIsUsed = inv.CouponUsageCount >= inv.CouponMaxUsage
	st.invoices[inv.ID] = inv
	return inv, nil
}

func (st *fakeState) SetInvoicePDFKey(ctx context.Context, arg repository.SetInvoicePDFKeyParams) error {
	if inv, ok := st.invoices[arg.ID]; ok {
		inv.PdfKey = arg.PdfKey
		st.invoices[inv.ID] = inv
	}
	return nil
}

// =============================================================================
// Feedback
// =============================================================================

func (st *fakeState) businessFeedback(businessID uuid.UUID) []repository.Feedback {
	var out []repository.Feedback
	for _, f := range st.feedback {
		if f.BusinessID == businessID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func (st *fakeState) CountFeedbackByBusinessID(ctx context.Context, businessID uuid.UUID) (int64, error) {
	return int64(len(st.businessFeedback(businessID))), nil
}

func (st *fakeState) CreateFeedback(ctx context.Context, arg repository.CreateFeedbackParams) (repository.Feedback, error) {
	if err := st.fail("CreateFeedback"); err != nil {
		return repository.Feedback{}, err
	}
	for _, f := range st.feedback {
		if f.InvoiceID == arg.InvoiceID {
			return repository.Feedback{}, uniqueViolation("feedback_invoice_id_key")
		}
	}
	f := repository.Feedback{
		ID:               uuid.New(),
		BusinessID:       arg.BusinessID,
		InvoiceID:        arg.InvoiceID,
		Satisfaction:     arg.Satisfaction,
		Communication:    arg.Communication,
		QualityOfService: arg.QualityOfService,
		ValueForMoney:    arg.ValueForMoney,
		Recommend:        arg.Recommend,
		Overall:          arg.Overall,
		Comment:          arg.Comment,
		CreatedAt:        arg.CreatedAt,
	}
	st.feedback[f.ID] = f
	return f, nil
}

func (st *fakeState) GetFeedbackSummary(ctx context.Context, businessID uuid.UUID) (repository.GetFeedbackSummaryRow, error) {
	rows := st.businessFeedback(businessID)
	var out repository.GetFeedbackSummaryRow
	out.Count = int64(len(rows))
	if out.Count == 0 {
		return out, nil
	}
	for _, f := range rows {
		out.AvgSatisfaction += float64(f.Satisfaction)
		out.AvgCommunication += float64(f.Communication)
		out.AvgQualityOfService += float64(f.QualityOfService)
		out.AvgValueForMoney += float64(f.ValueForMoney)
		out.AvgRecommend += float64(f.Recommend)
		out.AvgOverall += float64(f.Overall)
	}
	n := float64(out.Count)
	out.AvgSatisfaction /= n
	out.AvgCommunication /= n
	out.AvgQualityOfService /= n
	out.AvgValueForMoney /= n
	out.AvgRecommend /= n
	out.AvgOverall /= n
	return out, nil
}

func (st *fakeState) GetFeedbackTrend(ctx context.Context, arg repository.GetFeedbackTrendParams) ([]repository.GetFeedbackTrendRow, error) {
	type acc struct {
		count int64
		sum   float64
	}
	days := map[time.Time]*acc{}
	for _, f := range st.businessFeedback(arg.BusinessID) {
		if f.CreatedAt.Before(arg.Since) {
			continue
		}
		day := f.CreatedAt.UTC().Truncate(24 * time.Hour)
		a, ok := days[day]
		if !ok {
			a = &acc{}
			days[day] = a
		}
		a.count++
		a.sum += float64(f.Overall)
	}
	out := make([]repository.GetFeedbackTrendRow, 0, len(days))
	for day, a := range days {
		out = append(out, repository.GetFeedbackTrendRow{Day: day, Count: a.count, AvgOverall: a.sum / float64(a.count)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}

func (st *fakeState) ListFeedbackByBusinessID(ctx context.Context, arg repository.ListFeedbackByBusinessIDParams) ([]repository.ListFeedbackByBusinessIDRow, error) {
	var out []repository.ListFeedbackByBusinessIDRow
	for _, f := range page(st.businessFeedback(arg.BusinessID), arg.Limit, arg.Offset) {
		inv := st.invoices[f.InvoiceID]
		out = append(out, repository.ListFeedbackByBusinessIDRow{
			ID:               f.ID,
			BusinessID:       f.BusinessID,
			InvoiceID:        f.InvoiceID,
			Satisfaction:     f.Satisfaction,
			Communication:    f.Communication,
			QualityOfService: f.QualityOfService,
			ValueForMoney:    f.ValueForMoney,
			Recommend:        f.Recommend,
			Overall:          f.Overall,
			Comment:          f.Comment,
			CreatedAt:        f.CreatedAt,
			InvoiceNumber:    inv.InvoiceNumber,
			CustomerName:     inv.CustomerName,
		})
	}
	return out, nil
}

func (st *fakeState) ListRecentFeedback(ctx context.Context, arg repository.ListRecentFeedbackParams) ([]repository.Feedback, error) {
	return page(st.businessFeedback(arg.BusinessID), arg.Limit, 0), nil
}

// =============================================================================
// Payments
// =============================================================================

func (st *fakeState) CreatePaymentOrder(ctx context.Context, arg repository.CreatePaymentOrderParams) (repository.PaymentOrder, error) {
	if _, ok := st.orders[arg.GatewayOrderID]; ok {
		return repository.PaymentOrder{}, uniqueViolation("payment_orders_gateway_order_id_key")
	}
	o := repository.PaymentOrder{
		ID:             uuid.New(),
		BusinessID:     arg.BusinessID,
		GatewayOrderID: arg.GatewayOrderID,
		AmountCents:    arg.AmountCents,
		Currency:       arg.Currency,
		Status:         "created",
		CreatedAt:      arg.CreatedAt,
	}
	st.orders[o.GatewayOrderID] = o
	return o, nil
}

func (st *fakeState) GetPaymentOrderByGatewayID(ctx context.Context, gatewayOrderID string) (repository.PaymentOrder, error) {
	o, ok := st.orders[gatewayOrderID]
	if !ok {
		return repository.PaymentOrder{}, sql.ErrNoRows
	}
	return o, nil
}

func (st *fakeState) MarkPaymentOrderPaid(ctx context.Context, arg repository.MarkPaymentOrderPaidParams) (repository.PaymentOrder, error) {
	o, ok := st.orders[arg.GatewayOrderID]
	if !ok || o.Status != "created" {
		return repository.PaymentOrder{}, sql.ErrNoRows
	}
	o.Status = "paid"
	o.PaymentID = arg.PaymentID
	o.PaidAt = sql.NullTime{Time: arg.PaidAt, Valid: true}
	st.orders[o.GatewayOrderID] = o
	return o, nil
}

// =============================================================================
// Verification codes
// =============================================================================

func (st *fakeState) ConsumeVerificationCode(ctx context.Context, arg repository.ConsumeVerificationCodeParams) (int64, error) {
	c, ok := st.codes[arg.BusinessID]
	if !ok || c.CodeHash != arg.CodeHash {
		return 0, nil
	}
	delete(st.codes, arg.BusinessID)
	return 1, nil
}

func (st *fakeState) DeleteExpiredVerificationCodes(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	for k, c := range st.codes {
		if !c.ExpiresAt.After(now) {
			delete(st.codes, k)
			n++
		}
	}
	return n, nil
}

func (st *fakeState) GetVerificationCode(ctx context.Context, businessID uuid.UUID) (repository.VerificationCode, error) {
	c, ok := st.codes[businessID]
	if !ok {
		return repository.VerificationCode{}, sql.ErrNoRows
	}
	return c, nil
}

func (st *fakeState) UpsertVerificationCode(ctx context.Context, arg repository.UpsertVerificationCodeParams) error {
	st.codes[arg.BusinessID] = repository.VerificationCode{
		BusinessID: arg.BusinessID,
		CodeHash:   arg.CodeHash,
		ExpiresAt:  arg.ExpiresAt,
		CreatedAt:  arg.CreatedAt,
	}
	return nil
}

// =============================================================================
// Insights
// =============================================================================

func (st *fakeState) CreateInsight(ctx context.Context, arg repository.CreateInsightParams) (repository.Insight, error) {
	in := repository.Insight{
		ID:         uuid.New(),
		BusinessID: arg.BusinessID,
		Summary:    arg.Summary,
		Details:    arg.Details,
		Model:      arg.Model,
		CreatedAt:  arg.CreatedAt,
	}
	st.insights = append(st.insights, in)
	return in, nil
}

func (st *fakeState) GetLatestInsight(ctx context.Context, businessID uuid.UUID) (repository.Insight, error) {
	var latest *repository.Insight
	for i := range st.insights {
		in := &st.insights[i]
		if in.BusinessID != businessID {
			continue
		}
		if latest == nil || !in.CreatedAt.Before(latest.CreatedAt) {
			latest = in
		}
	}
	if latest == nil {
		return repository.Insight{}, sql.ErrNoRows
	}
	return *latest, nil
}

// =============================================================================
// Jobs
// =============================================================================

func (st *fakeState) DequeueJob(ctx context.Context) (repository.Job, error) {
	best := -1
	for i, j := range st.jobs {
		if j.Status != "pending" {
			continue
		}
		if best < 0 || j.Priority > st.jobs[best].Priority {
			best = i
		}
	}
	if best < 0 {
		return repository.Job{}, sql.ErrNoRows
	}
	return st.jobs[best], nil
}

func (st *fakeState) EnqueueJob(ctx context.Context, arg repository.EnqueueJobParams) (repository.Job, error) {
	if err := st.fail("EnqueueJob"); err != nil {
		return repository.Job{}, err
	}
	j := repository.Job{
		ID:          uuid.New(),
		JobType:     arg.JobType,
		Payload:     arg.Payload,
		Status:      "pending",
		Priority:    arg.Priority,
		MaxAttempts: arg.MaxAttempts,
		ScheduledAt: arg.ScheduledAt,
		CreatedAt:   arg.ScheduledAt,
	}
	st.jobs = append(st.jobs, j)
	return j, nil
}

func (st *fakeState) RecoverStaleJobs(ctx context.Context, thresholdSeconds float64) (int64, error) {
	return 0, nil
}

func (st *fakeState) setJobStatus(id uuid.UUID, status string) {
	for i := range st.jobs {
		if st.jobs[i].ID == id {
			st.jobs[i].Status = status
		}
	}
}

func (st *fakeState) UpdateJobCompleted(ctx context.Context, id uuid.UUID) error {
	st.setJobStatus(id, "completed")
	return nil
}

func (st *fakeState) UpdateJobFailed(ctx context.Context, arg repository.UpdateJobFailedParams) error {
	st.setJobStatus(arg.ID, "failed")
	return nil
}

func (st *fakeState) UpdateJobStarted(ctx context.Context, id uuid.UUID) error {
	st.setJobStatus(id, "running")
	return nil
}

// =============================================================================
// Locking wrappers
// =============================================================================

func (s *fakeStore) ActivatePro(ctx context.Context, arg repository.ActivateProParams) (repository.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ActivatePro(ctx, arg)
}

func (s *fakeStore) CountPlansByTier(ctx context.Context, now time.Time) ([]repository.CountPlansByTierRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.CountPlansByTier(ctx, now)
}

func (s *fakeStore) CreateBusiness(ctx context.Context, arg repository.CreateBusinessParams) (repository.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.CreateBusiness(ctx, arg)
}

func (s *fakeStore) CreatePlanEvent(ctx context.Context, arg repository.CreatePlanEventParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.CreatePlanEvent(ctx, arg)
}

func (s *fakeStore) DeleteBusiness(ctx context.Context, id uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.DeleteBusiness(ctx, id)
}

func (s *fakeStore) GetBusinessByID(ctx context.Context, id uuid.UUID) (repository.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.GetBusinessByID(ctx, id)
}

func (s *fakeStore) GetBusinessBySubject(ctx context.Context, subject string) (repository.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.GetBusinessBySubject(ctx, subject)
}

func (s *fakeStore) GetBusinessByUsername(ctx context.Context, username string) (repository.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.GetBusinessByUsername(ctx, username)
}

func (s *fakeStore) MarkBusinessEmailVerified(ctx context.Context, arg repository.MarkBusinessEmailVerifiedParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.MarkBusinessEmailVerified(ctx, arg)
}

func (s *fakeStore) SetBusinessTaxID(ctx context.Context, arg repository.SetBusinessTaxIDParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.SetBusinessTaxID(ctx, arg)
}

func (s *fakeStore) StartProTrial(ctx context.Context, arg repository.StartProTrialParams) (repository.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.StartProTrial(ctx, arg)
}

func (s *fakeStore) UpdateBusinessLogo(ctx context.Context, arg repository.UpdateBusinessLogoParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.UpdateBusinessLogo(ctx, arg)
}

func (s *fakeStore) UpdateBusinessProfile(ctx context.Context, arg repository.UpdateBusinessProfileParams) (repository.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.UpdateBusinessProfile(ctx, arg)
}

func (s *fakeStore) DecrementUsage(ctx context.Context, arg repository.DecrementUsageParams) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.DecrementUsage(ctx, arg)
}

func (s *fakeStore) DeleteUsageTrackers(ctx context.Context, businessID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.DeleteUsageTrackers(ctx, businessID)
}

func (s *fakeStore) EnsureUsageTracker(ctx context.Context, arg repository.EnsureUsageTrackerParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.EnsureUsageTracker(ctx, arg)
}

func (s *fakeStore) GetUsageTracker(ctx context.Context, arg repository.GetUsageTrackerParams) (repository.UsageTracker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.GetUsageTracker(ctx, arg)
}

func (s *fakeStore) IncrementUsageIfBelow(ctx context.Context, arg repository.IncrementUsageIfBelowParams) (repository.UsageTracker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.IncrementUsageIfBelow(ctx, arg)
}

func (s *fakeStore) ListUsageTrackers(ctx context.Context, businessID uuid.UUID) ([]repository.UsageTracker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ListUsageTrackers(ctx, businessID)
}

func (s *fakeStore) ResetUsageTrackerIfElapsed(ctx context.Context, arg repository.ResetUsageTrackerIfElapsedParams) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ResetUsageTrackerIfElapsed(ctx, arg)
}

func (s *fakeStore) AttachCoupon(ctx context.Context, arg repository.AttachCouponParams) (repository.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.AttachCoupon(ctx, arg)
}

func (s *fakeStore) CountInvoicesByBusinessID(ctx context.Context, businessID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.CountInvoicesByBusinessID(ctx, businessID)
}

func (s *fakeStore) CreateInvoice(ctx context.Context, arg repository.CreateInvoiceParams) (repository.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.CreateInvoice(ctx, arg)
}

func (s *fakeStore) DeleteInvoice(ctx context.Context, arg repository.DeleteInvoiceParams) (repository.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.DeleteInvoice(ctx, arg)
}

func (s *fakeStore) DeleteInvoicesByBusinessID(ctx context.Context, businessID uuid.UUID) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.DeleteInvoicesByBusinessID(ctx, businessID)
}

func (s *fakeStore) FilterUnreferencedFileKeys(ctx context.Context, keys []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.FilterUnreferencedFileKeys(ctx, keys)
}

func (s *fakeStore) GetInvoiceByIDAndBusinessID(ctx context.Context, arg repository.GetInvoiceByIDAndBusinessIDParams) (repository.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.GetInvoiceByIDAndBusinessID(ctx, arg)
}

func (s *fakeStore) GetInvoiceByNumber(ctx context.Context, arg repository.GetInvoiceByNumberParams) (repository.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.GetInvoiceByNumber(ctx, arg)
}

func (s *fakeStore) ListAvailableCoupons(ctx context.Context, arg repository.ListAvailableCouponsParams) ([]repository.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ListAvailableCoupons(ctx, arg)
}

func (s *fakeStore) ListInvoicesByBusinessID(ctx context.Context, arg repository.ListInvoicesByBusinessIDParams) ([]repository.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ListInvoicesByBusinessID(ctx, arg)
}

func (s *fakeStore) MarkFeedbackSubmitted(ctx context.Context, id uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.MarkFeedbackSubmitted(ctx, id)
}

func (s *fakeStore) RedeemCoupon(ctx context.Context, arg repository.RedeemCouponParams) (repository.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.RedeemCoupon(ctx, arg)
}

func (s *fakeStore) SetInvoicePDFKey(ctx context.Context, arg repository.SetInvoicePDFKeyParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.SetInvoicePDFKey(ctx, arg)
}

func (s *fakeStore) CountFeedbackByBusinessID(ctx context.Context, businessID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.CountFeedbackByBusinessID(ctx, businessID)
}

func (s *fakeStore) CreateFeedback(ctx context.Context, arg repository.CreateFeedbackParams) (repository.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.CreateFeedback(ctx, arg)
}

func (s *fakeStore) GetFeedbackSummary(ctx context.Context, businessID uuid.UUID) (repository.GetFeedbackSummaryRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.GetFeedbackSummary(ctx, businessID)
}

func (s *fakeStore) GetFeedbackTrend(ctx context.Context, arg repository.GetFeedbackTrendParams) ([]repository.GetFeedbackTrendRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.GetFeedbackTrend(ctx, arg)
}

func (s *fakeStore) ListFeedbackByBusinessID(ctx context.Context, arg repository.ListFeedbackByBusinessIDParams) ([]repository.ListFeedbackByBusinessIDRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ListFeedbackByBusinessID(ctx, arg)
}

func (s *fakeStore) ListRecentFeedback(ctx context.Context, arg repository.ListRecentFeedbackParams) ([]repository.Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ListRecentFeedback(ctx, arg)
}

func (s *fakeStore) CreatePaymentOrder(ctx context.Context, arg repository.CreatePaymentOrderParams) (repository.PaymentOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.CreatePaymentOrder(ctx, arg)
}

func (s *fakeStore) GetPaymentOrderByGatewayID(ctx context.Context, gatewayOrderID string) (repository.PaymentOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.GetPaymentOrderByGatewayID(ctx, gatewayOrderID)
}

func (s *fakeStore) MarkPaymentOrderPaid(ctx context.Context, arg repository.MarkPaymentOrderPaidParams) (repository.PaymentOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.MarkPaymentOrderPaid(ctx, arg)
}

func (s *fakeStore) ConsumeVerificationCode(ctx context.Context, arg repository.ConsumeVerificationCodeParams) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ConsumeVerificationCode(ctx, arg)
}

func (s *fakeStore) DeleteExpiredVerificationCodes(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.DeleteExpiredVerificationCodes(ctx, now)
}

func (s *fakeStore) GetVerificationCode(ctx context.Context, businessID uuid.UUID) (repository.VerificationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.GetVerificationCode(ctx, businessID)
}

func (s *fakeStore) UpsertVerificationCode(ctx context.Context, arg repository.UpsertVerificationCodeParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.UpsertVerificationCode(ctx, arg)
}

func (s *fakeStore) CreateInsight(ctx context.Context, arg repository.CreateInsightParams) (repository.Insight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.CreateInsight(ctx, arg)
}

func (s *fakeStore) GetLatestInsight(ctx context.Context, businessID uuid.UUID) (repository.Insight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.GetLatestInsight(ctx, businessID)
}

func (s *fakeStore) DequeueJob(ctx context.Context) (repository.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.DequeueJob(ctx)
}

func (s *fakeStore) EnqueueJob(ctx context.Context, arg repository.EnqueueJobParams) (repository.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.EnqueueJob(ctx, arg)
}

func (s *fakeStore) RecoverStaleJobs(ctx context.Context, thresholdSeconds float64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.RecoverStaleJobs(ctx, thresholdSeconds)
}

func (s *fakeStore) UpdateJobCompleted(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.UpdateJobCompleted(ctx, id)
}

func (s *fakeStore) UpdateJobFailed(ctx context.Context, arg repository.UpdateJobFailedParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.UpdateJobFailed(ctx, arg)
}

func (s *fakeStore) UpdateJobStarted(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.UpdateJobStarted(ctx, id)
}
