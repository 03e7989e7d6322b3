package service

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DukeRupert/rateflow/internal/auth"
	"github.com/DukeRupert/rateflow/internal/clock"
	"github.com/DukeRupert/rateflow/internal/domain"
	"github.com/DukeRupert/rateflow/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var testEpoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	store  *fakeStore
	clock  *clock.FakeClock
	logger *slog.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return &testEnv{
		store:  newFakeStore(),
		clock:  clock.NewFakeClock(testEpoch),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// seedBusiness inserts a business and returns a session that owns it.
func (e *testEnv) seedBusiness(t *testing.T, username string) *auth.Session {
	t.Helper()
	b, err := e.store.CreateBusiness(context.Background(), repository.CreateBusinessParams{
		Subject:   "sub-" + username,
		Username:  username,
		Name:      "Business " + username,
		Email:     username + "@example.com",
		CreatedAt: e.clock.Now(),
	})
	require.NoError(t, err)
	return &auth.Session{
		Subject:    b.Subject,
		Username:   b.Username,
		Email:      b.Email,
		BusinessID: b.ID,
	}
}

// setPlan overwrites the stored plan of a business.
func (e *testEnv) setPlan(businessID uuid.UUID, tier domain.PlanTier, end time.Time, trialUsed bool) {
	e.store.with(func(st *fakeState) {
		b := st.businesses[businessID]
		b.PlanTier = string(tier)
		b.PlanStartDate = sql.NullTime{Time: end.Add(-domain.ProPlanDuration), Valid: tier != domain.PlanTierFree}
		b.PlanEndDate = sql.NullTime{Time: end, Valid: tier != domain.PlanTierFree}
		b.ProTrialUsed = trialUsed
		st.businesses[businessID] = b
	})
}

func (e *testEnv) business(businessID uuid.UUID) repository.Business {
	var b repository.Business
	e.store.with(func(st *fakeState) { b = st.businesses[businessID] })
	return b
}

// seedInvoice inserts a bare invoice directly.
func (e *testEnv) seedInvoice(t *testing.T, businessID uuid.UUID, number string) repository.Invoice {
	t.Helper()
	inv, err := e.store.CreateInvoice(context.Background(), repository.CreateInvoiceParams{
		BusinessID:    businessID,
		InvoiceNumber: number,
		CustomerName:  "Customer " + number,
		AmountCents:   1000,
		Currency:      "USD",
		CreatedAt:     e.clock.Now(),
	})
	require.NoError(t, err)
	return inv
}

func requireReason(t *testing.T, err error, reason string) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, reason, domain.ErrorReason(err), "unexpected error: %v", err)
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, domain.ErrorCode(err), "unexpected error: %v", err)
}
