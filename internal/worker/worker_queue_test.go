package worker

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/DukeRupert/rateflow/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jobColumns = []string{
	"id", "job_type", "payload", "status", "priority", "attempts", "max_attempts",
	"scheduled_at", "started_at", "completed_at", "error_message", "created_at",
}

type stubHandler struct {
	jobType string
	err     error
	got     []byte
}

func (h *stubHandler) Type() string { return h.jobType }

func (h *stubHandler) Handle(ctx context.Context, payload []byte) error {
	h.got = payload
	return h.err
}

func newTestWorker(t *testing.T) (*Worker, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	w, err := New(repository.NewStore(db), DefaultConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return w, mock
}

func jobRow(id uuid.UUID, jobType string, payload []byte) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(jobColumns).AddRow(
		id, jobType, payload, "pending", int32(10), int32(0), int32(3),
		now, nil, nil, nil, now,
	)
}

func TestWorker_ProcessNextJob_Success(t *testing.T) {
	w, mock := newTestWorker(t)
	h := &stubHandler{jobType: JobTypePruneFiles}
	w.Register(h)

	jobID := uuid.New()
	payload := []byte(`{"prefix":"invoices/"}`)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").WillReturnRows(jobRow(jobID, JobTypePruneFiles, payload))
	mock.ExpectExec("SET status = 'running'").WithArgs(jobID).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectExec("SET status = 'completed'").WithArgs(jobID).WillReturnResult(sqlmock.NewResult(0, 1))

	err := w.processNextJob(context.Background(), w.logger)
	require.NoError(t, err)
	assert.JSONEq(t, string(payload), string(h.got))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorker_ProcessNextJob_Empty(t *testing.T) {
	w, mock := newTestWorker(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := w.processNextJob(context.Background(), w.logger)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorker_ProcessNextJob_Failures(t *testing.T) {
	tests := []struct {
		name      string
		handler   *stubHandler
		jobType   string
		permanent bool
	}{
		{
			name:      "transient failure is retried",
			handler:   &stubHandler{jobType: JobTypeSendInvoiceEmail, err: errors.New("smtp down")},
			jobType:   JobTypeSendInvoiceEmail,
			permanent: false,
		},
		{
			name:      "permanent failure is not retried",
			handler:   &stubHandler{jobType: JobTypeSendInvoiceEmail, err: NewPermanentError(errors.New("bad payload"))},
			jobType:   JobTypeSendInvoiceEmail,
			permanent: true,
		},
		{
			name:      "unknown job type is permanent",
			handler:   &stubHandler{jobType: JobTypeGenerateInsights},
			jobType:   "mystery",
			permanent: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, mock := newTestWorker(t)
			w.Register(tt.handler)
			jobID := uuid.New()

			mock.ExpectBegin()
			mock.ExpectQuery("FOR UPDATE SKIP LOCKED").WillReturnRows(jobRow(jobID, tt.jobType, []byte(`{}`)))
			mock.ExpectExec("SET status = 'running'").WithArgs(jobID).WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectCommit()
			mock.ExpectExec("UPDATE jobs").
				WithArgs(jobID, sqlmock.AnyArg(), tt.permanent).
				WillReturnResult(sqlmock.NewResult(0, 1))

			err := w.processNextJob(context.Background(), w.logger)
			assert.ErrorIs(t, err, errJobFailed)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestWorker_ProcessNextJob_SurvivesCancellation(t *testing.T) {
	w, mock := newTestWorker(t)
	ctx, cancel := context.WithCancel(context.Background())

	jobID := uuid.New()
	h := &cancelingHandler{cancel: cancel}
	w.Register(h)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").WillReturnRows(jobRow(jobID, JobTypePruneFiles, []byte(`{}`)))
	mock.ExpectExec("SET status = 'running'").WithArgs(jobID).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectExec("SET status = 'completed'").WithArgs(jobID).WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, w.processNextJob(ctx, w.logger))
	assert.NoError(t, h.ctxErr, "job context must outlive the poller context")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// cancelingHandler cancels the worker context mid-job and records whether
// its own context saw the cancellation.
type cancelingHandler struct {
	cancel context.CancelFunc
	ctxErr error
}

func (h *cancelingHandler) Type() string { return JobTypePruneFiles }

func (h *cancelingHandler) Handle(ctx context.Context, payload []byte) error {
	h.cancel()
	h.ctxErr = ctx.Err()
	return nil
}

func TestWorker_Run_RecoversThenPolls(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	w, err := New(repository.NewStore(db), Config{Concurrency: 1, PollInterval: time.Minute}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	mock.ExpectExec("UPDATE jobs").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return mock.ExpectationsWereMet() == nil }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestEnqueueJob(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	q := repository.New(db)

	businessID := uuid.New()
	consumedAt := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	want, _ := json.Marshal(GenerateInsightsPayload{BusinessID: businessID, ConsumedAt: consumedAt})

	mock.ExpectQuery("INSERT INTO jobs").
		WithArgs(JobTypeGenerateInsights, want, int32(PriorityHigh), int32(1), sqlmock.AnyArg()).
		WillReturnRows(jobRow(uuid.New(), JobTypeGenerateInsights, want))

	job, err := EnqueueGenerateInsights(context.Background(), q, businessID, consumedAt, WithPriority(PriorityHigh))
	require.NoError(t, err)
	assert.Equal(t, JobTypeGenerateInsights, job.JobType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnqueueJob_MarshalError(t *testing.T) {
	_, err := EnqueueJob(context.Background(), nil, "x", make(chan int))
	assert.Error(t, err)
}
