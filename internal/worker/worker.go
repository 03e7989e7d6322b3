package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DukeRupert/rateflow/internal/metrics"
	"github.com/DukeRupert/rateflow/internal/repository"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Worker drains the jobs table with a fixed pool of pollers.
type Worker struct {
	store    repository.Store
	handlers map[string]JobHandler
	config   Config
	logger   *slog.Logger
}

// New validates config, filling zero fields with defaults.
func New(store repository.Store, config Config, logger *slog.Logger) (*Worker, error) {
	config = config.withDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Worker{
		store:    store,
		handlers: make(map[string]JobHandler),
		config:   config,
		logger:   logger.With("component", "worker"),
	}, nil
}

// Register adds a handler for its job type. Call before Run.
func (w *Worker) Register(handler JobHandler) {
	jobType := handler.Type()
	if _, exists := w.handlers[jobType]; exists {
		w.logger.Warn("replacing job handler", "job_type", jobType)
	}
	w.handlers[jobType] = handler
}

// Run polls until ctx is canceled. Jobs already executing get up to
// ShutdownTimeout to finish before Run returns.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.recoverStaleJobs(ctx); err != nil {
		w.logger.Error("failed to recover stale jobs", "error", err)
	}

	var g errgroup.Group
	for i := range w.config.Concurrency {
		logger := w.logger.With("poller", i+1)
		g.Go(func() error {
			w.poll(ctx, logger)
			return nil
		})
	}
	w.logger.Info("Worker started", "concurrency", w.config.Concurrency, "job_types", len(w.handlers))

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	<-ctx.Done()
	select {
	case <-done:
		w.logger.Info("Worker stopped")
	case <-time.After(w.config.ShutdownTimeout):
		w.logger.Warn("worker shutdown timed out with jobs still running")
	}
	return nil
}

// poll drains the queue, then sleeps one PollInterval, until ctx ends.
func (w *Worker) poll(ctx context.Context, logger *slog.Logger) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		for ctx.Err() == nil {
			err := w.processNextJob(ctx, logger)
			if errors.Is(err, sql.ErrNoRows) {
				break
			}
			if err != nil && !errors.Is(err, errJobFailed) {
				logger.Error("failed to process job", "error", err)
				break
			}
		}
		timer.Reset(w.config.PollInterval)
	}
}

// errJobFailed marks a processNextJob error that came from the handler
// itself; the failure is already recorded on the job row.
var errJobFailed = errors.New("job failed")

func (w *Worker) recoverStaleJobs(ctx context.Context) error {
	count, err := w.store.RecoverStaleJobs(ctx, w.config.StaleJobThreshold.Seconds())
	if err != nil {
		return fmt.Errorf("recover stale jobs: %w", err)
	}
	if count > 0 {
		w.logger.Warn("recovered stale jobs", "count", count, "threshold", w.config.StaleJobThreshold)
	}
	return nil
}

// processNextJob claims one job and runs it. It returns sql.ErrNoRows when
// the queue is empty.
func (w *Worker) processNextJob(ctx context.Context, logger *slog.Logger) error {
	var job repository.Job

	// The row lock from SKIP LOCKED is held until the running flip commits.
	err := w.store.ExecTx(ctx, func(q repository.Querier) error {
		var err error
		job, err = q.DequeueJob(ctx)
		if err != nil {
			return err
		}
		if err := q.UpdateJobStarted(ctx, job.ID); err != nil {
			return fmt.Errorf("mark job started: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	// A claimed job finishes even when shutdown cancels ctx; JobTimeout
	// still bounds it.
	jobCtx := context.WithoutCancel(ctx)

	attempt := job.Attempts + 1
	logger = logger.With("job_id", job.ID, "job_type", job.JobType, "attempt", attempt)
	run := metrics.StartJob(job.JobType, attempt)
	start := time.Now()

	if err := w.execute(jobCtx, job); err != nil {
		run.Finish(err, IsPermanent(err) || attempt >= job.MaxAttempts)
		w.markFailed(jobCtx, logger, job.ID, err)
		return fmt.Errorf("%w: %s: %w", errJobFailed, job.JobType, err)
	}

	run.Finish(nil, false)
	if err := w.store.UpdateJobCompleted(jobCtx, job.ID); err != nil {
		return fmt.Errorf("mark job completed: %w", err)
	}
	logger.Info("Job completed", "duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (w *Worker) execute(ctx context.Context, job repository.Job) error {
	handler, ok := w.handlers[job.JobType]
	if !ok {
		return NewPermanentError(fmt.Errorf("no handler registered for job type %q", job.JobType))
	}

	ctx, cancel := context.WithTimeout(ctx, w.config.JobTimeout)
	defer cancel()
	return handler.Handle(ctx, job.Payload)
}

// markFailed records the error. Permanent errors skip the remaining
// attempts; anything else is rescheduled with backoff by the query.
func (w *Worker) markFailed(ctx context.Context, logger *slog.Logger, jobID uuid.UUID, jobErr error) {
	permanent := IsPermanent(jobErr)
	logger.Error("Job failed", "error", jobErr, "permanent", permanent)

	err := w.store.UpdateJobFailed(ctx, repository.UpdateJobFailedParams{
		ID:           jobID,
		ErrorMessage: sql.NullString{String: jobErr.Error(), Valid: true},
		Permanent:    permanent,
	})
	if err != nil {
		logger.Error("failed to record job failure", "error", err)
	}
}
