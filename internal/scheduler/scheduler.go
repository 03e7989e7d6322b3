// Package scheduler runs the periodic maintenance tasks. Every task is fire
// and forget: a failure is logged and the next tick tries again.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/DukeRupert/rateflow/internal/clock"
	"github.com/DukeRupert/rateflow/internal/domain"
	"github.com/DukeRupert/rateflow/internal/metrics"
	"github.com/DukeRupert/rateflow/internal/repository"
	"github.com/DukeRupert/rateflow/internal/storage"
	"github.com/DukeRupert/rateflow/internal/worker"
	"github.com/robfig/cron/v3"
)

const (
	// PruneSpec enqueues orphaned object cleanup at the top of every hour.
	PruneSpec = "0 * * * *"
	// CodePurgeSpec deletes expired verification codes daily at 03:00 UTC.
	CodePurgeSpec = "0 3 * * *"
	// PlanReportSpec records the plan report daily at 03:30 UTC.
	PlanReportSpec = "30 3 * * *"

	// DefaultPruneAge is how old an unreferenced object must be to be pruned.
	DefaultPruneAge = 7 * 24 * time.Hour

	taskTimeout = 5 * time.Minute
)

// Scheduler owns the cron instance for the maintenance tasks.
type Scheduler struct {
	queries  repository.Querier
	clock    clock.Clock
	pruneAge time.Duration
	cron     *cron.Cron
	logger   *slog.Logger
	mu       sync.Mutex
	running  bool
}

// New creates a scheduler. A zero pruneAge uses DefaultPruneAge.
func New(queries repository.Querier, clk clock.Clock, pruneAge time.Duration, logger *slog.Logger) *Scheduler {
	if pruneAge <= 0 {
		pruneAge = DefaultPruneAge
	}
	return &Scheduler{
		queries:  queries,
		clock:    clk,
		pruneAge: pruneAge,
		cron:     cron.New(cron.WithLocation(time.UTC)),
		logger:   logger.With("component", "scheduler"),
	}
}

// Start registers the tasks and starts the cron loop.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("scheduler already running")
	}

	tasks := []struct {
		spec string
		name string
		run  func(context.Context) error
	}{
		{PruneSpec, "prune_files", s.EnqueuePrune},
		{CodePurgeSpec, "purge_codes", s.PurgeExpiredCodes},
		{PlanReportSpec, "plan_report", func(ctx context.Context) error {
			_, err := s.PlanReport(ctx)
			return err
		}},
	}
	for _, task := range tasks {
		if _, err := s.cron.AddFunc(task.spec, s.wrap(task.name, task.run)); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("Scheduler started", "tasks", len(tasks))
	return nil
}

// Stop halts the schedule. The returned context is done once running tasks
// have finished.
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}

	s.running = false
	s.logger.Info("Stopping scheduler")
	return s.cron.Stop()
}

// Run starts the scheduler and blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	<-s.Stop().Done()
	return nil
}

func (s *Scheduler) wrap(name string, run func(context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
		defer cancel()

		start := time.Now()
		if err := run(ctx); err != nil {
			s.logger.Error("Scheduled task failed", "task", name, "error", err)
			return
		}
		s.logger.Debug("Scheduled task finished", "task", name, "duration", time.Since(start))
	}
}

// =============================================================================
// Tasks
// =============================================================================

// EnqueuePrune queues cleanup of both object prefixes.
func (s *Scheduler) EnqueuePrune(ctx context.Context) error {
	for _, prefix := range []string{storage.InvoicePrefix, storage.LogoPrefix} {
		if _, err := worker.EnqueuePruneFiles(ctx, s.queries, prefix, s.pruneAge); err != nil {
			return err
		}
	}
	return nil
}

// PurgeExpiredCodes deletes verification codes past their expiry.
func (s *Scheduler) PurgeExpiredCodes(ctx context.Context) error {
	n, err := s.queries.DeleteExpiredVerificationCodes(ctx, s.clock.Now())
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Info("Expired verification codes deleted", "count", n)
	}
	return nil
}

// PlanReport counts plans per tier and logs how many paid plans have lapsed.
// It never changes plan state; expiry is resolved when a plan is read.
func (s *Scheduler) PlanReport(ctx context.Context) (*Report, error) {
	report, err := BuildReport(ctx, s.queries, s.clock.Now())
	if err != nil {
		return nil, err
	}
	for _, row := range report.Tiers {
		metrics.PlansObserved(string(row.Tier), row.Active, row.Expired)
	}
	s.logger.Info("Plan report",
		"free", report.Count(domain.PlanTierFree),
		"pro_trial_active", report.Active(domain.PlanTierProTrial),
		"pro_trial_expired", report.Expired(domain.PlanTierProTrial),
		"pro_active", report.Active(domain.PlanTierPro),
		"pro_expired", report.Expired(domain.PlanTierPro),
	)
	return report, nil
}
