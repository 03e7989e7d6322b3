package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/DukeRupert/rateflow/internal/repository"
	"github.com/google/uuid"
)

// Job type constants - these must match the JobHandler.Type() values
const (
	JobTypeSendInvoiceEmail = "send_invoice_email"
	JobTypeGenerateInsights = "generate_insights"
	JobTypePruneFiles       = "prune_files"
)

// Priority constants for job scheduling
const (
	PriorityLow    = 0
	PriorityNormal = 10
	PriorityHigh   = 20
)

// SendInvoiceEmailPayload is the payload for invoice delivery jobs.
type SendInvoiceEmailPayload struct {
	InvoiceID  uuid.UUID `json:"invoice_id"`
	BusinessID uuid.UUID `json:"business_id"`
}

// GenerateInsightsPayload is the payload for AI insight jobs.
type GenerateInsightsPayload struct {
	BusinessID uuid.UUID `json:"business_id"`
	// ConsumedAt identifies the quota window the slot was taken from, so a
	// failure only refunds a slot from the same window.
	ConsumedAt time.Time `json:"consumed_at"`
}

// PruneFilesPayload is the payload for orphaned object cleanup jobs.
type PruneFilesPayload struct {
	Prefix    string        `json:"prefix"`
	OlderThan time.Duration `json:"older_than"`
}

// EnqueueOption is a functional option for customizing job enqueue parameters.
type EnqueueOption func(*repository.EnqueueJobParams)

// WithPriority sets the job priority.
func WithPriority(priority int32) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.Priority = priority
	}
}

// WithMaxAttempts sets the maximum number of retry attempts.
func WithMaxAttempts(attempts int32) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.MaxAttempts = attempts
	}
}

// WithDelay schedules the job to run after a delay.
func WithDelay(delay time.Duration) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.ScheduledAt = time.Now().Add(delay)
	}
}

// EnqueueJob is a generic helper for enqueuing jobs with custom options.
// q may be a transaction-scoped Querier.
func EnqueueJob(
	ctx context.Context,
	q repository.Querier,
	jobType string,
	payload interface{},
	opts ...EnqueueOption,
) (repository.Job, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return repository.Job{}, fmt.Errorf("marshal payload: %w", err)
	}

	params := repository.EnqueueJobParams{
		JobType:     jobType,
		Payload:     payloadJSON,
		Priority:    PriorityNormal,
		MaxAttempts: 3,
		ScheduledAt: time.Now(),
	}

	for _, opt := range opts {
		opt(&params)
	}

	job, err := q.EnqueueJob(ctx, params)
	if err != nil {
		return repository.Job{}, fmt.Errorf("enqueue job: %w", err)
	}

	return job, nil
}

// EnqueueSendInvoiceEmail enqueues delivery of a freshly uploaded invoice.
func EnqueueSendInvoiceEmail(
	ctx context.Context,
	q repository.Querier,
	businessID uuid.UUID,
	invoiceID uuid.UUID,
	opts ...EnqueueOption,
) (repository.Job, error) {
	payload := SendInvoiceEmailPayload{
		InvoiceID:  invoiceID,
		BusinessID: businessID,
	}

	return EnqueueJob(ctx, q, JobTypeSendInvoiceEmail, payload, opts...)
}

// EnqueueGenerateInsights enqueues an AI insight run. Insight jobs are not
// retried by default because the quota slot is refunded on failure.
func EnqueueGenerateInsights(
	ctx context.Context,
	q repository.Querier,
	businessID uuid.UUID,
	consumedAt time.Time,
	opts ...EnqueueOption,
) (repository.Job, error) {
	payload := GenerateInsightsPayload{
		BusinessID: businessID,
		ConsumedAt: consumedAt,
	}

	opts = append([]EnqueueOption{WithMaxAttempts(1)}, opts...)
	return EnqueueJob(ctx, q, JobTypeGenerateInsights, payload, opts...)
}

// EnqueuePruneFiles enqueues cleanup of unreferenced objects under prefix.
func EnqueuePruneFiles(
	ctx context.Context,
	q repository.Querier,
	prefix string,
	olderThan time.Duration,
	opts ...EnqueueOption,
) (repository.Job, error) {
	payload := PruneFilesPayload{
		Prefix:    prefix,
		OlderThan: olderThan,
	}

	opts = append([]EnqueueOption{WithPriority(PriorityLow)}, opts...)
	return EnqueueJob(ctx, q, JobTypePruneFiles, payload, opts...)
}
