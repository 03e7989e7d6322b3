package metrics

import "time"

// Job outcomes recorded on JobsTotal.
const (
	JobCompleted = "completed"
	JobRetrying  = "retrying"
	JobDead      = "dead"
)

// JobRun tracks one execution of a claimed job.
type JobRun struct {
	jobType string
	start   time.Time
}

// StartJob marks a job as in flight. attempt counts from 1; anything later
// is recorded as a retry.
func StartJob(jobType string, attempt int32) *JobRun {
	if attempt > 1 {
		JobRetriesTotal.WithLabelValues(jobType).Inc()
	}
	JobsInFlight.WithLabelValues(jobType).Inc()
	return &JobRun{jobType: jobType, start: time.Now()}
}

// Finish records the outcome. A failure is dead when it is permanent or the
// job has no attempts left, and retrying otherwise.
func (j *JobRun) Finish(err error, dead bool) {
	JobsInFlight.WithLabelValues(j.jobType).Dec()
	JobDuration.WithLabelValues(j.jobType).Observe(time.Since(j.start).Seconds())

	outcome := JobCompleted
	switch {
	case err != nil && dead:
		outcome = JobDead
	case err != nil:
		outcome = JobRetrying
	}
	JobsTotal.WithLabelValues(j.jobType, outcome).Inc()
}
