package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// JobHandler runs one job type. Type must match the job_type column that
// the enqueue helpers write; Handle receives the row's raw JSON payload.
type JobHandler interface {
	Type() string
	Handle(ctx context.Context, payload []byte) error
}

// PermanentError fails a job without spending its remaining attempts. Use it
// for failures a retry cannot fix: a payload that does not decode, an invoice
// that was deleted, an insight the service already refunded.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}

// Permanentf formats a PermanentError. It supports %w.
func Permanentf(format string, args ...any) error {
	return &PermanentError{Err: fmt.Errorf(format, args...)}
}

// IsPermanent reports whether err or anything it wraps is a PermanentError.
func IsPermanent(err error) bool {
	var permErr *PermanentError
	return errors.As(err, &permErr)
}

// DecodePayload unmarshals a job payload into P. A payload that fails to
// decode is permanent; it will not decode on the next attempt either.
func DecodePayload[P any](payload []byte) (P, error) {
	var p P
	if err := json.Unmarshal(payload, &p); err != nil {
		return p, Permanentf("invalid %T payload: %w", p, err)
	}
	return p, nil
}
