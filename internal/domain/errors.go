package domain

import (
	"errors"
	"fmt"
)

// Application error codes
const (
	EINVALID      = "invalid"      // Invalid input or validation failure
	EUNAUTHORIZED = "unauthorized" // Authentication required
	EFORBIDDEN    = "forbidden"    // Permission denied
	ENOTFOUND     = "not_found"    // Resource not found
	ECONFLICT     = "conflict"     // Resource conflict (e.g., duplicate)
	EGONE         = "gone"         // Resource no longer available
	ETOOLARGE     = "too_large"    // Request entity too large
	ERATELIMIT    = "rate_limit"   // Rate limit exceeded
	EINTERNAL     = "internal"     // Internal server error
	ENOTIMPL      = "not_impl"     // Not implemented
	EPAYMENT      = "payment"      // Payment required
	EUNAVAILABLE  = "unavailable"  // Upstream collaborator failed
)

// Domain reasons refine a code so clients can tell apart, for example, the
// two different conflicts a trial request can run into.
const (
	ReasonUnauthorized             = "unauthorized"
	ReasonBusinessNotFound         = "business_not_found"
	ReasonInvoiceNotFound          = "invoice_not_found"
	ReasonCouponNotFound           = "coupon_not_found"
	ReasonQuotaExceeded            = "quota_exceeded"
	ReasonAlreadyOnProPlan         = "already_on_pro_plan"
	ReasonTrialAlreadyUsed         = "trial_already_used"
	ReasonCouponAlreadyUsed        = "coupon_already_used"
	ReasonInvalidCouponCode        = "invalid_coupon_code"
	ReasonFeedbackAlreadySubmitted = "feedback_already_submitted"
	ReasonInvalidRating            = "invalid_rating"
	ReasonPaymentVerification      = "payment_verification_failed"
	ReasonExternalService          = "external_service_failure"
	ReasonCodeExpired              = "code_expired"
	ReasonInvalidCode              = "invalid_code"
)

// Error represents an application error with structured information.
type Error struct {
	Code    string         // Machine-readable error code
	Reason  string         // Domain reason (optional, see Reason* constants)
	Op      string         // Operation that failed (e.g., "coupon.redeem")
	Message string         // Human-readable message
	Data    map[string]any // Extra fields surfaced to API clients
	Err     error          // Underlying error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf creates a new Error with the given code, operation, and formatted message.
func Errorf(code, op, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with additional context.
func Wrap(err error, code, op, message string) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// ErrorCode returns the code of the root error, or EINTERNAL if none.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage returns the human-readable message of the error.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		// For internal errors, return generic message
		if e.Code == EINTERNAL {
			return "An internal error occurred. Please try again later."
		}
		return e.Message
	}
	return "An internal error occurred. Please try again later."
}

// ErrorReason returns the domain reason of the error, if any.
func ErrorReason(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

// ErrorData returns the client-facing data attached to the error, if any.
func ErrorData(err error) map[string]any {
	var e *Error
	if errors.As(err, &e) {
		return e.Data
	}
	return nil
}

// HasReason reports whether err carries the given domain reason.
func HasReason(err error, reason string) bool {
	return ErrorReason(err) == reason
}

// ErrorOp returns the operation of the root error, if any.
func ErrorOp(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}

// Convenience constructors for common error types

// NotFound creates a not found error.
func NotFound(op, resource, id string) *Error {
	return &Error{
		Code:    ENOTFOUND,
		Op:      op,
		Message: fmt.Sprintf("%s with ID %q not found", resource, id),
	}
}

// Invalid creates a validation error.
func Invalid(op, message string) *Error {
	return &Error{
		Code:    EINVALID,
		Op:      op,
		Message: message,
	}
}

// Unauthorized creates an authentication error.
func Unauthorized(op, message string) *Error {
	return &Error{
		Code:    EUNAUTHORIZED,
		Reason:  ReasonUnauthorized,
		Op:      op,
		Message: message,
	}
}

// Forbidden creates a permission error.
func Forbidden(op, message string) *Error {
	return &Error{
		Code:    EFORBIDDEN,
		Op:      op,
		Message: message,
	}
}

// Conflict creates a conflict error.
func Conflict(op, message string) *Error {
	return &Error{
		Code:    ECONFLICT,
		Op:      op,
		Message: message,
	}
}

// Internal creates an internal error, wrapping the underlying error.
func Internal(err error, op, message string) *Error {
	return &Error{
		Code:    EINTERNAL,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// GoneError creates an error for a resource that existed but is no longer usable.
func GoneError(op, message string) *Error {
	return &Error{
		Code:    EGONE,
		Op:      op,
		Message: message,
	}
}

// RateLimit creates a rate limit error.
func RateLimit(op string) *Error {
	return &Error{
		Code:    ERATELIMIT,
		Op:      op,
		Message: "Too many requests. Please try again later.",
	}
}

// =============================================================================
// Domain Errors
// =============================================================================

// QuotaExceeded reports that the rolling daily ceiling for a usage type has
// been reached. timeLeftHours is surfaced to the client.
func QuotaExceeded(op string, usageType UsageType, used, limit int, timeLeftHours int) *Error {
	return &Error{
		Code:    ERATELIMIT,
		Reason:  ReasonQuotaExceeded,
		Op:      op,
		Message: fmt.Sprintf("Daily %s limit of %d reached. Try again in %d hour(s).", usageType.Label(), limit, timeLeftHours),
		Data: map[string]any{
			"usageType":     string(usageType),
			"used":          used,
			"dailyLimit":    limit,
			"timeLeftHours": timeLeftHours,
		},
	}
}

// BusinessNotFound reports a missing business.
func BusinessNotFound(op string) *Error {
	return &Error{Code: ENOTFOUND, Reason: ReasonBusinessNotFound, Op: op, Message: "Business not found"}
}

// InvoiceNotFound reports a missing invoice.
func InvoiceNotFound(op string) *Error {
	return &Error{Code: ENOTFOUND, Reason: ReasonInvoiceNotFound, Op: op, Message: "Invoice not found"}
}

// CouponNotFound reports an invoice without an attached coupon.
func CouponNotFound(op string) *Error {
	return &Error{Code: ENOTFOUND, Reason: ReasonCouponNotFound, Op: op, Message: "No coupon is attached to this invoice"}
}

// CouponAlreadyUsed reports a redemption against a spent coupon.
func CouponAlreadyUsed(op string) *Error {
	return &Error{Code: ECONFLICT, Reason: ReasonCouponAlreadyUsed, Op: op, Message: "Coupon has already been used"}
}

// InvalidCouponCode reports a coupon that fails validation.
func InvalidCouponCode(op, message string) *Error {
	return &Error{Code: EINVALID, Reason: ReasonInvalidCouponCode, Op: op, Message: message}
}

// AlreadyOnProPlan reports a plan change attempted during an active pro plan.
func AlreadyOnProPlan(op string) *Error {
	return &Error{Code: ECONFLICT, Reason: ReasonAlreadyOnProPlan, Op: op, Message: "You are already on an active Pro plan"}
}

// TrialAlreadyUsed reports a second trial request.
func TrialAlreadyUsed(op string) *Error {
	return &Error{Code: ECONFLICT, Reason: ReasonTrialAlreadyUsed, Op: op, Message: "The Pro trial has already been used"}
}

// FeedbackAlreadySubmitted reports a second submission for an invoice.
func FeedbackAlreadySubmitted(op string) *Error {
	return &Error{Code: ECONFLICT, Reason: ReasonFeedbackAlreadySubmitted, Op: op, Message: "Feedback has already been submitted for this invoice"}
}

// InvalidRating reports a rating outside the 1..5 scale.
func InvalidRating(op, field string) *Error {
	return &Error{
		Code:    EINVALID,
		Reason:  ReasonInvalidRating,
		Op:      op,
		Message: fmt.Sprintf("%s must be a whole number between %d and %d", field, MinRating, MaxRating),
		Data:    map[string]any{"field": field},
	}
}

// PaymentVerificationFailed reports a payment whose signature did not match.
func PaymentVerificationFailed(op string) *Error {
	return &Error{Code: EPAYMENT, Reason: ReasonPaymentVerification, Op: op, Message: "Payment could not be verified"}
}

// ExternalServiceFailure wraps an error returned by an outside collaborator.
func ExternalServiceFailure(err error, op, service string) *Error {
	return &Error{
		Code:    EUNAVAILABLE,
		Reason:  ReasonExternalService,
		Op:      op,
		Message: fmt.Sprintf("%s is unavailable", service),
		Err:     err,
	}
}

// CodeExpired reports a verification code past its expiry.
func CodeExpired(op string) *Error {
	return &Error{Code: EGONE, Reason: ReasonCodeExpired, Op: op, Message: "Verification code has expired"}
}

// InvalidCode reports a verification code that does not match.
func InvalidCode(op string) *Error {
	return &Error{Code: EINVALID, Reason: ReasonInvalidCode, Op: op, Message: "Verification code is invalid"}
}

// ValidationError represents field-level validation errors.
type ValidationError struct {
	Op     string
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: validation failed", e.Op)
}

// NewValidationError creates a new validation error with the first field error.
func NewValidationError(op, field, message string) *ValidationError {
	return &ValidationError{
		Op: op,
		Fields: map[string]string{
			field: message,
		},
	}
}

// AddFieldError adds a field error to an existing validation error.
// If err is not a ValidationError, returns a new one.
func AddFieldError(err error, field, message string) *ValidationError {
	var ve *ValidationError
	if errors.As(err, &ve) {
		ve.Fields[field] = message
		return ve
	}
	return NewValidationError("", field, message)
}
