package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuotaExceeded(t *testing.T) {
	err := QuotaExceeded("quota.consume", UsageTypeInvoiceUpload, 3, 3, 14)

	assert.Equal(t, ERATELIMIT, ErrorCode(err))
	assert.Equal(t, ReasonQuotaExceeded, ErrorReason(err))
	assert.Equal(t, 14, ErrorData(err)["timeLeftHours"])
	assert.Contains(t, ErrorMessage(err), "14 hour")
}

func TestErrorHelpers_Wrapped(t *testing.T) {
	inner := CouponAlreadyUsed("coupon.redeem")
	wrapped := fmt.Errorf("handler: %w", inner)

	assert.Equal(t, ECONFLICT, ErrorCode(wrapped))
	assert.True(t, HasReason(wrapped, ReasonCouponAlreadyUsed))
	assert.Equal(t, "coupon.redeem", ErrorOp(wrapped))
}

func TestErrorMessage_HidesInternal(t *testing.T) {
	err := Internal(errors.New("connection refused"), "invoice.create", "failed to insert invoice")
	assert.Equal(t, EINTERNAL, ErrorCode(err))
	assert.NotContains(t, ErrorMessage(err), "connection refused")

	plain := errors.New("boom")
	assert.Equal(t, EINTERNAL, ErrorCode(plain))
	assert.Empty(t, ErrorReason(plain))
}

func TestExternalServiceFailure(t *testing.T) {
	cause := errors.New("timeout")
	err := ExternalServiceFailure(cause, "business.verify_tax_id", "Tax ID verification")

	assert.Equal(t, EUNAVAILABLE, ErrorCode(err))
	assert.Equal(t, ReasonExternalService, ErrorReason(err))
	assert.ErrorIs(t, err, cause)
}

func TestReasonsMapToDistinctCodes(t *testing.T) {
	assert.Equal(t, ENOTFOUND, ErrorCode(CouponNotFound("op")))
	assert.Equal(t, ECONFLICT, ErrorCode(TrialAlreadyUsed("op")))
	assert.Equal(t, ECONFLICT, ErrorCode(AlreadyOnProPlan("op")))
	assert.Equal(t, EGONE, ErrorCode(CodeExpired("op")))
	assert.Equal(t, EINVALID, ErrorCode(InvalidCode("op")))
	assert.Equal(t, EPAYMENT, ErrorCode(PaymentVerificationFailed("op")))
	assert.Equal(t, EUNAUTHORIZED, ErrorCode(Unauthorized("op", "no session")))
	assert.Equal(t, ReasonUnauthorized, ErrorReason(Unauthorized("op", "no session")))
}
