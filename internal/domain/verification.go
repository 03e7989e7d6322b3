package domain

import "time"

const (
	// VerificationCodeDuration is how long an emailed code stays valid.
	VerificationCodeDuration = 15 * time.Minute

	// VerificationCodeDigits is the length of the numeric code.
	VerificationCodeDigits = 6
)

// VerificationCode is a pending contact email verification.
type VerificationCode struct {
	CodeHash  string
	ExpiresAt time.Time
}

// IsExpired returns true if the code is past its expiry at now.
func (c *VerificationCode) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
