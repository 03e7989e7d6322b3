// Package domain contains core business types and interfaces.
//
// This file defines usage quotas and the rolling 24-hour window they are
// counted over. The window is keyed off the last reset time, not midnight.
package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// UsageType identifies a metered capability.
type UsageType string

const (
	UsageTypeInvoiceUpload UsageType = "invoice-upload"
	UsageTypeAIInsight     UsageType = "ai-insight"
)

// Daily ceilings per plan.
const (
	FreeDailyUploadLimit  = 3
	ProDailyUploadLimit   = 10
	FreeDailyInsightLimit = 1
	ProDailyInsightLimit  = 5
)

// DailyWindow is the length of a quota window.
const DailyWindow = 24 * time.Hour

// ParseUsageType converts a string into a UsageType.
func ParseUsageType(s string) (UsageType, bool) {
	switch UsageType(s) {
	case UsageTypeInvoiceUpload, UsageTypeAIInsight:
		return UsageType(s), true
	default:
		return "", false
	}
}

// Label returns a human readable name for messages.
func (u UsageType) Label() string {
	switch u {
	case UsageTypeInvoiceUpload:
		return "invoice upload"
	case UsageTypeAIInsight:
		return "AI insight"
	default:
		return string(u)
	}
}

// HoursSince returns the fractional hours elapsed between last and now.
func HoursSince(last, now time.Time) float64 {
	return now.Sub(last).Hours()
}

// WindowElapsed reports whether more than a full window has passed since last.
func WindowElapsed(last, now time.Time) bool {
	return now.Sub(last) > DailyWindow
}

// HoursUntilReset returns ceil(24 - hoursSince), never negative.
func HoursUntilReset(last, now time.Time) int {
	left := math.Ceil(DailyWindow.Hours() - HoursSince(last, now))
	if left < 0 {
		return 0
	}
	return int(left)
}

// ResetCutoff returns the instant before which a window is considered stale.
func ResetCutoff(now time.Time) time.Time {
	return now.Add(-DailyWindow)
}

// UsageTracker is the daily counter for one business and usage type.
type UsageTracker struct {
	BusinessID uuid.UUID
	UsageType  UsageType
	DailyCount int
	LastReset  time.Time
}

// QuotaResult is the outcome of a successful consume.
type QuotaResult struct {
	Allowed    bool
	Used       int
	Remaining  int
	DailyLimit int
}

// UsageSnapshot is the read-only view of a counter.
type UsageSnapshot struct {
	UsageType  UsageType
	DailyCount int
	DailyLimit int
	LastReset  time.Time
	// TimeLeftHours is set only when the counter is at or above the limit.
	TimeLeftHours *int
}
