package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWindowElapsed(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		last time.Time
		want bool
	}{
		{"just reset", now, false},
		{"23 hours ago", now.Add(-23 * time.Hour), false},
		{"exactly 24 hours ago", now.Add(-24 * time.Hour), false},
		{"24h and a second ago", now.Add(-24*time.Hour - time.Second), true},
		{"25 hours ago", now.Add(-25 * time.Hour), true},
		{"across midnight but within window", time.Date(2025, 5, 31, 23, 0, 0, 0, time.UTC), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WindowElapsed(tt.last, now))
		})
	}
}

func TestHoursUntilReset(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		last time.Time
		want int
	}{
		{"fresh window", now, 24},
		{"90 minutes in rounds up", now.Add(-90 * time.Minute), 23},
		{"10 hours in", now.Add(-10 * time.Hour), 14},
		{"one second before reset", now.Add(-24*time.Hour + time.Second), 1},
		{"stale window clamps to zero", now.Add(-30 * time.Hour), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HoursUntilReset(tt.last, now))
		})
	}
}

func TestResetCutoff(t *testing.T) {
	now := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), ResetCutoff(now))
}

func TestParseUsageType(t *testing.T) {
	u, ok := ParseUsageType("invoice-upload")
	assert.True(t, ok)
	assert.Equal(t, UsageTypeInvoiceUpload, u)

	_, ok = ParseUsageType("uploads")
	assert.False(t, ok)
}
