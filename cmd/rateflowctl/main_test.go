package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/DukeRupert/rateflow/internal/domain"
	"github.com/DukeRupert/rateflow/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReport_ListsEveryTier(t *testing.T) {
	report := &scheduler.Report{
		GeneratedAt: time.Date(2026, 5, 1, 3, 30, 0, 0, time.UTC),
		Tiers: []scheduler.TierCount{
			{Tier: domain.PlanTierFree, Active: 12},
			{Tier: domain.PlanTierPro, Active: 4, Expired: 2},
		},
	}

	var out bytes.Buffer
	require.NoError(t, writeReport(&out, report))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, []string{"free", "12", "0", "12"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"pro-trial", "0", "0", "0"}, strings.Fields(lines[2]))
	assert.Equal(t, []string{"pro", "4", "2", "6"}, strings.Fields(lines[3]))
	assert.Equal(t, "Generated 2026-05-01T03:30:00Z", lines[4])
}

func TestWriteUsage(t *testing.T) {
	hours := 6
	snaps := []domain.UsageSnapshot{
		{UsageType: domain.UsageTypeInvoiceUpload, DailyCount: 3, DailyLimit: 3, LastReset: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), TimeLeftHours: &hours},
		{UsageType: domain.UsageTypeAIInsight, DailyCount: 0, DailyLimit: 1, LastReset: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)},
	}

	var out bytes.Buffer
	require.NoError(t, writeUsage(&out, snaps))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"invoice-upload", "3", "3", "2026-05-01T00:00:00Z", "6h"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{string(domain.UsageTypeAIInsight), "0", "1", "2026-05-01T00:00:00Z", "-"}, strings.Fields(lines[2]))
}

func TestRootCmd_Commands(t *testing.T) {
	root := newRootCmd()

	for _, path := range [][]string{
		{"migrate", "up"},
		{"migrate", "status"},
		{"plans", "report"},
		{"quota", "show"},
		{"maintenance", "prune"},
		{"maintenance", "purge-codes"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestQuotaShow_RejectsBadBusinessID(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"quota", "show", "--business", "acme"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --business")
}
