package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/DukeRupert/rateflow/internal/domain"
	"github.com/DukeRupert/rateflow/internal/repository"
)

// PlanCounter is the query behind the plan report.
type PlanCounter interface {
	CountPlansByTier(ctx context.Context, now time.Time) ([]repository.CountPlansByTierRow, error)
}

// TierCount is one row of the plan report. Free plans never expire.
type TierCount struct {
	Tier    domain.PlanTier `json:"tier"`
	Active  int64           `json:"active"`
	Expired int64           `json:"expired"`
}

// Report is a point-in-time count of plans per tier.
type Report struct {
	GeneratedAt time.Time   `json:"generatedAt"`
	Tiers       []TierCount `json:"tiers"`
}

// BuildReport runs the plan count as of now.
func BuildReport(ctx context.Context, q PlanCounter, now time.Time) (*Report, error) {
	rows, err := q.CountPlansByTier(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("count plans: %w", err)
	}

	report := &Report{GeneratedAt: now, Tiers: make([]TierCount, 0, len(rows))}
	for _, row := range rows {
		report.Tiers = append(report.Tiers, TierCount{
			Tier:    domain.PlanTier(row.PlanTier),
			Active:  row.Active,
			Expired: row.Expired,
		})
	}
	return report, nil
}

func (r *Report) find(tier domain.PlanTier) TierCount {
	for _, row := range r.Tiers {
		if row.Tier == tier {
			return row
		}
	}
	return TierCount{Tier: tier}
}

// Active returns the number of live plans of tier.
func (r *Report) Active(tier domain.PlanTier) int64 { return r.find(tier).Active }

// Expired returns the number of lapsed plans of tier.
func (r *Report) Expired(tier domain.PlanTier) int64 { return r.find(tier).Expired }

// Count returns every plan of tier.
func (r *Report) Count(tier domain.PlanTier) int64 {
	row := r.find(tier)
	return row.Active + row.Expired
}
