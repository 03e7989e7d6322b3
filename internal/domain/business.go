// Package domain contains core business types and interfaces.
//
// This file defines the Business account and its subscription plan. The plan
// tier is a closed set; every switch over it must handle all three values.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PlanTier is the subscription tier of a business.
type PlanTier string

const (
	PlanTierFree     PlanTier = "free"
	PlanTierProTrial PlanTier = "pro-trial"
	PlanTierPro      PlanTier = "pro"
)

const (
	// ProTrialDuration is the length of the one-time Pro trial.
	ProTrialDuration = 7 * 24 * time.Hour

	// ProPlanDuration is the length of a paid Pro period.
	ProPlanDuration = 30 * 24 * time.Hour
)

// ParsePlanTier converts a stored tier string into a PlanTier.
func ParsePlanTier(s string) (PlanTier, error) {
	switch PlanTier(s) {
	case PlanTierFree, PlanTierProTrial, PlanTierPro:
		return PlanTier(s), nil
	default:
		return "", fmt.Errorf("unknown plan tier %q", s)
	}
}

func (t PlanTier) String() string {
	return string(t)
}

// IsValid returns true if the tier is one of the known tiers.
func (t PlanTier) IsValid() bool {
	_, err := ParsePlanTier(string(t))
	return err == nil
}

// Plan is the subscription state stored on a business.
type Plan struct {
	Tier      PlanTier
	StartDate *time.Time
	EndDate   *time.Time
}

// ResolvedPlan is a plan evaluated at a specific instant.
type ResolvedPlan struct {
	Tier          PlanTier // Stored tier
	EffectiveTier PlanTier // Free once a paid or trial period has lapsed
	IsActive      bool
	DailyLimit    int // Invoice upload ceiling per rolling window
	EndDate       *time.Time
}

// ResolvePlan evaluates plan at now. It has no side effects; expired plans are
// degraded here rather than by a background sweep.
func ResolvePlan(plan Plan, now time.Time) ResolvedPlan {
	var active bool
	switch plan.Tier {
	case PlanTierFree:
		active = true
	case PlanTierProTrial, PlanTierPro:
		active = plan.EndDate != nil && plan.EndDate.After(now)
	default:
		panic(fmt.Sprintf("domain: unhandled plan tier %q", plan.Tier))
	}

	effective := plan.Tier
	if !active {
		effective = PlanTierFree
	}

	resolved := ResolvedPlan{
		Tier:          plan.Tier,
		EffectiveTier: effective,
		IsActive:      active,
		EndDate:       plan.EndDate,
	}
	resolved.DailyLimit = resolved.LimitFor(UsageTypeInvoiceUpload)
	return resolved
}

// IsActivePro reports whether a paid Pro period is currently running. This is
// the only check used to reject trials and repeat purchases.
func (p ResolvedPlan) IsActivePro() bool {
	return p.Tier == PlanTierPro && p.IsActive
}

// LimitFor returns the rolling daily ceiling for a usage type.
//
// Invoice uploads get the raised ceiling only on an active paid plan; a trial
// keeps the free ceiling for uploads but unlocks the insight allowance.
func (p ResolvedPlan) LimitFor(usageType UsageType) int {
	switch usageType {
	case UsageTypeInvoiceUpload:
		if p.IsActivePro() {
			return ProDailyUploadLimit
		}
		return FreeDailyUploadLimit
	case UsageTypeAIInsight:
		switch p.EffectiveTier {
		case PlanTierPro, PlanTierProTrial:
			return ProDailyInsightLimit
		case PlanTierFree:
			return FreeDailyInsightLimit
		default:
			panic(fmt.Sprintf("domain: unhandled plan tier %q", p.EffectiveTier))
		}
	default:
		panic(fmt.Sprintf("domain: unhandled usage type %q", usageType))
	}
}

// Business is one account issuing invoices and receiving feedback.
type Business struct {
	ID            uuid.UUID
	Subject       string // Identity reference from the external identity provider
	Username      string // Public handle used in feedback links
	Name          string
	Email         string
	EmailVerified bool
	TaxID         string
	TaxIDVerified bool
	LogoKey       string
	Plan          Plan
	ProTrialUsed  bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasLogo returns true if a logo has been uploaded.
func (b *Business) HasLogo() bool {
	return b.LogoKey != ""
}

// PlanStatus is the plan view returned to the owner of a business.
type PlanStatus struct {
	Tier          PlanTier   `json:"tier"`
	EffectiveTier PlanTier   `json:"effectiveTier"`
	IsActive      bool       `json:"isActive"`
	StartDate     *time.Time `json:"startDate"`
	EndDate       *time.Time `json:"endDate"`
	ProTrialUsed  bool       `json:"proTrialUsed"`
	DailyLimit    int        `json:"dailyLimit"`
}

// UpdateProfileParams contains the editable profile fields of a business.
type UpdateProfileParams struct {
	BusinessID uuid.UUID
	Name       string
	Email      string
}
