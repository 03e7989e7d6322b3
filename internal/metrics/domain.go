package metrics

// QuotaChecked records the outcome of one quota consume.
func QuotaChecked(usageType, result string) {
	QuotaChecksTotal.WithLabelValues(usageType, result).Inc()
}

// CouponRedeemed records the outcome of one redemption attempt.
func CouponRedeemed(result string) {
	CouponRedemptionsTotal.WithLabelValues(result).Inc()
}

// PlanTransitioned records a tier change.
func PlanTransitioned(from, to string) {
	PlanTransitionsTotal.WithLabelValues(from, to).Inc()
}

// FeedbackSubmitted records the outcome of one public submission.
func FeedbackSubmitted(result string) {
	FeedbackSubmissionsTotal.WithLabelValues(result).Inc()
}

// AICall records an AI request with its token usage.
func AICall(status string, inputTokens, outputTokens, costCents int) {
	AIAPICalls.WithLabelValues(status).Inc()
	if inputTokens > 0 {
		AITokensTotal.WithLabelValues("input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		AITokensTotal.WithLabelValues("output").Add(float64(outputTokens))
	}
	if costCents > 0 {
		AICostCentsTotal.Add(float64(costCents))
	}
}

// PlansObserved publishes one tier row of the reconciliation report.
func PlansObserved(tier string, active, expired int64) {
	Plans.WithLabelValues(tier, "active").Set(float64(active))
	Plans.WithLabelValues(tier, "expired").Set(float64(expired))
}
