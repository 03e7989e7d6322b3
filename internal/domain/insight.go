package domain

import (
	"time"

	"github.com/google/uuid"
)

// Insight is an AI-generated improvement summary over recent feedback.
type Insight struct {
	ID          uuid.UUID `json:"id"`
	BusinessID  uuid.UUID `json:"businessId"`
	Summary     string    `json:"summary"`
	Strengths   []string  `json:"strengths"`
	Suggestions []string  `json:"suggestions"`
	Model       string    `json:"model"`
	CreatedAt   time.Time `json:"createdAt"`
}

// InsightFeedbackWindow is how many recent submissions feed one insight.
const InsightFeedbackWindow = 50
