package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

const (
	MinRating = 1
	MaxRating = 5

	// MaxFeedbackCommentLength bounds the free-text comment.
	MaxFeedbackCommentLength = 2000
)

// Ratings holds the per-dimension scores of one submission.
type Ratings struct {
	Satisfaction     int `json:"satisfaction"`
	Communication    int `json:"communication"`
	QualityOfService int `json:"qualityOfService"`
	ValueForMoney    int `json:"valueForMoney"`
	Recommend        int `json:"recommend"`
	OverAll          int `json:"overAll"`
}

// Validate checks every rating is within the scale. A zero OverAll is filled
// with the rounded mean of the other five.
func (r *Ratings) Validate(op string) error {
	fields := []struct {
		name  string
		value int
	}{
		{"satisfaction", r.Satisfaction},
		{"communication", r.Communication},
		{"qualityOfService", r.QualityOfService},
		{"valueForMoney", r.ValueForMoney},
		{"recommend", r.Recommend},
	}
	sum := 0
	for _, f := range fields {
		if !validRating(f.value) {
			return InvalidRating(op, f.name)
		}
		sum += f.value
	}

	if r.OverAll == 0 {
		r.OverAll = int(math.Round(float64(sum) / float64(len(fields))))
	}
	if !validRating(r.OverAll) {
		return InvalidRating(op, "overAll")
	}
	return nil
}

func validRating(v int) bool {
	return v >= MinRating && v <= MaxRating
}

// Feedback is an immutable anonymous rating tied to one invoice.
type Feedback struct {
	ID         uuid.UUID `json:"id"`
	BusinessID uuid.UUID `json:"businessId"`
	InvoiceID  uuid.UUID `json:"invoiceId"`
	Ratings    Ratings   `json:"ratings"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// SubmitFeedbackParams contains a public feedback submission.
type SubmitFeedbackParams struct {
	Username      string
	InvoiceNumber string
	CouponCode    string
	Ratings       Ratings
	Comment       string
}

// RatingSummary aggregates all feedback for a business.
type RatingSummary struct {
	Count            int64        `json:"count"`
	Satisfaction     float64      `json:"satisfaction"`
	Communication    float64      `json:"communication"`
	QualityOfService float64      `json:"qualityOfService"`
	ValueForMoney    float64      `json:"valueForMoney"`
	Recommend        float64      `json:"recommend"`
	OverAll          float64      `json:"overAll"`
	Trend            []TrendPoint `json:"trend"`
}

// TrendPoint is one day of the rolling trend.
type TrendPoint struct {
	Day     time.Time `json:"day"`
	Count   int64     `json:"count"`
	OverAll float64   `json:"overAll"`
}

// SummaryTrendDays is how far back the trend reaches.
const SummaryTrendDays = 30

// RoundAverage rounds an average to two decimals for display.
func RoundAverage(v float64) float64 {
	return math.Round(v*100) / 100
}

// FeedbackEntry is a feedback row with the invoice it rates.
type FeedbackEntry struct {
	Feedback
	InvoiceNumber string `json:"invoiceNumber"`
	CustomerName  string `json:"customerName"`
}

// ListFeedbackResult is a page of feedback, newest first.
type ListFeedbackResult struct {
	Entries    []FeedbackEntry `json:"entries"`
	TotalCount int64           `json:"totalCount"`
	Limit      int32           `json:"limit"`
	Offset     int32           `json:"offset"`
}
