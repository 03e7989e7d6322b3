package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Provider generates improvement suggestions from customer feedback.
type Provider interface {
	// SuggestImprovements summarises recent feedback and proposes concrete
	// improvements for the business.
	SuggestImprovements(ctx context.Context, params SuggestParams) (*Suggestions, error)
}

// FeedbackSample is one anonymous submission passed to the model.
type FeedbackSample struct {
	Satisfaction     int
	Communication    int
	QualityOfService int
	ValueForMoney    int
	Recommend        int
	OverAll          int
	Comment          string
	SubmittedAt      time.Time
}

// SuggestParams contains the input for a suggestion request
type SuggestParams struct {
	BusinessID   uuid.UUID        // Business ID for tracking
	BusinessName string           // Used to address the business in the summary
	Feedback     []FeedbackSample // Most recent first
}

// Suggestions is the model output for one request
type Suggestions struct {
	Summary     string    // Short narrative over the feedback
	Strengths   []string  // What customers consistently praise
	Suggestions []string  // Actionable improvements, most important first
	Usage       UsageInfo // Token usage and cost information
}

// UsageInfo tracks API usage for billing and monitoring
type UsageInfo struct {
	Model        string        // AI model used
	InputTokens  int           // Tokens in the request
	OutputTokens int           // Tokens in the response
	CostCents    int           // Estimated cost in cents
	Duration     time.Duration // Request duration
}

// ProviderConfig contains common configuration for AI providers
type ProviderConfig struct {
	MaxRetries     int           // Maximum retry attempts for transient errors
	RetryBaseDelay time.Duration // Base delay for exponential backoff
	RequestTimeout time.Duration // Timeout for individual requests
}

// Error codes for AI provider operations
var (
	// EAIRateLimit indicates the API rate limit has been exceeded
	EAIRateLimit = errors.New("ai provider rate limit exceeded")

	// EAIInvalidRequest indicates the request was rejected as malformed
	EAIInvalidRequest = errors.New("ai request rejected as invalid")

	// EAINoFeedback indicates there was nothing to summarise
	EAINoFeedback = errors.New("no feedback to analyze")

	// EAITimeout indicates the request timed out
	EAITimeout = errors.New("ai request timed out")

	// EAIUnavailable indicates the AI service is temporarily unavailable
	EAIUnavailable = errors.New("ai service temporarily unavailable")

	// EAIUnauthorized indicates invalid API credentials
	EAIUnauthorized = errors.New("ai provider authentication failed")
)

// IsRetryable returns true if the error is a transient error that can be retried
func IsRetryable(err error) bool {
	return errors.Is(err, EAIRateLimit) ||
		errors.Is(err, EAITimeout) ||
		errors.Is(err, EAIUnavailable)
}

// WrapError wraps an error with context about the AI operation
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("ai %s: %w", operation, err)
}
