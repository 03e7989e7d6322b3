package mock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/DukeRupert/rateflow/internal/ai"
)

// Provider is a mock AI provider for testing and development
type Provider struct {
	logger *slog.Logger

	mu sync.Mutex

	// Configurable responses for testing
	SuggestResponse *ai.Suggestions
	SuggestError    error

	// Call tracking for testing
	SuggestCalls int
	LastParams   ai.SuggestParams
}

var _ ai.Provider = (*Provider)(nil)

// New creates a new mock AI provider
func New(logger *slog.Logger) *Provider {
	return &Provider{
		logger: logger,
	}
}

// SuggestImprovements returns a canned response derived from the input
func (p *Provider) SuggestImprovements(ctx context.Context, params ai.SuggestParams) (*ai.Suggestions, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.SuggestCalls++
	p.LastParams = params

	if p.SuggestError != nil {
		return nil, p.SuggestError
	}
	if p.SuggestResponse != nil {
		return p.SuggestResponse, nil
	}
	if len(params.Feedback) == 0 {
		return nil, ai.WrapError("suggest improvements", ai.EAINoFeedback)
	}

	var total int
	for _, f := range params.Feedback {
		total += f.OverAll
	}
	avg := float64(total) / float64(len(params.Feedback))

	if p.logger != nil {
		p.logger.Debug("mock AI suggestions", "business_id", params.BusinessID, "feedback_count", len(params.Feedback))
	}

	return &ai.Suggestions{
		Summary: fmt.Sprintf("%s received %d review(s) with an average overall score of %.1f.",
			params.BusinessName, len(params.Feedback), avg),
		Strengths: []string{"Customers describe the service as reliable"},
		Suggestions: []string{
			"Follow up with customers within two days of each invoice",
			"Share clearer pricing before work begins",
		},
		Usage: ai.UsageInfo{
			Model:        "mock-ai-v1",
			InputTokens:  400,
			OutputTokens: 120,
			Duration:     50 * time.Millisecond,
		},
	}, nil
}

// Calls returns the number of calls made so far.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.SuggestCalls
}

// Reset clears call tracking and configured responses.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SuggestResponse = nil
	p.SuggestError = nil
	p.SuggestCalls = 0
	p.LastParams = ai.SuggestParams{}
}
