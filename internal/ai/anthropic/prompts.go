package anthropic

import (
	"fmt"
	"strings"

	"github.com/DukeRupert/rateflow/internal/ai"
)

// buildSuggestionPrompt renders recent feedback into the instruction prompt.
func buildSuggestionPrompt(params ai.SuggestParams) string {
	var b strings.Builder

	fmt.Fprintf(&b, `You are a customer experience consultant reviewing anonymous feedback for a small business called %q.

Each entry below rates the business from 1 (poor) to 5 (excellent) on satisfaction, communication, quality of service, value for money, likelihood to recommend, and an overall score. Some entries include a free-text comment.

Feedback (most recent first):
`, params.BusinessName)

	for i, f := range params.Feedback {
		fmt.Fprintf(&b, "%d. [%s] satisfaction=%d communication=%d quality=%d value=%d recommend=%d overall=%d",
			i+1, f.SubmittedAt.Format("2006-01-02"),
			f.Satisfaction, f.Communication, f.QualityOfService, f.ValueForMoney, f.Recommend, f.OverAll)
		if c := strings.TrimSpace(f.Comment); c != "" {
			fmt.Fprintf(&b, " comment=%q", c)
		}
		b.WriteString("\n")
	}

	b.WriteString(`
**Guidelines:**
- Base every statement on the feedback above; do not invent details
- Prefer patterns that appear in several entries over one-off remarks
- Suggestions must be concrete actions the owner can take this month
- Return at most 5 suggestions and at most 3 strengths

Respond with ONLY a JSON object in this exact format:
{
  "summary": "two or three sentences",
  "strengths": ["..."],
  "suggestions": ["..."]
}`)

	return b.String()
}
