package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DukeRupert/rateflow/internal/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, url string) *Provider {
	t.Helper()
	p, err := New(Config{
		APIKey:  "test-key",
		BaseURL: url,
		ProviderConfig: ai.ProviderConfig{
			MaxRetries:     3,
			RetryBaseDelay: time.Millisecond,
			RequestTimeout: 5 * time.Second,
		},
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return p
}

func sampleParams() ai.SuggestParams {
	return ai.SuggestParams{
		BusinessName: "Acme Plumbing",
		Feedback: []ai.FeedbackSample{
			{Satisfaction: 4, Communication: 2, QualityOfService: 5, ValueForMoney: 3, Recommend: 4, OverAll: 4, Comment: "Slow replies", SubmittedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		},
	}
}

func writeMessage(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":      "msg_1",
		"type":    "message",
		"role":    "assistant",
		"content": []map[string]string{{"type": "text", "text": text}},
		"usage":   map[string]int{"input_tokens": 500, "output_tokens": 100},
	})
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(Config{}, slog.Default())
	assert.Error(t, err)
}

func TestSuggestImprovements_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, APIVersion, r.Header.Get("anthropic-version"))

		var req apiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 1)
		assert.Contains(t, req.Messages[0].Content[0].Text, "Acme Plumbing")
		assert.Contains(t, req.Messages[0].Content[0].Text, "Slow replies")

		writeMessage(w, "Here you go:\n{\"summary\":\"Good work, slow replies.\",\"strengths\":[\"Quality\"],\"suggestions\":[\"Reply within a day\"]}")
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL)
	got, err := p.SuggestImprovements(context.Background(), sampleParams())
	require.NoError(t, err)

	assert.Equal(t, "Good work, slow replies.", got.Summary)
	assert.Equal(t, []string{"Quality"}, got.Strengths)
	assert.Equal(t, []string{"Reply within a day"}, got.Suggestions)
	assert.Equal(t, 500, got.Usage.InputTokens)
	assert.Equal(t, DefaultModel, got.Usage.Model)
}

func TestSuggestImprovements_NoFeedback(t *testing.T) {
	p := newTestProvider(t, "http://127.0.0.1:0")
	_, err := p.SuggestImprovements(context.Background(), ai.SuggestParams{BusinessName: "x"})
	assert.ErrorIs(t, err, ai.EAINoFeedback)
}

func TestSuggestImprovements_RetriesTransientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeMessage(w, `{"summary":"ok","strengths":[],"suggestions":[]}`)
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL)
	got, err := p.SuggestImprovements(context.Background(), sampleParams())
	require.NoError(t, err)
	assert.Equal(t, "ok", got.Summary)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestSuggestImprovements_GivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL)
	_, err := p.SuggestImprovements(context.Background(), sampleParams())
	assert.ErrorIs(t, err, ai.EAIRateLimit)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestSuggestImprovements_DoesNotRetryAuthErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL)
	_, err := p.SuggestImprovements(context.Background(), sampleParams())
	assert.ErrorIs(t, err, ai.EAIUnauthorized)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestMapHTTPError(t *testing.T) {
	p := &Provider{}
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ai.EAIUnauthorized},
		{http.StatusTooManyRequests, ai.EAIRateLimit},
		{http.StatusRequestTimeout, ai.EAITimeout},
		{http.StatusBadRequest, ai.EAIInvalidRequest},
		{http.StatusBadGateway, ai.EAIUnavailable},
		{529, ai.EAIUnavailable},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := p.mapHTTPError(tt.status, []byte(`{"error":{"message":"nope"}}`))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCalculateCost(t *testing.T) {
	p := &Provider{}
	assert.Equal(t, 0, p.calculateCost(1000, 100))
	assert.Equal(t, 80+400, p.calculateCost(1_000_000, 1_000_000))
}
