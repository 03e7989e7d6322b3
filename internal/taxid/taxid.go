// Package taxid verifies business tax registration numbers against an
// external registry API.
package taxid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultTimeout bounds one registry request.
const DefaultTimeout = 10 * time.Second

var (
	// ErrMalformed is returned before any request for input that cannot be a tax ID.
	ErrMalformed = errors.New("taxid: malformed tax id")

	// ErrNotConfigured is returned when no registry URL is set.
	ErrNotConfigured = errors.New("taxid: registry not configured")
)

var taxIDPattern = regexp.MustCompile(`^[A-Z0-9]{5,20}$`)

// Result is the registry answer for one tax ID.
type Result struct {
	TaxID      string `json:"taxId"`
	Valid      bool   `json:"valid"`
	LegalName  string `json:"legalName,omitempty"`
	Registered string `json:"registeredAt,omitempty"`
}

// Verifier checks a tax ID.
type Verifier interface {
	Verify(ctx context.Context, taxID string) (*Result, error)
}

// Normalize strips separators and uppercases.
func Normalize(taxID string) string {
	r := strings.NewReplacer(" ", "", "-", "", ".", "", "/", "")
	return strings.ToUpper(r.Replace(strings.TrimSpace(taxID)))
}

// Config configures Client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration

	// Attempts bounds tries per Verify on network errors and 5xx.
	// Defaults to 3.
	Attempts int

	// RetryDelay is the first backoff interval. Defaults to 200ms.
	RetryDelay time.Duration
}

// Client is the HTTP registry client.
type Client struct {
	baseURL    string
	apiKey     string
	client     *http.Client
	attempts   int
	retryDelay time.Duration
}

// NewClient creates a registry client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = 3
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = 200 * time.Millisecond
	}
	return &Client{
		baseURL:    strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		client:     &http.Client{Timeout: timeout},
		attempts:   attempts,
		retryDelay: delay,
	}
}

// Verify calls GET {base}/v1/tax-ids/{id}. A 404 is a definite "not valid"
// answer; other non-2xx statuses are errors.
func (c *Client) Verify(ctx context.Context, taxID string) (*Result, error) {
	id := Normalize(taxID)
	if !taxIDPattern.MatchString(id) {
		return nil, ErrMalformed
	}
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryDelay
	policy.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.attempts-1)), ctx)

	var out *Result
	err := backoff.Retry(func() error {
		var err error
		out, err = c.lookup(ctx, id)
		return err
	}, b)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// lookup performs one registry request. Errors worth retrying are returned
// as-is; everything else is wrapped in backoff.Permanent.
func (c *Client) lookup(ctx context.Context, id string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/tax-ids/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("taxid: request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &Result{TaxID: id, Valid: false}, nil
	case resp.StatusCode >= http.StatusInternalServerError:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("taxid: registry returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	case resp.StatusCode >= http.StatusBadRequest:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, backoff.Permanent(fmt.Errorf("taxid: registry returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var out Result
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("taxid: decode response: %w", err))
	}
	if out.TaxID == "" {
		out.TaxID = id
	}
	return &out, nil
}
