package middleware

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DukeRupert/rateflow/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveMetrics(t *testing.T, mw *MetricsAuthMiddleware, setup func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	h := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# HELP rateflow_quota_checks_total"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	if setup != nil {
		setup(req)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func newMetricsAuth(user, pass string) *MetricsAuthMiddleware {
	return NewMetricsAuthMiddleware(user, pass, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestMetricsAuth_AllowsValidCredentials(t *testing.T) {
	rec := serveMetrics(t, newMetricsAuth("prom", "scrape-secret"), func(r *http.Request) {
		r.SetBasicAuth("prom", "scrape-secret")
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "rateflow_quota_checks_total")
}

func TestMetricsAuth_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*http.Request)
	}{
		{"no credentials", nil},
		{"wrong username", func(r *http.Request) { r.SetBasicAuth("grafana", "scrape-secret") }},
		{"wrong password", func(r *http.Request) { r.SetBasicAuth("prom", "guess") }},
		{"empty credentials", func(r *http.Request) { r.SetBasicAuth("", "") }},
		{"malformed header", func(r *http.Request) { r.Header.Set("Authorization", "Basic notvalidbase64!!!") }},
		{"bearer scheme", func(r *http.Request) { r.Header.Set("Authorization", "Bearer scrape-secret") }},
		{"embedded newline", func(r *http.Request) {
			raw := base64.StdEncoding.EncodeToString([]byte("prom:scrape-secret\r\nX-Injected: 1"))
			r.Header.Set("Authorization", "Basic "+raw)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serveMetrics(t, newMetricsAuth("prom", "scrape-secret"), tt.setup)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, `Basic realm="rateflow metrics", charset="UTF-8"`, rec.Header().Get("WWW-Authenticate"))
			assert.NotContains(t, rec.Body.String(), "rateflow_quota_checks_total")

			var env map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			assert.Equal(t, false, env["success"])
			assert.Equal(t, domain.EUNAUTHORIZED, env["code"])
		})
	}
}

func TestMetricsAuth_DisabledWithoutCredentials(t *testing.T) {
	rec := serveMetrics(t, newMetricsAuth("", ""), nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("WWW-Authenticate"))
}

func TestMetricsAuth_PasswordOnlyStillEnforced(t *testing.T) {
	mw := newMetricsAuth("", "scrape-secret")

	rec := serveMetrics(t, mw, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serveMetrics(t, mw, func(r *http.Request) { r.SetBasicAuth("", "scrape-secret") })
	assert.Equal(t, http.StatusOK, rec.Code)
}
