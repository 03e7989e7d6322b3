package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/rateflow/internal/domain"
	"github.com/DukeRupert/rateflow/internal/handler"
)

// MetricsAuthMiddleware guards the Prometheus endpoint with HTTP basic auth.
// With no credentials configured it is a pass-through, which is how local
// development runs.
type MetricsAuthMiddleware struct {
	username []byte
	password []byte
	enabled  bool
	logger   *slog.Logger
}

func NewMetricsAuthMiddleware(username, password string, logger *slog.Logger) *MetricsAuthMiddleware {
	return &MetricsAuthMiddleware{
		username: []byte(username),
		password: []byte(password),
		enabled:  username != "" || password != "",
		logger:   logger,
	}
}

// Handler rejects scrapes without matching credentials using the standard
// JSON error envelope plus a WWW-Authenticate challenge.
func (m *MetricsAuthMiddleware) Handler(next http.Handler) http.Handler {
	if !m.enabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if ok && m.matches(user, pass) {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("WWW-Authenticate", `Basic realm="rateflow metrics", charset="UTF-8"`)
		handler.ErrorResponse(w, r, m.logger,
			domain.Unauthorized("metrics.auth", "Metrics credentials required"))
	})
}

// matches compares both fields in constant time; neither comparison
// short-circuits the other.
func (m *MetricsAuthMiddleware) matches(user, pass string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(user), m.username)
	passOK := subtle.ConstantTimeCompare([]byte(pass), m.password)
	return userOK&passOK == 1
}
