package handler

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/rateflow/internal/auth"
	"github.com/google/uuid"
)

// requireBusiness returns the bound session, writing a 401 when there is none.
func requireBusiness(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*auth.Session, bool) {
	sess := auth.GetSessionFromRequest(r)
	if !sess.HasBusiness() {
		UnauthorizedResponse(w, r, logger)
		return nil, false
	}
	return sess, true
}

// pathID parses a UUID path value, writing a 404 when it is malformed.
func pathID(w http.ResponseWriter, r *http.Request, logger *slog.Logger, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		NotFoundResponse(w, r, logger)
		return uuid.Nil, false
	}
	return id, true
}
