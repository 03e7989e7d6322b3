// Package handler contains the JSON HTTP handlers for rateflow.
//
// Every response, success or failure, uses the same envelope:
//
//	{"success": bool, "message": string, "data": any, "code": string, "reason": string}
//
// code and reason are only present on errors.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/DukeRupert/rateflow/internal/domain"
)

// maxJSONBody caps JSON request bodies.
const maxJSONBody = 1 << 20

// Envelope is the response body of every API route.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Code    string `json:"code,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// SuccessResponse writes a successful envelope.
func SuccessResponse(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, Envelope{Success: true, Message: message, Data: data})
}

// decodeJSON reads a JSON body into v. Unknown fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return domain.Errorf(domain.ETOOLARGE, "", "Request body is too large")
		case errors.Is(err, io.EOF):
			return domain.Invalid("", "Request body is required")
		default:
			return domain.Invalid("", "Request body is not valid JSON")
		}
	}
	return nil
}

// pageParams reads limit and offset from the query string. Bad values are
// treated as absent and the services clamp the rest.
func pageParams(r *http.Request) (limit, offset int32) {
	q := r.URL.Query()
	if v, err := strconv.ParseInt(q.Get("limit"), 10, 32); err == nil {
		limit = int32(v)
	}
	if v, err := strconv.ParseInt(q.Get("offset"), 10, 32); err == nil {
		offset = int32(v)
	}
	return limit, offset
}
