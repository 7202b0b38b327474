package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/aretw0/espalier/pkg/domain"
)

// errBadRequest marks malformed client input.
var errBadRequest = errors.New("bad request")

func badRequest(err error) error {
	return fmt.Errorf("%w: %w", errBadRequest, err)
}

func decodeBody(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return badRequest(fmt.Errorf("invalid request body: %w", err))
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error          string  `json:"error"`
	ActualSequence *uint64 `json:"actual_sequence,omitempty"`
}

// writeError maps the engine's error taxonomy onto HTTP statuses.
// Conflict responses carry the store's actual sequence so the editor can
// rebase and tell the user "this was edited elsewhere".
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := errorResponse{Error: err.Error()}

	var status int
	switch {
	case errors.Is(err, domain.ErrValidationFailed):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrTemplateNotFound), errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
		var cerr *domain.ConflictError
		if errors.As(err, &cerr) {
			resp.ActualSequence = &cerr.Actual
		}
	case errors.Is(err, domain.ErrStorageUnavailable):
		status = http.StatusServiceUnavailable
		resp.Error = "storage temporarily unavailable, try again"
		s.logger.ErrorContext(r.Context(), "storage unavailable", "path", r.URL.Path, "err", err)
	default:
		status = http.StatusInternalServerError
		resp.Error = "internal error"
		s.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "err", err)
	}

	writeJSON(w, status, resp)
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func splitFlag(pair string) (key, value string, ok bool) {
	key, value, ok = strings.Cut(pair, ":")
	if !ok || key == "" {
		return "", "", false
	}
	return key, value, true
}
