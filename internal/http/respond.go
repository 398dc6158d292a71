package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"flujo/internal/core"
)

type errorJSON struct {
	Error     string `json:"error"`
	Field     string `json:"field,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// respondError maps the domain error taxonomy onto HTTP statuses.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *core.ValidationError
	switch {
	case errors.As(err, &ve):
		respondJSON(w, http.StatusUnprocessableEntity, errorJSON{Error: ve.Reason, Field: ve.Field})
	case errors.Is(err, core.ErrNotFound):
		respondJSON(w, http.StatusNotFound, errorJSON{Error: "not found"})
	case errors.Is(err, core.ErrRateUnavailable):
		respondJSON(w, http.StatusConflict, errorJSON{
			Error:     "exchange rate unavailable, try again later",
			Retryable: true,
		})
	case core.IsConfiguration(err):
		slog.ErrorContext(r.Context(), "Configuration error", "error", err, "path", r.URL.Path)
		respondJSON(w, http.StatusInternalServerError, errorJSON{Error: err.Error()})
	default:
		slog.ErrorContext(r.Context(), "Request failed", "error", err, "path", r.URL.Path)
		respondJSON(w, http.StatusInternalServerError, errorJSON{Error: "internal error"})
	}
}

// decodeJSON parses a request body, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &core.ValidationError{Field: "body", Reason: "malformed JSON: " + err.Error()}
	}
	return nil
}
