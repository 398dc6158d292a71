package http

import (
	"net/http"
	"strings"

	"flujo/internal/core"
	"flujo/internal/storage"
)

func (s *Server) handleListOccurrences(w http.ResponseWriter, r *http.Request) {
	var f storage.OccurrenceFilter

	if v := strings.TrimSpace(r.URL.Query().Get("direction")); v != "" {
		direction, err := core.ParseDirection(v)
		if err != nil {
			respondError(w, r, err)
			return
		}
		f.Direction = direction
	}
	if v := strings.TrimSpace(r.URL.Query().Get("status")); v != "" {
		status, err := core.ParseStatus(v)
		if err != nil {
			respondError(w, r, err)
			return
		}
		f.Status = status
	}

	occurrences, err := s.ledger.List(r.Context(), f)
	if err != nil {
		respondError(w, r, err)
		return
	}

	out := make([]occurrenceJSON, 0, len(occurrences))
	for _, o := range occurrences {
		out = append(out, toOccurrenceJSON(o))
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	t, err := s.ledger.Confirm(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toTransactionJSON(t))
}

func (s *Server) handleReschedule(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DueDate string `json:"dueDate"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	newDueDate, err := core.ParseDate(req.DueDate)
	if err != nil {
		respondError(w, r, &core.ValidationError{Field: "dueDate", Reason: "must be YYYY-MM-DD"})
		return
	}

	occ, err := s.ledger.Reschedule(r.Context(), r.PathValue("id"), newDueDate)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toOccurrenceJSON(occ))
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.Cancel(r.Context(), r.PathValue("id")); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
