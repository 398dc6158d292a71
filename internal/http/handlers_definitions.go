package http

import (
	"net/http"
)

func (s *Server) handleListDefinitions(w http.ResponseWriter, r *http.Request) {
	defs, err := s.definitions.ListDefinitions(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	out := make([]definitionJSON, 0, len(defs))
	for _, d := range defs {
		out = append(out, toDefinitionJSON(d))
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetDefinition(w http.ResponseWriter, r *http.Request) {
	d, err := s.definitions.GetDefinition(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toDefinitionJSON(d))
}

func (s *Server) handleCreateDefinition(w http.ResponseWriter, r *http.Request) {
	var req definitionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	d, err := req.toDomain()
	if err != nil {
		respondError(w, r, err)
		return
	}

	created, err := s.definitions.CreateDefinition(r.Context(), d)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toDefinitionJSON(created))
}

func (s *Server) handleUpdateDefinition(w http.ResponseWriter, r *http.Request) {
	var req definitionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	d, err := req.toDomain()
	if err != nil {
		respondError(w, r, err)
		return
	}
	d.ID = r.PathValue("id")

	if err := s.definitions.UpdateDefinition(r.Context(), d); err != nil {
		respondError(w, r, err)
		return
	}

	updated, err := s.definitions.GetDefinition(r.Context(), d.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toDefinitionJSON(updated))
}

func (s *Server) handleDeleteDefinition(w http.ResponseWriter, r *http.Request) {
	if err := s.definitions.DeleteDefinition(r.Context(), r.PathValue("id")); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
