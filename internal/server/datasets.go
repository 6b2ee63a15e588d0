package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListDatasets(w http.ResponseWriter, _ *http.Request) {
	summaries := s.Catalog.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"datasets":     summaries,
		"count":        len(summaries),
		"refreshed_at": s.Catalog.RefreshedAt(),
	})
}

func (s *Server) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	bundle, ok := s.Catalog.Get(name)
	if !ok {
		writeErr(w, http.StatusNotFound, fmt.Errorf("unknown dataset %q", name))
		return
	}
	writeJSON(w, http.StatusOK, bundle)
}
