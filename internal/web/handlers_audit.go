package web

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// handleRecordHistory returns the mutation history of one record, newest
// first. The optional limit query parameter caps the number of entries.
func (s *Server) handleRecordHistory(w http.ResponseWriter, r *http.Request) {
	object := chi.URLParam(r, "object")
	recordID := chi.URLParam(r, "recordID")
	limit := parseIntParam(r, "limit", 0)

	entries, err := s.history.RecordHistory(r.Context(), object, recordID, limit)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"object":   object,
		"recordId": recordID,
		"entries":  entries,
		"count":    len(entries),
	})
}

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
