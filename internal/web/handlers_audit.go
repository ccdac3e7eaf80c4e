package web

import (
	"net/http"
)

// handleAuditLog lists import batch summaries newest first. Supports
// limit/offset query parameters for paging.
func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", 50)
	if limit > 500 {
		limit = 500
	}
	offset := parseIntParam(r, "offset", 0)

	entries, err := s.audit.List(r.Context(), limit, offset)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"entries": entries,
		"limit":   limit,
		"offset":  offset,
	})
}
