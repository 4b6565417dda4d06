package api

import "net/http"

// handleStats returns aggregate task counts. Responses come from a
// short-lived cache that write handlers invalidate.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.stats.Stats(r.Context())
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	s.jsonResponse(w, stats)
}
