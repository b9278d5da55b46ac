package handler

import (
	"net/http"
)

// RefreshShips handles POST /api/ships/refresh.
// It re-fetches the ship dictionary from upstream. On failure the previous
// dictionary stays in use and the response is 502.
func (s *Server) RefreshShips(w http.ResponseWriter, r *http.Request) {
	if err := s.ships.Refresh(r.Context()); err != nil {
		s.logger.WarnContext(r.Context(), "ship dictionary refresh failed", "error", err)
		writeError(w, http.StatusBadGateway, "upstream_unavailable", "ship dictionary could not be fetched")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

// InvalidateShips handles DELETE /api/ships/cache.
// The next run reloads the dictionary from upstream.
func (s *Server) InvalidateShips(w http.ResponseWriter, r *http.Request) {
	if err := s.ships.Invalidate(r.Context()); err != nil {
		s.serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
