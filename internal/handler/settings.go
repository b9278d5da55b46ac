package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pkordes/cruise-price-tracker/internal/config"
)

// GetSettings handles GET /api/settings.
func (s *Server) GetSettings(w http.ResponseWriter, r *http.Request) {
	f, err := s.settings.Get(r.Context())
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// PutSettings handles PUT /api/settings. The body is the full tracker
// document; it is validated and saved, and the stored document is returned.
func (s *Server) PutSettings(w http.ResponseWriter, r *http.Request) {
	var f config.TrackerFile
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", "request body too large")
			return
		}
		requestError(w, "request body must be a tracker settings document: "+err.Error())
		return
	}

	saved, err := s.settings.Save(r.Context(), f)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}
