package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/oapi-codegen/runtime"
)

// RunRequest is the optional JSON body of POST /api/run.
type RunRequest struct {
	Module string `json:"module"`
}

// RunAccepted is the 202 body of POST /api/run.
type RunAccepted struct {
	Status  string `json:"status"`
	Module  string `json:"module"`
	Message string `json:"message"`
}

// PostRun handles POST /api/run.
// The module comes from ?module= or a {"module": ...} body and defaults to
// "all". Returns 202 when the run was queued and 409 when one is already in
// progress.
func (s *Server) PostRun(w http.ResponseWriter, r *http.Request) {
	var module string
	if err := runtime.BindQueryParameter("form", true, false, "module", r.URL.Query(), &module); err != nil {
		requestError(w, "invalid module parameter")
		return
	}
	if module == "" && r.Body != nil {
		var body RunRequest
		err := json.NewDecoder(r.Body).Decode(&body)
		if err != nil && !errors.Is(err, io.EOF) {
			requestError(w, "request body must be JSON")
			return
		}
		module = body.Module
	}
	if module == "" {
		module = "all"
	}

	if err := s.runner.Trigger(r.Context(), module); err != nil {
		s.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, RunAccepted{Status: "queued", Module: module, Message: "Run queued."})
}

// GetRunStatus handles GET /api/run-status.
func (s *Server) GetRunStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.runner.State())
}
