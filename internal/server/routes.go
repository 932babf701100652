package server

import (
	"net/http"
	"strings"

	"github.com/ternarybob/prospector/internal/common"
	"github.com/ternarybob/prospector/internal/handlers"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.healthHandler)

	// Job API
	mux.HandleFunc("/api/jobs", s.handleJobsCollection) // POST (create), GET (list)
	mux.HandleFunc("/api/jobs/", s.handleJobRoutes)     // {id}, {id}/run, {id}/retry, {id}/results, {id}/ws

	return mux
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	handlers.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": common.GetVersion(),
	})
}

func (s *Server) handleJobsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.app.JobHandler.CreateJobHandler(w, r)
	case http.MethodGet:
		s.app.JobHandler.ListJobsHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleJobRoutes dispatches /api/jobs/{id}[/action]
func (s *Server) handleJobRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/jobs/"), "/")
	if rest == "" {
		handlers.WriteError(w, http.StatusBadRequest, "job id is required")
		return
	}

	parts := strings.Split(rest, "/")
	jobID := parts[0]
	action := ""
	if len(parts) > 1 {
		action = parts[1]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.app.JobHandler.GetJobHandler(w, r, jobID)
	case action == "" && r.Method == http.MethodPatch:
		s.app.JobHandler.UpdateJobHandler(w, r, jobID)
	case action == "" && r.Method == http.MethodDelete:
		s.app.JobHandler.DeleteJobHandler(w, r, jobID)
	case action == "run" && r.Method == http.MethodPost:
		s.app.JobHandler.RunJobHandler(w, r, jobID)
	case action == "retry" && r.Method == http.MethodPost:
		s.app.JobHandler.RetryJobHandler(w, r, jobID)
	case action == "results":
		s.app.ResultsHandler.ListResultsHandler(w, r, jobID)
	case action == "ws":
		s.app.WSHandler.HandleProgress(w, r, jobID)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}
