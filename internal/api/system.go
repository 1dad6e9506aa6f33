package api

import (
	"net/http"
	"time"
)

// handleHealth returns the server health status. No authentication:
// this endpoint backs container health probes.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"uptime":      int(time.Since(s.startedAt).Seconds()),
		"environment": s.environment,
		"version":     s.version,
	})
}

// handleAutomation is a placeholder for the automation rule engine.
// The dashboard queries it at startup, so it returns an empty list
// rather than a 404.
func (s *Server) handleAutomation(w http.ResponseWriter, _ *http.Request) {
	writeSuccessMessage(w, http.StatusOK, "automation rules are not available yet", []any{})
}
