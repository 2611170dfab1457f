package api

import (
	"net/http"
	"time"
)

const timeLayout = time.RFC3339

type statusResponse struct {
	Status    string   `json:"status"`
	Timestamp string   `json:"timestamp"`
	Version   string   `json:"version"`
	Data      []string `json:"data"`
}

// handleStatus reports the capabilities currently online at the backend.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	caps, err := s.capabilities.Capabilities(r.Context())
	if err != nil {
		s.logger.Error("list capabilities", "error", err)
		s.writeError(w, http.StatusBadGateway, "backend unavailable")
		return
	}
	if caps == nil {
		caps = []string{}
	}

	s.writeJSON(w, http.StatusOK, statusResponse{
		Status:    "operational",
		Timestamp: time.Now().UTC().Format(timeLayout),
		Version:   Version,
		Data:      caps,
	})
}
