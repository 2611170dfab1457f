package api

import (
	"net/http"

	"github.com/seantiz/taskflow/internal/backend"
)

type policiesResponse struct {
	Active   string               `json:"active"`
	Policies []backend.PolicyInfo `json:"policies"`
}

func (s *Server) handleListPolicies(w http.ResponseWriter, _ *http.Request) {
	policies := []backend.PolicyInfo{}
	if s.policies != nil {
		policies = s.policies.List()
	}
	s.writeJSON(w, http.StatusOK, policiesResponse{
		Active:   s.activePolicy,
		Policies: policies,
	})
}
