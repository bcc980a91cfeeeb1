package server

import (
	"net/http"

	"globalblock/internal/app/version"
	"globalblock/internal/jobs/runtime"
)

func (s *Server) getVersion(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"version": version.Get(),
	}

	if s.redis != nil {
		if instances, err := runtime.CountActiveInstances(r.Context(), s.redis); err == nil {
			payload["activeInstances"] = instances
		}
	}

	writeJSON(w, http.StatusOK, payload)
}
