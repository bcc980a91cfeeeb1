package server

import (
	"encoding/json"
	"net/http"

	"github.com/charmbracelet/log"

	"globalblock/internal/api/dto"
	"globalblock/internal/auth"
	"globalblock/internal/status"
)

func (s *Server) locallyDisable(w http.ResponseWriter, r *http.Request) {
	performerID, authErr := auth.AccountIDFromRequest(r)
	if authErr != nil {
		writeError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var cmd dto.LocalStatusCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	outcome, err := s.localStatus.LocallyDisableBlock(r.Context(), cmd.Target, cmd.Reason, performerID)
	if err != nil {
		log.Error("local disable failed", "error", err.Error(), "target", cmd.Target)
		writeStatus(w, status.Failure(status.CodeInternalError))
		return
	}

	writeStatus(w, outcome)
}

func (s *Server) locallyEnable(w http.ResponseWriter, r *http.Request) {
	performerID, authErr := auth.AccountIDFromRequest(r)
	if authErr != nil {
		writeError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var cmd dto.LocalStatusCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	outcome, err := s.localStatus.LocallyEnableBlock(r.Context(), cmd.Target, cmd.Reason, performerID)
	if err != nil {
		log.Error("local enable failed", "error", err.Error(), "target", cmd.Target)
		writeStatus(w, status.Failure(status.CodeInternalError))
		return
	}

	writeStatus(w, outcome)
}
