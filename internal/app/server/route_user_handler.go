package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"

	"globalblock/internal/api/dto"
	"globalblock/internal/auth"
)

func (s *Server) loginUser(w http.ResponseWriter, r *http.Request) {
	var credentials dto.Credentials
	if err := json.NewDecoder(r.Body).Decode(&credentials); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return
	}

	token, err := s.auth.Authenticate(r.Context(), credentials.Username, credentials.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, "Invalid username or password", http.StatusUnauthorized)
			return
		}
		log.Error("login failed", "error", err.Error())
		writeError(w, "Login failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}
