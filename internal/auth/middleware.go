package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

type contextKey struct{}

var claimsKey contextKey

// ClaimsFromContext returns the verified session claims a middleware put
// on the request context.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	return claims, ok
}

// AccountIDFromRequest is the convenience most handlers want.
func AccountIDFromRequest(r *http.Request) (uint64, error) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		return 0, errors.New("no session on request")
	}
	return claims.AccountID, nil
}

// RequireAuth rejects requests without a valid bearer token and stores the
// claims on the context for the wrapped handler.
func (s *Service) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.extractClaims(r)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}

// RequireCapability additionally demands a capability grant on the token.
func (s *Service) RequireCapability(capability string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := s.extractClaims(r)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			granted := false
			for _, c := range claims.Capabilities {
				if c == capability {
					granted = true
					break
				}
			}
			if !granted {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
		})
	}
}

func (s *Service) extractClaims(r *http.Request) (*Claims, error) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return nil, errors.New("missing or malformed Authorization header")
	}
	return s.VerifyToken(strings.TrimPrefix(authHeader, "Bearer "))
}
