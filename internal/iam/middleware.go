package iam

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/brgyhealth/records-portal/pkg/types"
)

type contextKey string

const actorContextKey contextKey = "actor"

// ActorFromContext returns the authenticated actor stored by the middleware
func ActorFromContext(ctx context.Context) (*types.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey).(*types.Actor)
	return actor, ok
}

// AuthMiddleware resolves the acting user from the Authorization header
// and rejects requests without a valid bearer token.
func (s *Service) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeAuthError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		actor, err := s.VerifyToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			writeAuthError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), actorContextKey, actor)
		ctx = context.WithValue(ctx, "user_id", actor.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole gates a handler to the given roles
func RequireRole(roles ...types.UserRole) func(http.Handler) http.Handler {
	allowed := make(map[types.UserRole]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok || !allowed[actor.Role] {
				writeAuthError(w, http.StatusForbidden, "insufficient role authority")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeAuthError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":  message,
		"status": statusCode,
	})
}
