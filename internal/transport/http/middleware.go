package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/SerLarMan/practica-final-backend/internal/auth"
	"github.com/SerLarMan/practica-final-backend/internal/service/bookings"
)

type ctxKey string

const ctxActor ctxKey = "actor"

// RequireAuth resolves the bearer token into an Actor. The engine trusts the
// identity collaborator's signature; it does not manage users itself.
func RequireAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			if !strings.HasPrefix(authz, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "missing bearer token", CodeUnauthorized)
				return
			}
			claims, err := auth.Parse(strings.TrimPrefix(authz, "Bearer "), secret)
			if err != nil || claims.Subject == "" {
				writeError(w, http.StatusUnauthorized, "invalid token", CodeUnauthorized)
				return
			}
			actor := bookings.Actor{ID: claims.Subject, Admin: claims.Admin()}
			ctx := context.WithValue(r.Context(), ctxActor, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func actorFrom(r *http.Request) (bookings.Actor, bool) {
	actor, ok := r.Context().Value(ctxActor).(bookings.Actor)
	return actor, ok
}
