package api

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const ownerContextKey contextKey = "owner_id"

// TokenResolver maps a bearer token to an owner identity. The real session
// system lives outside this service; the resolver is the seam it plugs
// into.
type TokenResolver func(token string) (ownerID string, ok bool)

// MapTokenResolver resolves against a static token→owner map.
func MapTokenResolver(tokens map[string]string) TokenResolver {
	return func(token string) (string, bool) {
		owner, ok := tokens[token]
		return owner, ok
	}
}

// BearerAuth rejects requests without a resolvable bearer token and stores
// the owner identity on the request context.
func BearerAuth(resolve TokenResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				respondError(w, http.StatusUnauthorized, "missing or invalid authorization")
				return
			}

			ownerID, ok := resolve(token)
			if !ok {
				respondError(w, http.StatusUnauthorized, "missing or invalid authorization")
				return
			}

			ctx := context.WithValue(r.Context(), ownerContextKey, ownerID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func ownerFromContext(ctx context.Context) string {
	owner, _ := ctx.Value(ownerContextKey).(string)
	return owner
}
