package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"trialgate/pkg/requestcontext"
)

// IdentityResolver turns a bearer token into a resolved actor identity. The
// identity service is the single source of truth for role and site scope;
// nothing downstream re-derives either.
type IdentityResolver interface {
	ResolveToken(token string) (requestcontext.Identity, error)
}

// RequireAuth validates the bearer token and stores the resolved identity in
// the request context. Requests without a valid token never reach handlers.
func RequireAuth(resolver IdentityResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				writeUnauthorized(w)
				return
			}
			ident, err := resolver.ResolveToken(token)
			if err != nil {
				logger.WarnContext(r.Context(), "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(r.Context()),
				)
				writeUnauthorized(w)
				return
			}
			ctx := requestcontext.WithIdentity(r.Context(), ident)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthenticated","error_description":"Invalid or expired token"}`))
}
