package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ford-at-home/ecko/internal/apperr"
	"github.com/ford-at-home/ecko/internal/auth"
)

// Injected key type to avoid context collisions
type contextKey string

const identityContextKey = contextKey("identity")

// IdentityFromContext returns the verified caller identity attached by
// AuthMiddleware, or nil when the request never passed through it.
func IdentityFromContext(ctx context.Context) *auth.Identity {
	identity, _ := ctx.Value(identityContextKey).(*auth.Identity)
	return identity
}

// writeAuthError writes a rejection in the uniform error envelope. The
// handler package owns the general error translation; rejections issued here
// happen before any handler runs and need a local writer.
func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]map[string]string{
		"error": {
			"kind":    string(apperr.KindUnauthenticated),
			"message": message,
		},
	})
}

// AuthMiddleware is the access guard: it extracts the bearer credential,
// verifies it, and attaches the resolved identity to the request context. No
// handler logic runs for a request it rejects. A malformed Authorization
// header is treated the same as a missing one.
func AuthMiddleware(verifier auth.Verifier, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Debug().Str("path", r.URL.Path).Msg("Authorization header missing")
				writeAuthError(w, http.StatusForbidden, "Not authenticated")
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
				logger.Debug().Str("path", r.URL.Path).Msg("Malformed authorization header")
				writeAuthError(w, http.StatusForbidden, "Not authenticated")
				return
			}

			identity, err := verifier.Verify(r.Context(), parts[1])
			if err != nil {
				logger.Debug().Err(err).Str("path", r.URL.Path).Msg("Token verification failed")
				writeAuthError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), identityContextKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ContextWithIdentity attaches an identity directly, for handler tests that
// bypass the HTTP middleware.
func ContextWithIdentity(ctx context.Context, identity *auth.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}
