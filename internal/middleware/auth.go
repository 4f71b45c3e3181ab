// Package middleware holds the HTTP middleware chain.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"margin/internal/auth"
	"margin/internal/httputil"
)

// AuthOptions configures Auth.
type AuthOptions struct {
	// Disabled skips token checks and runs every request as DevUserID.
	// Only honored outside production (see config.Load).
	Disabled  bool
	DevUserID string
	// PublicPaths are served without authentication
	PublicPaths []string
}

// Auth validates the bearer token and puts the caller's identity in the
// request context.
func Auth(verifier auth.JWTVerifier, opts AuthOptions, logger *slog.Logger) func(http.Handler) http.Handler {
	public := make(map[string]bool, len(opts.PublicPaths))
	for _, p := range opts.PublicPaths {
		public[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || public[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			if opts.Disabled {
				next.ServeHTTP(w, httputil.WithIdentity(r, opts.DevUserID, ""))
				return
			}

			token, ok := bearerToken(r)
			if !ok {
				httputil.RespondError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			claims, err := verifier.VerifyToken(token)
			if err != nil {
				logger.Debug("authentication failed", "path", r.URL.Path, "error", err)
				httputil.RespondError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, httputil.WithIdentity(r, claims.GetUserID(), claims.Email))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
