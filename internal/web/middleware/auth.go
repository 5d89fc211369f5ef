package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/znz-systems/coldpipe/internal/auth"
)

// RequireToken returns middleware that enforces bearer-token authentication.
// Requests without a valid token get a 401 JSON error.
func RequireToken(svc *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := svc.Authenticate(r.Header.Get("Authorization")); err != nil {
				if errors.Is(err, auth.ErrNotConfigured) {
					slog.Error("rejecting request: ingress token hash is not set")
				}
				w.Header().Set("WWW-Authenticate", `Bearer realm="coldpipe"`)
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
