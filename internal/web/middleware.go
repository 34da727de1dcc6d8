package web

import (
	"crypto/subtle"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"upmon/internal/config"
)

// BasicAuthMiddleware guards the operational endpoints with HTTP basic
// auth against the configured bcrypt hash. An empty hash disables the
// guard, for deployments behind a trusted proxy.
func BasicAuthMiddleware(ops config.OpsConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ops.PasswordHash == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, pass, ok := r.BasicAuth()
			if !ok ||
				subtle.ConstantTimeCompare([]byte(user), []byte(ops.Username)) != 1 ||
				bcrypt.CompareHashAndPassword([]byte(ops.PasswordHash), []byte(pass)) != nil {
				w.Header().Set("WWW-Authenticate", `Basic realm="upmon"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
