package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/tasklist/internal/auth"
)

// publicPaths are paths that don't require authentication.
var publicPaths = map[string]bool{
	"/health":  true,
	"/ready":   true,
	"/metrics": true,
}

// Auth returns a middleware that authenticates requests and stores the
// caller's identity in the request context. Public paths are passed
// through. The event stream is authenticated like any other route so it
// can be filtered per owner.
func Auth(
	authenticator auth.Authenticator,
	logger *zap.Logger,
) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(
			w http.ResponseWriter,
			r *http.Request,
		) {
			if isPublicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			id, err := authenticator.Authenticate(r)
			if err != nil {
				logger.Warn("authentication failed",
					zap.String("path", r.URL.Path),
					zap.String("method", r.Method),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				writeAuthError(w, err)
				return
			}

			logger.Debug("authentication successful",
				zap.String("subject", id.Subject),
				zap.String("method", string(id.Method)),
				zap.String("path", r.URL.Path),
			)

			ctx := auth.WithIdentity(r.Context(), id)
			w.Header().Set(OwnerHeader, auth.OwnerID(ctx))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// isPublicPath matches exact public paths and their sub-paths
// (/health/live), but not paths that only share a prefix (/healthz).
func isPublicPath(path string) bool {
	if publicPaths[path] {
		return true
	}

	for p := range publicPaths {
		if strings.HasPrefix(path, p+"/") {
			return true
		}
	}

	return false
}

// authErrorResponse is the JSON error response for auth failures.
type authErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// writeAuthError writes a 401 with a WWW-Authenticate header matching
// the failure.
func writeAuthError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	setWWWAuthenticateHeader(w, err)

	w.WriteHeader(http.StatusUnauthorized)

	resp := authErrorResponse{
		Code:    http.StatusUnauthorized,
		Message: err.Error(),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func setWWWAuthenticateHeader(
	w http.ResponseWriter,
	err error,
) {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		w.Header().Set("WWW-Authenticate", "Basic, API-Key")
	case errors.Is(err, auth.ErrInvalidCredentials):
		w.Header().Set("WWW-Authenticate", `Basic realm="tasklist"`)
	case errors.Is(err, auth.ErrInvalidAPIKey):
		w.Header().Set("WWW-Authenticate", "API-Key")
	}
}
