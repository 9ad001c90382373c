package middleware

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/kindfund/kindfund/internal/auth"
)

// Headers set by the upstream gateway.
const (
	UserIDHeader     = "X-User-ID"
	AdminTokenHeader = "X-Admin-Token"
)

// Actor attaches the caller identified by the X-User-ID header to the
// request context. A missing or malformed header leaves the caller anonymous.
func Actor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := auth.Anonymous
		if raw := strings.TrimSpace(r.Header.Get(UserIDHeader)); raw != "" {
			if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
				actor = auth.Actor{UserID: id}
			}
		}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithActor(r.Context(), actor)))
	})
}

// RequireActor rejects anonymous callers. Must be applied after Actor.
func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.ActorFromContext(r.Context()).Authenticated() {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authenticated user required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdminToken guards operator endpoints with a shared token. An empty
// token disables the check.
func RequireAdminToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(AdminTokenHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "Admin token required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, `{"error":%q,"code":%q}`+"\n", message, code)
}
