package session

import (
	"net/http"
	"strings"
)

// CookieName is the session cookie set on login.
const CookieName = "duet_session"

// TokenFromRequest extracts the session token from the duet_session cookie,
// falling back to an Authorization bearer header.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// Middleware resolves the request's session token and injects the result into
// the request context. It never rejects a request: unauthenticated requests
// proceed with an empty session and downstream handlers decide what requires
// a signed-in user.
func Middleware(svc *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := svc.Resolve(r.Context(), TokenFromRequest(r))
			next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), sess)))
		})
	}
}
