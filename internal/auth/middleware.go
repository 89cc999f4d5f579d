package auth

import (
	"context"
	"encoding/json"
	"net/http"
)

// CookieName is the cookie that carries the session JWT.
const CookieName = "session"

// contextKey is an unexported type used for context keys in this package.
//
// WHY A CUSTOM TYPE FOR CONTEXT KEYS?
// context.WithValue uses any as the key type. A plain string key could be
// read or shadowed by any package that knows the string. Only THIS package
// can create a key of type contextKey.
type contextKey string

const emailKey contextKey = "email"

// RequireSession is a middleware for routes that only make sense for a
// logged-in user.
//
// It reads the session cookie, validates it, and stores the email in the
// request context. A missing or invalid session gets 401 and stops the chain.
//
// Chi applies middlewares in a chain: req → M1 → M2 → Handler → M2 → M1 → resp
func RequireSession(sessions *SessionService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			email, err := extractEmail(r, sessions)
			if err != nil {
				writeUnauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithEmail(r.Context(), email)))
		})
	}
}

// OptionalSession attaches the session's email to the context when a valid
// cookie is present and otherwise lets the request through as anonymous.
//
// Lists are the main user: anyone may create one, but a logged-in creator
// becomes its owner.
func OptionalSession(sessions *SessionService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if email, err := extractEmail(r, sessions); err == nil {
				r = r.WithContext(ContextWithEmail(r.Context(), email))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ContextWithEmail returns a copy of ctx carrying the session email.
func ContextWithEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, emailKey, email)
}

// EmailFromContext retrieves the session email from the request context.
// Returns ("", false) for anonymous requests.
func EmailFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(emailKey).(string)
	return email, ok && email != ""
}

// SetSessionCookie issues a session for email and writes it as an HttpOnly
// cookie.
//
// HttpOnly = JavaScript cannot read this cookie (XSS protection).
// SameSite=Lax = sent on top-level navigations, which is exactly how the
// login link in the email arrives, but not on cross-site POSTs.
func SetSessionCookie(w http.ResponseWriter, sessions *SessionService, email string, secure bool) error {
	token, err := sessions.Issue(email)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(sessions.TTL().Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// ClearSessionCookie tells the browser to drop the session cookie.
//
// Sessions are stateless, so the JWT stays valid until it expires; without
// the cookie the browser simply stops sending it.
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// writeUnauthorized answers 401 in the same JSON shape the handlers use.
func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"message": "login required",
	})
}

func extractEmail(r *http.Request, sessions *SessionService) (string, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return "", err
	}
	return sessions.Validate(cookie.Value)
}
