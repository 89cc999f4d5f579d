package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/superlists/internal/apperror"
	"github.com/sakif/superlists/internal/auth"
	"github.com/sakif/superlists/internal/model"
)

// LoginLinkSentMessage acknowledges a login-link request. It is the same
// whether or not the address has an account.
const LoginLinkSentMessage = "Check your email, we've sent you a link you can use to log in."

// Authenticator is what AuthHandler needs from the auth service.
type Authenticator interface {
	SendLoginLink(ctx context.Context, email string) error
	Authenticate(ctx context.Context, uid string) (*model.User, error)
	Lookup(ctx context.Context, email string) (*model.User, error)
}

// AuthHandler serves the passwordless login flow.
//
// HANDLER RESPONSIBILITIES:
//   - HandleSendLoginEmail → issue a token and mail the link
//   - HandleLogin          → spend the token, set the session cookie
//   - HandleLogout         → clear the session cookie
//   - HandleMe             → return the logged-in user
type AuthHandler struct {
	auth     Authenticator
	sessions *auth.SessionService
	secure   bool // set Secure on the session cookie (HTTPS deployments)
	logger   *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(authn Authenticator, sessions *auth.SessionService, secureCookies bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:     authn,
		sessions: sessions,
		secure:   secureCookies,
		logger:   logger,
	}
}

// sendLoginEmailRequest is the JSON body of HandleSendLoginEmail.
type sendLoginEmailRequest struct {
	Email string `json:"email"`
}

// HandleSendLoginEmail issues a login token and mails its link.
//
// HTTP: POST /accounts/send_login_email
// Accepts {"email": "..."} or a form field "email".
func (h *AuthHandler) HandleSendLoginEmail(w http.ResponseWriter, r *http.Request) {
	var req sendLoginEmailRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		req.Email = r.FormValue("email")
	} else if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.auth.SendLoginLink(r.Context(), req.Email); err != nil {
		if !errors.Is(err, apperror.ErrValidation) && !errors.Is(err, apperror.ErrRateLimited) {
			h.logger.Error("sending login link failed", slog.String("error", err.Error()))
		}
		writeErrorWithInput(w, err, &req.Email)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: LoginLinkSentMessage})
}

// HandleLogin spends the login token from the link and starts a session.
//
// HTTP: GET /accounts/login?token=<uid>
//
// An unknown, used or expired token is not an error: the browser is simply
// redirected home without a session. Only a storage fault gets a 500.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.Authenticate(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		h.logger.Error("login failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	if user != nil {
		if err := auth.SetSessionCookie(w, h.sessions, user.Email, h.secure); err != nil {
			h.logger.Error("issuing session failed", slog.String("error", err.Error()))
			writeError(w, err)
			return
		}
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleLogout clears the session cookie.
//
// HTTP: POST /accounts/logout
//
// POST and not GET: logout changes state, and GET URLs get prefetched.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w)
	writeJSON(w, http.StatusOK, MessageResponse{Message: "logged out"})
}

// HandleMe returns the currently logged-in user.
//
// HTTP: GET /api/me
// Auth: Required (RequireSession puts the email in the context)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	email, _ := auth.EmailFromContext(r.Context())

	user, err := h.auth.Lookup(r.Context(), email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// currentUser resolves the session email, if any, to a user.
//
// Returns (nil, nil) for anonymous requests and for sessions whose user no
// longer exists.
func currentUser(ctx context.Context, authn Authenticator) (*model.User, error) {
	email, ok := auth.EmailFromContext(ctx)
	if !ok {
		return nil, nil
	}
	user, err := authn.Lookup(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}
