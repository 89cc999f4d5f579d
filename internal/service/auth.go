// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Services take repository INTERFACES, never *sqlite.DB, so tests pass
// in-memory fakes and the CLI can reuse the same logic as the HTTP server.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/sakif/superlists/internal/apperror"
	"github.com/sakif/superlists/internal/auth"
	"github.com/sakif/superlists/internal/mail"
	"github.com/sakif/superlists/internal/model"
	"github.com/sakif/superlists/internal/repository"
)

// LoginPath is where login links point. The handler serving it reads the
// uid from the "token" query parameter.
const LoginPath = "/accounts/login"

// AuthConfig holds the settings AuthService needs from the app config.
type AuthConfig struct {
	BaseURL  string        // e.g. "http://localhost:8080", no trailing slash
	MailFrom string        // From: address of login emails
	TokenTTL time.Duration // lifetime of a login link; 0 means no expiry
}

// AuthService implements passwordless login: issuing login tokens, mailing
// links, and resolving a presented token to a user.
//
// DEPENDENCIES (injected via NewAuthService):
//   - tokens   repository.TokenRepository → durable login tokens
//   - users    repository.UserRepository  → identities, auto-provisioned
//   - mailer   mail.Mailer                → delivers the link
//   - limiter  *auth.EmailLimiter         → caps link requests per address (nil disables)
type AuthService struct {
	tokens  repository.TokenRepository
	users   repository.UserRepository
	mailer  mail.Mailer
	limiter *auth.EmailLimiter
	cfg     AuthConfig
	logger  *slog.Logger
	now     func() time.Time
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	tokens repository.TokenRepository,
	users repository.UserRepository,
	mailer mail.Mailer,
	limiter *auth.EmailLimiter,
	cfg AuthConfig,
	logger *slog.Logger,
) *AuthService {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &AuthService{
		tokens:  tokens,
		users:   users,
		mailer:  mailer,
		limiter: limiter,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Issue creates and stores a fresh login token bound to email.
//
// The only precondition is a non-blank address; format checking is left to
// whoever delivers the mail. One address may hold many outstanding tokens.
func (s *AuthService) Issue(ctx context.Context, email string) (*model.Token, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, apperror.ValidationFailed("email", "Email is required")
	}

	now := s.now()
	token := &model.Token{
		UID:      auth.NewLoginUID(),
		Email:    email,
		IssuedAt: now,
	}
	if s.cfg.TokenTTL > 0 {
		token.ExpiresAt = now.Add(s.cfg.TokenTTL)
	}

	if err := s.tokens.CreateToken(ctx, token); err != nil {
		return nil, fmt.Errorf("service/auth: issuing token: %w", err)
	}
	return token, nil
}

// LoginURL is the link a user clicks to spend the token with the given uid.
func (s *AuthService) LoginURL(uid string) string {
	return s.cfg.BaseURL + LoginPath + "?token=" + url.QueryEscape(uid)
}

// SendLoginLink issues a token for email and mails its login URL.
//
// Requests beyond the per-address rate fail with ErrRateLimited before any
// token is stored.
func (s *AuthService) SendLoginLink(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email != "" && s.limiter != nil && !s.limiter.Allow(email) {
		s.logger.Warn("login link rate limited", slog.String("email", email))
		return apperror.RateLimited("Too many login links requested, please wait a moment")
	}

	token, err := s.Issue(ctx, email)
	if err != nil {
		return err
	}

	msg, err := mail.LoginMessage(s.cfg.MailFrom, mail.LoginParams{
		Email:      token.Email,
		URL:        s.LoginURL(token.UID),
		Expiration: s.cfg.TokenTTL,
	})
	if err != nil {
		return fmt.Errorf("service/auth: %w", err)
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("service/auth: sending login link to %q: %w", email, err)
	}

	s.logger.Info("login link sent", slog.String("email", token.Email))
	return nil
}

// Authenticate resolves a presented login uid to a user.
//
// Returns (nil, nil) for the anonymous outcome: an unknown, already used, or
// expired uid is an ordinary "you are not logged in", not an error. A valid
// uid is consumed, and the user for its email is created on first sight.
// Only storage faults produce an error.
func (s *AuthService) Authenticate(ctx context.Context, uid string) (*model.User, error) {
	if uid == "" {
		return nil, nil
	}

	token, err := s.tokens.ConsumeToken(ctx, uid, s.now())
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.logger.Info("login with unknown or spent token")
			return nil, nil
		}
		return nil, fmt.Errorf("service/auth: consuming token: %w", err)
	}

	user, err := s.users.GetOrCreateUser(ctx, token.Email)
	if err != nil {
		return nil, fmt.Errorf("service/auth: resolving user %q: %w", token.Email, err)
	}

	s.logger.Info("user authenticated",
		slog.String("userID", user.ID),
		slog.String("email", user.Email),
	)
	return user, nil
}

// Lookup re-resolves a session's email to its user. It never creates one.
func (s *AuthService) Lookup(ctx context.Context, email string) (*model.User, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("service/auth: looking up %q: %w", email, err)
	}
	return user, nil
}

// PurgeTokens deletes consumed and expired tokens and reports how many.
func (s *AuthService) PurgeTokens(ctx context.Context) (int64, error) {
	n, err := s.tokens.PurgeTokens(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("service/auth: purging tokens: %w", err)
	}
	s.logger.Info("purged login tokens", slog.Int64("count", n))
	return n, nil
}
