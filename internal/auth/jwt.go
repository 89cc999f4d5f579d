// Package auth holds the pieces of passwordless login that are not storage:
// unguessable login uids, the per-email limiter on link requests, and the
// signed session cookie that remembers who a browser belongs to.
//
// LOGIN FLOW OVERVIEW:
//  1. POST /accounts/send_login_email → a login uid is issued and mailed
//  2. GET /accounts/login?token=<uid> → the uid is consumed, the user resolved
//  3. The server issues a session JWT for that user's email in an HttpOnly cookie
//  4. On later requests, middleware reads the cookie and puts the email in the
//     request context
//
// WHY JWT FOR THE SESSION?
// The session only has to say "this browser is edith@example.com until T".
// A signed JWT carries exactly that without a sessions table; the signature
// ensures nobody can change the email without the secret key.
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: algorithm + token type → {"alg":"HS256","typ":"JWT"}
//	- Payload: claims (data) → {"sub":"edith@example.com","exp":1234567890}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "superlists"

// SessionService signs and verifies session tokens.
//
// It holds the HMAC secret used for both operations and the lifetime given
// to every session it issues.
type SessionService struct {
	secret []byte
	ttl    time.Duration
}

// NewSessionService creates a SessionService with the given secret and
// session lifetime.
// Example: SESSION_SECRET=$(openssl rand -hex 32)
func NewSessionService(secret string, ttl time.Duration) (*SessionService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: session secret must be at least 16 characters")
	}
	if ttl <= 0 {
		return nil, errors.New("auth: session TTL must be positive")
	}
	return &SessionService{secret: []byte(secret), ttl: ttl}, nil
}

// TTL is how long issued sessions stay valid. The cookie MaxAge uses it too.
func (s *SessionService) TTL() time.Duration {
	return s.ttl
}

// claims is the JWT payload. "sub" (Subject) holds the user's email, which is
// the identity key everywhere else in the system.
type claims struct {
	jwt.RegisteredClaims
}

// Issue creates and signs a session token for email with the default TTL.
func (s *SessionService) Issue(email string) (string, error) {
	return s.IssueWithDuration(email, s.ttl)
}

// IssueWithDuration creates a session token with a custom lifetime.
// Used in tests to mint already-expired sessions.
func (s *SessionService) IssueWithDuration(email string, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing session: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a session token and returns the email it was
// issued for.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid (wasn't tampered with)
//   - Token is not expired
//   - Issuer matches "superlists"
//   - Algorithm is HS256 (prevents "alg: none" and algorithm confusion)
func (s *SessionService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("auth: session expired")
		}
		return "", fmt.Errorf("auth: invalid session: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid session claims")
	}
	if c.Subject == "" {
		return "", fmt.Errorf("auth: session has no subject")
	}
	return c.Subject, nil
}
