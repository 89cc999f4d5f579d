package model

import "time"

// Token is a single-use login credential bound to an email address.
//
// The UID is only known in plaintext at issue time: it is embedded in the login
// URL we hand to the mailer and never read back from storage. Tokens bind to an
// email, not to a User, because the user may not exist yet.
type Token struct {
	UID       string    `json:"-"         db:"-"`
	Email     string    `json:"email"     db:"email"`
	IssuedAt  time.Time `json:"issuedAt"  db:"issued_at"`
	ExpiresAt time.Time `json:"expiresAt" db:"-"` // zero means the token never expires
}
