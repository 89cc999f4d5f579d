package sqlite

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/blake2b"

	"github.com/sakif/superlists/internal/apperror"
	"github.com/sakif/superlists/internal/model"
	"github.com/sakif/superlists/internal/repository"
)

var _ repository.TokenRepository = (*DB)(nil)

// uidDigest is the primary key under which a login uid is stored.
//
// Only the digest is written to disk. Someone holding a copy of the database
// can see who asked for a link, but cannot rebuild a working login URL from it.
// The uid is already 122 random bits, so a fast unsalted hash is enough.
func uidDigest(uid string) string {
	sum := blake2b.Sum256([]byte(uid))
	return hex.EncodeToString(sum[:])
}

// CreateToken stores a freshly issued login token.
func (db *DB) CreateToken(ctx context.Context, token *model.Token) error {
	var expiresAt int64
	if !token.ExpiresAt.IsZero() {
		expiresAt = token.ExpiresAt.Unix()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO tokens (uid_hash, email, issued_at, expires_at) VALUES (?, ?, ?, ?)`,
		uidDigest(token.UID),
		token.Email,
		token.IssuedAt,
		expiresAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating token for %q: %w", token.Email, err)
	}
	return nil
}

// ConsumeToken spends the token with the given uid.
//
// The guarded UPDATE is the gate: only a row that is still unconsumed and
// unexpired matches, and SQLite applies the UPDATE atomically, so of two
// concurrent consumers exactly one sees RowsAffected == 1. The loser, a
// replay, an expired link, and a made-up uid all get ErrNotFound.
func (db *DB) ConsumeToken(ctx context.Context, uid string, now time.Time) (*model.Token, error) {
	digest := uidDigest(uid)
	var token *model.Token

	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE tokens SET consumed_at = ?
			 WHERE uid_hash = ? AND consumed_at IS NULL
			   AND (expires_at = 0 OR expires_at > ?)`,
			now, digest, now.Unix(),
		)
		if err != nil {
			return fmt.Errorf("sqlite: consuming token: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: checking rows affected: %w", err)
		}
		if n == 0 {
			return apperror.NotFound("token", digest[:12])
		}

		var row struct {
			Email     string    `db:"email"`
			IssuedAt  time.Time `db:"issued_at"`
			ExpiresAt int64     `db:"expires_at"`
		}
		if err := tx.GetContext(ctx, &row,
			`SELECT email, issued_at, expires_at FROM tokens WHERE uid_hash = ?`, digest,
		); err != nil {
			return fmt.Errorf("sqlite: reading consumed token: %w", err)
		}

		token = &model.Token{UID: uid, Email: row.Email, IssuedAt: row.IssuedAt}
		if row.ExpiresAt != 0 {
			token.ExpiresAt = time.Unix(row.ExpiresAt, 0)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return token, nil
}

// PurgeTokens deletes tokens that can never be used again.
func (db *DB) PurgeTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM tokens
		 WHERE consumed_at IS NOT NULL OR (expires_at <> 0 AND expires_at <= ?)`,
		now.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: purging tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n, nil
}
