package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/xid"
	"github.com/sakif/superlists/internal/apperror"
	"github.com/sakif/superlists/internal/model"
	"github.com/sakif/superlists/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// GetOrCreateUser returns the user registered under email, creating it first
// if this is the first time we see the address.
//
// RACE-FREE AUTO-PROVISIONING:
// Two requests can present login links for the same brand-new email at the
// same moment. "SELECT, and INSERT if missing" would let both INSERT. Instead
// we always INSERT with ON CONFLICT(email) DO NOTHING: the UNIQUE constraint
// picks the winner, the loser's insert is a no-op, and both then read back the
// single row that exists.
func (db *DB) GetOrCreateUser(ctx context.Context, email string) (*model.User, error) {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, email, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(email) DO NOTHING`,
		xid.New().String(),
		email,
		time.Now(),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: inserting user %q: %w", email, err)
	}

	// Read back on the write connection, which holds the row whichever
	// insert won.
	return userByEmail(ctx, db.conn, email)
}

// GetUserByEmail retrieves a user by email.
// Returns apperror.ErrNotFound if no user exists with that email.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return userByEmail(ctx, db.read, email)
}

func userByEmail(ctx context.Context, q sqlx.QueryerContext, email string) (*model.User, error) {
	var u model.User
	err := sqlx.GetContext(ctx, q, &u,
		`SELECT id, email, created_at FROM users WHERE email = ?`, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return &u, nil
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := db.read.GetContext(ctx, &u,
		`SELECT id, email, created_at FROM users WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return &u, nil
}
