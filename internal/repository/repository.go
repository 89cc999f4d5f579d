// Package repository declares the storage contracts the service layer depends on.
//
// Implementations must honour the atomicity rules written on each method;
// the service layer relies on them instead of taking its own locks.
package repository

import (
	"context"
	"time"

	"github.com/sakif/superlists/internal/model"
)

// TokenRepository persists login tokens.
type TokenRepository interface {
	// CreateToken stores token, keyed by token.UID.
	CreateToken(ctx context.Context, token *model.Token) error

	// ConsumeToken atomically marks the token with the given uid as spent and
	// returns it. Unknown, already consumed, or expired (as of now) tokens
	// yield apperror.ErrNotFound. Two concurrent calls for the same uid never
	// both succeed.
	ConsumeToken(ctx context.Context, uid string, now time.Time) (*model.Token, error)

	// PurgeTokens deletes consumed tokens and tokens expired as of now.
	PurgeTokens(ctx context.Context, now time.Time) (int64, error)
}

// UserRepository persists users.
type UserRepository interface {
	// GetOrCreateUser returns the user with the given email, creating it if
	// needed. Concurrent calls for the same email return the same user.
	GetOrCreateUser(ctx context.Context, email string) (*model.User, error)

	// GetUserByEmail returns apperror.ErrNotFound if no user has that email.
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)

	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// ListRepository persists lists and their items.
type ListRepository interface {
	// CreateList stores list and its first item in one transaction. On
	// success both carry their generated IDs and timestamps, and
	// first.ListID equals list.ID.
	CreateList(ctx context.Context, list *model.List, first *model.Item) error

	// AddItem stores item in item.ListID. It returns apperror.ErrDuplicateItem
	// if the list already holds an item with the same text, and
	// apperror.ErrNotFound if the list does not exist.
	AddItem(ctx context.Context, item *model.Item) error

	// GetList returns the list with its derived Name (Items left empty).
	GetList(ctx context.Context, id string) (*model.List, error)

	// ItemsOf returns the list's items in creation order.
	ItemsOf(ctx context.Context, listID string) ([]model.Item, error)
}

// OwnershipIndex answers which lists belong to a user.
type OwnershipIndex interface {
	// ListsByOwner returns the owner's lists in creation order, each with its
	// derived Name. An owner without lists yields an empty slice.
	ListsByOwner(ctx context.Context, ownerID string) ([]model.List, error)
}
