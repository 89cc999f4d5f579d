package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/rs/xid"

	"github.com/sakif/superlists/internal/apperror"
	"github.com/sakif/superlists/internal/model"
	"github.com/sakif/superlists/internal/repository"
)

var (
	_ repository.ListRepository = (*DB)(nil)
	_ repository.OwnershipIndex = (*DB)(nil)
)

// listNameColumn derives a list's name from its earliest item.
// The name is never stored, so it cannot drift from the items.
const listNameColumn = `COALESCE((SELECT i.text FROM items i WHERE i.list_id = l.id ORDER BY i.rowid LIMIT 1), '') AS name`

// CreateList inserts a list together with its first item.
//
// A list must never exist without items, and an item never without a list,
// so both INSERTs share one transaction: if the item is rejected the list
// row is rolled back with it.
func (db *DB) CreateList(ctx context.Context, list *model.List, first *model.Item) error {
	now := time.Now()
	list.ID = xid.New().String()
	list.CreatedAt = now

	first.ID = xid.New().String()
	first.ListID = list.ID
	first.CreatedAt = now

	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO lists (id, owner_id, created_at) VALUES (?, ?, ?)`,
			list.ID, list.OwnerID, list.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("sqlite: creating list: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO items (id, list_id, text, created_at) VALUES (?, ?, ?, ?)`,
			first.ID, first.ListID, first.Text, first.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("sqlite: creating first item: %w", err)
		}
		return nil
	})
	if err != nil {
		list.ID, first.ID, first.ListID = "", "", ""
		return err
	}

	list.Name = first.Text
	return nil
}

// AddItem inserts item into an existing list.
//
// UNIQUENESS UNDER CONCURRENCY:
// We do not SELECT for an existing item first: two requests could both see
// "no duplicate" and both insert. The UNIQUE(list_id, text) constraint makes
// the check and the insert one atomic step inside SQLite; we only translate
// the constraint error. Inserts into different lists never conflict.
func (db *DB) AddItem(ctx context.Context, item *model.Item) error {
	item.ID = xid.New().String()
	item.CreatedAt = time.Now()

	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		var exists int
		err := tx.GetContext(ctx, &exists, `SELECT COUNT(*) FROM lists WHERE id = ?`, item.ListID)
		if err != nil {
			return fmt.Errorf("sqlite: checking list %s: %w", item.ListID, err)
		}
		if exists == 0 {
			return apperror.NotFound("list", item.ListID)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO items (id, list_id, text, created_at) VALUES (?, ?, ?, ?)`,
			item.ID, item.ListID, item.Text, item.CreatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return apperror.DuplicateItem("text")
			}
			return fmt.Errorf("sqlite: adding item to list %s: %w", item.ListID, err)
		}
		return nil
	})
	if err != nil {
		item.ID = ""
		return err
	}
	return nil
}

// GetList retrieves a list and its derived name.
// Returns apperror.ErrNotFound if no list exists with that ID.
func (db *DB) GetList(ctx context.Context, id string) (*model.List, error) {
	query, args, err := db.sb.
		Select("l.id", "l.owner_id", "l.created_at", listNameColumn).
		From("lists l").
		Where(sq.Eq{"l.id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlite: building list query: %w", err)
	}

	var list model.List
	if err := db.read.GetContext(ctx, &list, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("list", id)
		}
		return nil, fmt.Errorf("sqlite: getting list %s: %w", id, err)
	}
	return &list, nil
}

// ItemsOf returns the items of a list, oldest first.
func (db *DB) ItemsOf(ctx context.Context, listID string) ([]model.Item, error) {
	query, args, err := db.sb.
		Select("id", "list_id", "text", "created_at").
		From("items").
		Where(sq.Eq{"list_id": listID}).
		OrderBy("rowid").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlite: building items query: %w", err)
	}

	items := []model.Item{}
	if err := db.read.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("sqlite: listing items of %s: %w", listID, err)
	}
	return items, nil
}

// ListsByOwner returns every list owned by ownerID, oldest first.
// Anonymous lists (owner_id IS NULL) never match.
func (db *DB) ListsByOwner(ctx context.Context, ownerID string) ([]model.List, error) {
	query, args, err := db.sb.
		Select("l.id", "l.owner_id", "l.created_at", listNameColumn).
		From("lists l").
		Where(sq.Eq{"l.owner_id": ownerID}).
		OrderBy("l.rowid").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlite: building owner query: %w", err)
	}

	lists := []model.List{}
	if err := db.read.SelectContext(ctx, &lists, query, args...); err != nil {
		return nil, fmt.Errorf("sqlite: listing lists of %s: %w", ownerID, err)
	}
	return lists, nil
}
