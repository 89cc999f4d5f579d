package model

import "time"

// List is a named collection of to-do items.
//
// OwnerID is nil for anonymous lists. Ownership is decided once, when the list
// is created, and never changes afterwards.
//
// OwnerEmail is filled in when a single list is read, for display.
//
// Name is not a column: it is the text of the list's first item, derived by
// the repository with an ordered query every time the list is read.
type List struct {
	ID         string    `json:"id"                   db:"id"`
	OwnerID    *string   `json:"ownerId,omitempty"    db:"owner_id"`
	OwnerEmail string    `json:"ownerEmail,omitempty" db:"-"`
	Name       string    `json:"name"                 db:"name"`
	CreatedAt  time.Time `json:"createdAt"            db:"created_at"`
	Items      []Item    `json:"items,omitempty"      db:"-"`
}

// Item is one entry of a List. Text is unique within its list.
type Item struct {
	ID        string    `json:"id"        db:"id"`
	ListID    string    `json:"listId"    db:"list_id"`
	Text      string    `json:"text"      db:"text"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
