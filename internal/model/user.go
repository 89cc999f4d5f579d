// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data, similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import "time"

// User represents an account, identified by its email address.
//
// Accounts are never registered explicitly: the first time somebody presents a
// valid login link for an email we have never seen, a User is created for it.
// The email is immutable once the row exists.
//
// WHY A SEPARATE INTERNAL ID?
// Lists reference their owner by ID, not by email. Keeping our own xid as the
// primary key means the foreign key stays small and stable, and the UNIQUE
// constraint on email is what guarantees one account per address.
type User struct {
	ID        string    `json:"id"        db:"id"`
	Email     string    `json:"email"     db:"email"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
