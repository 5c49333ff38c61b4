package domain

import (
	"context"
	"errors"
)

type Service interface {
	// EnsureUser creates the user on first contact or refreshes display
	// names on subsequent contacts.
	EnsureUser(ctx context.Context, id int64, username, firstName, lastName string) (*User, error)
	Get(ctx context.Context, id int64) (*User, error)
}

var (
	ErrNotFound  = errors.New("user_not_found")
	ErrInvalidID = errors.New("invalid_user_id")
)
