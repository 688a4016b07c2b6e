package user

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a referenced user does not exist. Unlike the
// typed checkout failures this is not user-correctable; the boundary maps it
// to an internal error.
var ErrNotFound = errors.New("user not found")

// User is a registered storefront customer.
type User struct {
	ID       int64
	Username string
}

// Repository defines read operations for users.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*User, error)
}
