// Package repository declares the storage contracts the services depend on.
// Implementations live in sub-packages (sqlstore).
package repository

import (
	"context"

	"github.com/sakif/usuarios-api/internal/model"
)

// ListOptions pages and filters a listing. Name, when non-empty, matches
// full names case-insensitively as a substring.
type ListOptions struct {
	Limit  int
	Offset int
	Name   string
}

// UserRepository persists users.
//
// Lookups return an error wrapping apperror.ErrNotFound when nothing matches.
// Save inserts or updates atomically and reports a duplicate username or
// email as apperror.ErrConflict.
type UserRepository interface {
	FindByUUID(ctx context.Context, uuid string) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context, opts ListOptions) ([]*model.User, error)
	Count(ctx context.Context, name string) (int, error)
	Save(ctx context.Context, user *model.User) error
	Delete(ctx context.Context, uuid string) error

	// EmailExists and UsernameExists ignore the row with excludeUUID so an
	// update can keep its own value. Pass "" to check against every row.
	EmailExists(ctx context.Context, email, excludeUUID string) (bool, error)
	UsernameExists(ctx context.Context, username, excludeUUID string) (bool, error)
}
