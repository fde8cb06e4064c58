// Package repository declares the storage contracts the services depend on.
//
// Two implementations live in sub-packages:
//   - memory: the default, a guarded in-process map
//   - sqlite: the same contract over modernc.org/sqlite
//
// Both must honour the same rules: email uniqueness (exact match), ids that
// are assigned atomically and never reused, and apperror kinds for failures.
package repository

import (
	"context"

	"github.com/sakif/userdesk/internal/model"
)

// UserRepository is the User Store.
//
// Lookups return apperror.ErrNotFound when the record is absent.
// Create and Update return apperror.ErrValidation on an email collision.
// Records returned are copies: mutating them does not touch the store.
type UserRepository interface {
	// Create assigns user.ID and stores the record.
	Create(ctx context.Context, user *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id int64) (*model.User, error)
	Update(ctx context.Context, id int64, patch model.UserPatch) (*model.User, error)
	// Delete removes the record and returns it.
	Delete(ctx context.Context, id int64) (*model.User, error)
	// List returns every record in insertion order.
	List(ctx context.Context) ([]model.User, error)
}
