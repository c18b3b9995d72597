// Package passwordresets declares the repository contract for
// forgot-password codes.
package passwordresets

import (
	"context"

	"github.com/dkurenkov/credkeeper/models"
)

// Repository defines access to pending password-reset codes.
type Repository interface {
	// Create inserts a reset row, assigning an ID when absent.
	Create(ctx context.Context, reset *models.PasswordReset) error

	// FindByCode returns the reset row matching email and code, or a
	// not-found error. Expiry is the caller's concern.
	FindByCode(ctx context.Context, email, code string) (*models.PasswordReset, error)

	// Delete removes a reset row by id. Deleting a non-existent row is not
	// an error.
	Delete(ctx context.Context, id string) error
}
