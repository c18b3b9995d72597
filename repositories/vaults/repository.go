// Package vaults declares the repository contract for per-user password
// salts, kept apart from the credential store.
package vaults

import (
	"context"

	"github.com/dkurenkov/credkeeper/models"
)

// Repository defines access to the salt vault. Exactly one row exists per
// user; it is created with the credential and rotated on password changes.
type Repository interface {
	// Create inserts the salt row for userID.
	Create(ctx context.Context, userID string, salt []byte) error

	// FindByUserID returns the vault row for userID, or a not-found error.
	FindByUserID(ctx context.Context, userID string) (*models.Vault, error)

	// UpdateSalt replaces the stored salt for userID.
	UpdateSalt(ctx context.Context, userID string, salt []byte) error
}
