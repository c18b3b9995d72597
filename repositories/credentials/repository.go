// Package credentials declares the repository contract for user identity
// records.
package credentials

import (
	"context"
	"time"

	"github.com/dkurenkov/credkeeper/models"
)

// Filter narrows credential lookups. Zero-valued fields are ignored;
// pointer fields distinguish "unset" from "false".
type Filter struct {
	ID           string
	Email        string
	Username     string
	PhoneNumber  string
	PasswordHash string
	IsActive     *bool
	IsBlocked    *bool
}

// Update lists the credential fields to overwrite. Nil fields are left
// untouched. A pointer to the zero value clears the column (for BlockExpiry
// and VerificationExpiry the zero time maps to NULL).
type Update struct {
	Email              *string
	Username           *string
	PhoneNumber        *string
	PasswordHash       *string
	FirstName          *string
	LastName           *string
	Birthday           *string
	IsActive           *bool
	VerificationCode   *string
	VerificationExpiry *time.Time
	LoginAttempts      *int
	IsBlocked          *bool
	BlockExpiry        *time.Time
}

// Repository defines structured-filter access to the credential store.
type Repository interface {
	// Create inserts a new credential, assigning an ID when absent, and
	// returns the stored record.
	Create(ctx context.Context, cred *models.Credential) (*models.Credential, error)

	// FindOne returns the single credential matching the filter, or a
	// not-found error when none matches.
	FindOne(ctx context.Context, f Filter) (*models.Credential, error)

	// Exists reports whether any credential matches the filter.
	Exists(ctx context.Context, f Filter) (bool, error)

	// Count returns the number of credentials matching the filter.
	Count(ctx context.Context, f Filter) (int, error)

	// Update overwrites the listed fields of the credential with the given id.
	Update(ctx context.Context, id string, upd Update) error
}
