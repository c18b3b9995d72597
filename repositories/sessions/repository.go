// Package sessions declares the repository contract for persisted refresh
// sessions.
package sessions

import (
	"context"

	"github.com/dkurenkov/credkeeper/models"
)

// Match is the full binding key of a refresh session: the client triple plus
// the token itself and its owner.
type Match struct {
	UserID       string
	IP           string
	UserAgent    string
	Fingerprint  string
	RefreshToken string
}

// Repository defines operations for persisting, retrieving, and revoking
// refresh sessions.
type Repository interface {
	// Create inserts a session row, assigning an ID when absent.
	Create(ctx context.Context, sess *models.RefreshSession) error

	// CountByUser returns the number of live session rows for userID.
	CountByUser(ctx context.Context, userID string) (int, error)

	// FindByUser returns the user's sessions in insertion order.
	FindByUser(ctx context.Context, userID string) ([]*models.RefreshSession, error)

	// FindMatch returns the session matching all five binding fields, or a
	// not-found error.
	FindMatch(ctx context.Context, m Match) (*models.RefreshSession, error)

	// DeleteByToken removes the session with the given token value and
	// reports how many rows went away. The unique index on the token makes
	// this the at-most-once rotation guard: a concurrent consumer of the
	// same token observes zero rows.
	DeleteByToken(ctx context.Context, token string) (int64, error)

	// DeleteMatch removes the session matching all binding fields. Deleting
	// a non-existent session is not an error.
	DeleteMatch(ctx context.Context, m Match) error

	// DeleteAllForUser wipes every session of the user.
	DeleteAllForUser(ctx context.Context, userID string) error
}
