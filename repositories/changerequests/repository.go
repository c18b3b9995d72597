// Package changerequests declares the repository contract for the
// change-request ledger.
package changerequests

import (
	"context"
	"time"

	"github.com/dkurenkov/credkeeper/models"
)

// Repository defines access to pending primary-field change requests.
type Repository interface {
	// Create inserts a change request, assigning an ID when absent.
	Create(ctx context.Context, req *models.ChangeRequest) error

	// CountPending returns the number of unverified requests for userID,
	// regardless of data type.
	CountPending(ctx context.Context, userID string) (int, error)

	// FindMatch returns the unverified request matching user, code, and data
	// type, or a not-found error. Expiry is the caller's concern.
	FindMatch(ctx context.Context, userID, code string, dataType models.ChangeDataType) (*models.ChangeRequest, error)

	// MarkVerified consumes the request with the given id.
	MarkVerified(ctx context.Context, id string) error

	// FindExpired returns unverified requests whose expiry has passed.
	FindExpired(ctx context.Context, now time.Time) ([]*models.ChangeRequest, error)

	// Delete removes a request by id.
	Delete(ctx context.Context, id string) error
}
