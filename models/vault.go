package models

import "time"

// Vault is the per-user password salt, stored apart from the credential so
// that a single-store compromise does not yield salted hashes plus salts.
// Exactly one row exists per credential; the salt rotates with every
// password change.
type Vault struct {
	UserID    string
	Salt      []byte
	UpdatedAt time.Time
}
