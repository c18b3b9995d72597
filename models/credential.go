// Package models holds the persisted entities of the credential/session
// engine.
package models

import "time"

// Credential is a user identity record. Primary fields (email, username,
// phone number, password) change only through the change-request ledger;
// the throttle fields (LoginAttempts, IsBlocked, BlockExpiry) are owned by
// the login flow.
type Credential struct {
	ID                 string
	Email              string
	Username           string
	PhoneNumber        string
	PasswordHash       string
	FirstName          string
	LastName           string
	Birthday           string
	IsActive           bool
	VerificationCode   string
	VerificationExpiry time.Time
	LoginAttempts      int
	IsBlocked          bool
	BlockExpiry        time.Time
	CreatedAt          time.Time
}

// BlockActive reports whether a timed lockout is still in force at now.
// A block without expiry (set by the change-request ledger) does not count:
// it gates further changes, not logins.
func (c *Credential) BlockActive(now time.Time) bool {
	return c.IsBlocked && !c.BlockExpiry.IsZero() && now.Before(c.BlockExpiry)
}
