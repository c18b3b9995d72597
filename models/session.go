package models

import "time"

// SessionContext binds a token-bearing call to one client instance. The
// triple is the lookup key for refresh-session validation.
type SessionContext struct {
	IP          string
	UserAgent   string
	Fingerprint string
}

// RefreshSession is a persisted refresh token bound to the client that
// obtained it.
type RefreshSession struct {
	ID           string
	UserID       string
	IP           string
	UserAgent    string
	Fingerprint  string
	RefreshToken string
	CreatedAt    time.Time
	ExpiresIn    time.Duration
}

// ExpiresAt returns the instant after which the session can no longer be
// rotated.
func (s *RefreshSession) ExpiresAt() time.Time {
	return s.CreatedAt.Add(s.ExpiresIn)
}
