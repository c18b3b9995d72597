// Package common defines shared sentinel errors and small utilities used
// across the credkeeper engine. Callers should use errors.Is to match the
// sentinel values.
package common

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Internal faults. Store failures are logged with detail at the
	// workflow boundary and surfaced to callers as this opaque value.
	ErrorInternal = errors.New("internal error")

	// Token and session errors. A malformed or absent token counts as not
	// provided; a bad signature or unknown session as invalid.
	ErrorMissingToken = errors.New("token not provided")
	ErrorInvalidSession = errors.New("invalid refresh session")
	ErrorSessionExpired = errors.New("session expired")

	// Credential lifecycle errors.
	ErrorUserBlocked         = errors.New("user is blocked")
	ErrorPendingVerification = errors.New("previous change awaits verification")
	ErrorAlreadyExists       = errors.New("already exists")
	ErrorWrongCredentials    = errors.New("wrong credentials")
	ErrorNotActive           = errors.New("account is not active")

	// ErrorBadRequest covers wrong, already consumed, or expired
	// verification codes without distinguishing between them.
	ErrorBadRequest = errors.New("bad request")
)

// BlockedError reports a login lockout together with the time remaining
// until the block lifts, so callers can render a countdown. It matches
// ErrorUserBlocked under errors.Is.
type BlockedError struct {
	Remaining time.Duration
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("user is blocked for another %s", e.Remaining.Round(time.Second))
}

func (e *BlockedError) Unwrap() error { return ErrorUserBlocked }

// ValidationErrors maps field names to human-readable messages. It is kept
// distinct from the domain sentinels above: a ValidationErrors value means
// the request itself was malformed, not that a domain rule fired.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(v))
	for _, f := range fields {
		parts = append(parts, f+": "+v[f])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
