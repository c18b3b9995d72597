package models

import "time"

// PasswordReset is a time-boxed forgot-password code. It is keyed by email
// rather than user id because the requester is, by definition, not logged in.
type PasswordReset struct {
	ID                 string
	Email              string
	VerificationCode   string
	Expires            time.Time
	RequestIP          string
	RequestAgent       string
	RequestFingerprint string
	CreatedAt          time.Time
}
