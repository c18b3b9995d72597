package models

import "time"

// ChangeDataType enumerates the primary identity fields gated by the
// change-request ledger.
type ChangeDataType string

const (
	DataTypeEmail    ChangeDataType = "email"
	DataTypeUsername ChangeDataType = "username"
	DataTypePassword ChangeDataType = "password"
	DataTypePhone    ChangeDataType = "phone"
)

// Valid reports whether t is one of the known data types.
func (t ChangeDataType) Valid() bool {
	switch t {
	case DataTypeEmail, DataTypeUsername, DataTypePassword, DataTypePhone:
		return true
	}
	return false
}

// ChangeRequest is a pending, time-boxed, single-use verification record
// gating activation of a primary identity field change. PrevValue keeps the
// field's value before the optimistic apply so an expired request can be
// reverted (empty for password changes).
type ChangeRequest struct {
	ID                 string
	UserID             string
	VerificationCode   string
	DataType           ChangeDataType
	PrevValue          string
	Expires            time.Time
	RequestIP          string
	RequestAgent       string
	RequestFingerprint string
	Verified           bool
	CreatedAt          time.Time
}
