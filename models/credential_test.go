package models

import (
	"testing"
	"time"
)

func TestBlockActive(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name string
		cred Credential
		want bool
	}{
		{"not blocked", Credential{}, false},
		{"lockout in force", Credential{IsBlocked: true, BlockExpiry: now.Add(time.Hour)}, true},
		{"lockout elapsed", Credential{IsBlocked: true, BlockExpiry: now.Add(-time.Minute)}, false},
		{"ledger block has no expiry and does not gate logins", Credential{IsBlocked: true}, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cred.BlockActive(now); got != tt.want {
				t.Fatalf("BlockActive() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRefreshSessionExpiresAt(t *testing.T) {
	created := time.Now()
	s := RefreshSession{CreatedAt: created, ExpiresIn: time.Hour}
	if got := s.ExpiresAt(); !got.Equal(created.Add(time.Hour)) {
		t.Fatalf("ExpiresAt() = %v", got)
	}
}

func TestChangeDataTypeValid(t *testing.T) {
	for _, dt := range []ChangeDataType{DataTypeEmail, DataTypeUsername, DataTypePassword, DataTypePhone} {
		if !dt.Valid() {
			t.Fatalf("%q must be valid", dt)
		}
	}
	if ChangeDataType("nickname").Valid() {
		t.Fatalf("unknown type must be invalid")
	}
}
