package common

import (
	"errors"
	"testing"
	"time"
)

func TestBlockedError_MatchesSentinel(t *testing.T) {
	var err error = &BlockedError{Remaining: 6 * time.Hour}
	if !errors.Is(err, ErrorUserBlocked) {
		t.Fatalf("BlockedError must match ErrorUserBlocked, got %v", err)
	}
}

func TestValidationErrors_StableMessage(t *testing.T) {
	err := ValidationErrors{
		"username": "username already exists",
		"email":    "email already exists",
	}
	want := "validation failed: email: email already exists; username: username already exists"
	if err.Error() != want {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}
