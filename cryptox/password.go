// Package cryptox implements password hashing for the engine: Argon2id over
// the user's vault salt, compared in constant time.
package cryptox

import (
	"crypto/subtle"
	"encoding/hex"

	"golang.org/x/crypto/argon2"

	"github.com/dkurenkov/credkeeper/common"
)

const (
	saltLength = 16

	// Argon2id parameters.
	argonTime    = 4
	argonMemory  = 8192 // KiB
	argonThreads = 1
	hashLength   = 40
)

// NewSalt returns a fresh random salt. A new salt is drawn at registration
// and on every password change.
func NewSalt() []byte {
	return common.GenerateRandByteArray(saltLength)
}

// HashPassword derives an Argon2id hash of the password under the given
// salt, hex-encoded for storage. The raw key bytes are wiped before return.
func HashPassword(password string, salt []byte) string {
	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, hashLength)
	defer common.WipeByteArray(key)
	return hex.EncodeToString(key)
}

// VerifyPassword reports whether candidate hashes to storedHash under salt.
// The comparison is constant-time.
func VerifyPassword(storedHash, candidate string, salt []byte) bool {
	computed := HashPassword(candidate, salt)
	return subtle.ConstantTimeCompare([]byte(storedHash), []byte(computed)) == 1
}
