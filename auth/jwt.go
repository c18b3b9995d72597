// Package auth mints and verifies the signed bearer tokens used by the
// engine. Access and refresh tokens carry {subject, iat, exp} and are
// HS512-signed; the secret differs per token class and comes from config.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dkurenkov/credkeeper/common"
)

// GenerateToken mints an HS512 token with the given subject and validity.
func GenerateToken(subject string, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
	})

	return token.SignedString(secretKey)
}

// mapParseError folds jwt parse failures into the engine's error kinds:
// a token that does not even parse counts as not provided, an expired one
// as a dead session, anything else (bad signature, wrong alg, bad claims)
// as an invalid session.
func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return common.ErrorSessionExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return common.ErrorMissingToken
	default:
		return common.ErrorInvalidSession
	}
}

// ParseSubject verifies signature and expiry and returns the token subject.
// Verification needs no store lookup. Malformed input yields
// common.ErrorMissingToken, expiry common.ErrorSessionExpired, any other
// defect common.ErrorInvalidSession.
func ParseSubject(tokenString string, secretKey []byte) (string, error) {
	claims := &jwt.RegisteredClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}))
	if err != nil {
		return "", mapParseError(err)
	}

	if !token.Valid || claims.Subject == "" {
		return "", common.ErrorInvalidSession
	}

	return claims.Subject, nil
}

// ClientClaims are the claims of a service-client token. Unlike user tokens
// they pin the caller's IP.
type ClientClaims struct {
	jwt.RegisteredClaims
	IP string `json:"ip"`
}

// GenerateClientToken mints an HS512 token for a service client.
func GenerateClientToken(clientID, ip string, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, ClientClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   clientID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		IP: ip,
	})

	return token.SignedString(secretKey)
}

// ParseClientToken verifies a client token and returns its clientID and
// pinned IP.
func ParseClientToken(tokenString string, secretKey []byte) (clientID, ip string, err error) {
	claims := &ClientClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}))
	if err != nil {
		return "", "", mapParseError(err)
	}

	if !token.Valid || claims.Subject == "" {
		return "", "", common.ErrorInvalidSession
	}

	return claims.Subject, claims.IP, nil
}
