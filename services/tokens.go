// Package services contains the engine's business logic. This file
// implements TokenService: minting access/refresh token pairs, enforcing
// the per-user session cap, rotating refresh sessions, and logout.
package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dkurenkov/credkeeper/auth"
	"github.com/dkurenkov/credkeeper/common"
	"github.com/dkurenkov/credkeeper/config"
	"github.com/dkurenkov/credkeeper/dbx"
	"github.com/dkurenkov/credkeeper/logging"
	"github.com/dkurenkov/credkeeper/models"
	"github.com/dkurenkov/credkeeper/repositories/repomanager"
	"github.com/dkurenkov/credkeeper/repositories/sessions"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// TokenService provides token-related operations:
//   - Issue: mint a pair and persist the refresh session
//   - Rotate: exchange a presented refresh token for a fresh pair, at most once
//   - Logout: revoke a session, idempotently
//   - VerifyAccessToken / client tokens: stateless verification
type TokenService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	logger logging.Logger

	accessSecret  []byte
	refreshSecret []byte
	clientSecret  []byte

	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	clientTokenValidityDuration  time.Duration

	maxSessions int
}

// NewTokenService constructs a TokenService using repositories and config.
func NewTokenService(db *sql.DB, m repomanager.RepositoryManager, l logging.Logger, cfg *config.Config) *TokenService {
	return &TokenService{
		db:                           db,
		repos:                        m,
		logger:                       l.With("module", "tokens"),
		accessSecret:                 []byte(cfg.AccessSecretKey),
		refreshSecret:                []byte(cfg.RefreshSecretKey),
		clientSecret:                 []byte(cfg.ClientSecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		clientTokenValidityDuration:  cfg.ClientTokenValidityDuration,
		maxSessions:                  cfg.MaxSessions,
	}
}

// Issue mints a token pair for userID and persists the refresh session bound
// to sctx. The count-then-insert of the session cap runs in a serializable
// transaction so concurrent logins converge to at most maxSessions rows.
func (s *TokenService) Issue(ctx context.Context, userID string, sctx models.SessionContext) (*TokenPair, error) {
	var pair *TokenPair
	err := dbx.WithTx(ctx, s.db, &sql.TxOptions{Isolation: sql.LevelSerializable}, func(ctx context.Context, tx dbx.DBTX) error {
		p, err := s.issue(ctx, tx, userID, sctx)
		if err != nil {
			return err
		}
		pair = p
		return nil
	})
	if err != nil {
		s.logger.Error(ctx, "issuing token pair", "error", err)
		return nil, common.ErrorInternal
	}
	return pair, nil
}

// issue mints the pair and stores the session on the given handle. When the
// user already holds maxSessions sessions, every session is wiped before the
// insert: overflow forces re-auth of all other devices, deliberately not LRU.
func (s *TokenService) issue(ctx context.Context, tx dbx.DBTX, userID string, sctx models.SessionContext) (*TokenPair, error) {
	accessToken, err := auth.GenerateToken(userID, s.accessSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, err
	}
	refreshToken, err := auth.GenerateToken(userID, s.refreshSecret, s.refreshTokenValidityDuration)
	if err != nil {
		return nil, err
	}

	repo := s.repos.Sessions(tx)

	count, err := repo.CountByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if count >= s.maxSessions {
		if err := repo.DeleteAllForUser(ctx, userID); err != nil {
			return nil, err
		}
	}

	err = repo.Create(ctx, &models.RefreshSession{
		UserID:       userID,
		IP:           sctx.IP,
		UserAgent:    sctx.UserAgent,
		Fingerprint:  sctx.Fingerprint,
		RefreshToken: refreshToken,
		CreatedAt:    time.Now(),
		ExpiresIn:    s.refreshTokenValidityDuration,
	})
	if err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Rotate validates the presented refresh token against the stored session
// matching all of (userID, ip, userAgent, fingerprint, token) and exchanges
// it for a fresh pair. The old session is consumed inside a transaction
// whose delete is keyed on the unique token value, so concurrent rotations
// of the same token yield exactly one success; the losers get
// ErrorInvalidSession.
func (s *TokenService) Rotate(ctx context.Context, refreshToken, userID string, sctx models.SessionContext) (*TokenPair, error) {
	if refreshToken == "" || userID == "" {
		return nil, common.ErrorMissingToken
	}

	match := sessions.Match{
		UserID:       userID,
		IP:           sctx.IP,
		UserAgent:    sctx.UserAgent,
		Fingerprint:  sctx.Fingerprint,
		RefreshToken: refreshToken,
	}

	sess, err := s.repos.Sessions(s.db).FindMatch(ctx, match)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorInvalidSession
		}
		s.logger.Error(ctx, "searching refresh session", "error", err)
		return nil, common.ErrorInternal
	}

	if time.Now().After(sess.ExpiresAt()) {
		return nil, common.ErrorSessionExpired
	}

	var pair *TokenPair
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		deleted, err := s.repos.Sessions(tx).DeleteByToken(ctx, refreshToken)
		if err != nil {
			return err
		}
		if deleted == 0 {
			// a concurrent rotation consumed the token first
			return common.ErrorInvalidSession
		}
		p, err := s.issue(ctx, tx, userID, sctx)
		if err != nil {
			return err
		}
		pair = p
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrorInvalidSession) {
			return nil, common.ErrorInvalidSession
		}
		s.logger.Error(ctx, "rotating refresh session", "error", err)
		return nil, common.ErrorInternal
	}
	return pair, nil
}

// Logout revokes the session matching all binding fields. Revoking an
// already absent session succeeds, which makes the call idempotent.
func (s *TokenService) Logout(ctx context.Context, refreshToken, userID string, sctx models.SessionContext) error {
	err := s.repos.Sessions(s.db).DeleteMatch(ctx, sessions.Match{
		UserID:       userID,
		IP:           sctx.IP,
		UserAgent:    sctx.UserAgent,
		Fingerprint:  sctx.Fingerprint,
		RefreshToken: refreshToken,
	})
	if err != nil {
		s.logger.Error(ctx, "deleting refresh session", "error", err)
		return common.ErrorInternal
	}
	return nil
}

// VerifyAccessToken checks signature and expiry of an access token and
// returns its subject. No store lookup happens: this is the fast
// authorization path.
func (s *TokenService) VerifyAccessToken(token string) (string, error) {
	if token == "" {
		return "", common.ErrorMissingToken
	}
	return auth.ParseSubject(token, s.accessSecret)
}

// IssueClientToken mints a long-lived token for a service client, pinning
// the caller's IP into the claims. Client tokens are stateless: nothing is
// persisted and revocation is by secret rotation only.
func (s *TokenService) IssueClientToken(clientID, ip string) (string, error) {
	token, err := auth.GenerateClientToken(clientID, ip, s.clientSecret, s.clientTokenValidityDuration)
	if err != nil {
		s.logger.Error(context.Background(), "issuing client token", "error", err)
		return "", common.ErrorInternal
	}
	return token, nil
}

// VerifyClientToken checks a client token and returns its clientID and
// pinned IP.
func (s *TokenService) VerifyClientToken(token string) (clientID, ip string, err error) {
	if token == "" {
		return "", "", common.ErrorMissingToken
	}
	return auth.ParseClientToken(token, s.clientSecret)
}
