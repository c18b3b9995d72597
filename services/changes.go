package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dkurenkov/credkeeper/common"
	"github.com/dkurenkov/credkeeper/config"
	"github.com/dkurenkov/credkeeper/cryptox"
	"github.com/dkurenkov/credkeeper/dbx"
	"github.com/dkurenkov/credkeeper/logging"
	"github.com/dkurenkov/credkeeper/models"
	"github.com/dkurenkov/credkeeper/notifier"
	"github.com/dkurenkov/credkeeper/repositories/credentials"
	"github.com/dkurenkov/credkeeper/repositories/repomanager"
)

// ChangeService implements the change-request ledger gating primary identity
// field mutations, plus the forgot-password flow. Every change applies
// optimistically, blocks the credential, and stays pending until the
// out-of-band code comes back or the window closes.
type ChangeService struct {
	db       *sql.DB
	repos    repomanager.RepositoryManager
	logger   logging.Logger
	notifier notifier.Notifier

	verifyDuration         time.Duration
	maxPasswordValidations int
}

// NewChangeService constructs a ChangeService using repositories and config.
func NewChangeService(db *sql.DB, m repomanager.RepositoryManager, l logging.Logger, n notifier.Notifier, cfg *config.Config) *ChangeService {
	return &ChangeService{
		db:                     db,
		repos:                  m,
		logger:                 l.With("module", "changes"),
		notifier:               n,
		verifyDuration:         cfg.VerifyDuration,
		maxPasswordValidations: cfg.MaxPasswordValidations,
	}
}

func mailTypeFor(t models.ChangeDataType) notifier.MailType {
	switch t {
	case models.DataTypeEmail:
		return notifier.MailVerifyEmailChange
	case models.DataTypeUsername:
		return notifier.MailVerifyUsernameChange
	case models.DataTypePhone:
		return notifier.MailVerifyPhoneChange
	default:
		return notifier.MailVerifyPasswordChange
	}
}

// uniquenessFilter maps a data type to the collision filter for its new
// value. Password changes check collisions through the hash probe instead.
func uniquenessFilter(t models.ChangeDataType, value string) (credentials.Filter, bool) {
	switch t {
	case models.DataTypeEmail:
		return credentials.Filter{Email: value}, true
	case models.DataTypeUsername:
		return credentials.Filter{Username: value}, true
	case models.DataTypePhone:
		return credentials.Filter{PhoneNumber: value}, true
	}
	return credentials.Filter{}, false
}

// RequestChange starts a verification-gated change of email, username or
// phone. The new value is applied immediately and the credential blocked; a
// single-use code with a four hour window is recorded and dispatched. A
// colliding value fails ErrorAlreadyExists; an outstanding unverified
// request of any type fails ErrorPendingVerification; a blocked credential
// fails ErrorUserBlocked.
func (s *ChangeService) RequestChange(ctx context.Context, userID string, dataType models.ChangeDataType, newValue string, sctx models.SessionContext) error {
	if !dataType.Valid() || dataType == models.DataTypePassword || newValue == "" {
		return common.ErrorBadRequest
	}

	repo := s.repos.Credentials(s.db)

	if f, ok := uniquenessFilter(dataType, newValue); ok {
		exists, err := repo.Exists(ctx, f)
		if err != nil {
			s.logger.Error(ctx, "checking value uniqueness", "error", err)
			return common.ErrorInternal
		}
		if exists {
			return common.ErrorAlreadyExists
		}
	}

	pending, err := s.repos.ChangeRequests(s.db).CountPending(ctx, userID)
	if err != nil {
		s.logger.Error(ctx, "counting pending change requests", "error", err)
		return common.ErrorInternal
	}
	if pending > 0 {
		return common.ErrorPendingVerification
	}

	cred, err := repo.FindOne(ctx, credentials.Filter{ID: userID})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		s.logger.Error(ctx, "searching credential", "error", err)
		return common.ErrorInternal
	}
	if cred.IsBlocked {
		return common.ErrorUserBlocked
	}

	code, err := common.MakeRandHexString(verificationCodeBytes)
	if err != nil {
		s.logger.Error(ctx, "minting verification code", "error", err)
		return common.ErrorInternal
	}

	var prevValue string
	upd := credentials.Update{}
	blocked := true
	upd.IsBlocked = &blocked
	switch dataType {
	case models.DataTypeEmail:
		prevValue = cred.Email
		upd.Email = &newValue
	case models.DataTypeUsername:
		prevValue = cred.Username
		upd.Username = &newValue
	case models.DataTypePhone:
		prevValue = cred.PhoneNumber
		upd.PhoneNumber = &newValue
	}

	req := &models.ChangeRequest{
		UserID:             userID,
		VerificationCode:   code,
		DataType:           dataType,
		PrevValue:          prevValue,
		Expires:            time.Now().Add(s.verifyDuration),
		RequestIP:          sctx.IP,
		RequestAgent:       sctx.UserAgent,
		RequestFingerprint: sctx.Fingerprint,
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.Credentials(tx).Update(ctx, userID, upd); err != nil {
			return err
		}
		return s.repos.ChangeRequests(tx).Create(ctx, req)
	})
	if err != nil {
		s.logger.Error(ctx, "recording change request", "error", err)
		return common.ErrorInternal
	}

	// The code goes to the address that can confirm the change. For an email
	// change that is the new address.
	email := cred.Email
	if dataType == models.DataTypeEmail {
		email = newValue
	}
	if err := s.notifier.Send(ctx, req.VerificationCode, email, mailTypeFor(dataType)); err != nil {
		s.logger.Warn(ctx, "sending verification mail", "error", err)
	}

	return nil
}

// VerifyChange consumes the pending request matching user, code and data
// type and lifts the ledger block. A wrong code, an already consumed request
// or an elapsed window fail ErrorBadRequest and change nothing.
func (s *ChangeService) VerifyChange(ctx context.Context, userID, code string, dataType models.ChangeDataType) error {
	if code == "" || !dataType.Valid() {
		return common.ErrorBadRequest
	}

	req, err := s.repos.ChangeRequests(s.db).FindMatch(ctx, userID, code, dataType)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorBadRequest
		}
		s.logger.Error(ctx, "searching change request", "error", err)
		return common.ErrorInternal
	}

	if time.Now().After(req.Expires) {
		return common.ErrorBadRequest
	}

	unblocked := false
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.ChangeRequests(tx).MarkVerified(ctx, req.ID); err != nil {
			return err
		}
		return s.repos.Credentials(tx).Update(ctx, userID, credentials.Update{IsBlocked: &unblocked})
	})
	if err != nil {
		s.logger.Error(ctx, "verifying change request", "error", err)
		return common.ErrorInternal
	}
	return nil
}

// ChangePassword verifies the old password, derives a collision-checked hash
// of the new one under a fresh salt, rewrites vault and credential, and
// routes the change through the ledger like any other primary field. A
// blocked credential fails ErrorUserBlocked. The old hash cannot be
// recovered, so an expired request clears the block without reverting.
func (s *ChangeService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string, sctx models.SessionContext) error {
	if newPassword == "" {
		return common.ValidationErrors{"password": "required"}
	}

	repo := s.repos.Credentials(s.db)

	cred, err := repo.FindOne(ctx, credentials.Filter{ID: userID})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		s.logger.Error(ctx, "searching credential", "error", err)
		return common.ErrorInternal
	}
	if cred.IsBlocked {
		return common.ErrorUserBlocked
	}

	vault, err := s.repos.Vaults(s.db).FindByUserID(ctx, userID)
	if err != nil {
		s.logger.Error(ctx, "fetching vault", "error", err)
		return common.ErrorInternal
	}

	if !cryptox.VerifyPassword(cred.PasswordHash, oldPassword, vault.Salt) {
		return common.ErrorWrongCredentials
	}

	pending, err := s.repos.ChangeRequests(s.db).CountPending(ctx, userID)
	if err != nil {
		s.logger.Error(ctx, "counting pending change requests", "error", err)
		return common.ErrorInternal
	}
	if pending > 0 {
		return common.ErrorPendingVerification
	}

	hash, salt, err := hashUniquePassword(ctx, repo, newPassword, 1, s.maxPasswordValidations)
	if err != nil {
		s.logger.Error(ctx, "deriving password hash", "error", err)
		return common.ErrorInternal
	}

	code, err := common.MakeRandHexString(verificationCodeBytes)
	if err != nil {
		s.logger.Error(ctx, "minting verification code", "error", err)
		return common.ErrorInternal
	}

	req := &models.ChangeRequest{
		UserID:             userID,
		VerificationCode:   code,
		DataType:           models.DataTypePassword,
		Expires:            time.Now().Add(s.verifyDuration),
		RequestIP:          sctx.IP,
		RequestAgent:       sctx.UserAgent,
		RequestFingerprint: sctx.Fingerprint,
	}

	blocked := true
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.Vaults(tx).UpdateSalt(ctx, userID, salt); err != nil {
			return err
		}
		if err := s.repos.Credentials(tx).Update(ctx, userID, credentials.Update{
			PasswordHash: &hash,
			IsBlocked:    &blocked,
		}); err != nil {
			return err
		}
		return s.repos.ChangeRequests(tx).Create(ctx, req)
	})
	if err != nil {
		s.logger.Error(ctx, "recording password change", "error", err)
		return common.ErrorInternal
	}

	if err := s.notifier.Send(ctx, req.VerificationCode, cred.Email, notifier.MailVerifyPasswordChange); err != nil {
		s.logger.Warn(ctx, "sending verification mail", "error", err)
	}

	return nil
}

// ExpireStale reverts every unverified change request whose window has
// closed: email, username and phone go back to the recorded previous value,
// the ledger block is lifted, and the request row is removed. Password
// changes keep the new hash (the old one is gone) and only lose the block.
// Intended to be driven by an external reaper; returns the number of
// requests cleaned up.
func (s *ChangeService) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	stale, err := s.repos.ChangeRequests(s.db).FindExpired(ctx, now)
	if err != nil {
		s.logger.Error(ctx, "searching expired change requests", "error", err)
		return 0, common.ErrorInternal
	}

	cleaned := 0
	for _, req := range stale {
		req := req
		err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			unblocked := false
			upd := credentials.Update{IsBlocked: &unblocked}
			switch req.DataType {
			case models.DataTypeEmail:
				upd.Email = &req.PrevValue
			case models.DataTypeUsername:
				upd.Username = &req.PrevValue
			case models.DataTypePhone:
				upd.PhoneNumber = &req.PrevValue
			}
			if err := s.repos.Credentials(tx).Update(ctx, req.UserID, upd); err != nil {
				// the credential may be gone; drop the orphaned request
				if !errors.Is(err, common.ErrorNotFound) {
					return err
				}
			}
			return s.repos.ChangeRequests(tx).Delete(ctx, req.ID)
		})
		if err != nil {
			s.logger.Error(ctx, "reverting expired change request", "request_id", req.ID, "error", err)
			continue
		}
		cleaned++
	}

	if cleaned > 0 {
		s.logger.Info(ctx, "expired change requests cleaned", "count", cleaned)
	}
	return cleaned, nil
}

// RequestPasswordReset starts the forgot-password flow for email. A reset
// code with a four hour window is recorded, bound to the requesting client,
// and dispatched. An unknown email fails ErrorBadRequest.
func (s *ChangeService) RequestPasswordReset(ctx context.Context, email string, sctx models.SessionContext) error {
	if email == "" {
		return common.ErrorBadRequest
	}

	_, err := s.repos.Credentials(s.db).FindOne(ctx, credentials.Filter{Email: email})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorBadRequest
		}
		s.logger.Error(ctx, "searching credential", "error", err)
		return common.ErrorInternal
	}

	code, err := common.MakeRandHexString(verificationCodeBytes)
	if err != nil {
		s.logger.Error(ctx, "minting reset code", "error", err)
		return common.ErrorInternal
	}

	reset := &models.PasswordReset{
		Email:              email,
		VerificationCode:   code,
		Expires:            time.Now().Add(s.verifyDuration),
		RequestIP:          sctx.IP,
		RequestAgent:       sctx.UserAgent,
		RequestFingerprint: sctx.Fingerprint,
	}
	if err := s.repos.PasswordResets(s.db).Create(ctx, reset); err != nil {
		s.logger.Error(ctx, "recording password reset", "error", err)
		return common.ErrorInternal
	}

	if err := s.notifier.Send(ctx, reset.VerificationCode, email, notifier.MailResetPassword); err != nil {
		s.logger.Warn(ctx, "sending reset mail", "error", err)
	}
	return nil
}

// VerifyPasswordReset completes the forgot-password flow: the code must
// match a live reset row for email, the two passwords must agree, and the
// credential gets a fresh salt and hash in one transaction with the reset
// row consumed. Wrong or expired codes fail ErrorBadRequest.
func (s *ChangeService) VerifyPasswordReset(ctx context.Context, email, code, newPassword, newPasswordVerification string) error {
	v := common.ValidationErrors{}
	if newPassword == "" {
		v["password"] = "required"
	}
	if newPassword != newPasswordVerification {
		v["passwordVerification"] = "passwords do not match"
	}
	if len(v) > 0 {
		return v
	}

	reset, err := s.repos.PasswordResets(s.db).FindByCode(ctx, email, code)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorBadRequest
		}
		s.logger.Error(ctx, "searching password reset", "error", err)
		return common.ErrorInternal
	}
	if time.Now().After(reset.Expires) {
		return common.ErrorBadRequest
	}

	repo := s.repos.Credentials(s.db)
	cred, err := repo.FindOne(ctx, credentials.Filter{Email: email})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorBadRequest
		}
		s.logger.Error(ctx, "searching credential", "error", err)
		return common.ErrorInternal
	}

	hash, salt, err := hashUniquePassword(ctx, repo, newPassword, 1, s.maxPasswordValidations)
	if err != nil {
		s.logger.Error(ctx, "deriving password hash", "error", err)
		return common.ErrorInternal
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.Vaults(tx).UpdateSalt(ctx, cred.ID, salt); err != nil {
			return err
		}
		if err := s.repos.Credentials(tx).Update(ctx, cred.ID, credentials.Update{PasswordHash: &hash}); err != nil {
			return err
		}
		return s.repos.PasswordResets(tx).Delete(ctx, reset.ID)
	})
	if err != nil {
		s.logger.Error(ctx, "applying password reset", "error", err)
		return common.ErrorInternal
	}
	return nil
}
