package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
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

// LoginIDKind selects which identity field a login request carries.
type LoginIDKind int

const (
	LoginByEmail LoginIDKind = iota + 1
	LoginByUsername
	LoginByPhone
)

// LoginID is the closed union of identities a user may log in with. It is
// resolved to a store filter once, at the entry of Login.
type LoginID struct {
	Kind  LoginIDKind
	Value string
}

// EmailID builds a LoginID addressing a user by email.
func EmailID(email string) LoginID { return LoginID{Kind: LoginByEmail, Value: email} }

// UsernameID builds a LoginID addressing a user by username.
func UsernameID(username string) LoginID { return LoginID{Kind: LoginByUsername, Value: username} }

// PhoneID builds a LoginID addressing a user by phone number.
func PhoneID(phone string) LoginID { return LoginID{Kind: LoginByPhone, Value: phone} }

func (id LoginID) filter() (credentials.Filter, error) {
	if id.Value == "" {
		return credentials.Filter{}, common.ErrorBadRequest
	}
	switch id.Kind {
	case LoginByEmail:
		return credentials.Filter{Email: id.Value}, nil
	case LoginByUsername:
		return credentials.Filter{Username: id.Value}, nil
	case LoginByPhone:
		return credentials.Filter{PhoneNumber: id.Value}, nil
	}
	return credentials.Filter{}, common.ErrorBadRequest
}

// RegisterRequest carries the fields of a registration call. FirstName,
// LastName and Birthday are optional.
type RegisterRequest struct {
	Email                string
	Username             string
	PhoneNumber          string
	Password             string
	PasswordVerification string
	FirstName            string
	LastName             string
	Birthday             string
}

// ProfileUpdate lists the optional profile fields to overwrite. Nil fields
// stay untouched.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Birthday  *string
}

// UserService implements the credential lifecycle: registration and its
// verification, login with throttling and lockout, and profile updates.
type UserService struct {
	db       *sql.DB
	repos    repomanager.RepositoryManager
	logger   logging.Logger
	notifier notifier.Notifier

	loginAttemptsToBlock   int
	blockDuration          time.Duration
	verifyDuration         time.Duration
	maxPasswordValidations int
}

// NewUserService constructs a UserService using repositories and config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, l logging.Logger, n notifier.Notifier, cfg *config.Config) *UserService {
	return &UserService{
		db:                     db,
		repos:                  m,
		logger:                 l.With("module", "users"),
		notifier:               n,
		loginAttemptsToBlock:   cfg.LoginAttemptsToBlock,
		blockDuration:          cfg.BlockDuration,
		verifyDuration:         cfg.VerifyDuration,
		maxPasswordValidations: cfg.MaxPasswordValidations,
	}
}

func validateRegister(req *RegisterRequest) error {
	v := common.ValidationErrors{}
	if req.Email == "" {
		v["email"] = "required"
	}
	if req.Username == "" {
		v["username"] = "required"
	}
	if req.Password == "" {
		v["password"] = "required"
	}
	if req.Password != req.PasswordVerification {
		v["passwordVerification"] = "passwords do not match"
	}
	if len(v) > 0 {
		return v
	}
	return nil
}

// verificationCodeBytes is the entropy of a verification or reset code; the
// hex-encoded code is twice as long.
const verificationCodeBytes = 16

// hashUniquePassword derives a salted hash for password and verifies that no
// other credential already stores the same hash, drawing a fresh salt and
// retrying on collision. The attempt counter is threaded explicitly; the
// probe gives up after max attempts.
func hashUniquePassword(ctx context.Context, repo credentials.Repository, password string, attempt, max int) (string, []byte, error) {
	if attempt > max {
		return "", nil, fmt.Errorf("no unique password hash after %d attempts", max)
	}

	salt := cryptox.NewSalt()
	hash := cryptox.HashPassword(password, salt)

	exists, err := repo.Exists(ctx, credentials.Filter{PasswordHash: hash})
	if err != nil {
		return "", nil, err
	}
	if exists {
		return hashUniquePassword(ctx, repo, password, attempt+1, max)
	}
	return hash, salt, nil
}

// Register creates an inactive credential and its vault row in one
// transaction and dispatches the activation code. Taken email, username or
// phone fails with ErrorAlreadyExists; structural defects fail with
// ValidationErrors.
func (s *UserService) Register(ctx context.Context, req *RegisterRequest) (*models.Credential, error) {
	if err := validateRegister(req); err != nil {
		return nil, err
	}

	repo := s.repos.Credentials(s.db)

	taken := []credentials.Filter{
		{Email: req.Email},
		{Username: req.Username},
	}
	if req.PhoneNumber != "" {
		taken = append(taken, credentials.Filter{PhoneNumber: req.PhoneNumber})
	}
	for _, f := range taken {
		exists, err := repo.Exists(ctx, f)
		if err != nil {
			s.logger.Error(ctx, "checking credential uniqueness", "error", err)
			return nil, common.ErrorInternal
		}
		if exists {
			return nil, common.ErrorAlreadyExists
		}
	}

	hash, salt, err := hashUniquePassword(ctx, repo, req.Password, 1, s.maxPasswordValidations)
	if err != nil {
		s.logger.Error(ctx, "deriving password hash", "error", err)
		return nil, common.ErrorInternal
	}

	code, err := common.MakeRandHexString(verificationCodeBytes)
	if err != nil {
		s.logger.Error(ctx, "minting verification code", "error", err)
		return nil, common.ErrorInternal
	}

	cred := &models.Credential{
		Email:              req.Email,
		Username:           req.Username,
		PhoneNumber:        req.PhoneNumber,
		PasswordHash:       hash,
		FirstName:          req.FirstName,
		LastName:           req.LastName,
		Birthday:           req.Birthday,
		IsActive:           false,
		VerificationCode:   code,
		VerificationExpiry: time.Now().Add(s.verifyDuration),
	}

	// Credential and vault are created together or not at all. A credential
	// without a salt row could never log in.
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		created, err := s.repos.Credentials(tx).Create(ctx, cred)
		if err != nil {
			return err
		}
		cred = created
		return s.repos.Vaults(tx).Create(ctx, created.ID, salt)
	})
	if err != nil {
		s.logger.Error(ctx, "creating credential", "error", err)
		return nil, common.ErrorInternal
	}

	if err := s.notifier.Send(ctx, cred.VerificationCode, cred.Email, notifier.MailVerifyEmail); err != nil {
		s.logger.Warn(ctx, "sending verification mail", "error", err)
	}

	return cred, nil
}

// VerifyRegistration activates the credential registered under email when
// code matches and the verification window has not closed. Any mismatch,
// including an expired window or an already active account, fails with
// ErrorBadRequest.
func (s *UserService) VerifyRegistration(ctx context.Context, email, code string) error {
	repo := s.repos.Credentials(s.db)

	cred, err := repo.FindOne(ctx, credentials.Filter{Email: email})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorBadRequest
		}
		s.logger.Error(ctx, "searching credential", "error", err)
		return common.ErrorInternal
	}

	if cred.IsActive || code == "" || cred.VerificationCode != code {
		return common.ErrorBadRequest
	}
	if cred.VerificationExpiry.IsZero() || time.Now().After(cred.VerificationExpiry) {
		return common.ErrorBadRequest
	}

	active := true
	emptyCode := ""
	var zeroTime time.Time
	err = repo.Update(ctx, cred.ID, credentials.Update{
		IsActive:           &active,
		VerificationCode:   &emptyCode,
		VerificationExpiry: &zeroTime,
	})
	if err != nil {
		s.logger.Error(ctx, "activating credential", "error", err)
		return common.ErrorInternal
	}
	return nil
}

// Login authenticates a user addressed by id. The throttle runs before the
// password check: a live lockout is rejected without touching the hash, an
// elapsed one is cleared lazily on this attempt. Five failed checks in a row
// set a six hour lockout. On success the attempt counter resets.
func (s *UserService) Login(ctx context.Context, id LoginID, password string, sctx models.SessionContext) (*models.Credential, error) {
	f, err := id.filter()
	if err != nil {
		return nil, err
	}

	repo := s.repos.Credentials(s.db)

	cred, err := repo.FindOne(ctx, f)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorWrongCredentials
		}
		s.logger.Error(ctx, "searching credential", "error", err)
		return nil, common.ErrorInternal
	}

	now := time.Now()
	if cred.BlockActive(now) {
		return nil, &common.BlockedError{Remaining: cred.BlockExpiry.Sub(now)}
	}
	if !cred.IsActive {
		return nil, common.ErrorNotActive
	}

	vault, err := s.repos.Vaults(s.db).FindByUserID(ctx, cred.ID)
	if err != nil {
		s.logger.Error(ctx, "fetching vault", "error", err)
		return nil, common.ErrorInternal
	}

	if !cryptox.VerifyPassword(cred.PasswordHash, password, vault.Salt) {
		if err := s.registerFailedAttempt(ctx, cred); err != nil {
			s.logger.Error(ctx, "recording failed login", "error", err)
			return nil, common.ErrorInternal
		}
		return nil, common.ErrorWrongCredentials
	}

	if err := s.registerSuccessfulAttempt(ctx, cred, now); err != nil {
		s.logger.Error(ctx, "resetting login attempts", "error", err)
		return nil, common.ErrorInternal
	}

	s.logger.Info(ctx, "login", "user_id", cred.ID, "ip", sctx.IP)
	return cred, nil
}

// registerFailedAttempt advances the throttle state machine after a wrong
// password. The lockout trips on the configured attempt and resets the
// counter so the next cycle starts clean.
func (s *UserService) registerFailedAttempt(ctx context.Context, cred *models.Credential) error {
	attempts := cred.LoginAttempts + 1
	upd := credentials.Update{LoginAttempts: &attempts}

	if attempts >= s.loginAttemptsToBlock {
		blocked := true
		expiry := time.Now().Add(s.blockDuration)
		zero := 0
		upd.LoginAttempts = &zero
		upd.IsBlocked = &blocked
		upd.BlockExpiry = &expiry
	}

	return s.repos.Credentials(s.db).Update(ctx, cred.ID, upd)
}

// registerSuccessfulAttempt resets the counter and lifts an elapsed lockout.
// A block without expiry belongs to the change-request ledger and is left
// alone.
func (s *UserService) registerSuccessfulAttempt(ctx context.Context, cred *models.Credential, now time.Time) error {
	zero := 0
	upd := credentials.Update{LoginAttempts: &zero}

	if cred.IsBlocked && !cred.BlockExpiry.IsZero() && now.After(cred.BlockExpiry) {
		unblocked := false
		var zeroTime time.Time
		upd.IsBlocked = &unblocked
		upd.BlockExpiry = &zeroTime
	}

	return s.repos.Credentials(s.db).Update(ctx, cred.ID, upd)
}

// UpdateProfile overwrites the optional profile fields named in upd. Primary
// identity fields are out of reach here; those go through the change-request
// ledger.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) error {
	if upd.FirstName == nil && upd.LastName == nil && upd.Birthday == nil {
		return nil
	}
	err := s.repos.Credentials(s.db).Update(ctx, userID, credentials.Update{
		FirstName: upd.FirstName,
		LastName:  upd.LastName,
		Birthday:  upd.Birthday,
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		s.logger.Error(ctx, "updating profile", "error", err)
		return common.ErrorInternal
	}
	return nil
}
