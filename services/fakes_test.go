package services

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/dkurenkov/credkeeper/config"
	"github.com/dkurenkov/credkeeper/dbx"
	"github.com/dkurenkov/credkeeper/logging"
	"github.com/dkurenkov/credkeeper/models"
	"github.com/dkurenkov/credkeeper/notifier"
	changerequestsrepo "github.com/dkurenkov/credkeeper/repositories/changerequests"
	credentialsrepo "github.com/dkurenkov/credkeeper/repositories/credentials"
	passwordresetsrepo "github.com/dkurenkov/credkeeper/repositories/passwordresets"
	"github.com/dkurenkov/credkeeper/repositories/repomanager"
	sessionsrepo "github.com/dkurenkov/credkeeper/repositories/sessions"
	vaultsrepo "github.com/dkurenkov/credkeeper/repositories/vaults"
)

// --- helpers ---

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.AccessTokenValidityDuration = 15 * time.Minute
	return cfg
}

func testSessionContext() models.SessionContext {
	return models.SessionContext{IP: "10.0.0.1", UserAgent: "ua", Fingerprint: "fp"}
}

// --- fake notifier ---

type fakeNotifier struct {
	codes []string
	mails []string
	types []notifier.MailType
	err   error
}

func (n *fakeNotifier) Send(ctx context.Context, code, email string, mailType notifier.MailType) error {
	n.codes = append(n.codes, code)
	n.mails = append(n.mails, email)
	n.types = append(n.types, mailType)
	return n.err
}

// --- fake repositories ---

type fakeCredentialsRepo struct {
	createOut *models.Credential
	createErr error

	findOut *models.Credential
	findErr error

	// existsOut is consumed call by call; the last value repeats.
	existsOut []bool
	existsErr error

	countOut int
	countErr error

	updateErr error

	existsFilters []credentialsrepo.Filter
	updates       []credentialsrepo.Update
	updateIDs     []string
}

func (f *fakeCredentialsRepo) Create(ctx context.Context, cred *models.Credential) (*models.Credential, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.createOut != nil {
		return f.createOut, nil
	}
	out := *cred
	if out.ID == "" {
		out.ID = "cred-1"
	}
	return &out, nil
}

func (f *fakeCredentialsRepo) FindOne(ctx context.Context, flt credentialsrepo.Filter) (*models.Credential, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.findOut, nil
}

func (f *fakeCredentialsRepo) Exists(ctx context.Context, flt credentialsrepo.Filter) (bool, error) {
	f.existsFilters = append(f.existsFilters, flt)
	if f.existsErr != nil {
		return false, f.existsErr
	}
	if len(f.existsOut) == 0 {
		return false, nil
	}
	out := f.existsOut[0]
	if len(f.existsOut) > 1 {
		f.existsOut = f.existsOut[1:]
	}
	return out, nil
}

func (f *fakeCredentialsRepo) Count(ctx context.Context, flt credentialsrepo.Filter) (int, error) {
	return f.countOut, f.countErr
}

func (f *fakeCredentialsRepo) Update(ctx context.Context, id string, upd credentialsrepo.Update) error {
	f.updateIDs = append(f.updateIDs, id)
	f.updates = append(f.updates, upd)
	return f.updateErr
}

type fakeVaultsRepo struct {
	createErr error

	findOut *models.Vault
	findErr error

	updateErr   error
	updatedSalt []byte
}

func (f *fakeVaultsRepo) Create(ctx context.Context, userID string, salt []byte) error {
	return f.createErr
}

func (f *fakeVaultsRepo) FindByUserID(ctx context.Context, userID string) (*models.Vault, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.findOut, nil
}

func (f *fakeVaultsRepo) UpdateSalt(ctx context.Context, userID string, salt []byte) error {
	f.updatedSalt = salt
	return f.updateErr
}

type fakeSessionsRepo struct {
	created   []*models.RefreshSession
	createErr error

	countOut int
	countErr error

	findByUserOut []*models.RefreshSession

	findMatchOut *models.RefreshSession
	findMatchErr error

	deleteByTokenOut int64
	deleteByTokenErr error

	deleteMatchErr error
	deleteMatches  []sessionsrepo.Match

	deleteAllCalls int
	deleteAllErr   error
}

func (f *fakeSessionsRepo) Create(ctx context.Context, sess *models.RefreshSession) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, sess)
	return nil
}

func (f *fakeSessionsRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	return f.countOut, f.countErr
}

func (f *fakeSessionsRepo) FindByUser(ctx context.Context, userID string) ([]*models.RefreshSession, error) {
	return f.findByUserOut, nil
}

func (f *fakeSessionsRepo) FindMatch(ctx context.Context, m sessionsrepo.Match) (*models.RefreshSession, error) {
	if f.findMatchErr != nil {
		return nil, f.findMatchErr
	}
	return f.findMatchOut, nil
}

func (f *fakeSessionsRepo) DeleteByToken(ctx context.Context, token string) (int64, error) {
	return f.deleteByTokenOut, f.deleteByTokenErr
}

func (f *fakeSessionsRepo) DeleteMatch(ctx context.Context, m sessionsrepo.Match) error {
	f.deleteMatches = append(f.deleteMatches, m)
	return f.deleteMatchErr
}

func (f *fakeSessionsRepo) DeleteAllForUser(ctx context.Context, userID string) error {
	f.deleteAllCalls++
	return f.deleteAllErr
}

type fakeChangeRequestsRepo struct {
	created   []*models.ChangeRequest
	createErr error

	countOut int
	countErr error

	findMatchOut *models.ChangeRequest
	findMatchErr error

	markedVerified []string
	markErr        error

	expiredOut []*models.ChangeRequest
	expiredErr error

	deleted   []string
	deleteErr error
}

func (f *fakeChangeRequestsRepo) Create(ctx context.Context, req *models.ChangeRequest) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, req)
	return nil
}

func (f *fakeChangeRequestsRepo) CountPending(ctx context.Context, userID string) (int, error) {
	return f.countOut, f.countErr
}

func (f *fakeChangeRequestsRepo) FindMatch(ctx context.Context, userID, code string, dataType models.ChangeDataType) (*models.ChangeRequest, error) {
	if f.findMatchErr != nil {
		return nil, f.findMatchErr
	}
	return f.findMatchOut, nil
}

func (f *fakeChangeRequestsRepo) MarkVerified(ctx context.Context, id string) error {
	f.markedVerified = append(f.markedVerified, id)
	return f.markErr
}

func (f *fakeChangeRequestsRepo) FindExpired(ctx context.Context, now time.Time) ([]*models.ChangeRequest, error) {
	return f.expiredOut, f.expiredErr
}

func (f *fakeChangeRequestsRepo) Delete(ctx context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

type fakePasswordResetsRepo struct {
	created   []*models.PasswordReset
	createErr error

	findOut *models.PasswordReset
	findErr error

	deleted   []string
	deleteErr error
}

func (f *fakePasswordResetsRepo) Create(ctx context.Context, reset *models.PasswordReset) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, reset)
	return nil
}

func (f *fakePasswordResetsRepo) FindByCode(ctx context.Context, email, code string) (*models.PasswordReset, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.findOut, nil
}

func (f *fakePasswordResetsRepo) Delete(ctx context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return f.deleteErr
}

type fakeRepoManager struct {
	c  *fakeCredentialsRepo
	v  *fakeVaultsRepo
	s  *fakeSessionsRepo
	cr *fakeChangeRequestsRepo
	pr *fakePasswordResetsRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Credentials(db dbx.DBTX) credentialsrepo.Repository {
	return m.c
}
func (m *fakeRepoManager) Vaults(db dbx.DBTX) vaultsrepo.Repository { return m.v }
func (m *fakeRepoManager) Sessions(db dbx.DBTX) sessionsrepo.Repository {
	return m.s
}
func (m *fakeRepoManager) ChangeRequests(db dbx.DBTX) changerequestsrepo.Repository {
	return m.cr
}
func (m *fakeRepoManager) PasswordResets(db dbx.DBTX) passwordresetsrepo.Repository {
	return m.pr
}

var _ repomanager.RepositoryManager = (*fakeRepoManager)(nil)
