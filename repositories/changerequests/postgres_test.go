package changerequests

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/dkurenkov/credkeeper/common"
	"github.com/dkurenkov/credkeeper/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func requestRows(req *models.ChangeRequest) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "verification_code", "data_type", "prev_value",
		"expires", "request_ip", "request_agent", "request_fingerprint", "verified", "created_at",
	}).AddRow(
		req.ID, req.UserID, req.VerificationCode, string(req.DataType), req.PrevValue,
		req.Expires, req.RequestIP, req.RequestAgent, req.RequestFingerprint, req.Verified, req.CreatedAt)
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*INSERT\s+INTO\s+change_requests\b.*VALUES\s*\(\$1,.*\$11\)\s*$`

	mock.ExpectExec(q).
		WithArgs(sqlmock.AnyArg(), "u1", "code-1", "email", "old@example.com",
			sqlmock.AnyArg(), "10.0.0.1", "ua", "fp", false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	req := &models.ChangeRequest{
		UserID:             "u1",
		VerificationCode:   "code-1",
		DataType:           models.DataTypeEmail,
		PrevValue:          "old@example.com",
		Expires:            time.Now().Add(4 * time.Hour),
		RequestIP:          "10.0.0.1",
		RequestAgent:       "ua",
		RequestFingerprint: "fp",
	}
	if err := repo.Create(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.ID == "" {
		t.Fatalf("ID not assigned")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCountPending(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*SELECT\s+COUNT\(\*\)\s+FROM\s+change_requests\s+WHERE\s+user_id\s*=\s*\$1\s+AND\s+verified\s*=\s*FALSE\s*$`
	mock.ExpectQuery(q).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	n, err := repo.CountPending(context.Background(), "u1")
	if err != nil || n != 1 {
		t.Fatalf("CountPending: got (%d, %v)", n, err)
	}
}

func TestFindMatch_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	want := &models.ChangeRequest{
		ID:               "req-1",
		UserID:           "u1",
		VerificationCode: "code-1",
		DataType:         models.DataTypeUsername,
		PrevValue:        "old-name",
		Expires:          time.Now().Add(time.Hour),
		CreatedAt:        time.Now(),
	}

	q := `(?s)WHERE\s+user_id\s*=\s*\$1\s+AND\s+verification_code\s*=\s*\$2\s+AND\s+data_type\s*=\s*\$3\s+AND\s+verified\s*=\s*FALSE`
	mock.ExpectQuery(q).
		WithArgs("u1", "code-1", "username").
		WillReturnRows(requestRows(want))

	got, err := repo.FindMatch(context.Background(), "u1", "code-1", models.DataTypeUsername)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "req-1" || got.DataType != models.DataTypeUsername || got.PrevValue != "old-name" {
		t.Fatalf("unexpected row: %+v", got)
	}
}

func TestFindMatch_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+change_requests`).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindMatch(context.Background(), "u1", "wrong", models.DataTypeEmail)
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestMarkVerified(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*UPDATE\s+change_requests\s+SET\s+verified\s*=\s*TRUE\s+WHERE\s+id\s*=\s*\$1\s*$`

	mock.ExpectExec(q).
		WithArgs("req-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.MarkVerified(context.Background(), "req-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mock.ExpectExec(q).
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.MarkVerified(context.Background(), "ghost"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestFindExpired(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "verification_code", "data_type", "prev_value",
		"expires", "request_ip", "request_agent", "request_fingerprint", "verified", "created_at",
	}).
		AddRow("req-1", "u1", "c1", "email", "old@example.com", now.Add(-2*time.Hour), "", "", "", false, now.Add(-6*time.Hour)).
		AddRow("req-2", "u2", "c2", "password", "", now.Add(-time.Hour), "", "", "", false, now.Add(-5*time.Hour))

	q := `(?s)WHERE\s+verified\s*=\s*FALSE\s+AND\s+expires\s*<\s*\$1\s+ORDER\s+BY\s+expires`
	mock.ExpectQuery(q).
		WithArgs(now).
		WillReturnRows(rows)

	got, err := repo.FindExpired(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "req-1" || got[1].DataType != models.DataTypePassword {
		t.Fatalf("unexpected rows: %+v", got)
	}
}

func TestDelete(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*DELETE\s+FROM\s+change_requests\s+WHERE\s+id\s*=\s*\$1\s*$`

	mock.ExpectExec(q).
		WithArgs("req-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Delete(context.Background(), "req-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDelete_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE\s+FROM\s+change_requests`).
		WillReturnError(errors.New("db err"))

	err := repo.Delete(context.Background(), "req-1")
	if err == nil || !regexp.MustCompile(`error performing sql request: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}
