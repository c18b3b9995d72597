// PostgreSQL-backed credential repository over dbx.DBTX (satisfied by
// *sql.DB or *sql.Tx).
package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dkurenkov/credkeeper/common"
	"github.com/dkurenkov/credkeeper/dbx"
	"github.com/dkurenkov/credkeeper/models"
)

const credentialColumns = `id, email, username, phone_number, password_hash,
		first_name, last_name, birthday, is_active, verification_code,
		verification_expiry, login_attempts, is_blocked, block_expiry, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// where builds a WHERE clause and its arguments from the filter.
func (f Filter) where() (string, []any) {
	var conds []string
	var args []any

	add := func(col string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if f.ID != "" {
		add("id", f.ID)
	}
	if f.Email != "" {
		add("email", f.Email)
	}
	if f.Username != "" {
		add("username", f.Username)
	}
	if f.PhoneNumber != "" {
		add("phone_number", f.PhoneNumber)
	}
	if f.PasswordHash != "" {
		add("password_hash", f.PasswordHash)
	}
	if f.IsActive != nil {
		add("is_active", *f.IsActive)
	}
	if f.IsBlocked != nil {
		add("is_blocked", *f.IsBlocked)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *PostgresRepository) Create(ctx context.Context, cred *models.Credential) (*models.Credential, error) {
	if cred.ID == "" {
		cred.ID = uuid.NewString()
	}
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO credentials (id, email, username, phone_number, password_hash,
			first_name, last_name, birthday, is_active, verification_code,
			verification_expiry, login_attempts, is_blocked, block_expiry, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.db.ExecContext(ctx, query,
		cred.ID, cred.Email, cred.Username, nullString(cred.PhoneNumber), cred.PasswordHash,
		cred.FirstName, cred.LastName, cred.Birthday, cred.IsActive, cred.VerificationCode,
		nullTime(cred.VerificationExpiry), cred.LoginAttempts, cred.IsBlocked,
		nullTime(cred.BlockExpiry), cred.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("error performing sql request: %v", err)
	}

	return cred, nil
}

func (r *PostgresRepository) FindOne(ctx context.Context, f Filter) (*models.Credential, error) {
	where, args := f.where()
	query := "SELECT " + credentialColumns + " FROM credentials" + where + " LIMIT 1"

	var (
		cred               models.Credential
		phoneNumber        sql.NullString
		verificationExpiry sql.NullTime
		blockExpiry        sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&cred.ID, &cred.Email, &cred.Username, &phoneNumber, &cred.PasswordHash,
		&cred.FirstName, &cred.LastName, &cred.Birthday, &cred.IsActive, &cred.VerificationCode,
		&verificationExpiry, &cred.LoginAttempts, &cred.IsBlocked, &blockExpiry, &cred.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error performing sql request: %v", err)
	}

	cred.PhoneNumber = phoneNumber.String
	if verificationExpiry.Valid {
		cred.VerificationExpiry = verificationExpiry.Time
	}
	if blockExpiry.Valid {
		cred.BlockExpiry = blockExpiry.Time
	}

	return &cred, nil
}

func (r *PostgresRepository) Exists(ctx context.Context, f Filter) (bool, error) {
	n, err := r.Count(ctx, f)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *PostgresRepository) Count(ctx context.Context, f Filter) (int, error) {
	where, args := f.where()
	query := "SELECT COUNT(*) FROM credentials" + where

	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("error performing sql request: %v", err)
	}
	return n, nil
}

func (r *PostgresRepository) Update(ctx context.Context, id string, upd Update) error {
	var sets []string
	var args []any

	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if upd.Email != nil {
		set("email", *upd.Email)
	}
	if upd.Username != nil {
		set("username", *upd.Username)
	}
	if upd.PhoneNumber != nil {
		set("phone_number", nullString(*upd.PhoneNumber))
	}
	if upd.PasswordHash != nil {
		set("password_hash", *upd.PasswordHash)
	}
	if upd.FirstName != nil {
		set("first_name", *upd.FirstName)
	}
	if upd.LastName != nil {
		set("last_name", *upd.LastName)
	}
	if upd.Birthday != nil {
		set("birthday", *upd.Birthday)
	}
	if upd.IsActive != nil {
		set("is_active", *upd.IsActive)
	}
	if upd.VerificationCode != nil {
		set("verification_code", *upd.VerificationCode)
	}
	if upd.VerificationExpiry != nil {
		set("verification_expiry", nullTime(*upd.VerificationExpiry))
	}
	if upd.LoginAttempts != nil {
		set("login_attempts", *upd.LoginAttempts)
	}
	if upd.IsBlocked != nil {
		set("is_blocked", *upd.IsBlocked)
	}
	if upd.BlockExpiry != nil {
		set("block_expiry", nullTime(*upd.BlockExpiry))
	}

	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE credentials SET %s WHERE id = $%d",
		strings.Join(sets, ", "), len(args))

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("error performing sql request: %v", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
