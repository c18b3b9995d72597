package passwordresets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dkurenkov/credkeeper/common"
	"github.com/dkurenkov/credkeeper/dbx"
	"github.com/dkurenkov/credkeeper/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, reset *models.PasswordReset) error {
	if reset.ID == "" {
		reset.ID = uuid.NewString()
	}
	if reset.CreatedAt.IsZero() {
		reset.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO password_resets (id, email, verification_code, expires,
			request_ip, request_agent, request_fingerprint, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		reset.ID, reset.Email, reset.VerificationCode, reset.Expires,
		reset.RequestIP, reset.RequestAgent, reset.RequestFingerprint, reset.CreatedAt)
	if err != nil {
		return fmt.Errorf("error performing sql request: %v", err)
	}
	return nil
}

func (r *PostgresRepository) FindByCode(ctx context.Context, email, code string) (*models.PasswordReset, error) {
	query := `
		SELECT id, email, verification_code, expires, request_ip, request_agent, request_fingerprint, created_at
		FROM password_resets
		WHERE email = $1 AND verification_code = $2
	`
	reset := &models.PasswordReset{}
	err := r.db.QueryRowContext(ctx, query, email, code).Scan(
		&reset.ID, &reset.Email, &reset.VerificationCode, &reset.Expires,
		&reset.RequestIP, &reset.RequestAgent, &reset.RequestFingerprint, &reset.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error performing sql request: %v", err)
	}
	return reset, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query := `
		DELETE FROM password_resets
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("error performing sql request: %v", err)
	}
	return nil
}
