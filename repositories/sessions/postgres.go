package sessions

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

func (r *PostgresRepository) Create(ctx context.Context, sess *models.RefreshSession) error {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO refresh_sessions (id, user_id, ip, user_agent, fingerprint, refresh_token, created_at, expires_in)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		sess.ID, sess.UserID, sess.IP, sess.UserAgent, sess.Fingerprint,
		sess.RefreshToken, sess.CreatedAt, int64(sess.ExpiresIn))
	if err != nil {
		return fmt.Errorf("error performing sql request: %v", err)
	}
	return nil
}

func (r *PostgresRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	query := `
		SELECT COUNT(*) FROM refresh_sessions
		WHERE user_id = $1
	`
	var n int
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("error performing sql request: %v", err)
	}
	return n, nil
}

func (r *PostgresRepository) FindByUser(ctx context.Context, userID string) ([]*models.RefreshSession, error) {
	query := `
		SELECT id, user_id, ip, user_agent, fingerprint, refresh_token, created_at, expires_in
		FROM refresh_sessions
		WHERE user_id = $1
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("error performing sql request: %v", err)
	}
	defer rows.Close()

	var result []*models.RefreshSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error performing sql request: %v", err)
	}
	return result, nil
}

func (r *PostgresRepository) FindMatch(ctx context.Context, m Match) (*models.RefreshSession, error) {
	query := `
		SELECT id, user_id, ip, user_agent, fingerprint, refresh_token, created_at, expires_in
		FROM refresh_sessions
		WHERE user_id = $1 AND ip = $2 AND user_agent = $3 AND fingerprint = $4 AND refresh_token = $5
	`
	row := r.db.QueryRowContext(ctx, query, m.UserID, m.IP, m.UserAgent, m.Fingerprint, m.RefreshToken)

	sess := &models.RefreshSession{}
	var expiresIn int64
	err := row.Scan(&sess.ID, &sess.UserID, &sess.IP, &sess.UserAgent,
		&sess.Fingerprint, &sess.RefreshToken, &sess.CreatedAt, &expiresIn)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error performing sql request: %v", err)
	}
	sess.ExpiresIn = time.Duration(expiresIn)
	return sess, nil
}

func (r *PostgresRepository) DeleteByToken(ctx context.Context, token string) (int64, error) {
	query := `
		DELETE FROM refresh_sessions
		WHERE refresh_token = $1
	`
	res, err := r.db.ExecContext(ctx, query, token)
	if err != nil {
		return 0, fmt.Errorf("error performing sql request: %v", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error performing sql request: %v", err)
	}
	return n, nil
}

func (r *PostgresRepository) DeleteMatch(ctx context.Context, m Match) error {
	query := `
		DELETE FROM refresh_sessions
		WHERE user_id = $1 AND ip = $2 AND user_agent = $3 AND fingerprint = $4 AND refresh_token = $5
	`
	if _, err := r.db.ExecContext(ctx, query, m.UserID, m.IP, m.UserAgent, m.Fingerprint, m.RefreshToken); err != nil {
		return fmt.Errorf("error performing sql request: %v", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteAllForUser(ctx context.Context, userID string) error {
	query := `
		DELETE FROM refresh_sessions
		WHERE user_id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("error performing sql request: %v", err)
	}
	return nil
}

func scanSession(rows *sql.Rows) (*models.RefreshSession, error) {
	sess := &models.RefreshSession{}
	var expiresIn int64
	err := rows.Scan(&sess.ID, &sess.UserID, &sess.IP, &sess.UserAgent,
		&sess.Fingerprint, &sess.RefreshToken, &sess.CreatedAt, &expiresIn)
	if err != nil {
		return nil, fmt.Errorf("error performing sql request: %v", err)
	}
	sess.ExpiresIn = time.Duration(expiresIn)
	return sess, nil
}
