package changerequests

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

const changeRequestColumns = `id, user_id, verification_code, data_type, prev_value,
		expires, request_ip, request_agent, request_fingerprint, verified, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, req *models.ChangeRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO change_requests (id, user_id, verification_code, data_type, prev_value,
			expires, request_ip, request_agent, request_fingerprint, verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.ExecContext(ctx, query,
		req.ID, req.UserID, req.VerificationCode, string(req.DataType), req.PrevValue,
		req.Expires, req.RequestIP, req.RequestAgent, req.RequestFingerprint,
		req.Verified, req.CreatedAt)
	if err != nil {
		return fmt.Errorf("error performing sql request: %v", err)
	}
	return nil
}

func (r *PostgresRepository) CountPending(ctx context.Context, userID string) (int, error) {
	query := `
		SELECT COUNT(*) FROM change_requests
		WHERE user_id = $1 AND verified = FALSE
	`
	var n int
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("error performing sql request: %v", err)
	}
	return n, nil
}

func (r *PostgresRepository) FindMatch(ctx context.Context, userID, code string, dataType models.ChangeDataType) (*models.ChangeRequest, error) {
	query := "SELECT " + changeRequestColumns + ` FROM change_requests
		WHERE user_id = $1 AND verification_code = $2 AND data_type = $3 AND verified = FALSE
	`
	row := r.db.QueryRowContext(ctx, query, userID, code, string(dataType))

	req, err := scanChangeRequest(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error performing sql request: %v", err)
	}
	return req, nil
}

func (r *PostgresRepository) MarkVerified(ctx context.Context, id string) error {
	query := `
		UPDATE change_requests SET verified = TRUE
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("error performing sql request: %v", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) FindExpired(ctx context.Context, now time.Time) ([]*models.ChangeRequest, error) {
	query := "SELECT " + changeRequestColumns + ` FROM change_requests
		WHERE verified = FALSE AND expires < $1
		ORDER BY expires
	`
	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("error performing sql request: %v", err)
	}
	defer rows.Close()

	var result []*models.ChangeRequest
	for rows.Next() {
		req, err := scanChangeRequest(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("error performing sql request: %v", err)
		}
		result = append(result, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error performing sql request: %v", err)
	}
	return result, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query := `
		DELETE FROM change_requests
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("error performing sql request: %v", err)
	}
	return nil
}

func scanChangeRequest(scan func(dest ...any) error) (*models.ChangeRequest, error) {
	req := &models.ChangeRequest{}
	var dataType string
	err := scan(&req.ID, &req.UserID, &req.VerificationCode, &dataType, &req.PrevValue,
		&req.Expires, &req.RequestIP, &req.RequestAgent, &req.RequestFingerprint,
		&req.Verified, &req.CreatedAt)
	if err != nil {
		return nil, err
	}
	req.DataType = models.ChangeDataType(dataType)
	return req, nil
}
