package vaults

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

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

func (r *PostgresRepository) Create(ctx context.Context, userID string, salt []byte) error {
	query := `
		INSERT INTO vaults (user_id, salt, updated_at)
		VALUES ($1, $2, $3)
	`
	if _, err := r.db.ExecContext(ctx, query, userID, salt, time.Now()); err != nil {
		return fmt.Errorf("error performing sql request: %v", err)
	}
	return nil
}

func (r *PostgresRepository) FindByUserID(ctx context.Context, userID string) (*models.Vault, error) {
	query := `
		SELECT user_id, salt, updated_at FROM vaults
		WHERE user_id = $1
	`
	vault := &models.Vault{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&vault.UserID, &vault.Salt, &vault.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error performing sql request: %v", err)
	}
	return vault, nil
}

func (r *PostgresRepository) UpdateSalt(ctx context.Context, userID string, salt []byte) error {
	query := `
		UPDATE vaults SET salt = $1, updated_at = $2
		WHERE user_id = $3
	`
	res, err := r.db.ExecContext(ctx, query, salt, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("error performing sql request: %v", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
