package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/profepulse/profepulse-api/internal/models"
)

// AccountProfileRepository persists account statuses.
type AccountProfileRepository struct {
	db *sqlx.DB
}

// NewAccountProfileRepository constructs the repository.
func NewAccountProfileRepository(db *sqlx.DB) *AccountProfileRepository {
	return &AccountProfileRepository{db: db}
}

// GetOrCreate returns the profile of userID, inserting an ACTIVE one when missing.
// Concurrent callers converge on the same row. Inside a transaction the row stays
// share locked until commit, so SetStatus waits for in-flight review writes.
func (r *AccountProfileRepository) GetOrCreate(ctx context.Context, exec sqlx.ExtContext, userID string) (*models.AccountProfile, error) {
	target := executor(r.db, exec)

	const insert = `INSERT INTO account_profiles (user_id, status, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO NOTHING`
	if _, err := target.ExecContext(ctx, insert, userID, models.AccountActive, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("ensure account profile: %w", err)
	}

	const query = `SELECT user_id, status, updated_at FROM account_profiles WHERE user_id = $1 FOR SHARE`
	var profile models.AccountProfile
	if err := sqlx.GetContext(ctx, target, &profile, query, userID); err != nil {
		return nil, fmt.Errorf("load account profile: %w", err)
	}
	return &profile, nil
}

// SetStatus stores status for userID, creating the profile when needed.
func (r *AccountProfileRepository) SetStatus(ctx context.Context, exec sqlx.ExtContext, userID string, status models.AccountStatus) (*models.AccountProfile, error) {
	profile := &models.AccountProfile{UserID: userID, Status: status, UpdatedAt: time.Now().UTC()}
	const query = `INSERT INTO account_profiles (user_id, status, updated_at) VALUES (:user_id, :status, :updated_at)
		ON CONFLICT (user_id) DO UPDATE SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`
	if _, err := sqlx.NamedExecContext(ctx, executor(r.db, exec), query, profile); err != nil {
		return nil, fmt.Errorf("set account status: %w", err)
	}
	return profile, nil
}
