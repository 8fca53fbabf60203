package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/profepulse/profepulse-api/internal/models"
)

// PendingUserRepository stores registrations awaiting confirmation.
type PendingUserRepository struct {
	db *sqlx.DB
}

// NewPendingUserRepository constructs the repository.
func NewPendingUserRepository(db *sqlx.DB) *PendingUserRepository {
	return &PendingUserRepository{db: db}
}

// Upsert stores pending, replacing an earlier registration for the same e-mail.
func (r *PendingUserRepository) Upsert(ctx context.Context, pending *models.PendingUser) error {
	if pending.ID == "" {
		pending.ID = uuid.NewString()
	}
	if pending.CreatedAt.IsZero() {
		pending.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO pending_users (id, email, username, full_name, password_hash, confirmation_code, expires_at, created_at)
		VALUES (:id, :email, :username, :full_name, :password_hash, :confirmation_code, :expires_at, :created_at)
		ON CONFLICT (email) DO UPDATE SET username = EXCLUDED.username, full_name = EXCLUDED.full_name,
			password_hash = EXCLUDED.password_hash, confirmation_code = EXCLUDED.confirmation_code,
			expires_at = EXCLUDED.expires_at, created_at = EXCLUDED.created_at`
	if _, err := r.db.NamedExecContext(ctx, query, pending); err != nil {
		return fmt.Errorf("upsert pending user: %w", err)
	}
	return nil
}

// FindByEmail returns the pending registration for email.
func (r *PendingUserRepository) FindByEmail(ctx context.Context, email string) (*models.PendingUser, error) {
	const query = `SELECT id, email, username, full_name, password_hash, confirmation_code, expires_at, created_at
		FROM pending_users WHERE LOWER(email) = LOWER($1)`
	var pending models.PendingUser
	if err := r.db.GetContext(ctx, &pending, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find pending user: %w", err)
	}
	return &pending, nil
}

// Delete removes a pending registration.
func (r *PendingUserRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	if _, err := executor(r.db, exec).ExecContext(ctx, `DELETE FROM pending_users WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete pending user: %w", err)
	}
	return nil
}

// DeleteExpired purges registrations whose code expired before now.
func (r *PendingUserRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM pending_users WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired pending users: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
