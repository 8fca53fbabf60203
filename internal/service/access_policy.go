package service

import (
	"context"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/profepulse/profepulse-api/internal/models"
	appErrors "github.com/profepulse/profepulse-api/pkg/errors"
)

type accountProfileRepository interface {
	GetOrCreate(ctx context.Context, exec sqlx.ExtContext, userID string) (*models.AccountProfile, error)
}

// AccessPolicy decides whether an account may publish reviews.
type AccessPolicy struct {
	profiles accountProfileRepository
	logger   *zap.Logger
}

// NewAccessPolicy constructs an AccessPolicy.
func NewAccessPolicy(profiles accountProfileRepository, logger *zap.Logger) *AccessPolicy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessPolicy{profiles: profiles, logger: logger}
}

// CanSubmit reports whether userID may publish, with the reason when it may not.
// Accounts without a status record get an ACTIVE one. A nil exec reads outside any transaction.
func (p *AccessPolicy) CanSubmit(ctx context.Context, exec sqlx.ExtContext, userID string) (bool, string, error) {
	profile, err := p.profiles.GetOrCreate(ctx, exec, userID)
	if err != nil {
		return false, "", appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to check account status")
	}
	if !profile.Status.CanAccess() {
		p.logger.Debug("review submission denied", zap.String("user_id", userID), zap.String("status", string(profile.Status)))
		return false, profile.Status.StatusMessage() + " You cannot add reviews.", nil
	}
	return true, "", nil
}
