package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/profepulse/profepulse-api/internal/models"
	"github.com/profepulse/profepulse-api/internal/repository"
	appErrors "github.com/profepulse/profepulse-api/pkg/errors"
	"github.com/profepulse/profepulse-api/pkg/mailer"
)

const (
	defaultCodeTTL   = 15 * time.Minute
	confirmationSize = 6
)

var errInvalidCode = appErrors.Clone(appErrors.ErrValidation, "invalid or expired confirmation code")

type accountUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error)
	Create(ctx context.Context, exec sqlx.ExtContext, user *models.User) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type pendingUserRepository interface {
	Upsert(ctx context.Context, pending *models.PendingUser) error
	FindByEmail(ctx context.Context, email string) (*models.PendingUser, error)
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type accountProfileStore interface {
	GetOrCreate(ctx context.Context, exec sqlx.ExtContext, userID string) (*models.AccountProfile, error)
	SetStatus(ctx context.Context, exec sqlx.ExtContext, userID string, status models.AccountStatus) (*models.AccountProfile, error)
}

type mailNotifier interface {
	Notify(ctx context.Context, msg mailer.Message)
}

// RegistrationResult tells the client where the confirmation code went.
type RegistrationResult struct {
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AccountService handles registration and the administrator controlled account status.
type AccountService struct {
	tx        transactor
	users     accountUserRepository
	pending   pendingUserRepository
	profiles  accountProfileStore
	notifier  mailNotifier
	validator *validator.Validate
	logger    *zap.Logger
	codeTTL   time.Duration
	now       func() time.Time
	newCode   func() (string, error)
}

// AccountServiceDeps groups the collaborators of AccountService.
type AccountServiceDeps struct {
	Tx        transactor
	Users     accountUserRepository
	Pending   pendingUserRepository
	Profiles  accountProfileStore
	Notifier  mailNotifier
	Validator *validator.Validate
	Logger    *zap.Logger
	CodeTTL   time.Duration
}

// NewAccountService constructs an AccountService.
func NewAccountService(deps AccountServiceDeps) *AccountService {
	if deps.Validator == nil {
		deps.Validator = NewValidator()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.CodeTTL <= 0 {
		deps.CodeTTL = defaultCodeTTL
	}
	return &AccountService{
		tx:        deps.Tx,
		users:     deps.Users,
		pending:   deps.Pending,
		profiles:  deps.Profiles,
		notifier:  deps.Notifier,
		validator: deps.Validator,
		logger:    deps.Logger,
		codeTTL:   deps.CodeTTL,
		now:       func() time.Time { return time.Now().UTC() },
		newCode:   confirmationCode,
	}
}

// Register stores a pending registration and mails its confirmation code.
// Registering again with the same e-mail replaces the earlier code.
func (s *AccountService) Register(ctx context.Context, req models.RegisterRequest) (*RegistrationResult, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Username = strings.TrimSpace(req.Username)
	req.FullName = strings.TrimSpace(req.FullName)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	exists, err := s.users.ExistsByEmailOrUsername(ctx, req.Email, req.Username)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing accounts")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email or username already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	code, err := s.newCode()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate confirmation code")
	}

	pending := &models.PendingUser{
		Email:            req.Email,
		Username:         req.Username,
		FullName:         req.FullName,
		PasswordHash:     string(hash),
		ConfirmationCode: code,
		ExpiresAt:        s.now().Add(s.codeTTL),
	}
	if err := s.pending.Upsert(ctx, pending); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store registration")
	}

	msg, err := mailer.Confirmation(pending.Email, pending.FullName, code, s.codeTTL)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build confirmation mail")
	}
	s.notifier.Notify(ctx, msg)
	s.logger.Info("registration pending", zap.String("email", pending.Email))

	return &RegistrationResult{Email: pending.Email, ExpiresAt: pending.ExpiresAt}, nil
}

// Confirm turns a pending registration into a student account with an ACTIVE profile.
func (s *AccountService) Confirm(ctx context.Context, req models.ConfirmRequest) (*models.UserInfo, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Code = strings.TrimSpace(req.Code)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid confirmation payload")
	}

	pending, err := s.pending.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errInvalidCode
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}
	if subtle.ConstantTimeCompare([]byte(pending.ConfirmationCode), []byte(req.Code)) != 1 || s.now().After(pending.ExpiresAt) {
		return nil, errInvalidCode
	}

	user := &models.User{
		Email:        pending.Email,
		Username:     pending.Username,
		FullName:     pending.FullName,
		PasswordHash: pending.PasswordHash,
		Role:         models.RoleStudent,
		Active:       true,
	}
	err = s.tx.WithTx(ctx, func(ctx context.Context, exec sqlx.ExtContext) error {
		if err := s.users.Create(ctx, exec, user); err != nil {
			return err
		}
		if _, err := s.profiles.GetOrCreate(ctx, exec, user.ID); err != nil {
			return err
		}
		return s.pending.Delete(ctx, exec, pending.ID)
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email or username already registered")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create account")
	}

	s.logger.Info("account confirmed", zap.String("user_id", user.ID))
	info := userInfo(user)
	return &info, nil
}

// Status returns the account status of userID.
func (s *AccountService) Status(ctx context.Context, userID string) (*models.AccountStatusView, error) {
	profile, err := s.profiles.GetOrCreate(ctx, nil, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load account status")
	}
	view := models.NewAccountStatusView(profile)
	return &view, nil
}

// Suspend blocks userID from publishing or editing reviews.
func (s *AccountService) Suspend(ctx context.Context, actor Actor, userID string, meta LoginMeta) (*models.AccountStatusView, error) {
	return s.setStatus(ctx, actor, userID, models.AccountSuspended, models.AuditActionAccountSuspend, meta)
}

// Reactivate lifts a suspension.
func (s *AccountService) Reactivate(ctx context.Context, actor Actor, userID string, meta LoginMeta) (*models.AccountStatusView, error) {
	return s.setStatus(ctx, actor, userID, models.AccountActive, models.AuditActionAccountReactivate, meta)
}

func (s *AccountService) setStatus(ctx context.Context, actor Actor, userID string, status models.AccountStatus, action string, meta LoginMeta) (*models.AccountStatusView, error) {
	if !actor.IsAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only administrators can change account status")
	}
	if actor.UserID == userID && status == models.AccountSuspended {
		return nil, appErrors.Clone(appErrors.ErrValidation, "administrators cannot suspend themselves")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	previous, err := s.profiles.GetOrCreate(ctx, nil, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load account status")
	}
	profile, err := s.profiles.SetStatus(ctx, nil, userID, status)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to update account status")
	}

	oldValues, _ := json.Marshal(map[string]models.AccountStatus{"status": previous.Status})
	newValues, _ := json.Marshal(map[string]models.AccountStatus{"status": status})
	if err := s.users.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     action,
		Resource:   "account",
		ResourceID: &userID,
		OldValues:  oldValues,
		NewValues:  newValues,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record account status audit log", zap.Error(err))
	}

	if previous.Status != status {
		if msg, err := mailer.AccountStatus(user.Email, user.FullName, status.StatusMessage()); err == nil {
			s.notifier.Notify(ctx, msg)
		} else {
			s.logger.Warn("failed to build account status mail", zap.Error(err))
		}
	}

	s.logger.Info("account status changed", zap.String("user_id", userID), zap.String("status", string(status)), zap.String("by", actor.UserID))
	view := models.NewAccountStatusView(profile)
	return &view, nil
}

// PurgeExpiredRegistrations drops pending registrations whose code has expired.
func (s *AccountService) PurgeExpiredRegistrations(ctx context.Context) (int64, error) {
	n, err := s.pending.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to purge registrations")
	}
	if n > 0 {
		s.logger.Info("expired registrations purged", zap.Int64("count", n))
	}
	return n, nil
}

func confirmationCode() (string, error) {
	max := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", confirmationSize, n.Int64()), nil
}
