package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/profepulse/profepulse-api/internal/models"
	"github.com/profepulse/profepulse-api/internal/repository"
	appErrors "github.com/profepulse/profepulse-api/pkg/errors"
	"github.com/profepulse/profepulse-api/pkg/mailer"
)

type mockAccountUsers struct {
	users     map[string]*models.User
	auditLogs []*models.AuditLog
	createErr error
}

func (m *mockAccountUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAccountUsers) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	for _, u := range m.users {
		if u.Email == email || u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockAccountUsers) Create(ctx context.Context, exec sqlx.ExtContext, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.users == nil {
		m.users = map[string]*models.User{}
	}
	user.ID = fmt.Sprintf("user-%d", len(m.users)+1)
	m.users[user.ID] = user
	return nil
}

func (m *mockAccountUsers) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

type mockPendingRepo struct {
	items   map[string]*models.PendingUser
	deleted []string
}

func (m *mockPendingRepo) Upsert(ctx context.Context, pending *models.PendingUser) error {
	if m.items == nil {
		m.items = map[string]*models.PendingUser{}
	}
	if pending.ID == "" {
		pending.ID = "pending-" + pending.Email
	}
	cp := *pending
	m.items[pending.Email] = &cp
	return nil
}

func (m *mockPendingRepo) FindByEmail(ctx context.Context, email string) (*models.PendingUser, error) {
	if p, ok := m.items[email]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPendingRepo) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	m.deleted = append(m.deleted, id)
	for email, p := range m.items {
		if p.ID == id {
			delete(m.items, email)
		}
	}
	return nil
}

func (m *mockPendingRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	for email, p := range m.items {
		if p.ExpiresAt.Before(now) {
			delete(m.items, email)
			n++
		}
	}
	return n, nil
}

type recordingNotifier struct{ sent []mailer.Message }

func (r *recordingNotifier) Notify(ctx context.Context, msg mailer.Message) {
	r.sent = append(r.sent, msg)
}

type accountFixture struct {
	users    *mockAccountUsers
	pending  *mockPendingRepo
	profiles *fakeProfiles
	notifier *recordingNotifier
	service  *AccountService
	clock    time.Time
}

func newAccountFixture() *accountFixture {
	f := &accountFixture{
		users:    &mockAccountUsers{users: map[string]*models.User{}},
		pending:  &mockPendingRepo{},
		profiles: &fakeProfiles{},
		notifier: &recordingNotifier{},
		clock:    time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	f.service = NewAccountService(AccountServiceDeps{
		Tx:       &fakeTx{db: newMemDB()},
		Users:    f.users,
		Pending:  f.pending,
		Profiles: f.profiles,
		Notifier: f.notifier,
		Logger:   zap.NewNop(),
		CodeTTL:  10 * time.Minute,
	})
	f.service.now = func() time.Time { return f.clock }
	f.service.newCode = func() (string, error) { return "123456", nil }
	return f
}

func registration() models.RegisterRequest {
	return models.RegisterRequest{Email: " Jane@Example.com ", Username: "jane", FullName: "Jane Doe", Password: "s3cretpass"}
}

func TestAccountServiceRegisterAndConfirm(t *testing.T) {
	f := newAccountFixture()

	res, err := f.service.Register(context.Background(), registration())
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", res.Email)
	assert.Equal(t, f.clock.Add(10*time.Minute), res.ExpiresAt)

	pending := f.pending.items["jane@example.com"]
	require.NotNil(t, pending)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(pending.PasswordHash), []byte("s3cretpass")))
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, []string{"jane@example.com"}, f.notifier.sent[0].To)
	assert.True(t, strings.Contains(f.notifier.sent[0].HTML, "123456"))

	_, err = f.service.Confirm(context.Background(), models.ConfirmRequest{Email: "jane@example.com", Code: "654321"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	info, err := f.service.Confirm(context.Background(), models.ConfirmRequest{Email: "jane@example.com", Code: "123456"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, info.Role)
	assert.Equal(t, models.AccountActive, f.profiles.statuses[info.ID])
	assert.Empty(t, f.pending.items)

	_, err = f.service.Register(context.Background(), registration())
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
}

func TestAccountServiceConfirmExpired(t *testing.T) {
	f := newAccountFixture()
	_, err := f.service.Register(context.Background(), registration())
	require.NoError(t, err)

	f.clock = f.clock.Add(11 * time.Minute)
	_, err = f.service.Confirm(context.Background(), models.ConfirmRequest{Email: "jane@example.com", Code: "123456"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, f.users.users)

	n, err := f.service.PurgeExpiredRegistrations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestAccountServiceConfirmDuplicateRace(t *testing.T) {
	f := newAccountFixture()
	_, err := f.service.Register(context.Background(), registration())
	require.NoError(t, err)
	f.users.createErr = fmt.Errorf("create user: %w", repository.ErrDuplicate)

	_, err = f.service.Confirm(context.Background(), models.ConfirmRequest{Email: "jane@example.com", Code: "123456"})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
}

func TestAccountServiceRegisterValidation(t *testing.T) {
	f := newAccountFixture()
	req := registration()
	req.Password = "short"

	_, err := f.service.Register(context.Background(), req)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Empty(t, f.pending.items)
	assert.Empty(t, f.notifier.sent)
}

func TestAccountServiceSuspendAndReactivate(t *testing.T) {
	f := newAccountFixture()
	f.users.users["u1"] = &models.User{ID: "u1", Email: "jane@example.com", FullName: "Jane Doe"}
	admin := Actor{UserID: "admin", IsAdmin: true}

	view, err := f.service.Suspend(context.Background(), admin, "u1", LoginMeta{IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, models.AccountSuspended, view.Status)
	assert.False(t, view.CanAccess)
	require.Len(t, f.users.auditLogs, 1)
	assert.Equal(t, models.AuditActionAccountSuspend, f.users.auditLogs[0].Action)
	assert.JSONEq(t, `{"status":"ACTIVE"}`, string(f.users.auditLogs[0].OldValues))
	require.Len(t, f.notifier.sent, 1)

	_, err = f.service.Suspend(context.Background(), admin, "u1", LoginMeta{})
	require.NoError(t, err)
	assert.Len(t, f.notifier.sent, 1, "unchanged status sends no mail")

	status, err := f.service.Status(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, models.AccountSuspended, status.Status)

	view, err = f.service.Reactivate(context.Background(), admin, "u1", LoginMeta{})
	require.NoError(t, err)
	assert.True(t, view.CanAccess)
	assert.Len(t, f.notifier.sent, 2)
}

func TestAccountServiceSuspendRules(t *testing.T) {
	f := newAccountFixture()
	f.users.users["u1"] = &models.User{ID: "u1"}

	_, err := f.service.Suspend(context.Background(), Actor{UserID: "u2"}, "u1", LoginMeta{})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = f.service.Suspend(context.Background(), Actor{UserID: "u1", IsAdmin: true}, "u1", LoginMeta{})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = f.service.Suspend(context.Background(), Actor{UserID: "admin", IsAdmin: true}, "ghost", LoginMeta{})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	assert.Empty(t, f.profiles.statuses)
}

func TestConfirmationCodeFormat(t *testing.T) {
	for i := 0; i < 20; i++ {
		code, err := confirmationCode()
		require.NoError(t, err)
		assert.Len(t, code, 6)
	}
}
