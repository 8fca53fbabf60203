package models

import "time"

// AccountStatus is the moderation state of an account. Only administrators change it.
type AccountStatus string

const (
	AccountActive    AccountStatus = "ACTIVE"
	AccountSuspended AccountStatus = "SUSPENDED"
)

// CanAccess reports whether an account in this state may publish reviews.
func (s AccountStatus) CanAccess() bool {
	return s == AccountActive
}

// StatusMessage is the human readable explanation shown to the account holder.
func (s AccountStatus) StatusMessage() string {
	switch s {
	case AccountActive:
		return "Your account is active."
	case AccountSuspended:
		return "Your account is suspended. You cannot publish or edit reviews until an administrator reactivates it."
	default:
		return "Unknown account status."
	}
}

// Valid reports whether s is one of the known states.
func (s AccountStatus) Valid() bool {
	return s == AccountActive || s == AccountSuspended
}

// AccountProfile stores the status of a user account.
type AccountProfile struct {
	UserID    string        `db:"user_id" json:"user_id"`
	Status    AccountStatus `db:"status" json:"status"`
	UpdatedAt time.Time     `db:"updated_at" json:"updated_at"`
}

// AccountStatusView is returned by the status endpoints.
type AccountStatusView struct {
	UserID    string        `json:"user_id"`
	Status    AccountStatus `json:"status"`
	CanAccess bool          `json:"can_access"`
	Message   string        `json:"message"`
}

// NewAccountStatusView describes profile for API consumers.
func NewAccountStatusView(profile *AccountProfile) AccountStatusView {
	return AccountStatusView{
		UserID:    profile.UserID,
		Status:    profile.Status,
		CanAccess: profile.Status.CanAccess(),
		Message:   profile.Status.StatusMessage(),
	}
}

// PendingUser is a registration awaiting e-mail confirmation.
type PendingUser struct {
	ID               string    `db:"id" json:"id"`
	Email            string    `db:"email" json:"email"`
	Username         string    `db:"username" json:"username"`
	FullName         string    `db:"full_name" json:"full_name"`
	PasswordHash     string    `db:"password_hash" json:"-"`
	ConfirmationCode string    `db:"confirmation_code" json:"-"`
	ExpiresAt        time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}
