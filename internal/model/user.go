package model

import (
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
)

// User is a ledger owner. PasswordHash is never rendered.
type User struct {
	CreatedAt       time.Time
	LastLogin       *time.Time
	Username        string
	Email           string
	DisplayName     string
	PasswordHash    string `json:"-"`
	ID              int64
	RequirePassword bool
	IsActive        bool
}

// UserUpdate lists the user fields that may change; nil means unchanged.
type UserUpdate struct {
	Email       *string
	DisplayName *string
	IsActive    *bool
}

// Apply copies the set fields onto u.
func (up UserUpdate) Apply(u *User) {
	if up.Email != nil {
		u.Email = *up.Email
	}
	if up.DisplayName != nil {
		u.DisplayName = *up.DisplayName
	}
	if up.IsActive != nil {
		u.IsActive = *up.IsActive
	}
}

// Session identifies the acting user for one service call.
type Session struct {
	ExpiresAt time.Time
	Token     string
	Username  string
	UserID    int64
}

// Require rejects zero-value sessions.
func (s Session) Require() error {
	if s.UserID == 0 {
		return common.ErrUnauthorized
	}
	return nil
}

// Expired reports whether the session has a deadline that has passed.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
