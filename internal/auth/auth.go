// Package auth manages ledger users and their login sessions.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// DefaultSessionTTL is how long a login stays valid when no TTL is configured.
const DefaultSessionTTL = 720 * time.Hour

// NewUser describes a user to create. Password is optional.
type NewUser struct {
	Username    string
	Password    string
	Email       string
	DisplayName string
}

// Service creates users and issues sessions.
type Service struct {
	store  service.Store
	now    func() time.Time
	logger *slog.Logger
	ttl    time.Duration
	cost   int
}

// NewService creates an auth service. A non-positive ttl uses DefaultSessionTTL.
func NewService(store service.Store, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Service{
		store:  store,
		now:    time.Now,
		logger: slog.Default().With("component", "auth"),
		ttl:    ttl,
		cost:   bcrypt.DefaultCost,
	}
}

// WithClock replaces the service clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithHashCost sets the bcrypt cost. Tests use bcrypt.MinCost.
func (s *Service) WithHashCost(cost int) *Service {
	s.cost = cost
	return s
}

// CreateUser registers a user. A password, when given, is required at login.
func (s *Service) CreateUser(ctx context.Context, in NewUser) (*model.User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, common.Validationf("username is required")
	}

	if _, err := s.store.GetUserByUsername(ctx, username); err == nil {
		return nil, common.Validationf("username %q already exists", username)
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}

	email := strings.TrimSpace(in.Email)
	if email != "" {
		if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
			return nil, common.Validationf("email %q already in use", email)
		} else if !errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("failed to check email: %w", err)
		}
	}

	user := &model.User{
		Username:    username,
		Email:       email,
		DisplayName: strings.TrimSpace(in.DisplayName),
		IsActive:    true,
	}
	if in.Password != "" {
		hash, err := s.hash(in.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
		user.RequirePassword = true
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	s.logger.Info("Created user", "username", username, "password", user.RequirePassword)
	return redact(user), nil
}

// Login checks credentials and opens a session.
func (s *Service) Login(ctx context.Context, username, password string) (model.Session, error) {
	user, err := s.authenticate(ctx, username, password)
	if err != nil {
		return model.Session{}, err
	}
	return s.open(ctx, user)
}

// SessionForUser opens a session without a password. Only users that have no
// password may use it.
func (s *Service) SessionForUser(ctx context.Context, username string) (model.Session, error) {
	return s.Login(ctx, username, "")
}

func (s *Service) authenticate(ctx context.Context, username, password string) (*model.User, error) {
	user, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("%w: user %q not found or inactive", common.ErrUnauthorized, username)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.IsActive {
		return nil, fmt.Errorf("%w: user %q not found or inactive", common.ErrUnauthorized, username)
	}

	if user.RequirePassword {
		if password == "" {
			return nil, fmt.Errorf("%w: password required for user %q", common.ErrUnauthorized, username)
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
			s.logger.Warn("Failed login", "username", username)
			return nil, fmt.Errorf("%w: invalid username or password", common.ErrUnauthorized)
		}
	}
	return user, nil
}

func (s *Service) open(ctx context.Context, user *model.User) (model.Session, error) {
	now := s.now().UTC()
	if err := s.store.TouchLastLogin(ctx, user.ID, now); err != nil {
		return model.Session{}, fmt.Errorf("failed to record login: %w", err)
	}

	session := model.Session{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		Username:  user.Username,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.store.CreateSession(ctx, &session); err != nil {
		return model.Session{}, fmt.Errorf("failed to create session: %w", err)
	}
	if n, err := s.store.DeleteExpiredSessions(ctx, now); err != nil {
		s.logger.Warn("Failed to prune sessions", "error", err)
	} else if n > 0 {
		s.logger.Debug("Pruned expired sessions", "count", n)
	}

	s.logger.Info("User logged in", "username", user.Username)
	return session, nil
}

// Resolve turns a token into the session it names.
func (s *Service) Resolve(ctx context.Context, token string) (model.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return model.Session{}, fmt.Errorf("%w: not logged in", common.ErrUnauthorized)
	}
	session, err := s.store.GetSession(ctx, token)
	if errors.Is(err, common.ErrNotFound) {
		return model.Session{}, fmt.Errorf("%w: unknown session", common.ErrUnauthorized)
	}
	if err != nil {
		return model.Session{}, fmt.Errorf("failed to load session: %w", err)
	}
	if session.Expired(s.now()) {
		return model.Session{}, fmt.Errorf("%w: session expired", common.ErrUnauthorized)
	}
	return *session, nil
}

// Logout ends a session.
func (s *Service) Logout(ctx context.Context, token string) error {
	if err := s.store.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// CurrentUser returns the user behind a session.
func (s *Service) CurrentUser(ctx context.Context, session model.Session) (*model.User, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}
	user, err := s.store.GetUserByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	return redact(user), nil
}

// ListUsers lists users without their password hashes.
func (s *Service) ListUsers(ctx context.Context, includeInactive bool) ([]model.User, error) {
	users, err := s.store.ListUsers(ctx, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	for i := range users {
		users[i].PasswordHash = ""
	}
	return users, nil
}

// ChangePassword sets a new password and makes it required.
func (s *Service) ChangePassword(ctx context.Context, session model.Session, password string) error {
	if err := session.Require(); err != nil {
		return err
	}
	if password == "" {
		return common.Validationf("password cannot be empty")
	}
	hash, err := s.hash(password)
	if err != nil {
		return err
	}
	return s.store.SetUserPassword(ctx, session.UserID, hash, true)
}

// RemovePassword lets the user log in without a password.
func (s *Service) RemovePassword(ctx context.Context, session model.Session) error {
	if err := session.Require(); err != nil {
		return err
	}
	return s.store.SetUserPassword(ctx, session.UserID, "", false)
}

// UpdateUser changes profile fields. The password is not among them.
func (s *Service) UpdateUser(ctx context.Context, session model.Session, update model.UserUpdate) (*model.User, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}
	user, err := s.store.GetUserByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}

	if update.Email != nil {
		email := strings.TrimSpace(*update.Email)
		if email != "" && email != user.Email {
			other, err := s.store.GetUserByEmail(ctx, email)
			if err == nil && other.ID != user.ID {
				return nil, common.Validationf("email %q already in use", email)
			}
		}
		update.Email = &email
	}

	update.Apply(user)
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return redact(user), nil
}

func (s *Service) hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func redact(u *model.User) *model.User {
	u.PasswordHash = ""
	return u
}
