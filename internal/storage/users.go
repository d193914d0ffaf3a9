package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
)

const userColumns = `id, username, email, display_name, password_hash, require_password, is_active, created_at, last_login`

func scanUser(row rowScanner) (*model.User, error) {
	var (
		user         model.User
		email        sql.NullString
		displayName  sql.NullString
		passwordHash sql.NullString
		lastLogin    sql.NullTime
	)
	if err := row.Scan(&user.ID, &user.Username, &email, &displayName, &passwordHash,
		&user.RequirePassword, &user.IsActive, &user.CreatedAt, &lastLogin); err != nil {
		return nil, err
	}
	user.Email = email.String
	user.DisplayName = displayName.String
	user.PasswordHash = passwordHash.String
	user.LastLogin = timePtr(lastLogin)
	return &user, nil
}

// CreateUser inserts a user and sets its ID.
func (s *queries) CreateUser(ctx context.Context, user *model.User) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("%w: user", ErrNilParameter)
	}
	if err := validateString(user.Username, "username"); err != nil {
		return err
	}

	res, err := s.q.ExecContext(ctx, `
		INSERT INTO users (username, email, display_name, password_hash, require_password, is_active)
		VALUES (?, ?, ?, ?, ?, ?)`,
		user.Username, nullString(user.Email), nullString(user.DisplayName),
		nullString(user.PasswordHash), user.RequirePassword, user.IsActive)
	if err != nil {
		return mapWriteError(err, "user")
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get user id: %w", err)
	}
	user.ID = id
	user.CreatedAt = time.Now()
	return nil
}

// GetUserByID returns a user by primary key.
func (s *queries) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getUser(ctx, "id = ?", id, fmt.Sprintf("user %d", id))
}

// GetUserByUsername returns a user by login name.
func (s *queries) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(username, "username"); err != nil {
		return nil, err
	}
	return s.getUser(ctx, "username = ?", username, fmt.Sprintf("user %q", username))
}

// GetUserByEmail returns a user by email address.
func (s *queries) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(email, "email"); err != nil {
		return nil, err
	}
	return s.getUser(ctx, "email = ?", email, fmt.Sprintf("user with email %q", email))
}

func (s *queries) getUser(ctx context.Context, where string, arg any, what string) (*model.User, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFoundf("%s", what)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return user, nil
}

// ListUsers returns users ordered by username.
func (s *queries) ListUsers(ctx context.Context, includeInactive bool) ([]model.User, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT ` + userColumns + ` FROM users`
	if !includeInactive {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY username`

	rows, err := s.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

// UpdateUser saves the profile fields of an existing user.
func (s *queries) UpdateUser(ctx context.Context, user *model.User) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("%w: user", ErrNilParameter)
	}

	res, err := s.q.ExecContext(ctx, `
		UPDATE users SET email = ?, display_name = ?, is_active = ?
		WHERE id = ?`,
		nullString(user.Email), nullString(user.DisplayName), user.IsActive, user.ID)
	if err != nil {
		return mapWriteError(err, "user")
	}
	return expectOneRow(res, "user", user.ID)
}

// SetUserPassword stores a password hash. An empty hash clears the password.
func (s *queries) SetUserPassword(ctx context.Context, userID int64, hash string, required bool) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	res, err := s.q.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, require_password = ? WHERE id = ?`,
		nullString(hash), required, userID)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return expectOneRow(res, "user", userID)
}

// TouchLastLogin records a successful login.
func (s *queries) TouchLastLogin(ctx context.Context, userID int64, at time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	res, err := s.q.ExecContext(ctx, `UPDATE users SET last_login = ? WHERE id = ?`, at.UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return expectOneRow(res, "user", userID)
}
