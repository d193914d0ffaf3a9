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

// CreateSession stores a login session.
func (s *queries) CreateSession(ctx context.Context, session *model.Session) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if session == nil {
		return fmt.Errorf("%w: session", ErrNilParameter)
	}
	if err := validateString(session.Token, "token"); err != nil {
		return err
	}

	_, err := s.q.ExecContext(ctx,
		`INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)`,
		session.Token, session.UserID, session.ExpiresAt.UTC())
	return mapWriteError(err, "session")
}

// GetSession looks a session up by token, joining the owning user's name.
// Expiry is left to the caller.
func (s *queries) GetSession(ctx context.Context, token string) (*model.Session, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(token, "token"); err != nil {
		return nil, err
	}

	var session model.Session
	err := s.q.QueryRowContext(ctx, `
		SELECT s.token, s.user_id, u.username, s.expires_at
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token = ? AND u.is_active = 1`, token).
		Scan(&session.Token, &session.UserID, &session.Username, &session.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFoundf("session")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}
	return &session, nil
}

// DeleteSession removes a session. Unknown tokens are ignored.
func (s *queries) DeleteSession(ctx context.Context, token string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if _, err := s.q.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions prunes sessions whose deadline has passed.
func (s *queries) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	res, err := s.q.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}
