package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/ngo-data-hub/internal/model"
)

// SessionRepo persists login sessions in `user_sessions`.  A session is
// live while its row exists and expires_at is in the future; refresh tokens
// are accepted only when they equal the stored refresh_token value.
type SessionRepo struct{ DB *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{DB: db} }

// Create inserts a new session row.
func (r *SessionRepo) Create(ctx context.Context, s model.Session) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO user_sessions (user_id, session_id, ip_address, device, expires_at) VALUES (?,?,?,?,?)",
		s.UserID, s.SessionID, s.IPAddress, s.Device, s.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// SetRefreshToken overwrites the stored refresh token, invalidating
// whatever value was stored before.
func (r *SessionRepo) SetRefreshToken(ctx context.Context, sessionID, token string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE user_sessions SET refresh_token = ? WHERE session_id = ?", token, sessionID)
	if err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// RotateRefreshToken replaces the stored refresh token only if it still
// equals expected.  It returns false when another request rotated it first.
func (r *SessionRepo) RotateRefreshToken(ctx context.Context, sessionID, expected, next string) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE user_sessions SET refresh_token = ? WHERE session_id = ? AND refresh_token = ?",
		next, sessionID, expected)
	if err != nil {
		return false, fmt.Errorf("rotate refresh token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// IsLive reports whether a session row exists for this user and session id
// with expires_at after now.
func (r *SessionRepo) IsLive(ctx context.Context, userID uint64, sessionID string, now time.Time) (bool, error) {
	var id uint64
	err := r.DB.QueryRowContext(ctx,
		"SELECT id FROM user_sessions WHERE user_id = ? AND session_id = ? AND expires_at > ? LIMIT 1",
		userID, sessionID, now).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check session: %w", err)
	}
	return true, nil
}

// GetWithUser loads a session joined to its user's email and role.
func (r *SessionRepo) GetWithUser(ctx context.Context, sessionID string) (model.SessionWithUser, error) {
	var (
		s       model.SessionWithUser
		refresh sql.NullString
	)
	err := r.DB.QueryRowContext(ctx,
		`SELECT us.id, us.user_id, us.session_id, us.refresh_token, us.expires_at, u.email, u.role
		   FROM user_sessions us
		   JOIN users u ON u.id = us.user_id
		  WHERE us.session_id = ?
		  LIMIT 1`,
		sessionID).Scan(&s.ID, &s.UserID, &s.SessionID, &refresh, &s.ExpiresAt, &s.Email, &s.Role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.SessionWithUser{}, ErrNotFound
		}
		return model.SessionWithUser{}, fmt.Errorf("load session: %w", err)
	}
	s.RefreshToken = refresh.String
	return s, nil
}

// Delete removes a session.  Deleting a missing session is not an error.
func (r *SessionRepo) Delete(ctx context.Context, sessionID string) error {
	if _, err := r.DB.ExecContext(ctx, "DELETE FROM user_sessions WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PurgeExpired deletes sessions whose expires_at is not after now and
// returns how many rows were removed.
func (r *SessionRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM user_sessions WHERE expires_at <= ?", now)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return res.RowsAffected()
}
