package model

import "time"

// Session models a row in `user_sessions`.  One row exists per successful
// login; RefreshToken holds the only refresh token value currently accepted
// for the session.  IPAddress and Device are audit metadata only.
type Session struct {
	ID           uint64
	UserID       uint64
	SessionID    string
	RefreshToken string
	IPAddress    string
	Device       string
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

// ExpiredAt reports whether the absolute expiry has passed.
func (s Session) ExpiredAt(now time.Time) bool { return !s.ExpiresAt.After(now) }

// SessionWithUser is a session joined to the identity fields needed to
// mint a fresh access token.
type SessionWithUser struct {
	Session
	Email string
	Role  string
}

// Identity is the authenticated caller attached to a request once both the
// access token and the session row have been verified.
type Identity struct {
	ID        uint64 `json:"id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	SessionID string `json:"session_id"`
}
