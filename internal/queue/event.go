// Package queue defines message payloads exchanged over the message broker.
package queue

import (
	"time"

	"github.com/iliyamo/ngo-data-hub/internal/model"
)

// LoginAttemptsQueue is the durable queue carrying login audit events.
const LoginAttemptsQueue = "auth.login_attempts"

// LoginAttemptEvent is published after a login attempt has been recorded in
// login_logs.  UserID is zero when the email did not resolve to a user.
type LoginAttemptEvent struct {
	UserID      uint64 `json:"user_id,omitempty"`
	Email       string `json:"email"`
	IPAddress   string `json:"ip_address"`
	Device      string `json:"device"`
	Status      string `json:"status"`
	AttemptedAt string `json:"attempted_at"`
}

// NewLoginAttemptEvent converts an audit row into its wire form.
func NewLoginAttemptEvent(e model.LoginLogEntry) LoginAttemptEvent {
	ev := LoginAttemptEvent{
		Email:       e.Email,
		IPAddress:   e.IPAddress,
		Device:      e.Device,
		Status:      string(e.Status),
		AttemptedAt: e.CreatedAt.UTC().Format(time.RFC3339),
	}
	if e.UserID != nil {
		ev.UserID = *e.UserID
	}
	return ev
}
