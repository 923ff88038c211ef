package model

import "time"

// LoginStatus is the outcome tag of a login attempt.
type LoginStatus string

const (
	LoginSuccess LoginStatus = "SUCCESS"
	LoginFailed  LoginStatus = "FAILED"
)

// LoginLogEntry models an append-only row in `login_logs`.  UserID is nil
// when the email did not resolve to an active, approved user.
type LoginLogEntry struct {
	ID        uint64
	UserID    *uint64
	Email     string
	IPAddress string
	Device    string
	Status    LoginStatus
	CreatedAt time.Time
}
