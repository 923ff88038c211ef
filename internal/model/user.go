package model

import (
	"strings"
	"time"
)

// User represents an application user record as stored in the `users`
// table.  Only the repository layer reads PasswordHash; handlers expose
// PublicProfile instead.
//
// Fields:
//
//	ID             – primary key identifier of the user.
//	FullName       – display name.
//	Email          – unique email address.
//	PasswordHash   – bcrypt hashed password.
//	Role           – role name (see the Role constants).
//	IsActive       – whether the account is usable at all.
//	IsApproved     – whether an administrator has cleared the account for login.
//	FailedAttempts – consecutive failed password checks.
//	LockUntil      – while in the future, login is refused (nullable).
//	LastLogin      – time of the last successful login (nullable).
type User struct {
	ID             uint64
	FullName       string
	Email          string
	PasswordHash   string
	Role           string
	IsActive       bool
	IsApproved     bool
	FailedAttempts int
	LockUntil      *time.Time
	LastLogin      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// LockedAt reports whether the lockout window is still open at now.
func (u User) LockedAt(now time.Time) bool {
	return u.LockUntil != nil && u.LockUntil.After(now)
}

// PublicProfile is the user shape returned to clients.  The role is
// lower-cased to match the client's permission table keys.
type PublicProfile struct {
	ID       uint64 `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// Profile builds the public view of u.
func (u User) Profile() PublicProfile {
	return PublicProfile{ID: u.ID, FullName: u.FullName, Email: u.Email, Role: strings.ToLower(u.Role)}
}

// UserSummary is the listing shape for administrators.
type UserSummary struct {
	ID         uint64    `json:"id"`
	FullName   string    `json:"full_name"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	IsActive   bool      `json:"is_active"`
	IsApproved bool      `json:"is_approved"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
