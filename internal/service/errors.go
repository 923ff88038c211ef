// Package service implements the authentication core: login with lockout,
// session creation and token issuance, refresh, and logout.
package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials covers a wrong password and, through
	// ErrAccountUnavailable, an unknown or unapproved email.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountUnavailable is returned when no active, approved user has the
	// email.  It deliberately does not say which of the two conditions failed.
	ErrAccountUnavailable = fmt.Errorf("%w: account unavailable", ErrInvalidCredentials)
	// ErrAccountLocked is returned while the lockout window is open.  The
	// password is not checked.
	ErrAccountLocked = errors.New("account locked")
	// ErrLockoutTriggered is returned by the failed attempt that opened the
	// lockout window.
	ErrLockoutTriggered = fmt.Errorf("%w: lockout triggered", ErrAccountLocked)
	// ErrRefreshMissing is returned when no refresh token was presented.
	ErrRefreshMissing = errors.New("refresh token missing")
	// ErrTokenInvalid is the uniform outcome of any token verification failure.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrSessionExpired is returned when the session behind a structurally
	// valid token is gone, expired, or holds a different refresh token.
	ErrSessionExpired = errors.New("session expired or revoked")
)
