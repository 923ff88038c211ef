package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/iliyamo/ngo-data-hub/internal/model"
	"github.com/iliyamo/ngo-data-hub/internal/repository"
	"github.com/iliyamo/ngo-data-hub/internal/utils"
)

// UserStore is the credential store used by login.
type UserStore interface {
	FindLoginCandidate(ctx context.Context, email string) (model.User, error)
	RecordFailedAttempt(ctx context.Context, userID uint64, threshold int, lockUntil time.Time) (int, error)
	RecordSuccessfulLogin(ctx context.Context, userID uint64, at time.Time) error
}

// SessionStore is the server-side session table.
type SessionStore interface {
	Create(ctx context.Context, s model.Session) error
	SetRefreshToken(ctx context.Context, sessionID, token string) error
	RotateRefreshToken(ctx context.Context, sessionID, expected, next string) (bool, error)
	IsLive(ctx context.Context, userID uint64, sessionID string, now time.Time) (bool, error)
	GetWithUser(ctx context.Context, sessionID string) (model.SessionWithUser, error)
	Delete(ctx context.Context, sessionID string) error
}

// LoginLog is the append-only audit log of login attempts.
type LoginLog interface {
	Append(ctx context.Context, e model.LoginLogEntry) error
}

// Tokens mints and verifies access and refresh tokens.
type Tokens interface {
	IssueAccessToken(userID uint64, email, role, sessionID string) (utils.SignedToken, error)
	IssueRefreshToken(userID uint64, sessionID string) (utils.SignedToken, error)
	ParseAccessToken(raw string) (*utils.AccessClaims, error)
	ParseRefreshToken(raw string) (*utils.RefreshClaims, error)
}

// Options tunes the lockout policy and session lifetime.
type Options struct {
	LockThreshold int
	LockDuration  time.Duration
	SessionTTL    time.Duration
	RotateRefresh bool
}

// AuthService orchestrates login, refresh, logout and per-request session
// verification.  It holds no per-session state of its own; every decision
// is made against the stores.
type AuthService struct {
	users     UserStore
	sessions  SessionStore
	logs      LoginLog
	tokens    Tokens
	publisher AuditPublisher
	opts      Options
	now       func() time.Time
	newID     func() (string, error)
}

// NewAuthService wires the service.  publisher may be nil.
func NewAuthService(users UserStore, sessions SessionStore, logs LoginLog, tokens Tokens, publisher AuditPublisher, opts Options) *AuthService {
	if opts.LockThreshold < 1 {
		opts.LockThreshold = 5
	}
	if opts.LockDuration <= 0 {
		opts.LockDuration = 15 * time.Minute
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 7 * 24 * time.Hour
	}
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &AuthService{
		users:     users,
		sessions:  sessions,
		logs:      logs,
		tokens:    tokens,
		publisher: publisher,
		opts:      opts,
		now:       time.Now,
		newID:     utils.NewSessionID,
	}
}

// LockDuration is the configured lockout window.
func (s *AuthService) LockDuration() time.Duration { return s.opts.LockDuration }

// ClientInfo is the requester metadata captured for audit.
type ClientInfo struct {
	IP     string
	Device string
}

// LoginResult is everything the handler needs to answer a successful login.
type LoginResult struct {
	User      model.User
	SessionID string
	Access    utils.SignedToken
	Refresh   utils.SignedToken
}

// Login checks credentials and, on success, creates a session and a token
// pair bound to it.  Exactly one login_logs row is written per call,
// whatever the outcome, before Login returns.
func (s *AuthService) Login(ctx context.Context, email, password string, client ClientInfo) (res LoginResult, err error) {
	email = strings.TrimSpace(email)
	entry := model.LoginLogEntry{Email: email, IPAddress: client.IP, Device: client.Device, Status: model.LoginFailed}
	defer func() {
		if err == nil {
			entry.Status = model.LoginSuccess
		}
		s.audit(ctx, entry)
	}()

	now := s.now().UTC()
	user, err := s.users.FindLoginCandidate(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return LoginResult{}, ErrAccountUnavailable
		}
		return LoginResult{}, fmt.Errorf("find user: %w", err)
	}
	uid := user.ID
	entry.UserID = &uid

	if user.LockedAt(now) {
		return LoginResult{}, ErrAccountLocked
	}

	if !utils.VerifyPassword(user.PasswordHash, password) {
		attempts, ferr := s.users.RecordFailedAttempt(ctx, user.ID, s.opts.LockThreshold, now.Add(s.opts.LockDuration))
		if ferr != nil {
			return LoginResult{}, fmt.Errorf("record failure: %w", ferr)
		}
		if attempts >= s.opts.LockThreshold {
			log.Warn().Uint64("user_id", user.ID).Int("attempts", attempts).Msg("account locked after failed logins")
			return LoginResult{}, ErrLockoutTriggered
		}
		return LoginResult{}, ErrInvalidCredentials
	}

	if err := s.users.RecordSuccessfulLogin(ctx, user.ID, now); err != nil {
		return LoginResult{}, err
	}
	user.FailedAttempts = 0
	user.LockUntil = nil
	user.LastLogin = &now

	sid, err := s.newID()
	if err != nil {
		return LoginResult{}, fmt.Errorf("generate session id: %w", err)
	}
	if err := s.sessions.Create(ctx, model.Session{
		UserID:    user.ID,
		SessionID: sid,
		IPAddress: client.IP,
		Device:    client.Device,
		ExpiresAt: now.Add(s.opts.SessionTTL),
	}); err != nil {
		return LoginResult{}, err
	}

	access, err := s.tokens.IssueAccessToken(user.ID, user.Email, user.Role, sid)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.tokens.IssueRefreshToken(user.ID, sid)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue refresh token: %w", err)
	}
	if err := s.sessions.SetRefreshToken(ctx, sid, refresh.Token); err != nil {
		return LoginResult{}, err
	}

	return LoginResult{User: user, SessionID: sid, Access: access, Refresh: refresh}, nil
}

// audit writes the login_logs row and hands it to the publisher.  Failures
// are logged and never change the login outcome.
func (s *AuthService) audit(ctx context.Context, entry model.LoginLogEntry) {
	entry.CreatedAt = s.now().UTC()
	ctx = context.WithoutCancel(ctx)
	if err := s.logs.Append(ctx, entry); err != nil {
		log.Error().Err(err).Str("email", entry.Email).Str("status", string(entry.Status)).Msg("login audit insert failed")
	}
	s.publisher.PublishLoginAttempt(ctx, entry)
}

// RefreshResult carries the new access token and, when rotation is on,
// the replacement refresh token.
type RefreshResult struct {
	Access  utils.SignedToken
	Refresh *utils.SignedToken
}

// Refresh exchanges a refresh token for a new access token.  The token
// must verify, and must equal the value stored on a live session.
func (s *AuthService) Refresh(ctx context.Context, raw string) (RefreshResult, error) {
	if strings.TrimSpace(raw) == "" {
		return RefreshResult{}, ErrRefreshMissing
	}
	claims, err := s.tokens.ParseRefreshToken(raw)
	if err != nil {
		return RefreshResult{}, ErrTokenInvalid
	}

	sess, err := s.sessions.GetWithUser(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return RefreshResult{}, ErrSessionExpired
		}
		return RefreshResult{}, err
	}
	if sess.RefreshToken != raw || sess.UserID != claims.UserID || sess.ExpiredAt(s.now().UTC()) {
		return RefreshResult{}, ErrSessionExpired
	}

	access, err := s.tokens.IssueAccessToken(sess.UserID, sess.Email, sess.Role, sess.SessionID)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("issue access token: %w", err)
	}
	out := RefreshResult{Access: access}
	if !s.opts.RotateRefresh {
		return out, nil
	}

	next, err := s.tokens.IssueRefreshToken(sess.UserID, sess.SessionID)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("issue refresh token: %w", err)
	}
	ok, err := s.sessions.RotateRefreshToken(ctx, sess.SessionID, raw, next.Token)
	if err != nil {
		return RefreshResult{}, err
	}
	if !ok {
		// another request rotated first; this token is now stale
		return RefreshResult{}, ErrSessionExpired
	}
	out.Refresh = &next
	return out, nil
}

// Authenticate verifies an access token and confirms that its session is
// still live.  Both must hold; a valid token for a deleted or expired
// session is rejected.
func (s *AuthService) Authenticate(ctx context.Context, raw string) (model.Identity, error) {
	claims, err := s.tokens.ParseAccessToken(raw)
	if err != nil {
		return model.Identity{}, ErrTokenInvalid
	}
	live, err := s.sessions.IsLive(ctx, claims.UserID, claims.SessionID, s.now().UTC())
	if err != nil {
		return model.Identity{}, err
	}
	if !live {
		return model.Identity{}, ErrSessionExpired
	}
	return model.Identity{
		ID:        claims.UserID,
		Email:     claims.Email,
		Role:      claims.Role,
		SessionID: claims.SessionID,
	}, nil
}

// Logout deletes the session.  An empty or already deleted session is not
// an error.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.sessions.Delete(ctx, sessionID)
}
