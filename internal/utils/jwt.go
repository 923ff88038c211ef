package utils // package utils provides helper functions for token creation and hashing

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is the single outcome of any failed token verification:
// bad signature, wrong algorithm, malformed payload or expiry.
var ErrInvalidToken = errors.New("invalid token")

// AccessClaims is the payload of an access token.
type AccessClaims struct {
	UserID    uint64 `json:"id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of a refresh token.
type RefreshClaims struct {
	UserID    uint64 `json:"id"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// SignedToken is a serialized JWT together with its expiry.
type SignedToken struct {
	Token string
	Exp   time.Time
}

// TokenCodec signs and verifies the two token kinds.  Each kind has its own
// secret and lifetime so a refresh token can never be presented as an
// access token or the other way round.
type TokenCodec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokenCodec builds a codec.  now may be nil, in which case time.Now is used.
func NewTokenCodec(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, now func() time.Time) *TokenCodec {
	if now == nil {
		now = time.Now
	}
	return &TokenCodec{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           now,
	}
}

// AccessTTL is the signed lifetime of access tokens.
func (c *TokenCodec) AccessTTL() time.Duration { return c.accessTTL }

// RefreshTTL is the signed lifetime of refresh tokens.
func (c *TokenCodec) RefreshTTL() time.Duration { return c.refreshTTL }

// IssueAccessToken signs {id, email, role, session_id} with the access secret.
func (c *TokenCodec) IssueAccessToken(userID uint64, email, role, sessionID string) (SignedToken, error) {
	now := c.now().UTC()
	exp := now.Add(c.accessTTL)
	claims := AccessClaims{
		UserID:           userID,
		Email:            email,
		Role:             role,
		SessionID:        sessionID,
		RegisteredClaims: registered(userID, now, exp),
	}
	return sign(claims, c.accessSecret, exp)
}

// IssueRefreshToken signs {id, session_id} with the refresh secret.
func (c *TokenCodec) IssueRefreshToken(userID uint64, sessionID string) (SignedToken, error) {
	now := c.now().UTC()
	exp := now.Add(c.refreshTTL)
	claims := RefreshClaims{
		UserID:           userID,
		SessionID:        sessionID,
		RegisteredClaims: registered(userID, now, exp),
	}
	return sign(claims, c.refreshSecret, exp)
}

// ParseAccessToken verifies signature and expiry of an access token.
func (c *TokenCodec) ParseAccessToken(raw string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := c.parse(raw, claims, c.accessSecret); err != nil {
		return nil, err
	}
	if claims.UserID == 0 || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ParseRefreshToken verifies signature and expiry of a refresh token.
func (c *TokenCodec) ParseRefreshToken(raw string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := c.parse(raw, claims, c.refreshSecret); err != nil {
		return nil, err
	}
	if claims.UserID == 0 || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (c *TokenCodec) parse(raw string, claims jwt.Claims, secret []byte) error {
	if raw == "" {
		return ErrInvalidToken
	}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !tok.Valid {
		return ErrInvalidToken
	}
	return nil
}

func registered(userID uint64, now, exp time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   strconv.FormatUint(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
}

func sign(claims jwt.Claims, secret []byte, exp time.Time) (SignedToken, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return SignedToken{}, err
	}
	return SignedToken{Token: signed, Exp: exp}, nil
}

// NewSessionID returns a fresh 64-character hex session identifier built
// from 32 bytes of crypto/rand output.
func NewSessionID() (string, error) {
	return randomHex(32)
}

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
