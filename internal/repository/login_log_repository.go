package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/ngo-data-hub/internal/model"
)

// LoginLogRepo appends rows to `login_logs`.  Rows are never updated or
// deleted.
type LoginLogRepo struct{ DB *sql.DB }

func NewLoginLogRepo(db *sql.DB) *LoginLogRepo { return &LoginLogRepo{DB: db} }

// Append inserts one login attempt.  A nil UserID is stored as NULL.
func (r *LoginLogRepo) Append(ctx context.Context, e model.LoginLogEntry) error {
	var userID sql.NullInt64
	if e.UserID != nil {
		userID = sql.NullInt64{Int64: int64(*e.UserID), Valid: true}
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO login_logs (user_id, email, ip_address, device, status, created_at) VALUES (?,?,?,?,?,?)",
		userID, e.Email, e.IPAddress, e.Device, string(e.Status), e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert login log: %w", err)
	}
	return nil
}
