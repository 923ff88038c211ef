package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/ngo-data-hub/internal/model"
)

// UserRepo is the credential store over the `users` table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id, full_name, email, password_hash, role, is_active, is_approved, failed_attempts, lock_until, last_login, created_at, updated_at"

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var (
		u         model.User
		lockUntil sql.NullTime
		lastLogin sql.NullTime
	)
	err := row.Scan(&u.ID, &u.FullName, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive, &u.IsApproved,
		&u.FailedAttempts, &lockUntil, &lastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, err
	}
	if lockUntil.Valid {
		t := lockUntil.Time
		u.LockUntil = &t
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	return u, nil
}

// Create inserts an active, not yet approved user and returns its ID.
func (r *UserRepo) Create(ctx context.Context, fullName, email, passwordHash, role string) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (full_name, email, password_hash, role, is_active, is_approved) VALUES (?,?,?,?,1,0)",
		fullName, strings.TrimSpace(email), passwordHash, role)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
			return 0, ErrEmailExists
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// FindLoginCandidate fetches the user with this email only if the account
// is both active and approved.  Unknown and unapproved emails are
// indistinguishable to the caller: both return ErrNotFound.
func (r *UserRepo) FindLoginCandidate(ctx context.Context, email string) (model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = ? AND is_active = 1 AND is_approved = 1 LIMIT 1",
		strings.TrimSpace(email))
	return scanUser(row)
}

// GetByID fetches a user by id regardless of lifecycle flags.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	row := r.DB.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ? LIMIT 1", id)
	return scanUser(row)
}

// RecordFailedAttempt atomically increments failed_attempts and, when the
// new count reaches threshold, sets lock_until in the same statement.  The
// new count is read back through LAST_INSERT_ID(expr) so concurrent
// failures never observe the same pre-increment value.  MySQL evaluates
// single-table SET assignments left to right, so the IF sees the
// incremented counter.
func (r *UserRepo) RecordFailedAttempt(ctx context.Context, userID uint64, threshold int, lockUntil time.Time) (int, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users
		    SET failed_attempts = LAST_INSERT_ID(failed_attempts + 1),
		        lock_until = IF(failed_attempts >= ?, ?, lock_until)
		  WHERE id = ?`,
		threshold, lockUntil, userID)
	if err != nil {
		return 0, fmt.Errorf("record failed attempt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrNotFound
	}
	attempts, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return int(attempts), nil
}

// RecordSuccessfulLogin clears the lockout state and stamps last_login.
func (r *UserRepo) RecordSuccessfulLogin(ctx context.Context, userID uint64, at time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET failed_attempts = 0, lock_until = NULL, last_login = ? WHERE id = ?",
		at, userID)
	if err != nil {
		return fmt.Errorf("record successful login: %w", err)
	}
	return nil
}

// Approve marks a pending user approved.  It reports ErrNotFound when no
// user has this id and ok=false when the user was already approved.
func (r *UserRepo) Approve(ctx context.Context, userID uint64, approvedBy string, at time.Time) (ok bool, err error) {
	var approved bool
	err = r.DB.QueryRowContext(ctx, "SELECT is_approved FROM users WHERE id = ? LIMIT 1", userID).Scan(&approved)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("load user: %w", err)
	}
	if approved {
		return false, nil
	}
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET is_approved = 1, approved_by = ?, approved_at = ? WHERE id = ? AND is_approved = 0",
		approvedBy, at, userID)
	if err != nil {
		return false, fmt.Errorf("approve user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// List returns every user newest first, without secrets.
func (r *UserRepo) List(ctx context.Context) ([]model.UserSummary, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, full_name, email, role, is_active, is_approved, created_at, updated_at FROM users ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	out := []model.UserSummary{}
	for rows.Next() {
		var u model.UserSummary
		if err := rows.Scan(&u.ID, &u.FullName, &u.Email, &u.Role, &u.IsActive, &u.IsApproved, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Summary returns a single user without secrets.
func (r *UserRepo) Summary(ctx context.Context, id uint64) (model.UserSummary, error) {
	var u model.UserSummary
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, full_name, email, role, is_active, is_approved, created_at, updated_at FROM users WHERE id = ? LIMIT 1", id).
		Scan(&u.ID, &u.FullName, &u.Email, &u.Role, &u.IsActive, &u.IsApproved, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	return u, err
}
