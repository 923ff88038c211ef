package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ngo-data-hub/internal/middleware"
	"github.com/iliyamo/ngo-data-hub/internal/model"
	"github.com/iliyamo/ngo-data-hub/internal/repository"
	"github.com/iliyamo/ngo-data-hub/internal/utils"
)

// UserStore is the part of repository.UserRepo the user endpoints use.
type UserStore interface {
	Create(ctx context.Context, fullName, email, passwordHash, role string) (uint64, error)
	Approve(ctx context.Context, userID uint64, approvedBy string, at time.Time) (bool, error)
	List(ctx context.Context) ([]model.UserSummary, error)
	Summary(ctx context.Context, id uint64) (model.UserSummary, error)
}

// UsersHandler serves registration, approval and user lookups.
type UsersHandler struct {
	Users      UserStore
	BcryptCost int
}

func NewUsersHandler(users UserStore, bcryptCost int) *UsersHandler {
	return &UsersHandler{Users: users, BcryptCost: bcryptCost}
}

type createUserReq struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func parseID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

// Create registers an account that cannot log in until approved.
func (h *UsersHandler) Create(c echo.Context) error {
	var req createUserReq
	if err := c.Bind(&req); err != nil {
		return msg(c, http.StatusBadRequest, "Invalid request body")
	}
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.TrimSpace(req.Email)
	if req.FullName == "" || req.Email == "" || req.Password == "" {
		return msg(c, http.StatusBadRequest, "Missing fields")
	}
	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = model.RoleMember
	}
	if !model.IsSelfAssignable(role) {
		return msg(c, http.StatusForbidden, "Invalid or unauthorized role assignment")
	}

	hash, err := utils.HashPassword(req.Password, h.BcryptCost)
	if err != nil {
		return internalError(c, err, "hash password failed")
	}
	if _, err := h.Users.Create(c.Request().Context(), req.FullName, req.Email, hash, role); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return msg(c, http.StatusConflict, "Email already registered")
		}
		return internalError(c, err, "create user failed")
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"message":           "User created successfully",
		"assigned_role":     role,
		"approval_required": true,
	})
}

// Approve clears a pending account for login.  The approver is recorded
// by email.
func (h *UsersHandler) Approve(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return msg(c, http.StatusBadRequest, "Invalid id")
	}
	approver, _ := middleware.IdentityFrom(c)

	approved, err := h.Users.Approve(c.Request().Context(), id, approver.Email, time.Now().UTC())
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return msg(c, http.StatusNotFound, "User not found")
	case err != nil:
		return internalError(c, err, "approve user failed")
	case !approved:
		return msg(c, http.StatusBadRequest, "User already approved")
	}
	return msg(c, http.StatusOK, "User approved successfully")
}

// List returns every user without credentials.
func (h *UsersHandler) List(c echo.Context) error {
	users, err := h.Users.List(c.Request().Context())
	if err != nil {
		return internalError(c, err, "list users failed")
	}
	return c.JSON(http.StatusOK, users)
}

// Get returns one user without credentials.
func (h *UsersHandler) Get(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return msg(c, http.StatusBadRequest, "Invalid id")
	}
	u, err := h.Users.Summary(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return msg(c, http.StatusNotFound, "User not found")
		}
		return internalError(c, err, "get user failed")
	}
	return c.JSON(http.StatusOK, u)
}
