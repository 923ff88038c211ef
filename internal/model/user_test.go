package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUser_LockedAt(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Minute)
	past := now.Add(-time.Minute)

	assert.False(t, User{}.LockedAt(now))
	assert.True(t, User{LockUntil: &future}.LockedAt(now))
	assert.False(t, User{LockUntil: &past}.LockedAt(now))
	assert.False(t, User{LockUntil: &now}.LockedAt(now))
}

func TestUser_Profile(t *testing.T) {
	u := User{ID: 7, FullName: "Asha", Email: "a@x.org", Role: RoleSuperAdmin, PasswordHash: "x"}
	assert.Equal(t, PublicProfile{ID: 7, FullName: "Asha", Email: "a@x.org", Role: "superadmin"}, u.Profile())
}

func TestSession_ExpiredAt(t *testing.T) {
	now := time.Now()
	assert.True(t, Session{ExpiresAt: now}.ExpiredAt(now))
	assert.False(t, Session{ExpiresAt: now.Add(time.Second)}.ExpiredAt(now))
}

func TestIsSelfAssignable(t *testing.T) {
	assert.True(t, IsSelfAssignable(RoleMember))
	assert.True(t, IsSelfAssignable(RoleFinance))
	assert.False(t, IsSelfAssignable(RoleAdmin))
	assert.False(t, IsSelfAssignable(RoleSuperAdmin))
	assert.False(t, IsSelfAssignable("member"))
}
