package model

// Role names as stored in users.role.
const (
	RoleSuperAdmin = "SuperAdmin"
	RoleAdmin      = "Admin"
	RoleStaff      = "Staff"
	RoleFinance    = "Finance"
	RoleVolunteer  = "Volunteer"
	RoleDonor      = "Donor"
	RoleMember     = "Member"
)

// SelfAssignableRoles are the roles a new account may be created with.
// Admin and SuperAdmin are granted out of band only.
var SelfAssignableRoles = []string{RoleMember, RoleStaff, RoleVolunteer, RoleDonor, RoleFinance}

// IsSelfAssignable reports whether role may be requested at registration.
func IsSelfAssignable(role string) bool {
	for _, r := range SelfAssignableRoles {
		if r == role {
			return true
		}
	}
	return false
}
