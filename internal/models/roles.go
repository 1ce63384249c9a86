package models

// Role is the closed set of back-office roles.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super-admin"
	RoleStaff      Role = "staff"
)

// AllRoles is the whitelist of assignable roles
var AllRoles = []Role{RoleSuperAdmin, RoleAdmin, RoleStaff}

// Permission names an action guarded by role.
type Permission string

const (
	PermViewAppointments   Permission = "appointments.read"
	PermManageAppointments Permission = "appointments.write"
	PermDeleteAppointments Permission = "appointments.delete"
	PermViewDashboard      Permission = "dashboard.read"
	PermManageContacts     Permission = "contacts.write"
	PermManageReviews      Permission = "reviews.write"
	PermManageAdmins       Permission = "admins.write"
)

func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleAdmin, RoleSuperAdmin, RoleStaff:
		return Role(s), true
	}
	return "", false
}

func (r Role) Valid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

// Can reports whether the role grants p. Unknown roles grant nothing.
func (r Role) Can(p Permission) bool {
	switch r {
	case RoleSuperAdmin:
		return true
	case RoleAdmin:
		return p != PermManageAdmins
	case RoleStaff:
		switch p {
		case PermViewAppointments, PermManageAppointments, PermViewDashboard, PermManageContacts:
			return true
		}
		return false
	default:
		return false
	}
}
