package models

import (
	"testing"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"admin", true},
		{"super-admin", true},
		{"staff", true},
		{"superadmin", false},
		{"Admin", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, ok := ParseRole(tt.input)
			if ok != tt.expected {
				t.Errorf("ParseRole(%q) ok = %v, want %v", tt.input, ok, tt.expected)
			}
		})
	}
}

func TestRoleCan(t *testing.T) {
	tests := []struct {
		name     string
		role     Role
		perm     Permission
		expected bool
	}{
		{"super-admin manages admins", RoleSuperAdmin, PermManageAdmins, true},
		{"super-admin deletes appointments", RoleSuperAdmin, PermDeleteAppointments, true},
		{"admin cannot manage admins", RoleAdmin, PermManageAdmins, false},
		{"admin deletes appointments", RoleAdmin, PermDeleteAppointments, true},
		{"admin manages reviews", RoleAdmin, PermManageReviews, true},
		{"staff views appointments", RoleStaff, PermViewAppointments, true},
		{"staff updates appointments", RoleStaff, PermManageAppointments, true},
		{"staff cannot delete appointments", RoleStaff, PermDeleteAppointments, false},
		{"staff cannot manage reviews", RoleStaff, PermManageReviews, false},
		{"staff cannot manage admins", RoleStaff, PermManageAdmins, false},
		{"unknown role grants nothing", Role("user"), PermViewAppointments, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.role.Can(tt.perm); got != tt.expected {
				t.Errorf("%s.Can(%s) = %v, want %v", tt.role, tt.perm, got, tt.expected)
			}
		})
	}
}
