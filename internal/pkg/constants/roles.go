package constants

const (
	Superadmin = "superadmin"
	Admin      = "admin"
	Investor   = "investor"
)

// ValidRoles is the set of allowed values for users.role.
var ValidRoles = []string{Investor, Admin, Superadmin}

// IsValidRole returns true if role is one of the allowed values.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin reports whether role may use the admin surface.
func IsAdmin(role string) bool {
	return role == Admin || role == Superadmin
}
