package constants

import roles "bluegold-backend/internal/pkg/constants"

// PermissionRoles maps each permission to the roles allowed to perform it.
var PermissionRoles = map[string][]string{
	ViewAccount:        {roles.Investor, roles.Admin, roles.Superadmin},
	ManageInvestments:  {roles.Investor, roles.Admin, roles.Superadmin},
	RequestWithdrawal:  {roles.Investor, roles.Admin, roles.Superadmin},
	ViewAllInvestors:   {roles.Admin, roles.Superadmin},
	EditInvestors:      {roles.Admin, roles.Superadmin},
	ApproveWithdrawals: {roles.Admin, roles.Superadmin},
	RunJobs:            {roles.Superadmin, roles.Admin},
	AssignRole:         {roles.Superadmin},
}

// AllowedRole returns true if role is in the list of allowed roles for the permission.
func AllowedRole(permission, role string) bool {
	allowed, ok := PermissionRoles[permission]
	if !ok {
		return false
	}
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}
