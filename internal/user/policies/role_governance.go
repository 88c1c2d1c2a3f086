package policies

import (
	"errors"

	"bluegold-backend/internal/domain"
	"bluegold-backend/internal/pkg/constants"

	"gorm.io/gorm"
)

type ValidateRoleAssignmentParams struct {
	ActorRole    string
	TargetRole   string
	ActorUserID  string
	TargetUserID string
}

// ValidateRoleAssignment returns nil when the actor may give the target the role.
func ValidateRoleAssignment(db *gorm.DB, params ValidateRoleAssignmentParams) error {
	if !constants.IsValidRole(params.TargetRole) {
		return ErrInvalidRole
	}
	if (params.TargetRole == constants.Admin || params.TargetRole == constants.Superadmin) &&
		params.ActorRole != constants.Superadmin {
		return ErrOnlySuperadminsCanAssignAdminOrSuperadmin
	}
	if params.ActorUserID == params.TargetUserID && params.ActorRole != constants.Superadmin {
		return ErrUsersCannotModifyTheirOwnRole
	}
	var target domain.User
	if err := db.Where("user_id = ?", params.TargetUserID).First(&target).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTargetUserNotFound
		}
		return err
	}
	// Prevent last superadmin downgrade
	if target.Role == constants.Superadmin && params.TargetRole != constants.Superadmin {
		var count int64
		if err := db.Model(&domain.User{}).Where("role = ?", constants.Superadmin).Count(&count).Error; err != nil {
			return err
		}
		if count <= 1 {
			return ErrMustHaveAtLeastOneSuperadmin
		}
	}
	return nil
}
