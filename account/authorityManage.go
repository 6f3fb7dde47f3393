package account

import (
	"errors"
	"fmt"
	"os"
	"signoff/authority"
	"signoff/domain"
	"signoff/persistence"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

var (
	systemAdminRole        = Role{ID: "system-admin", Title: "System Administrator"}
	SystemAdminPermission  = Permission{ID: "system:admin", Title: "System Administration"}
	systemAdminRoleBinding = RolePermissionBinding{ID: 1, RoleID: systemAdminRole.ID, PermissionID: SystemAdminPermission.ID}
)

var (
	LoadPermFunc = loadPerms
)

func LoadPermFuncReset() {
	LoadPermFunc = loadPerms
}

func DefaultSecurityConfiguration() error {
	db := persistence.ActiveDataSourceManager.GormDB(nil)
	if err := db.Save(&systemAdminRole).Error; err != nil {
		return err
	}
	if err := db.Save(&SystemAdminPermission).Error; err != nil {
		return err
	}
	if err := db.Save(&systemAdminRoleBinding).Error; err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		admin := User{}
		err := tx.Model(&User{}).Where(&User{ID: 1}).First(&admin).Error
		if err != nil && errors.Is(err, gorm.ErrRecordNotFound) {
			initialAdminPassword := os.Getenv("INITIAL_ADMIN_PASSWORD")
			if initialAdminPassword == "" {
				initialAdminPassword = "admin123"
			}
			if err := tx.Save(&User{ID: 1, Name: "admin", Secret: HashSha256(initialAdminPassword)}).Error; err != nil {
				return err
			}
		}
		return tx.Save(&UserRoleBinding{ID: 1, UserID: 1, RoleID: systemAdminRole.ID}).Error
	})
}

// org membership is the metadata of org-scoped permissions
func loadPerms(uid types.ID) (authority.Permissions, authority.OrgRoles) {
	var perms []string
	var orgRoles []authority.OrgRole
	db := persistence.ActiveDataSourceManager.GormDB(nil)

	var systemRoles []string
	if err := db.Model(&UserRoleBinding{}).Where(&UserRoleBinding{UserID: uid}).Pluck("role_id", &systemRoles).Error; err != nil {
		panic(err)
	}

	if len(systemRoles) > 0 {
		var systemPerms []string
		if err := db.Model(&RolePermissionBinding{}).Where("role_id IN (?)", systemRoles).Pluck("permission_id", &systemPerms).Error; err != nil {
			panic(err)
		}
		perms = append(perms, systemPerms...)

		// system roles make every org administrable
		var orgs []domain.Organization
		if err := db.Model(&domain.Organization{}).Scan(&orgs).Error; err != nil {
			panic(err)
		}
		for _, org := range orgs {
			perms = append(perms, fmt.Sprintf("%s_%d", domain.OrgRoleAdmin, org.ID))
			orgRoles = append(orgRoles, authority.OrgRole{OrgID: org.ID, Role: domain.OrgRoleAdmin})
		}
	} else {
		var members []domain.OrgMember
		if err := db.Model(&domain.OrgMember{}).Where(&domain.OrgMember{MemberID: uid}).Scan(&members).Error; err != nil {
			panic(err)
		}
		for _, m := range members {
			perms = append(perms, fmt.Sprintf("%s_%d", m.Role, m.OrgID))
			orgRoles = append(orgRoles, authority.OrgRole{OrgID: m.OrgID, Role: m.Role})
		}
	}

	if perms == nil {
		perms = []string{}
	}
	if orgRoles == nil {
		orgRoles = []authority.OrgRole{}
	}
	return perms, orgRoles
}
