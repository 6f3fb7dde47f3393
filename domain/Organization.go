package domain

import (
	"github.com/fundwit/go-commons/types"
)

const OrgRoleAdmin = "admin"

type Organization struct {
	ID         types.ID        `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	Name       string          `json:"name"`
	Identifier string          `json:"identifier"`
	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
}

type OrgMember struct {
	OrgID    types.ID `json:"orgId" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	MemberID types.ID `json:"memberId" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`

	Role       string          `json:"role"`
	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
}
