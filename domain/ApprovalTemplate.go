package domain

import (
	"github.com/fundwit/go-commons/types"
)

const (
	ModuleCER = "cer"
	Module510K = "510k"
	ModuleIND = "ind"
)

const (
	AssigneeTypeRole  = "role"
	AssigneeTypeUsers = "users"
)

// ApprovalTemplate a named, ordered list of approval steps reusable across
// documents of a given type and module, scoped to one organization.
// Templates are soft-deleted (IsActive=false) so in-flight workflows keep
// a resolvable reference.
type ApprovalTemplate struct {
	ID          types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	Name        string   `json:"name"`
	Description string   `json:"description"`

	ModuleType string   `json:"moduleType"`
	OrgID      types.ID `json:"orgId"`
	IsActive   bool     `json:"isActive"`

	DocumentTypes   StringList `json:"documentTypes" sql:"type:TEXT"`
	DefaultForTypes StringList `json:"defaultForTypes" sql:"type:TEXT"`

	CreatorID  types.ID        `json:"creatorId"`
	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
}

// TemplateStep one ordered step definition of a template.
// Order values are a contiguous 1..N sequence within a template.
type TemplateStep struct {
	TemplateID types.ID `json:"templateId" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	Order      int      `json:"order" gorm:"primary_key;column:order;auto_increment:false"`

	Name        string `json:"name"`
	Description string `json:"description"`

	AssigneeType    string     `json:"assigneeType"`
	AssigneeRole    string     `json:"assigneeRole"`
	AssigneeIDs     IDList     `json:"assigneeIds" sql:"type:TEXT"`
	RequiredActions StringList `json:"requiredActions" sql:"type:TEXT"`

	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
}

type ApprovalTemplateDetail struct {
	ApprovalTemplate

	Steps []TemplateStep `json:"steps"`
}
