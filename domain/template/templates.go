package template

import (
	"signoff/bizerror"
	"signoff/common"
	"signoff/domain"
	"signoff/persistence"
	"signoff/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

var (
	idWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	CreateTemplateFunc     = CreateTemplate
	DetailTemplateFunc     = DetailTemplate
	QueryTemplatesFunc     = QueryTemplates
	DeactivateTemplateFunc = DeactivateTemplate
	ResolveTemplateFunc    = ResolveTemplateForDocumentType
)

type TemplateCreation struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`

	ModuleType string   `json:"moduleType" validate:"required"`
	OrgID      types.ID `json:"orgId" validate:"required"`

	DocumentTypes   []string `json:"documentTypes"`
	DefaultForTypes []string `json:"defaultForTypes"`

	Steps []TemplateStepCreation `json:"steps" validate:"required,min=1,dive"`
}

type TemplateStepCreation struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`

	AssigneeType    string     `json:"assigneeType" validate:"required,oneof=role users"`
	AssigneeRole    string     `json:"assigneeRole"`
	AssigneeIDs     []types.ID `json:"assigneeIds"`
	RequiredActions []string   `json:"requiredActions"`
}

type TemplateQuery struct {
	OrgID      types.ID `json:"orgId" form:"orgId" validate:"required"`
	ModuleType string   `json:"moduleType" form:"moduleType"`
}

// CreateTemplate persists a template and its steps atomically. Step order is
// assigned from the creation array, a contiguous 1..N sequence.
func CreateTemplate(c *TemplateCreation, sec *session.Session) (*domain.ApprovalTemplateDetail, error) {
	if !sec.HasRole(domain.OrgRoleAdmin + "_" + c.OrgID.String()) {
		return nil, bizerror.ErrForbidden
	}
	if len(c.Steps) == 0 {
		return nil, bizerror.ErrInvalidTemplate
	}

	now := types.CurrentTimestamp()
	detail := &domain.ApprovalTemplateDetail{
		ApprovalTemplate: domain.ApprovalTemplate{
			ID:          common.NextId(idWorker),
			Name:        c.Name,
			Description: c.Description,

			ModuleType: c.ModuleType,
			OrgID:      c.OrgID,
			IsActive:   true,

			DocumentTypes:   c.DocumentTypes,
			DefaultForTypes: c.DefaultForTypes,

			CreatorID:  sec.Identity.ID,
			CreateTime: now,
		},
	}
	for idx, s := range c.Steps {
		detail.Steps = append(detail.Steps, domain.TemplateStep{
			TemplateID: detail.ID,
			Order:      idx + 1,

			Name:        s.Name,
			Description: s.Description,

			AssigneeType:    s.AssigneeType,
			AssigneeRole:    s.AssigneeRole,
			AssigneeIDs:     s.AssigneeIDs,
			RequiredActions: s.RequiredActions,

			CreateTime: now,
		})
	}

	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&detail.ApprovalTemplate).Error; err != nil {
			return err
		}
		for _, step := range detail.Steps {
			if err := tx.Create(&step).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// DetailTemplate returns the template with its steps attached, ordered ascending.
func DetailTemplate(id types.ID, sec *session.Session) (*domain.ApprovalTemplateDetail, error) {
	detail := domain.ApprovalTemplateDetail{}
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	if err := db.Where(&domain.ApprovalTemplate{ID: id}).First(&detail.ApprovalTemplate).Error; err != nil {
		return nil, err
	}
	if !sec.HasOrgViewPerm(detail.OrgID) {
		return nil, bizerror.ErrForbidden
	}
	if err := db.Where(domain.TemplateStep{TemplateID: detail.ID}).Order("`order` ASC").Find(&detail.Steps).Error; err != nil {
		return nil, err
	}
	return &detail, nil
}

func QueryTemplates(query *TemplateQuery, sec *session.Session) (*[]domain.ApprovalTemplate, error) {
	if !sec.HasOrgViewPerm(query.OrgID) {
		return &[]domain.ApprovalTemplate{}, nil
	}

	var templates []domain.ApprovalTemplate
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	q := db.Where(domain.ApprovalTemplate{OrgID: query.OrgID})
	if query.ModuleType != "" {
		q = q.Where(domain.ApprovalTemplate{ModuleType: query.ModuleType})
	}
	if err := q.Find(&templates).Error; err != nil {
		return nil, err
	}
	return &templates, nil
}

// DeactivateTemplate soft-deletes a template. In-flight workflows keep their
// snapshotted steps and are not affected.
func DeactivateTemplate(id types.ID, sec *session.Session) error {
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	return db.Transaction(func(tx *gorm.DB) error {
		tmpl := domain.ApprovalTemplate{}
		if err := tx.Where(&domain.ApprovalTemplate{ID: id}).First(&tmpl).Error; err != nil {
			return err
		}
		if !sec.HasRole(domain.OrgRoleAdmin + "_" + tmpl.OrgID.String()) {
			return bizerror.ErrForbidden
		}
		return tx.Model(&domain.ApprovalTemplate{}).Where(&domain.ApprovalTemplate{ID: id}).
			Update("is_active", false).Error
	})
}

// ResolveTemplateForDocumentType picks the approval template for a document:
// an active template declaring the type in defaultForTypes wins, then any
// active template listing it in documentTypes; when the org has none, a
// generic three step template is synthesized and persisted for the type.
func ResolveTemplateForDocumentType(moduleType string, orgID types.ID, documentType string, sec *session.Session) (*domain.ApprovalTemplateDetail, error) {
	if !sec.HasOrgViewPerm(orgID) {
		return nil, bizerror.ErrForbidden
	}

	var candidates []domain.ApprovalTemplate
	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	if err := db.Where(domain.ApprovalTemplate{OrgID: orgID, ModuleType: moduleType}).
		Where("is_active = ?", true).Find(&candidates).Error; err != nil {
		return nil, err
	}

	// document type lists are JSON columns, match in memory
	var fallback *domain.ApprovalTemplate
	for i := range candidates {
		if candidates[i].DefaultForTypes.Contains(documentType) {
			return DetailTemplateFunc(candidates[i].ID, sec)
		}
		if fallback == nil && candidates[i].DocumentTypes.Contains(documentType) {
			fallback = &candidates[i]
		}
	}
	if fallback != nil {
		return DetailTemplateFunc(fallback.ID, sec)
	}

	return synthesizeGenericTemplate(moduleType, orgID, documentType, sec)
}

func synthesizeGenericTemplate(moduleType string, orgID types.ID, documentType string, sec *session.Session) (*domain.ApprovalTemplateDetail, error) {
	now := types.CurrentTimestamp()
	detail := &domain.ApprovalTemplateDetail{
		ApprovalTemplate: domain.ApprovalTemplate{
			ID:          common.NextId(idWorker),
			Name:        "Generic Approval (" + documentType + ")",
			Description: "synthesized default approval chain",

			ModuleType: moduleType,
			OrgID:      orgID,
			IsActive:   true,

			DocumentTypes:   domain.StringList{documentType},
			DefaultForTypes: domain.StringList{documentType},

			CreatorID:  sec.Identity.ID,
			CreateTime: now,
		},
	}
	for _, s := range domain.GenericTemplateSteps {
		step := s
		step.TemplateID = detail.ID
		step.CreateTime = now
		detail.Steps = append(detail.Steps, step)
	}

	db := persistence.ActiveDataSourceManager.GormDB(sec.Context)
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&detail.ApprovalTemplate).Error; err != nil {
			return err
		}
		for _, step := range detail.Steps {
			if err := tx.Create(&step).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}
