package session

import (
	"context"
	"signoff/authority"
	"strings"
	"time"

	"github.com/fundwit/go-commons/types"
)

type Session struct {
	Token    string                `json:"token"`
	Identity Identity              `json:"identity"`
	Perms    authority.Permissions `json:"perms"`
	OrgRoles authority.OrgRoles    `json:"orgRoles"`

	SigningTime time.Time `json:"-"`

	Context context.Context `json:"-"`
}

type Identity struct {
	ID       types.ID `json:"id"`
	Name     string   `json:"name"`
	Nickname string   `json:"nickname"`
}

type LoginRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (s *Session) HasRole(role string) bool {
	return s.Perms.HasRole(role)
}

func (s *Session) HasRoleSuffix(suffix string) bool {
	return s.Perms.HasRoleSuffix(suffix)
}

func (s *Session) HasOrgViewPerm(orgId types.ID) bool {
	return s.Perms.HasOrgViewPerm(orgId)
}

// VisibleOrgs parse visible org ids from Session.Perms
func (s *Session) VisibleOrgs() []types.ID {
	var orgIds []types.ID
	for _, v := range s.Perms {
		pairs := strings.Split(v, "_")
		if len(pairs) == 2 {
			id, err := types.ParseID(pairs[1])
			if err != nil {
				continue
			}
			orgIds = append(orgIds, id)
		}
	}
	if orgIds == nil {
		return []types.ID{}
	}
	return orgIds
}
