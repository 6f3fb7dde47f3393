package testinfra

import (
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"signoff/authority"
	"signoff/session"
	"strings"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
)

// BuildSecCtx build a security context with org-scoped permission strings
// like "admin_1" or "reviewer_100".
func BuildSecCtx(uid types.ID, perms ...string) *session.Session {
	orgRoles := authority.OrgRoles{}
	for _, perm := range perms {
		idx := strings.LastIndex(perm, "_")
		if idx > 0 {
			role := perm[0:idx]
			orgId, err := types.ParseID(perm[idx+1:])
			if err != nil {
				continue
			}
			orgRoles = append(orgRoles, authority.OrgRole{OrgID: orgId, Role: role})
		}
	}

	return &session.Session{
		Token:    "test-token",
		Identity: session.Identity{ID: uid},
		Perms:    perms,
		OrgRoles: orgRoles,
		Context:  context.Background(),
	}
}

func ExecuteRequest(req *http.Request, router *gin.Engine) (int, string, error) {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	resp := w.Result()
	defer resp.Body.Close()
	bodyBytes, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, "", err
	}
	return resp.StatusCode, string(bodyBytes), nil
}
