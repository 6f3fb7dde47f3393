package sessions_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"signoff/account"
	"signoff/authority"
	"signoff/bizerror"
	"signoff/persistence"
	"signoff/session"
	"signoff/sessions"
	"signoff/testinfra"
	"strings"
	"testing"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	. "github.com/onsi/gomega"
)

func sessionsTestSetup(t *testing.T, testDatabase **testinfra.TestDatabase) *gin.Engine {
	db := testinfra.StartMysqlTestDatabase("signoff")
	*testDatabase = db
	Expect(db.DS.GormDB(nil).AutoMigrate(&account.User{}).Error).To(BeNil())
	persistence.ActiveDataSourceManager = db.DS

	router := gin.Default()
	router.Use(bizerror.ErrorHandling())
	sessions.RegisterSessionsHandler(router)
	sessions.RegisterSessionHandler(router, session.SimpleAuthFilter())
	return router
}

func sessionsTestTeardown(t *testing.T, testDatabase *testinfra.TestDatabase) {
	account.LoadPermFuncReset()
	if testDatabase != nil {
		testinfra.StopMysqlTestDatabase(testDatabase)
	}
}

func TestSimpleLoginHandler(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	t.Run("should reject wrong credentials", func(t *testing.T) {
		defer sessionsTestTeardown(t, testDatabase)
		router := sessionsTestSetup(t, &testDatabase)

		Expect(testDatabase.DS.GormDB(nil).
			Save(&account.User{ID: 10, Name: "ann", Secret: account.HashSha256("123456")}).Error).To(BeNil())

		req := httptest.NewRequest(http.MethodPost, "/v1/sessions", strings.NewReader(`{"name":"ann","password":"bad"}`))
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusUnauthorized))
		Expect(body).To(MatchJSON(`{"code":"common.unauthenticated", "message":"unauthenticated", "data":null}`))
	})

	t.Run("should login and bind a session token", func(t *testing.T) {
		defer sessionsTestTeardown(t, testDatabase)
		router := sessionsTestSetup(t, &testDatabase)

		Expect(testDatabase.DS.GormDB(nil).
			Save(&account.User{ID: 10, Name: "ann", Nickname: "Ann", Secret: account.HashSha256("123456")}).Error).To(BeNil())
		account.LoadPermFunc = func(uid types.ID) (authority.Permissions, authority.OrgRoles) {
			Expect(uid).To(Equal(types.ID(10)))
			return authority.Permissions{"reviewer_100"}, authority.OrgRoles{{OrgID: 100, Role: "reviewer"}}
		}

		req := httptest.NewRequest(http.MethodPost, "/v1/sessions", strings.NewReader(`{"name":"ann","password":"123456"}`))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		Expect(w.Result().StatusCode).To(Equal(http.StatusOK))

		var token string
		for _, c := range w.Result().Cookies() {
			if c.Name == session.KeySecToken {
				token = c.Value
			}
		}
		Expect(token).ToNot(BeEmpty())

		cached, found := session.TokenCache.Get(token)
		Expect(found).To(BeTrue())
		secCtx := cached.(*session.Session)
		Expect(secCtx.Identity).To(Equal(session.Identity{ID: 10, Name: "ann", Nickname: "Ann"}))
		Expect(secCtx.Perms).To(Equal(authority.Permissions{"reviewer_100"}))

		got := session.Session{}
		Expect(json.Unmarshal(w.Body.Bytes(), &got)).To(BeNil())
		Expect(got.Token).To(Equal(token))
		Expect(got.Identity.Name).To(Equal("ann"))

		// the session endpoint echoes the bound session back
		req = httptest.NewRequest(http.MethodGet, "/v1/session", nil)
		req.AddCookie(&http.Cookie{Name: session.KeySecToken, Value: token})
		status, _, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusOK))
	})
}

func TestSimpleLogoutHandler(t *testing.T) {
	RegisterTestingT(t)
	var testDatabase *testinfra.TestDatabase

	t.Run("should drop the cached token", func(t *testing.T) {
		defer sessionsTestTeardown(t, testDatabase)
		router := sessionsTestSetup(t, &testDatabase)

		secCtx := &session.Session{Token: "test token", Identity: session.Identity{ID: 10}}
		session.TokenCache.Set(secCtx.Token, secCtx, session.TokenExpiration)

		req := httptest.NewRequest(http.MethodDelete, "/v1/sessions", nil)
		req.AddCookie(&http.Cookie{Name: session.KeySecToken, Value: secCtx.Token})
		status, _, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusNoContent))

		_, found := session.TokenCache.Get(secCtx.Token)
		Expect(found).To(BeFalse())

		// logout without a cookie is still a no-op success
		req = httptest.NewRequest(http.MethodDelete, "/v1/sessions", nil)
		status, _, _ = testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusNoContent))
	})
}
