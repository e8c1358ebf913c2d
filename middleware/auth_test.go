package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/english-mastery/backend/models"
	"github.com/english-mastery/backend/services"
	"github.com/english-mastery/backend/testutil"
	"github.com/english-mastery/backend/utils"
)

type memoryBlacklist struct {
	revoked map[string]bool
	err     error
}

func (b *memoryBlacklist) Revoke(_ context.Context, id string, _ time.Duration) error {
	b.revoked[id] = true
	return nil
}

func (b *memoryBlacklist) IsRevoked(_ context.Context, id string) (bool, error) {
	return b.revoked[id], b.err
}

type stubChecker struct{ err error }

func (s stubChecker) Check(context.Context, uint, models.MembershipLevel) error { return s.err }

type authFixture struct {
	db        *gorm.DB
	tokens    *utils.TokenManager
	blacklist *memoryBlacklist
	router    *gin.Engine
}

func newAuthFixture(t *testing.T, checker EntitlementChecker) *authFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	tokens, err := utils.NewTokenManager("middleware-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	bl := &memoryBlacklist{revoked: map[string]bool{}}

	auth := AuthMiddleware(NewAuthenticator(db, tokens, bl))
	r := gin.New()
	r.GET("/me", auth, func(c *gin.Context) {
		id, _ := CurrentUserID(c)
		c.JSON(http.StatusOK, gin.H{"user_id": id, "role": c.GetString(ContextRole)})
	})
	r.POST("/create", auth, RequireMembership(checker, models.MembershipBasic), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})
	return &authFixture{db: db, tokens: tokens, blacklist: bl, router: r}
}

func (f *authFixture) do(method, path, header, value string) (*httptest.ResponseRecorder, map[string]interface{}) {
	req := httptest.NewRequest(method, path, nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var body map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func codeOf(body map[string]interface{}) int {
	n, _ := body["code"].(float64)
	return int(n)
}

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	f := newAuthFixture(t, stubChecker{})
	user := testutil.CreateUser(t, f.db, "ok@example.com")
	token, _ := f.tokens.GenerateToken(user.ID, string(user.Role))

	w, body := f.do(http.MethodGet, "/me", "Authorization", "Bearer "+token)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if uint(body["user_id"].(float64)) != user.ID || body["role"] != "student" {
		t.Fatalf("body = %v", body)
	}

	w, _ = f.do(http.MethodGet, "/me", "X-Auth-Token", "Bearer "+token)
	if w.Code != http.StatusOK {
		t.Fatalf("X-Auth-Token fallback status = %d", w.Code)
	}
}

func TestAuthMiddlewareRejections(t *testing.T) {
	f := newAuthFixture(t, stubChecker{})
	user := testutil.CreateUser(t, f.db, "someone@example.com")
	token, _ := f.tokens.GenerateToken(user.ID, string(user.Role))
	ghost, _ := f.tokens.GenerateToken(user.ID+100, "student")

	cases := []struct {
		name   string
		header string
		value  string
		status int
		code   int
	}{
		{"missing header", "", "", http.StatusUnauthorized, services.CodeUnauthorized},
		{"wrong scheme", "Authorization", "Basic abc", http.StatusUnauthorized, services.CodeUnauthorized},
		{"garbage token", "Authorization", "Bearer not-a-jwt", http.StatusUnauthorized, services.CodeInvalidToken},
		{"deleted user", "Authorization", "Bearer " + ghost, http.StatusUnauthorized, services.CodeUserNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, body := f.do(http.MethodGet, "/me", tc.header, tc.value)
			if w.Code != tc.status || codeOf(body) != tc.code {
				t.Fatalf("status = %d, code = %d, want %d/%d", w.Code, codeOf(body), tc.status, tc.code)
			}
		})
	}

	claims, _ := f.tokens.VerifyToken(token)
	f.blacklist.revoked[claims.ID] = true
	w, body := f.do(http.MethodGet, "/me", "Authorization", "Bearer "+token)
	if w.Code != http.StatusUnauthorized || codeOf(body) != services.CodeInvalidToken {
		t.Fatalf("revoked token: status = %d, code = %d", w.Code, codeOf(body))
	}
}

func TestAuthMiddlewareRejectsDisabledUser(t *testing.T) {
	f := newAuthFixture(t, stubChecker{})
	user := testutil.CreateUser(t, f.db, "off@example.com")
	f.db.Model(&user).Update("status", false)
	token, _ := f.tokens.GenerateToken(user.ID, string(user.Role))

	w, body := f.do(http.MethodGet, "/me", "Authorization", "Bearer "+token)
	if w.Code != http.StatusForbidden || codeOf(body) != services.CodeUserDisabled {
		t.Fatalf("status = %d, code = %d", w.Code, codeOf(body))
	}
}

func TestAuthMiddlewareBlacklistUnavailable(t *testing.T) {
	f := newAuthFixture(t, stubChecker{})
	user := testutil.CreateUser(t, f.db, "bl@example.com")
	token, _ := f.tokens.GenerateToken(user.ID, string(user.Role))
	f.blacklist.err = errors.New("redis down")

	w, _ := f.do(http.MethodGet, "/me", "Authorization", "Bearer "+token)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestRequireMembership(t *testing.T) {
	denied := services.NewAppError(http.StatusForbidden, services.CodeMembershipRequired, "a basic membership is required", nil)
	f := newAuthFixture(t, stubChecker{err: denied})
	user := testutil.CreateUser(t, f.db, "free@example.com")
	token, _ := f.tokens.GenerateToken(user.ID, string(user.Role))

	w, body := f.do(http.MethodPost, "/create", "Authorization", "Bearer "+token)
	if w.Code != http.StatusForbidden || codeOf(body) != services.CodeMembershipRequired {
		t.Fatalf("status = %d, code = %d", w.Code, codeOf(body))
	}

	allowed := newAuthFixture(t, stubChecker{})
	member := testutil.CreateUser(t, allowed.db, "paid@example.com")
	token, _ = allowed.tokens.GenerateToken(member.ID, string(member.Role))
	if w, _ := allowed.do(http.MethodPost, "/create", "Authorization", "Bearer "+token); w.Code != http.StatusCreated {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get(RequestIDHeader) != "abc-123" || w.Body.String() != "abc-123" {
		t.Fatalf("request id not propagated: %q", w.Header().Get(RequestIDHeader))
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Header().Get(RequestIDHeader) == "" {
		t.Fatal("request id not generated")
	}
}
