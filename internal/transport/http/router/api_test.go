package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"tenant-user-api/internal/core/auth"
	"tenant-user-api/internal/core/cache"
	"tenant-user-api/internal/core/config"
	"tenant-user-api/internal/core/server"
	"tenant-user-api/internal/domain"
	"tenant-user-api/internal/repo"
	"tenant-user-api/internal/repo/memory"
	"tenant-user-api/internal/service"
)

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type userView struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	Avatar       string `json:"avatar"`
	CompanyID    string `json:"company_id"`
	PasswordHash string `json:"password_hash"`
}

func testLimits() config.Limits {
	return config.Limits{
		RPS: 10000, Burst: 10000,
		AuthRPSPerIP: 10000, AuthBurstPerIP: 10000,
		MaxConcurrent: 100, MaxBodyBytes: 1 << 16,
		RequestTimeoutS: 5,
		ListDefault:     10, ListMax: 100,
	}
}

func newTestEngine(t *testing.T, lim config.Limits) *gin.Engine {
	t.Helper()
	return newTestEngineWith(t, lim, memory.NewUserStore())
}

func newTestEngineWith(t *testing.T, lim config.Limits, users domain.UserRepository) *gin.Engine {
	t.Helper()
	codec, err := auth.NewJWTCodec(auth.JWTOptions{Secret: "router-test", TTL: time.Hour})
	require.NoError(t, err)
	d := service.Deps{
		Users:     users,
		Companies: memory.NewCompanyStore(),
		Hasher:    auth.NewBcryptHasher(bcrypt.MinCost),
		Codec:     codec,
		Company:   service.CompanyDefaults{Type: domain.CompanyBasic, MaxUsers: 3},
	}
	return NewAPIEngine(APIDeps{
		Server:          server.Options{Mode: gin.TestMode},
		Limits:          lim,
		Auth:            service.NewAuthService(d),
		Users:           service.NewUserService(d, service.Paging{DefaultLimit: lim.ListDefault, MaxLimit: lim.ListMax}),
		Codec:           codec,
		TokenType:       codec.TokenType(),
		VerifyRequester: true,
	})
}

func call(t *testing.T, r http.Handler, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func signupAndSignin(t *testing.T, r http.Handler, company, email string) string {
	t.Helper()
	w, _ := call(t, r, http.MethodPost, "/auth/signup", "", gin.H{
		"company_name": company, "name": "boss", "email": email, "password": "secret",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return signin(t, r, email, "secret")
}

func signin(t *testing.T, r http.Handler, email, password string) string {
	t.Helper()
	w, env := call(t, r, http.MethodPost, "/auth/signin", "", gin.H{"email": email, "password": password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var tok domain.AccessToken
	require.NoError(t, json.Unmarshal(env.Data, &tok))
	require.Equal(t, "Bearer", tok.Type)
	return tok.Token
}

func createUser(t *testing.T, r http.Handler, token string, body gin.H) userView {
	t.Helper()
	w, env := call(t, r, http.MethodPost, "/users", token, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var u userView
	require.NoError(t, json.Unmarshal(env.Data, &u))
	return u
}

func TestAuthFlow(t *testing.T) {
	r := newTestEngine(t, testLimits())

	w, _ := call(t, r, http.MethodPost, "/auth/signup", "", gin.H{
		"company_name": "acme", "name": "boss", "email": "boss@acme.io", "password": "secret",
	})
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Zero(t, w.Body.Len())

	w, env := call(t, r, http.MethodPost, "/auth/signup", "", gin.H{
		"company_name": "other", "name": "x", "email": "boss@acme.io", "password": "secret",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Email already registered", env.Msg)

	w, env = call(t, r, http.MethodPost, "/auth/signup", "", gin.H{
		"company_name": "acme", "name": "x", "email": "new@acme.io", "password": "secret",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Name already registered", env.Msg)

	assert.NotEmpty(t, signin(t, r, "boss@acme.io", "secret"))

	wWrong, envWrong := call(t, r, http.MethodPost, "/auth/signin", "", gin.H{"email": "boss@acme.io", "password": "nope"})
	wUnknown, envUnknown := call(t, r, http.MethodPost, "/auth/signin", "", gin.H{"email": "ghost@acme.io", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, wWrong.Code)
	assert.Equal(t, http.StatusUnauthorized, wUnknown.Code)
	assert.Equal(t, envWrong.Msg, envUnknown.Msg)

	w, env = call(t, r, http.MethodPost, "/auth/login", "", gin.H{"email": "boss@acme.io", "password": "secret"})
	require.Equal(t, http.StatusOK, w.Code)
	var prof map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &prof))
	assert.Equal(t, "boss", prof["name"])
	assert.Equal(t, "ADMIN", prof["role"])
	assert.Contains(t, prof, "id")
	assert.Contains(t, prof, "avatar")
	assert.NotContains(t, prof, "email")
}

func TestSignup_Validation(t *testing.T) {
	r := newTestEngine(t, testLimits())

	w, _ := call(t, r, http.MethodPost, "/auth/signup", "", gin.H{
		"company_name": "acme", "name": "boss", "email": "not-an-email", "password": "secret",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w, _ = call(t, r, http.MethodPost, "/auth/signup", "", `{"company_name":`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w, _ = call(t, r, http.MethodPost, "/auth/signup", "", gin.H{
		"company_name": "acme", "name": "boss", "email": "boss@acme.io", "password": strings.Repeat("p", 73),
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// 密码过长不应留下公司记录
	w, _ = call(t, r, http.MethodPost, "/auth/signup", "", gin.H{
		"company_name": "acme", "name": "boss", "email": "boss@acme.io", "password": "secret",
	})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestUsersCRUD(t *testing.T) {
	r := newTestEngine(t, testLimits())
	tok := signupAndSignin(t, r, "acme", "boss@acme.io")

	u := createUser(t, r, tok, gin.H{"name": "ann", "email": "ann@acme.io", "password": "pw", "role": "USER"})
	assert.Equal(t, "USER", u.Role)
	assert.Empty(t, u.PasswordHash)
	assert.NotEmpty(t, u.CompanyID)

	w, env := call(t, r, http.MethodGet, "/users/"+u.ID, tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, string(env.Data), "password")

	w, env = call(t, r, http.MethodGet, "/users", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []userView
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 2)
	assert.Equal(t, "boss@acme.io", list[0].Email)

	w, env = call(t, r, http.MethodPut, "/users/"+u.ID, tok, gin.H{"name": "anna", "password": "pw2", "role": "ADMIN", "avatar": ""})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var put userView
	require.NoError(t, json.Unmarshal(env.Data, &put))
	assert.Equal(t, "anna", put.Name)
	assert.Equal(t, "ADMIN", put.Role)
	assert.NotEmpty(t, signin(t, r, "ann@acme.io", "pw2"))

	w, env = call(t, r, http.MethodPatch, "/users/"+u.ID, tok, gin.H{"avatar": "a.png"})
	require.Equal(t, http.StatusOK, w.Code)
	var patched userView
	require.NoError(t, json.Unmarshal(env.Data, &patched))
	assert.Equal(t, "anna", patched.Name)
	assert.Equal(t, "a.png", patched.Avatar)

	w, _ = call(t, r, http.MethodPatch, "/users/"+u.ID, tok, gin.H{"role": "ROOT"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w, _ = call(t, r, http.MethodPut, "/users/"+u.ID, tok, gin.H{"name": "anna", "password": "pw2", "role": "ADMIN"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "avatar is required on PUT")

	w, _ = call(t, r, http.MethodDelete, "/users/"+u.ID, tok, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Zero(t, w.Body.Len())

	w, _ = call(t, r, http.MethodGet, "/users/"+u.ID, tok, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = call(t, r, http.MethodDelete, "/users/"+u.ID, tok, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUsers_AuthorizationStatuses(t *testing.T) {
	r := newTestEngine(t, testLimits())
	admin := signupAndSignin(t, r, "acme", "boss@acme.io")
	member := createUser(t, r, admin, gin.H{"name": "m", "email": "m@acme.io", "password": "pw", "role": "USER"})
	memberTok := signin(t, r, "m@acme.io", "pw")

	w, env := call(t, r, http.MethodGet, "/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "missing token", env.Msg)
	assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))

	w, _ = call(t, r, http.MethodGet, "/users", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env = call(t, r, http.MethodGet, "/users", memberTok, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, domain.ErrAdminRequired.Error(), env.Msg)

	w, _ = call(t, r, http.MethodPost, "/users", memberTok, gin.H{"name": "x", "email": "x@acme.io", "password": "pw"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// 普通用户可以读、改自己
	w, _ = call(t, r, http.MethodGet, "/users/"+member.ID, memberTok, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = call(t, r, http.MethodPatch, "/users/"+member.ID, memberTok, gin.H{"name": "me"})
	assert.Equal(t, http.StatusOK, w.Code)

	// 管理员不能删自己
	w, _ = call(t, r, http.MethodGet, "/users", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []userView
	_, env = call(t, r, http.MethodGet, "/users", admin, nil)
	require.NoError(t, json.Unmarshal(env.Data, &list))
	var adminID string
	for _, u := range list {
		if u.Email == "boss@acme.io" {
			adminID = u.ID
		}
	}
	w, env = call(t, r, http.MethodDelete, "/users/"+adminID, admin, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, domain.ErrSelfDelete.Error(), env.Msg)

	// 被删除的用户手里的 token 失效
	w, _ = call(t, r, http.MethodDelete, "/users/"+member.ID, admin, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	w, env = call(t, r, http.MethodGet, "/users/"+member.ID, memberTok, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid token", env.Msg)
}

func TestUsers_TenantIsolation(t *testing.T) {
	r := newTestEngine(t, testLimits())
	acme := signupAndSignin(t, r, "acme", "boss@acme.io")
	globex := signupAndSignin(t, r, "globex", "boss@globex.io")

	u := createUser(t, r, acme, gin.H{"name": "ann", "email": "ann@acme.io", "password": "pw"})
	assert.Equal(t, "ADMIN", u.Role, "role defaults to ADMIN")

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/users/" + u.ID},
		{http.MethodDelete, "/users/" + u.ID},
	} {
		w, _ := call(t, r, tc.method, tc.path, globex, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, tc.method)
	}
	w, _ := call(t, r, http.MethodPatch, "/users/"+u.ID, globex, gin.H{"name": "pwned"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	_, env := call(t, r, http.MethodGet, "/users", globex, nil)
	var list []userView
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "boss@globex.io", list[0].Email)

	// 邮箱全局唯一
	w, _ = call(t, r, http.MethodPost, "/users", globex, gin.H{"name": "ann", "email": "ann@acme.io", "password": "pw"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUsers_ListPaging(t *testing.T) {
	r := newTestEngine(t, testLimits())
	tok := signupAndSignin(t, r, "acme", "boss@acme.io")
	for _, e := range []string{"a@acme.io", "b@acme.io", "c@acme.io"} {
		createUser(t, r, tok, gin.H{"name": "n", "email": e, "password": "pw"})
	}

	_, env := call(t, r, http.MethodGet, "/users?limit=2&offset=1", tok, nil)
	var page []userView
	require.NoError(t, json.Unmarshal(env.Data, &page))
	require.Len(t, page, 2)
	assert.Equal(t, "a@acme.io", page[0].Email)
	assert.Equal(t, "b@acme.io", page[1].Email)

	_, env = call(t, r, http.MethodGet, "/users?offset=10", tok, nil)
	assert.JSONEq(t, `[]`, string(env.Data))

	for _, q := range []string{"limit=0", "limit=101", "offset=-1", "limit=abc"} {
		w, _ := call(t, r, http.MethodGet, "/users?"+q, tok, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code, q)
	}
}

func TestAPI_BodyTooLarge(t *testing.T) {
	lim := testLimits()
	lim.MaxBodyBytes = 64
	r := newTestEngine(t, lim)

	w, _ := call(t, r, http.MethodPost, "/auth/signup", "", gin.H{
		"company_name": strings.Repeat("c", 200), "name": "boss", "email": "boss@acme.io", "password": "secret",
	})
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestAPI_AuthRateLimitedPerIP(t *testing.T) {
	lim := testLimits()
	lim.AuthRPSPerIP = 0.001
	lim.AuthBurstPerIP = 1
	r := newTestEngine(t, lim)

	body := gin.H{"email": "x@acme.io", "password": "pw"}
	w, _ := call(t, r, http.MethodPost, "/auth/signin", "", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w, env := call(t, r, http.MethodPost, "/auth/signin", "", body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, http.StatusTooManyRequests, env.Code)

	// /health 不受 /auth 限速影响
	w, _ = call(t, r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPI_RequestIDEchoed(t *testing.T) {
	r := newTestEngine(t, testLimits())
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}

// 降级后旧 token 仍然是 ADMIN 声明，但权限按存储中的角色判断
func demotedAdminLosesRights(t *testing.T, r http.Handler) {
	t.Helper()
	boss := signupAndSignin(t, r, "acme", "boss@acme.io")
	second := createUser(t, r, boss, gin.H{"name": "b", "email": "b@acme.io", "password": "pw", "role": "ADMIN"})
	victim := createUser(t, r, boss, gin.H{"name": "v", "email": "v@acme.io", "password": "pw", "role": "USER"})
	secondTok := signin(t, r, "b@acme.io", "pw")

	w, _ := call(t, r, http.MethodGet, "/users", secondTok, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = call(t, r, http.MethodPatch, "/users/"+second.ID, boss, gin.H{"role": "USER"})
	require.Equal(t, http.StatusOK, w.Code)

	w, env := call(t, r, http.MethodGet, "/users", secondTok, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, domain.ErrAdminRequired.Error(), env.Msg)
	w, _ = call(t, r, http.MethodDelete, "/users/"+victim.ID, secondTok, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = call(t, r, http.MethodPut, "/users/"+victim.ID, secondTok, gin.H{"name": "x", "password": "pw", "role": "USER", "avatar": ""})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// 自己的记录仍可读
	w, _ = call(t, r, http.MethodGet, "/users/"+second.ID, secondTok, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUsers_DemotedAdminLosesRights(t *testing.T) {
	demotedAdminLosesRights(t, newTestEngine(t, testLimits()))
}

func TestUsers_DemotedAdminLosesRights_Cached(t *testing.T) {
	mr := miniredis.RunT(t)
	c := cache.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })
	users := repo.NewCachedUserRepo(memory.NewUserStore(), c, time.Minute, nil)
	demotedAdminLosesRights(t, newTestEngineWith(t, testLimits(), users))
}

func TestUsers_DeletedUserTokenRejected_Cached(t *testing.T) {
	mr := miniredis.RunT(t)
	c := cache.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })
	r := newTestEngineWith(t, testLimits(), repo.NewCachedUserRepo(memory.NewUserStore(), c, time.Minute, nil))

	boss := signupAndSignin(t, r, "acme", "boss@acme.io")
	m := createUser(t, r, boss, gin.H{"name": "m", "email": "m@acme.io", "password": "pw", "role": "USER"})
	mTok := signin(t, r, "m@acme.io", "pw")

	// 先让请求者记录进缓存
	w, _ := call(t, r, http.MethodGet, "/users/"+m.ID, mTok, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = call(t, r, http.MethodDelete, "/users/"+m.ID, boss, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	w, _ = call(t, r, http.MethodGet, "/users/"+m.ID, mTok, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w, _ = call(t, r, http.MethodGet, "/users/"+m.ID, boss, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
