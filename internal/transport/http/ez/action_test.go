package ez

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"tenant-user-api/internal/domain"
)

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{domain.ErrNotFound, http.StatusNotFound, "Not found"},
		{domain.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid credentials"},
		{fmt.Errorf("%w: expired", domain.ErrInvalidToken), http.StatusUnauthorized, "Invalid token"},
		{domain.ErrSelfDelete, http.StatusForbidden, domain.ErrSelfDelete.Error()},
		{domain.ErrNotAdminNorOwner, http.StatusForbidden, domain.ErrNotAdminNorOwner.Error()},
		{domain.ErrUserAlreadyExists, http.StatusConflict, "Email already registered"},
		{domain.ErrCompanyAlreadyRegistered, http.StatusConflict, "Name already registered"},
		{domain.ErrPasswordTooLong, http.StatusUnprocessableEntity, domain.ErrPasswordTooLong.Error()},
		{fmt.Errorf("%w: create company: boom", domain.ErrCannotOperate), http.StatusServiceUnavailable, ""},
		{fmt.Errorf("list: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, "timeout"},
		{Unprocessable(errors.New("bad json")), http.StatusUnprocessableEntity, "bad json"},
		{Unprocessable(&http.MaxBytesError{Limit: 8}), http.StatusRequestEntityTooLarge, "request body too large"},
		{errors.New("pq: connection reset"), http.StatusInternalServerError, "internal error"},
	}
	for _, tc := range cases {
		status, msg := StatusOf(tc.err)
		assert.Equal(t, tc.status, status, "%v", tc.err)
		if tc.msg != "" {
			assert.Equal(t, tc.msg, msg)
		}
	}
}

type echoIn struct {
	Name string `json:"name" binding:"required"`
}

func TestRegisterAction(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	e := New(r.Group(""), nil)

	RegisterAction(e, Action[echoIn, gin.H]{
		Method: http.MethodPost,
		Path:   "/echo",
		Binder: BindJSON,
		Status: http.StatusCreated,
		Handler: func(_ *gin.Context, _ *domain.Identity, in *echoIn) (gin.H, error) {
			if in.Name == "ghost" {
				return nil, domain.ErrNotFound
			}
			return gin.H{"name": in.Name}, nil
		},
	})
	RegisterAction(e, Action[struct{}, struct{}]{
		Method:  http.MethodDelete,
		Path:    "/private",
		Binder:  BindNone,
		Auth:    true,
		Handler: func(*gin.Context, *domain.Identity, *struct{}) (struct{}, error) { return struct{}{}, nil },
	})

	do := func(method, path, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		return w
	}

	w := do(http.MethodPost, "/echo", `{"name":"ann"}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"code":0,"msg":"OK","data":{"name":"ann"}}`, w.Body.String())

	w = do(http.MethodPost, "/echo", `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(http.MethodPost, "/echo", `{"name":"ghost"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"code":404,"msg":"Not found","data":{}}`, w.Body.String())

	// 没经过鉴权中间件
	w = do(http.MethodDelete, "/private", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
