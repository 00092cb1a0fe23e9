package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tenant-user-api/internal/domain"
	"tenant-user-api/internal/service"
	"tenant-user-api/internal/transport/http/ez"
)

// AuthHandler /auth/signup /auth/signin /auth/login，无需 token
type AuthHandler struct {
	svc     *service.AuthService
	log     *zap.Logger
	limiter gin.HandlerFunc
}

// NewAuthHandler limiter 可为 nil
func NewAuthHandler(svc *service.AuthService, l *zap.Logger, limiter gin.HandlerFunc) *AuthHandler {
	return &AuthHandler{svc: svc, log: l, limiter: limiter}
}

func (h *AuthHandler) Priority() int { return 10 }

type signupIn struct {
	CompanyName string `json:"company_name" binding:"required"`
	Name        string `json:"name"         binding:"required"`
	Email       string `json:"email"        binding:"required,email"`
	Password    string `json:"password"     binding:"required"`
}

type credentialsIn struct {
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type profileOut struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Role   domain.Role `json:"role"`
	Avatar string      `json:"avatar"`
}

// hideUnknownEmail 未知邮箱与密码错误对客户端表现一致
func hideUnknownEmail(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrInvalidCredentials
	}
	return err
}

func (h *AuthHandler) MountAPI(g *gin.RouterGroup) {
	grp := g.Group("/auth")
	if h.limiter != nil {
		grp.Use(h.limiter)
	}
	e := ez.New(grp, h.log)

	ez.RegisterAction(e, ez.Action[signupIn, struct{}]{
		Method: http.MethodPost,
		Path:   "/signup",
		Binder: ez.BindJSON,
		Status: http.StatusCreated,
		NoBody: true,
		Handler: func(c *gin.Context, _ *domain.Identity, in *signupIn) (struct{}, error) {
			_, err := h.svc.Signup(c.Request.Context(), service.SignupInput{
				CompanyName: in.CompanyName,
				Name:        in.Name,
				Email:       in.Email,
				Password:    in.Password,
			})
			return struct{}{}, err
		},
	})

	ez.RegisterAction(e, ez.Action[credentialsIn, domain.AccessToken]{
		Method: http.MethodPost,
		Path:   "/signin",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, _ *domain.Identity, in *credentialsIn) (domain.AccessToken, error) {
			tok, err := h.svc.Signin(c.Request.Context(), in.Email, in.Password)
			return tok, hideUnknownEmail(err)
		},
	})

	ez.RegisterAction(e, ez.Action[credentialsIn, profileOut]{
		Method: http.MethodPost,
		Path:   "/login",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, _ *domain.Identity, in *credentialsIn) (profileOut, error) {
			u, err := h.svc.Login(c.Request.Context(), in.Email, in.Password)
			if err != nil {
				return profileOut{}, hideUnknownEmail(err)
			}
			return profileOut{ID: u.ID, Name: u.Name, Role: u.Role, Avatar: u.Avatar}, nil
		},
	})
}
