package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tenant-user-api/internal/domain"
	"tenant-user-api/internal/service"
	"tenant-user-api/internal/transport/http/ez"
)

// UsersHandler /users 下的管理接口，全部要求 token
type UsersHandler struct {
	svc   *service.UserService
	log   *zap.Logger
	authn gin.HandlerFunc
}

func NewUsersHandler(svc *service.UserService, l *zap.Logger, authn gin.HandlerFunc) *UsersHandler {
	return &UsersHandler{svc: svc, log: l, authn: authn}
}

func (h *UsersHandler) Priority() int { return 20 }

type userOut struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	Avatar    string      `json:"avatar"`
	CompanyID string      `json:"company_id"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func toUserOut(u *domain.User) userOut {
	return userOut{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		Avatar:    u.Avatar,
		CompanyID: u.CompanyID,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type createUserIn struct {
	Name     string      `json:"name"     binding:"required"`
	Email    string      `json:"email"    binding:"required,email"`
	Password string      `json:"password" binding:"required"`
	Role     domain.Role `json:"role"     binding:"omitempty,oneof=ADMIN USER"`
	Avatar   string      `json:"avatar"`
}

type listUsersQ struct {
	Limit  *int `form:"limit"`
	Offset *int `form:"offset"`
}

// updateUserIn PUT 全量；avatar 必须出现但允许为空串
type updateUserIn struct {
	Name     string      `json:"name"     binding:"required"`
	Password string      `json:"password" binding:"required"`
	Role     domain.Role `json:"role"     binding:"required,oneof=ADMIN USER"`
	Avatar   *string     `json:"avatar"   binding:"required"`
}

// patchUserIn 未出现的字段保持 nil
type patchUserIn struct {
	Name     *string      `json:"name"`
	Password *string      `json:"password"`
	Role     *domain.Role `json:"role"`
	Avatar   *string      `json:"avatar"`
}

func (h *UsersHandler) MountAPI(g *gin.RouterGroup) {
	grp := g.Group("/users")
	grp.Use(h.authn)
	e := ez.New(grp, h.log)

	ez.RegisterAction(e, ez.Action[createUserIn, userOut]{
		Method: http.MethodPost,
		Path:   "",
		Binder: ez.BindJSON,
		Auth:   true,
		Status: http.StatusCreated,
		Handler: func(c *gin.Context, who *domain.Identity, in *createUserIn) (userOut, error) {
			u, err := h.svc.Create(c.Request.Context(), *who, service.CreateUserInput{
				Name:     in.Name,
				Email:    in.Email,
				Password: in.Password,
				Role:     in.Role,
				Avatar:   in.Avatar,
			})
			if err != nil {
				return userOut{}, err
			}
			return toUserOut(u), nil
		},
	})

	ez.RegisterAction(e, ez.Action[listUsersQ, []userOut]{
		Method: http.MethodGet,
		Path:   "",
		Binder: ez.BindQuery,
		Auth:   true,
		Handler: func(c *gin.Context, who *domain.Identity, in *listUsersQ) ([]userOut, error) {
			limit, offset := h.svc.Paging().DefaultLimit, 0
			if in.Limit != nil {
				limit = *in.Limit
			}
			if in.Offset != nil {
				offset = *in.Offset
			}
			users, err := h.svc.List(c.Request.Context(), *who, limit, offset)
			if err != nil {
				return nil, err
			}
			out := make([]userOut, 0, len(users))
			for i := range users {
				out = append(out, toUserOut(&users[i]))
			}
			return out, nil
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, userOut]{
		Method: http.MethodGet,
		Path:   "/:id",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, who *domain.Identity, _ *struct{}) (userOut, error) {
			u, err := h.svc.Get(c.Request.Context(), *who, c.Param("id"))
			if err != nil {
				return userOut{}, err
			}
			return toUserOut(u), nil
		},
	})

	ez.RegisterAction(e, ez.Action[updateUserIn, userOut]{
		Method: http.MethodPut,
		Path:   "/:id",
		Binder: ez.BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, who *domain.Identity, in *updateUserIn) (userOut, error) {
			u, err := h.svc.Update(c.Request.Context(), *who, c.Param("id"), service.UpdateUserInput{
				Name:     in.Name,
				Password: in.Password,
				Role:     in.Role,
				Avatar:   *in.Avatar,
			})
			if err != nil {
				return userOut{}, err
			}
			return toUserOut(u), nil
		},
	})

	ez.RegisterAction(e, ez.Action[patchUserIn, userOut]{
		Method: http.MethodPatch,
		Path:   "/:id",
		Binder: ez.BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, who *domain.Identity, in *patchUserIn) (userOut, error) {
			u, err := h.svc.PartialUpdate(c.Request.Context(), *who, c.Param("id"), service.PatchUserInput{
				Name:     in.Name,
				Password: in.Password,
				Role:     in.Role,
				Avatar:   in.Avatar,
			})
			if err != nil {
				return userOut{}, err
			}
			return toUserOut(u), nil
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, struct{}]{
		Method: http.MethodDelete,
		Path:   "/:id",
		Binder: ez.BindNone,
		Auth:   true,
		Status: http.StatusNoContent,
		NoBody: true,
		Handler: func(c *gin.Context, who *domain.Identity, _ *struct{}) (struct{}, error) {
			return struct{}{}, h.svc.Delete(c.Request.Context(), *who, c.Param("id"))
		},
	})
}
