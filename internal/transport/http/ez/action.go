package ez

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tenant-user-api/internal/domain"
	mdw "tenant-user-api/internal/transport/http/middleware"
	resp "tenant-user-api/internal/transport/http/response"
)

type EZ struct {
	g   *gin.RouterGroup
	log *zap.Logger
}

func New(g *gin.RouterGroup, l *zap.Logger) EZ {
	if l == nil {
		l = zap.NewNop()
	}
	return EZ{g: g, log: l}
}

type Binder string

const (
	BindJSON  Binder = "json"
	BindQuery Binder = "query"
	BindNone  Binder = "none" // 自己从 c.Param 取
)

// AErr 传输层错误（参数等），业务错误直接返回 domain 的 sentinel
type AErr struct {
	Code int
	Msg  string
	Err  error
}

func (e *AErr) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "action error"
}

func (e *AErr) Unwrap() error { return e.Err }

func BadRequest(msg string) error   { return &AErr{Code: resp.CodeBadRequest, Msg: msg} }
func Unprocessable(err error) error { return &AErr{Code: resp.CodeUnprocessable, Err: err} }
func Unauthorized(msg string) error { return &AErr{Code: resp.CodeUnauthorized, Msg: msg} }
func Forbidden(msg string) error    { return &AErr{Code: resp.CodeForbidden, Msg: msg} }
func NotFound(msg string) error     { return &AErr{Code: resp.CodeNotFound, Msg: msg} }
func Internal(msg string, err error) error {
	return &AErr{Code: resp.CodeServerError, Msg: msg, Err: err}
}

// StatusOf 错误 → (HTTP 状态码, 对外文案)。未识别的错误不外泄细节。
func StatusOf(err error) (int, string) {
	var ae *AErr
	if errors.As(err, &ae) {
		var tooLarge *http.MaxBytesError
		if errors.As(ae.Err, &tooLarge) {
			return http.StatusRequestEntityTooLarge, "request body too large"
		}
		return ae.Code, ae.Error()
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, domain.ErrInvalidToken):
		return http.StatusUnauthorized, "Invalid token"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, domain.ErrUserAlreadyExists):
		return http.StatusConflict, "Email already registered"
	case errors.Is(err, domain.ErrCompanyAlreadyRegistered):
		return http.StatusConflict, "Name already registered"
	case errors.Is(err, domain.ErrPasswordTooLong), errors.Is(err, domain.ErrInvalidInput):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, domain.ErrCannotOperate):
		return http.StatusServiceUnavailable, "Cannot operate right now, try again later"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	}
	return http.StatusInternalServerError, "internal error"
}

// Action I 入参，O 出参
type Action[I any, O any] struct {
	Method  string
	Path    string
	Binder  Binder
	Auth    bool // 要求已通过 middleware.Authenticate
	Status  int  // 成功状态码，默认 200
	NoBody  bool // 成功时只写状态码（201 / 204）
	Handler func(c *gin.Context, who *domain.Identity, in *I) (O, error)
}

func RegisterAction[I any, O any](e EZ, a Action[I, O]) {
	status := a.Status
	if status == 0 {
		status = http.StatusOK
	}
	h := func(c *gin.Context) {
		var who *domain.Identity
		if a.Auth {
			id, ok := mdw.Requester(c)
			if !ok {
				resp.Abort(c, resp.CodeUnauthorized, "missing token")
				return
			}
			who = &id
		}

		var in I
		var bindErr error
		switch a.Binder {
		case BindJSON:
			bindErr = c.ShouldBindJSON(&in)
		case BindQuery:
			bindErr = c.ShouldBindQuery(&in)
		}
		if bindErr != nil {
			e.fail(c, Unprocessable(bindErr))
			return
		}

		out, err := a.Handler(c, who, &in)
		if err != nil {
			e.fail(c, err)
			return
		}
		if a.NoBody {
			c.Status(status)
			return
		}
		c.JSON(status, resp.OK(out))
	}

	switch strings.ToUpper(a.Method) {
	case http.MethodGet:
		e.g.GET(a.Path, h)
	case http.MethodPut:
		e.g.PUT(a.Path, h)
	case http.MethodPatch:
		e.g.PATCH(a.Path, h)
	case http.MethodDelete:
		e.g.DELETE(a.Path, h)
	default:
		e.g.POST(a.Path, h)
	}
}

func (e EZ) fail(c *gin.Context, err error) {
	code, msg := StatusOf(err)
	if code >= http.StatusInternalServerError {
		e.log.Error("request failed",
			zap.String("rid", c.GetString(mdw.KeyRequestID)),
			zap.String("route", c.FullPath()),
			zap.Error(err),
		)
	}
	_ = c.Error(err)
	resp.Abort(c, code, msg)
}
