package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tenant-user-api/internal/core/metrics"
	"tenant-user-api/internal/domain"
	resp "tenant-user-api/internal/transport/http/response"
)

const keyRequester = "requester"

// ResolveFunc 取 token 对应的当前用户，不存在返回 (nil, nil)；
// 传 nil 表示只信任 token
type ResolveFunc func(ctx context.Context, who domain.Identity) (*domain.User, error)

// Authenticate 解析 "Authorization: <scheme> <token>"，成功后把请求者身份写入上下文。
// scheme 比较不区分大小写。
func Authenticate(codec domain.TokenCodec, scheme string, resolve ResolveFunc, l *zap.Logger) gin.HandlerFunc {
	if l == nil {
		l = zap.NewNop()
	}
	return func(c *gin.Context) {
		kind, token, ok := strings.Cut(strings.TrimSpace(c.GetHeader("Authorization")), " ")
		token = strings.TrimSpace(token)
		if !ok || !strings.EqualFold(kind, scheme) || token == "" {
			metrics.Auth("token", "missing")
			c.Header("WWW-Authenticate", scheme)
			resp.Abort(c, resp.CodeUnauthorized, "missing token")
			return
		}
		who, err := codec.Decode(token)
		if err != nil {
			metrics.Auth("token", "invalid")
			c.Header("WWW-Authenticate", scheme)
			resp.Abort(c, resp.CodeUnauthorized, "Invalid token")
			return
		}
		if resolve != nil {
			u, err := resolve(c.Request.Context(), who)
			if err != nil {
				l.Error("resolve requester", zap.String("user_id", who.UserID), zap.Error(err))
				resp.Abort(c, resp.CodeServerError, "")
				return
			}
			if u == nil {
				metrics.Auth("token", "stale")
				resp.Abort(c, resp.CodeUnauthorized, "Invalid token")
				return
			}
			// 以存储中的角色为准
			who = domain.Identity{UserID: u.ID, Role: u.Role, CompanyID: u.CompanyID}
		}
		metrics.Auth("token", "ok")
		c.Set(keyRequester, who)
		c.Next()
	}
}

func Requester(c *gin.Context) (domain.Identity, bool) {
	v, ok := c.Get(keyRequester)
	if !ok {
		return domain.Identity{}, false
	}
	who, ok := v.(domain.Identity)
	return who, ok
}
