package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"tenant-user-api/internal/core/config"
	"tenant-user-api/internal/core/server"
	"tenant-user-api/internal/domain"
	"tenant-user-api/internal/service"
	"tenant-user-api/internal/transport/http/handler"
	mdw "tenant-user-api/internal/transport/http/middleware"
)

type APIDeps struct {
	Log    *zap.Logger
	Server server.Options
	Limits config.Limits

	Auth  *service.AuthService
	Users *service.UserService
	Codec domain.TokenCodec
	// TokenType Authorization 头里的 scheme，与签发时 token_type 一致
	TokenType string
	// VerifyRequester 为 true 时每个请求都确认 token 里的用户仍存在
	VerifyRequester bool
}

func NewAPIEngine(d APIDeps) *gin.Engine {
	l := d.Log
	if l == nil {
		l = zap.NewNop()
	}
	lim := d.Limits
	r := server.NewRouter(l, d.Server)

	// 中间件
	r.Use(
		mdw.RequestID(),
		mdw.RateLimit(rate.Limit(lim.RPS), lim.Burst),
		mdw.ConcurrencyLimit(lim.MaxConcurrent),
		mdw.MaxBodyBytes(lim.MaxBodyBytes),
		mdw.Timeout(time.Duration(lim.RequestTimeoutS)*time.Second),
		mdw.Recovery(l),
		mdw.Metrics(),
		mdw.AccessLog(l),
	)

	// 健康检查
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": 1}) })

	var resolve mdw.ResolveFunc
	if d.VerifyRequester {
		resolve = d.Users.Resolve
	}
	authn := mdw.Authenticate(d.Codec, d.TokenType, resolve, l)

	var reg Registry
	reg.Register(
		handler.NewAuthHandler(d.Auth, l, mdw.RateLimitPerIP(rate.Limit(lim.AuthRPSPerIP), lim.AuthBurstPerIP)),
		handler.NewUsersHandler(d.Users, l, authn),
	)
	reg.Mount(r.Group(""))

	return r
}
