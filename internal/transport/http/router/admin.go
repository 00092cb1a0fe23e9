package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"tenant-user-api/internal/core/server"
)

// ReadyCheck 就绪检查项，返回 nil 表示可用
type ReadyCheck func(ctx context.Context) error

// NewOpsEngine 运维端口：/health 存活，/ready 依赖可用，/metrics 给 prometheus 抓
func NewOpsEngine(l *zap.Logger, deps map[string]ReadyCheck) *gin.Engine {
	r := server.NewRouter(l, server.Options{Name: "ops", ZapAccess: true})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": 1}) })

	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		status := http.StatusOK
		checks := make(gin.H, len(deps))
		for name, p := range deps {
			if err := p(ctx); err != nil {
				l.Warn("readiness check failed", zap.String("dep", name), zap.Error(err))
				checks[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}
		c.JSON(status, gin.H{"ready": status == http.StatusOK, "checks": checks})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}
