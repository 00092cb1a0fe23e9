package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	resp "tenant-user-api/internal/transport/http/response"
)

// RateLimit 全局令牌桶
func RateLimit(rps rate.Limit, burst int) gin.HandlerFunc {
	lim := rate.NewLimiter(rps, burst)
	return func(c *gin.Context) {
		if !lim.Allow() {
			resp.Abort(c, resp.CodeTooManyRequests, "too many requests")
			return
		}
		c.Next()
	}
}

type ipBucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// RateLimitPerIP 每 IP 一个令牌桶，用在 /auth 下防止撞库；
// 超过 maxTracked 个 IP 时清掉 10 分钟没出现的
func RateLimitPerIP(rps rate.Limit, burst int) gin.HandlerFunc {
	const (
		maxTracked = 10000
		idle       = 10 * time.Minute
	)
	var mu sync.Mutex
	buckets := make(map[string]*ipBucket)

	allow := func(ip string, now time.Time) bool {
		mu.Lock()
		defer mu.Unlock()
		b, ok := buckets[ip]
		if !ok {
			if len(buckets) >= maxTracked {
				for k, v := range buckets {
					if now.Sub(v.seen) > idle {
						delete(buckets, k)
					}
				}
			}
			b = &ipBucket{lim: rate.NewLimiter(rps, burst)}
			buckets[ip] = b
		}
		b.seen = now
		return b.lim.AllowN(now, 1)
	}

	return func(c *gin.Context) {
		if !allow(c.ClientIP(), time.Now()) {
			resp.Abort(c, resp.CodeTooManyRequests, "too many requests")
			return
		}
		c.Next()
	}
}
