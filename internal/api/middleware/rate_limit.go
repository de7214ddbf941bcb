package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/YASH5398/dlx-sub003/pkg/response"
)

// RateLimiter 滑动窗口计数，由 Redis 实现
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimit 速率限制中间件
// limit: 窗口内允许的最大请求数
// window: 滑动窗口时长
// limiter 为 nil 时退化为进程内令牌桶（多实例部署下各自计数）
func RateLimit(limiter RateLimiter, limit int, window time.Duration) gin.HandlerFunc {
	local := newLocalLimiter(limit, window)

	return func(c *gin.Context) {
		key := fmt.Sprintf("rate_limit:%s:%s", c.ClientIP(), c.FullPath())

		allowed := true
		if limiter != nil {
			ok, err := limiter.CheckRateLimit(c.Request.Context(), key, limit, window)
			if err != nil {
				// Redis 出错时改用本地限流
				ok = local.allow(key)
			}
			allowed = ok
		} else {
			allowed = local.allow(key)
		}

		if !allowed {
			response.TooManyRequests(c)
			c.Abort()
			return
		}

		c.Next()
	}
}

// localLimiter 按 key 维护 x/time/rate 令牌桶
// 超过 idle 未访问的 key 在下一次清扫时移除
type localLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	every     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	nowFn     func() time.Time
}

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// 闲置判定下限
const minLimiterIdle = time.Minute

func newLocalLimiter(limit int, window time.Duration) *localLimiter {
	if limit <= 0 {
		limit = 1
	}
	idle := window
	if idle < minLimiterIdle {
		idle = minLimiterIdle
	}
	return &localLimiter{
		limiters:  make(map[string]*limiterEntry),
		every:     rate.Every(window / time.Duration(limit)),
		burst:     limit,
		idle:      idle,
		lastSweep: time.Now(),
		nowFn:     time.Now,
	}
}

func (l *localLimiter) allow(key string) bool {
	l.mu.Lock()
	now := l.nowFn()
	if now.Sub(l.lastSweep) >= l.idle {
		l.sweep(now)
	}
	e, ok := l.limiters[key]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(l.every, l.burst)}
		l.limiters[key] = e
	}
	e.lastSeen = now
	l.mu.Unlock()
	return e.lim.AllowN(now, 1)
}

// sweep 移除闲置的令牌桶，调用方持有 mu
// 闲置超过 idle 的桶已回满，删除后重建不改变限流结果
func (l *localLimiter) sweep(now time.Time) {
	for k, e := range l.limiters {
		if now.Sub(e.lastSeen) >= l.idle {
			delete(l.limiters, k)
		}
	}
	l.lastSweep = now
}

