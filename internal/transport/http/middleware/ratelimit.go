package middleware

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"shelf-taught/internal/core/apperr"
	"shelf-taught/internal/transport/http/response"
)

// RateLimit 全局令牌桶限速
func RateLimit(rps rate.Limit, burst int) gin.HandlerFunc {
	lim := rate.NewLimiter(rps, burst)
	return func(c *gin.Context) {
		if lim.Allow() {
			c.Next()
			return
		}
		reject(c, lim, "Too many requests, please try again later")
	}
}

type visitor struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// IPLimiter 每 IP 一个令牌桶，闲置的桶定期回收
type IPLimiter struct {
	mu       sync.Mutex
	rps      rate.Limit
	burst    int
	idle     time.Duration
	visitors map[string]*visitor
	lastGC   time.Time
	now      func() time.Time
}

func NewIPLimiter(rps rate.Limit, burst int) *IPLimiter {
	return &IPLimiter{
		rps:      rps,
		burst:    burst,
		idle:     10 * time.Minute,
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
}

func (l *IPLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if now.Sub(l.lastGC) > l.idle {
		for k, v := range l.visitors {
			if now.Sub(v.lastSeen) > l.idle {
				delete(l.visitors, k)
			}
		}
		l.lastGC = now
	}
	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{lim: rate.NewLimiter(l.rps, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.lim
}

func (l *IPLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

// Middleware msg 为 429 时返回的提示
func (l *IPLimiter) Middleware(msg string) gin.HandlerFunc {
	return func(c *gin.Context) {
		lim := l.get(c.ClientIP())
		c.Header("X-RateLimit-Limit", strconv.Itoa(l.burst))
		if lim.Allow() {
			c.Header("X-RateLimit-Remaining", strconv.Itoa(int(math.Max(0, lim.Tokens()))))
			c.Next()
			return
		}
		c.Header("X-RateLimit-Remaining", "0")
		reject(c, lim, msg)
	}
}

// RateLimitPerIP 每 IP 限速
func RateLimitPerIP(rps rate.Limit, burst int) gin.HandlerFunc {
	return NewIPLimiter(rps, burst).Middleware("Too many requests, please try again later")
}

func reject(c *gin.Context, lim *rate.Limiter, msg string) {
	if lim.Limit() > 0 {
		wait := math.Ceil(1 / float64(lim.Limit()))
		c.Header("Retry-After", strconv.Itoa(int(wait)))
	}
	response.Error(c, apperr.TooManyRequests(msg))
}
