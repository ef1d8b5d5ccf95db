package handler

import (
	"context"
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"shelf-taught/internal/core/apperr"
	"shelf-taught/internal/core/cache"
	"shelf-taught/internal/core/database"
	"shelf-taught/internal/transport/http/response"
)

type HealthHandler struct {
	db      *gorm.DB
	cache   *cache.Cache
	env     string
	version string
	started time.Time
}

func NewHealthHandler(db *gorm.DB, c *cache.Cache, env, version string) *HealthHandler {
	return &HealthHandler{db: db, cache: c, env: env, version: version, started: time.Now()}
}

type check struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latencyMs,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (h *HealthHandler) uptime() float64 { return time.Since(h.started).Seconds() }

func (h *HealthHandler) MountRoot(r *gin.RouterGroup) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, response.OK(gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"uptime":    h.uptime(),
		}))
	})
	r.GET("/health/detailed", h.detailed)
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if _, err := database.Ping(ctx, h.db); err != nil {
			response.Error(c, apperr.Unavailable("Database not ready"))
			return
		}
		c.JSON(http.StatusOK, response.OK(gin.H{"status": "ready"}))
	})
	r.GET("/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, response.OK(gin.H{"status": "alive"}))
	})
}

func (h *HealthHandler) detailed(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	dbCheck := check{Status: "up"}
	if lat, err := database.Ping(ctx, h.db); err != nil {
		dbCheck = check{Status: "down", Error: err.Error()}
		status, code = "unhealthy", http.StatusServiceUnavailable
	} else {
		dbCheck.LatencyMs = lat.Milliseconds()
	}

	// 缓存不可用只算降级
	cacheCheck := check{Status: "up"}
	start := time.Now()
	if err := h.cache.Ping(ctx); err != nil {
		if errors.Is(err, cache.ErrDisabled) {
			cacheCheck = check{Status: "disabled"}
		} else {
			cacheCheck = check{Status: "down", Error: err.Error()}
			if code == http.StatusOK {
				status = "degraded"
			}
		}
	} else {
		cacheCheck.LatencyMs = time.Since(start).Milliseconds()
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	body := gin.H{
		"status":      status,
		"timestamp":   time.Now().UTC(),
		"uptime":      h.uptime(),
		"environment": h.env,
		"version":     h.version,
		"checks": gin.H{
			"database": dbCheck,
			"cache":    cacheCheck,
		},
		"runtime": gin.H{
			"goroutines":  runtime.NumGoroutine(),
			"heapAllocMB": float64(ms.HeapAlloc) / (1 << 20),
			"sysMB":       float64(ms.Sys) / (1 << 20),
			"numGC":       ms.NumGC,
			"goVersion":   runtime.Version(),
			"gomaxprocs":  runtime.GOMAXPROCS(0),
		},
	}
	env := response.OK(body)
	env.Success = code == http.StatusOK
	c.JSON(code, env)
}
