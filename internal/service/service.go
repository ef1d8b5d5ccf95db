// Package service 业务编排：校验、事务、缓存与评分都在这一层完成，
// handler 只负责解析请求与输出。
package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"shelf-taught/internal/core/cache"
)

const (
	DefaultPageLimit = 12
	MaxPageLimit     = 50
)

// 缓存 key 前缀，写操作按前缀失效
const (
	cacheCategories = "categories:"
	cacheFilters    = "filters:"
	cacheAnalytics  = "analytics:"
	cacheSitemap    = "sitemap:"
)

// Paged 分页结果
type Paged[T any] struct {
	Items []T
	Page  int
	Limit int
	Total int64
}

// PageWindow 规范化 page/limit：page 至少为 1，limit 落在 [1, MaxPageLimit]
func PageWindow(page, limit int) (p, l, offset int) {
	if page < 1 {
		page = 1
	}
	switch {
	case limit <= 0:
		limit = DefaultPageLimit
	case limit > MaxPageLimit:
		limit = MaxPageLimit
	}
	return page, limit, (page - 1) * limit
}

func sortDesc(order string) bool { return !strings.EqualFold(strings.TrimSpace(order), "asc") }

// invalidator 写操作后清理派生缓存；失败只记日志
type invalidator struct {
	cache *cache.Cache
	log   *zap.Logger
}

func (i invalidator) invalidate(ctx context.Context, prefixes ...string) {
	if err := i.cache.Invalidate(ctx, prefixes...); err != nil {
		i.log.Warn("cache invalidate failed", zap.Strings("prefixes", prefixes), zap.Error(err))
	}
}

func ttlOr(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
