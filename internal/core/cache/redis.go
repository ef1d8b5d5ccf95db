package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Cache 为 nil 或未连接 redis 时直接回源，调用方无需判断
type Cache struct {
	RDB    *redis.Client
	Prefix string
	sf     singleflight.Group
}

func New(addr, pass string, db int) *Cache {
	return &Cache{
		RDB:    redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db}),
		Prefix: "shelf:",
	}
}

// Disabled 不连 redis，仅保留 singleflight 合并
func Disabled() *Cache { return &Cache{} }

func (c *Cache) enabled() bool { return c != nil && c.RDB != nil }

func (c *Cache) key(k string) string {
	if c == nil {
		return k
	}
	return c.Prefix + k
}

func (c *Cache) GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func(context.Context) ([]byte, error)) ([]byte, error) {
	if c == nil {
		return load(ctx)
	}
	if c.enabled() {
		if b, err := c.RDB.Get(ctx, c.key(key)).Bytes(); err == nil {
			return b, nil
		}
	}
	// single flight 合并回源
	v, err, _ := c.sf.Do(key, func() (any, error) {
		b, e := load(ctx)
		if e != nil {
			return nil, e
		}
		if c.enabled() {
			_ = c.RDB.Set(ctx, c.key(key), b, ttl).Err()
		}
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Invalidate 删除指定 key 以及以 prefixes 开头的 key
func (c *Cache) Invalidate(ctx context.Context, prefixes ...string) error {
	if !c.enabled() {
		return nil
	}
	var errs []error
	for _, p := range prefixes {
		iter := c.RDB.Scan(ctx, 0, c.key(p)+"*", 200).Iterator()
		var keys []string
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			errs = append(errs, err)
			continue
		}
		if len(keys) > 0 {
			if err := c.RDB.Del(ctx, keys...).Err(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (c *Cache) Ping(ctx context.Context) error {
	if !c.enabled() {
		return ErrDisabled
	}
	return c.RDB.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	if !c.enabled() {
		return nil
	}
	return c.RDB.Close()
}

var ErrDisabled = errors.New("cache disabled")
