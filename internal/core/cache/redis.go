package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

type Cache struct {
	RDB    *redis.Client
	Prefix string
	sf     singleflight.Group
}

func New(addr, pass string, db int) *Cache {
	return &Cache{
		RDB:    redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db}),
		Prefix: "tua:",
	}
}

func (c *Cache) key(k string) string { return c.Prefix + k }

// verTTL 版本号 key 的存活时间，要远大于任何一次回源耗时
const verTTL = 24 * time.Hour

func (c *Cache) verKey(k string) string { return k + ":ver" }

// GetOrLoad 先读缓存，未命中时同 key 的并发回源合并成一次。
// 回源前记下版本号，写回时用 WATCH 比对；期间有 Delete 的话放弃写回，避免把删除前读到的旧值塞回缓存。
// redis 不可用时直接回源，不写缓存。
func (c *Cache) GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func(context.Context) ([]byte, error)) ([]byte, error) {
	k := c.key(key)
	if b, err := c.RDB.Get(ctx, k).Bytes(); err == nil {
		return b, nil
	}
	v, err, _ := c.sf.Do(k, func() (any, error) {
		ver, verErr := c.version(ctx, k)
		b, e := load(ctx)
		if e != nil {
			return nil, e
		}
		if verErr == nil {
			_ = c.setIfVersion(ctx, k, ver, b, ttl)
		}
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *Cache) version(ctx context.Context, k string) (string, error) {
	v, err := c.RDB.Get(ctx, c.verKey(k)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}

var errStale = errors.New("cache: invalidated during load")

func (c *Cache) setIfVersion(ctx context.Context, k, ver string, b []byte, ttl time.Duration) error {
	vk := c.verKey(k)
	return c.RDB.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, vk).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != ver {
			return errStale
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, k, b, ttl)
			return nil
		})
		return err
	}, vk)
}

// Delete 删 key 并推进版本号，正在进行的回源因此不会写回
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
		c.sf.Forget(full[i])
	}
	_, err := c.RDB.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, k := range full {
			p.Incr(ctx, c.verKey(k))
			p.Expire(ctx, c.verKey(k), verTTL)
		}
		p.Del(ctx, full...)
		return nil
	})
	return err
}

func (c *Cache) Ping(ctx context.Context) error { return c.RDB.Ping(ctx).Err() }

func (c *Cache) Close() error { return c.RDB.Close() }
