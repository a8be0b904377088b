// Package rediscache implements dataset.Cache on top of Redis so that
// several dashboard processes can share loaded indicator files.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zalepa/indicadores/dataset"
	"github.com/zalepa/indicadores/logger"
)

const defaultPrefix = "indicadores:dataset:"

// Cache stores JSON-encoded records under prefix+path. Redis failures are
// logged and reported as misses, so a broken cache only costs a file read.
type Cache struct {
	rc      *redis.Client
	ttl     time.Duration
	prefix  string
	timeout time.Duration
}

// New wraps rc. A zero ttl stores keys without expiration.
func New(rc *redis.Client, ttl time.Duration) *Cache {
	return &Cache{rc: rc, ttl: ttl, prefix: defaultPrefix, timeout: 2 * time.Second}
}

// OpenFromEnv connects using REDIS_ADDR, REDIS_PASS and REDIS_DB. It
// returns nil when REDIS_ADDR is unset.
func OpenFromEnv() *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return nil
	}
	db := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			db = n
		}
	}
	logger.L().Debug("redis_env", "addr", addr, "db", db)
	return redis.NewClient(&redis.Options{Addr: addr, Password: os.Getenv("REDIS_PASS"), DB: db})
}

func (c *Cache) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.timeout)
}

func (c *Cache) Get(key string) ([]dataset.Record, bool) {
	ctx, cancel := c.ctx()
	defer cancel()
	b, err := c.rc.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		logger.L().Warn("redis_cache_get_error", "key", key, "err", err)
		return nil, false
	}
	recs, err := Decode(b)
	if err != nil {
		logger.L().Warn("redis_cache_decode_error", "key", key, "err", err)
		return nil, false
	}
	return recs, true
}

func (c *Cache) Add(key string, recs []dataset.Record) {
	b, err := Encode(recs)
	if err != nil {
		logger.L().Warn("redis_cache_encode_error", "key", key, "err", err)
		return
	}
	ctx, cancel := c.ctx()
	defer cancel()
	if err := c.rc.Set(ctx, c.prefix+key, b, c.ttl).Err(); err != nil {
		logger.L().Warn("redis_cache_set_error", "key", key, "err", err)
	}
}

func (c *Cache) Remove(key string) {
	ctx, cancel := c.ctx()
	defer cancel()
	if err := c.rc.Del(ctx, c.prefix+key).Err(); err != nil {
		logger.L().Warn("redis_cache_del_error", "key", key, "err", err)
	}
}

// Purge deletes every key under the cache prefix.
func (c *Cache) Purge() {
	ctx, cancel := c.ctx()
	defer cancel()
	var keys []string
	iter := c.rc.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		logger.L().Warn("redis_cache_scan_error", "err", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.rc.Del(ctx, keys...).Err(); err != nil {
		logger.L().Warn("redis_cache_purge_error", "err", err)
	}
}

// Encode serializes records for storage.
func Encode(recs []dataset.Record) ([]byte, error) { return json.Marshal(recs) }

// Decode is the inverse of Encode.
func Decode(b []byte) ([]dataset.Record, error) {
	var recs []dataset.Record
	if err := json.Unmarshal(b, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}
