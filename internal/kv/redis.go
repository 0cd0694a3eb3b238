package kv

import (
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"
)

// RedisConfig describes how to reach the cache server.
type RedisConfig struct {
	Network  string
	Addr     string
	Password string
	DB       int
	MaxIdle  int
}

// NewRedisPool creates a connection pool for cfg.
func NewRedisPool(cfg RedisConfig) *redis.Pool {
	network := cfg.Network
	if network == "" {
		network = "tcp"
	}
	maxIdle := cfg.MaxIdle
	if maxIdle <= 0 {
		maxIdle = 4
	}

	return &redis.Pool{
		MaxIdle:     maxIdle,
		IdleTimeout: 240 * time.Second,
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			_, err := c.Do("PING")
			return err
		},
		Dial: func() (redis.Conn, error) {
			return redis.Dial(
				network,
				cfg.Addr,
				redis.DialDatabase(cfg.DB),
				redis.DialPassword(cfg.Password),
			)
		},
	}
}

// RedisCache is a Cache shared between processes through Redis.
type RedisCache struct {
	pool   *redis.Pool
	prefix string
}

// NewRedisCache stores entries under prefix+key.
func NewRedisCache(pool *redis.Pool, prefix string) *RedisCache {
	return &RedisCache{pool: pool, prefix: prefix}
}

// GetMulti treats any Redis failure as a miss on every key.
func (c *RedisCache) GetMulti(keys []string) (map[string]string, []string) {
	hits := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return hits, nil
	}

	rc := c.pool.Get()
	defer rc.Close()
	if rc.Err() != nil {
		return hits, keys
	}

	values, err := redis.Values(rc.Do("MGET", redis.Args{}.AddFlat(c.prefixed(keys))...))
	if err != nil || len(values) != len(keys) {
		return hits, keys
	}

	var missed []string
	for i, v := range values {
		s, err := redis.String(v, nil)
		if err != nil {
			missed = append(missed, keys[i])
			continue
		}
		hits[keys[i]] = s
	}
	return hits, missed
}

func (c *RedisCache) SetMulti(values map[string]string, ttl time.Duration) error {
	rc := c.pool.Get()
	defer rc.Close()
	if rc.Err() != nil {
		return rc.Err()
	}

	seconds := int(ttl / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	for k, v := range values {
		if _, err := rc.Do("SETEX", c.prefix+k, seconds, v); err != nil {
			return fmt.Errorf("kv: cache %s: %w", k, err)
		}
	}
	return nil
}

func (c *RedisCache) Delete(keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	rc := c.pool.Get()
	defer rc.Close()
	if rc.Err() != nil {
		return rc.Err()
	}

	_, err := rc.Do("DEL", redis.Args{}.AddFlat(c.prefixed(keys))...)
	return err
}

func (c *RedisCache) prefixed(keys []string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = c.prefix + k
	}
	return out
}
