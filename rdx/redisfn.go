package rdx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Connect parses a redis:// URL and pings the server. Empty url yields nil.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	conn := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.Ping(ctx).Err(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return conn, nil
}

// Cache stores rendered reference lists. A nil connection turns every call
// into a miss, so callers never branch on whether Redis is configured.
type Cache struct {
	conn *redis.Client
	ttl  time.Duration
}

func NewCache(conn *redis.Client, ttl time.Duration) *Cache {
	return &Cache{conn: conn, ttl: ttl}
}

// Key builds the cache key for one rendering of a table.
func Key(table, variant string) string {
	return "ref:" + table + ":" + variant
}

// GetJSON decodes a cached value into dst and reports whether it was found.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) bool {
	if c == nil || c.conn == nil {
		return false
	}
	raw, err := c.conn.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Println("Redis Get error for key", key, ":", err)
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		log.Println("Redis cached value undecodable for key", key, ":", err)
		return false
	}
	return true
}

func (c *Cache) SetJSON(ctx context.Context, key string, v any) {
	if c == nil || c.conn == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.conn.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		log.Println("Redis Set error for key", key, ":", err)
	}
}

// Invalidate drops every cached rendering of table.
func (c *Cache) Invalidate(ctx context.Context, table string) {
	if c == nil || c.conn == nil {
		return
	}
	iter := c.conn.Scan(ctx, 0, Key(table, "*"), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		log.Println("Redis scan error:", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.conn.Del(ctx, keys...).Err(); err != nil {
		log.Println("Failed to delete Redis keys for", table, ":", err)
	}
}
