package redis

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache wraps a redis client used for read-through caching of hot
// queries. A nil Cache (redis unavailable) is valid: every method
// degrades to a miss.
type Cache struct {
	client *redis.Client
}

// Connect dials redis and returns a Cache, or nil when redis is
// unreachable. Startup never fails on a missing cache.
func Connect(addr, password string) *Cache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("[REDIS] warning: could not connect: %v. Serving from PostgreSQL only.", err)
		client.Close()
		return nil
	}

	log.Println("[REDIS] connected successfully")
	return &Cache{client: client}
}

func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	if c == nil {
		return "", false
	}
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			log.Printf("[REDIS] get %s failed: %v", key, err)
		}
		return "", false
	}
	return val, true
}

func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if c == nil {
		return
	}
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		log.Printf("[REDIS] set %s failed: %v", key, err)
	}
}

func (c *Cache) Del(ctx context.Context, keys ...string) {
	if c == nil {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		log.Printf("[REDIS] del failed: %v", err)
	}
}

func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
