// Copyright 2025 Storyloom
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
)

// redisKeyPrefix namespaces cache keys so Clear can scan-delete without
// touching other users of the same Redis database.
const redisKeyPrefix = "storyloom:cache:"

// RedisCache is a ResponseCache backed by Redis, for deployments running
// multiple orchestrator replicas that should share memoized results.
// Results are stored as JSON; a round-tripped result is deterministic-
// equivalent to the original, which is all the cache contract requires.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *log.Logger
}

// NewRedisCache creates a Redis-backed cache. A ttl of zero makes every
// lookup a miss, matching MemoryCache semantics.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client: client,
		ttl:    ttl,
		logger: log.New(os.Stdout, "[Cache] ", log.LstdFlags),
	}
}

// NewRedisCacheFromURL connects to Redis and verifies the connection.
func NewRedisCacheFromURL(redisURL string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisCache(client, ttl), nil
}

// Get implements ResponseCache. Redis errors degrade to a miss: the caller
// re-executes the operation, which is always safe.
func (c *RedisCache) Get(signature string) (interface{}, bool) {
	if c.ttl <= 0 {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := c.client.Get(ctx, redisKeyPrefix+signature).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Printf("Redis get failed for %s: %v (treating as miss)", signature, err)
		return nil, false
	}

	var result interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Printf("Corrupt cache entry for %s: %v (treating as miss)", signature, err)
		return nil, false
	}
	return result, true
}

// Put implements ResponseCache. The TTL doubles as the Redis key expiry so
// stale entries clean themselves up server-side.
func (c *RedisCache) Put(signature string, result interface{}) {
	if c.ttl <= 0 {
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Printf("Skipping cache write for %s: %v", signature, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := c.client.Set(ctx, redisKeyPrefix+signature, data, c.ttl).Err(); err != nil {
		c.logger.Printf("Redis set failed for %s: %v", signature, err)
	}
}

// Clear implements ResponseCache by scan-deleting the namespaced keys.
func (c *RedisCache) Clear() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	iter := c.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			c.logger.Printf("Redis delete failed for %s: %v", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		c.logger.Printf("Redis scan failed during clear: %v", err)
	}
}

// Close releases the underlying Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
