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
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func newTestRedisCache(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return mr, NewRedisCache(client, ttl)
}

func TestRedisCacheRoundTrip(t *testing.T) {
	_, cache := newTestRedisCache(t, time.Minute)

	if _, ok := cache.Get("missing"); ok {
		t.Fatal("expected miss for absent signature")
	}

	cache.Put("sig", "an illustration of a fox")
	result, ok := cache.Get("sig")
	if !ok {
		t.Fatal("expected hit after Put")
	}
	if result != "an illustration of a fox" {
		t.Errorf("Get = %v, want the stored result", result)
	}
}

func TestRedisCacheExpiry(t *testing.T) {
	mr, cache := newTestRedisCache(t, time.Minute)

	cache.Put("sig", "result")
	mr.FastForward(2 * time.Minute)

	if _, ok := cache.Get("sig"); ok {
		t.Error("expected miss after TTL elapsed")
	}
}

func TestRedisCacheZeroTTL(t *testing.T) {
	_, cache := newTestRedisCache(t, 0)

	cache.Put("sig", "result")
	if _, ok := cache.Get("sig"); ok {
		t.Error("zero TTL must make every lookup a miss")
	}
}

func TestRedisCacheClear(t *testing.T) {
	mr, cache := newTestRedisCache(t, time.Minute)

	cache.Put("a", 1)
	cache.Put("b", 2)
	mr.Set("unrelated", "keep") // outside the cache namespace

	cache.Clear()

	if _, ok := cache.Get("a"); ok {
		t.Error("expected miss after Clear")
	}
	if !mr.Exists("unrelated") {
		t.Error("Clear must not touch keys outside its prefix")
	}
}

func TestRedisCacheCorruptEntryIsMiss(t *testing.T) {
	mr, cache := newTestRedisCache(t, time.Minute)

	mr.Set(redisKeyPrefix+"sig", "{not json")
	if _, ok := cache.Get("sig"); ok {
		t.Error("corrupt entries must degrade to a miss")
	}
}
