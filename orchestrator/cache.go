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
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// ResponseCache memoizes successful step results under a TTL.
// Implementations must be safe for concurrent use.
type ResponseCache interface {
	// Get returns the stored result for a signature, or false when the
	// entry is absent or older than the configured expiry.
	Get(signature string) (interface{}, bool)

	// Put stores a result with the current timestamp, overwriting any
	// prior entry for the signature.
	Put(signature string, result interface{})

	// Clear drops all entries. Used for manual invalidation.
	Clear()
}

// Signature derives the stable cache key for a step: capability, provider
// and a digest of the payload content. Payload identity, not pointer
// equality, determines cache hits — json.Marshal emits map keys sorted, so
// equal payloads always produce equal signatures.
func Signature(capability Capability, provider string, payload map[string]interface{}) string {
	data, err := json.Marshal(payload)
	if err != nil {
		// Unserializable payloads fall back to a formatted dump; still
		// deterministic for the map types the engine accepts.
		data = []byte(fmt.Sprintf("%v", payload))
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%s:%s:%x", capability, provider, sum[:16])
}

// CacheStats tracks cache effectiveness counters.
type CacheStats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

type cacheEntry struct {
	result   interface{}
	storedAt time.Time
}

// MemoryCache is the in-process ResponseCache. Entries expire after the TTL
// and the cache is size-bounded: inserting past maxEntries evicts the oldest
// entry, and StartSweep can run a periodic pass that drops expired entries.
type MemoryCache struct {
	mu         sync.RWMutex
	entries    map[string]cacheEntry
	ttl        time.Duration
	maxEntries int

	statsMu sync.Mutex
	stats   CacheStats
}

// DefaultCacheSize bounds the in-memory cache when no explicit size is set.
const DefaultCacheSize = 4096

// NewMemoryCache creates an in-memory cache. A ttl of zero makes every
// lookup a miss; maxEntries <= 0 falls back to DefaultCacheSize.
func NewMemoryCache(ttl time.Duration, maxEntries int) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheSize
	}
	return &MemoryCache{
		entries:    make(map[string]cacheEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
	}
}

// Get implements ResponseCache. An entry is usable only while its age is
// strictly below the TTL.
func (c *MemoryCache) Get(signature string) (interface{}, bool) {
	c.mu.RLock()
	entry, exists := c.entries[signature]
	c.mu.RUnlock()

	if !exists || time.Since(entry.storedAt) >= c.ttl {
		c.recordMiss()
		return nil, false
	}
	c.recordHit()
	return entry.result, true
}

// Put implements ResponseCache.
func (c *MemoryCache) Put(signature string, result interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[signature]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.entries[signature] = cacheEntry{result: result, storedAt: time.Now()}
}

// Clear implements ResponseCache.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// evictOldestLocked drops the entry with the oldest write timestamp.
// Callers must hold c.mu.
func (c *MemoryCache) evictOldestLocked() {
	oldestKey := ""
	var oldest time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.storedAt.Before(oldest) {
			oldestKey = key
			oldest = entry.storedAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
		c.statsMu.Lock()
		c.stats.Evictions++
		c.statsMu.Unlock()
	}
}

// Cleanup removes expired entries and returns how many were dropped.
func (c *MemoryCache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := 0
	for key, entry := range c.entries {
		if time.Since(entry.storedAt) >= c.ttl {
			delete(c.entries, key)
			evicted++
		}
	}
	if evicted > 0 {
		c.statsMu.Lock()
		c.stats.Evictions += int64(evicted)
		c.statsMu.Unlock()
	}
	return evicted
}

// StartSweep runs Cleanup on the given interval until ctx is cancelled.
func (c *MemoryCache) StartSweep(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Cleanup()
			}
		}
	}()
}

// Len returns the current number of entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns a copy of the effectiveness counters.
func (c *MemoryCache) Stats() CacheStats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

func (c *MemoryCache) recordHit() {
	c.statsMu.Lock()
	c.stats.Hits++
	c.statsMu.Unlock()
}

func (c *MemoryCache) recordMiss() {
	c.statsMu.Lock()
	c.stats.Misses++
	c.statsMu.Unlock()
}
