package application

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/campus-booking/internal/interval"
)

// SlotCache stores recently computed free-slot answers so repeated
// availability queries skip the index walk while bookings remain unchanged.
// Entries for a resource are invalidated whenever one of its bookings
// changes.
type SlotCache interface {
	Get(ctx context.Context, key string) ([]interval.Interval, bool)
	Store(ctx context.Context, key string, slots []interval.Interval)
	Invalidate(ctx context.Context, resourceID string)
}

func slotCacheKey(resourceID string, window interval.Interval) string {
	return fmt.Sprintf("availability:%s:%s:%s",
		resourceID,
		window.Start.Format(time.RFC3339),
		window.End.Format(time.RFC3339),
	)
}

// memorySlotCache is the in-process fallback used when Redis is not
// configured.
type memorySlotCache struct {
	mu         sync.RWMutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	entries    map[string]memorySlotEntry
}

type memorySlotEntry struct {
	slots     []interval.Interval
	expiresAt time.Time
}

// NewMemorySlotCache returns an in-process TTL cache for free-slot answers.
func NewMemorySlotCache(ttl time.Duration, maxEntries int, now func() time.Time) SlotCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 256
	}
	if now == nil {
		now = time.Now
	}
	return &memorySlotCache{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]memorySlotEntry),
	}
}

func (c *memorySlotCache) Get(_ context.Context, key string) ([]interval.Interval, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return cloneSlots(entry.slots), true
}

func (c *memorySlotCache) Store(_ context.Context, key string, slots []interval.Interval) {
	cloned := cloneSlots(slots)
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupLocked()
	if len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[key] = memorySlotEntry{slots: cloned, expiresAt: expiry}
}

func (c *memorySlotCache) Invalidate(_ context.Context, resourceID string) {
	prefix := "availability:" + resourceID + ":"
	c.mu.Lock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}

func (c *memorySlotCache) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *memorySlotCache) evictOneLocked() {
	for key := range c.entries {
		delete(c.entries, key)
		return
	}
}

func cloneSlots(slots []interval.Interval) []interval.Interval {
	if len(slots) == 0 {
		return nil
	}
	out := make([]interval.Interval, len(slots))
	copy(out, slots)
	return out
}

// redisSlotCache stores answers in Redis so multiple engine instances share
// one cache. Failures degrade to a miss; the cache must never fail a query.
type redisSlotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSlotCache returns a Redis-backed free-slot cache.
func NewRedisSlotCache(client *redis.Client, ttl time.Duration) SlotCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &redisSlotCache{client: client, ttl: ttl}
}

type cachedSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (c *redisSlotCache) Get(ctx context.Context, key string) ([]interval.Interval, bool) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var cached []cachedSlot
	if err := json.Unmarshal(payload, &cached); err != nil {
		return nil, false
	}
	slots := make([]interval.Interval, 0, len(cached))
	for _, slot := range cached {
		slots = append(slots, interval.Interval{Start: slot.Start, End: slot.End})
	}
	return slots, true
}

func (c *redisSlotCache) Store(ctx context.Context, key string, slots []interval.Interval) {
	cached := make([]cachedSlot, 0, len(slots))
	for _, slot := range slots {
		cached = append(cached, cachedSlot{Start: slot.Start, End: slot.End})
	}
	payload, err := json.Marshal(cached)
	if err != nil {
		return
	}
	c.client.Set(ctx, key, payload, c.ttl)
}

func (c *redisSlotCache) Invalidate(ctx context.Context, resourceID string) {
	pattern := "availability:" + resourceID + ":*"
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		c.client.Del(ctx, iter.Val())
	}
}
