// Package cache implements a two-tier key-value cache for computed
// artifacts: a small fast in-memory tier with LRU eviction and a larger
// slow tier mirrored to a durable Store. Entries carry a TTL and are
// expired lazily on read plus by a periodic sweep.
package cache

import (
	"bytes"
	"io"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

// Options configures a Cache. Zero values select the defaults.
type Options struct {
	FastCapacity         int           // max fast-tier entries (default 100)
	SlowCapacity         int           // max slow-tier entries (default 500)
	DefaultTTL           time.Duration // TTL when Set is called with ttl <= 0 (default 30m)
	CompressionThreshold int           // bytes; payloads above this are gzipped (default 8 KiB)
	CleanupInterval      time.Duration // sweep cadence; <= 0 disables the background sweep
	Store                Store         // durable backing for the slow tier; nil means memory-only
}

const (
	defaultFastCapacity         = 100
	defaultSlowCapacity         = 500
	defaultTTL                  = 30 * time.Minute
	defaultCompressionThreshold = 8 * 1024
)

type entry struct {
	data           []byte
	compressed     bool
	createdAt      time.Time
	expiresAt      time.Time
	lastAccessedAt time.Time
	accessCount    int64
	sizeEstimate   int
}

func (e *entry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// Stats is a point-in-time snapshot of cache effectiveness.
type Stats struct {
	FastSize             int     `json:"fastSize"`
	SlowSize             int     `json:"slowSize"`
	FastCapacity         int     `json:"fastCapacity"`
	SlowCapacity         int     `json:"slowCapacity"`
	TotalHits            int64   `json:"totalHits"`
	TotalMisses          int64   `json:"totalMisses"`
	HitRate              float64 `json:"hitRate"`
	EstimatedMemoryBytes int64   `json:"estimatedMemoryBytes"`
}

// Cache is a two-tier cache of msgpack-encodable values. It is safe for
// concurrent use. Construct with New and release with Close.
type Cache[T any] struct {
	mu     sync.Mutex
	fast   map[string]*entry
	slow   map[string]*entry
	opts   Options
	hits   int64
	misses int64

	logger   *zap.SugaredLogger
	stopOnce sync.Once
	stopChan chan struct{}
}

// New builds a Cache, loading any persisted slow-tier entries from the
// configured Store (best effort) and starting the periodic sweep when
// CleanupInterval is positive.
func New[T any](opts Options, logger *zap.SugaredLogger) *Cache[T] {
	if opts.FastCapacity <= 0 {
		opts.FastCapacity = defaultFastCapacity
	}
	if opts.SlowCapacity <= 0 {
		opts.SlowCapacity = defaultSlowCapacity
	}
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = defaultTTL
	}
	if opts.CompressionThreshold <= 0 {
		opts.CompressionThreshold = defaultCompressionThreshold
	}

	c := &Cache[T]{
		fast:     make(map[string]*entry),
		slow:     make(map[string]*entry),
		opts:     opts,
		logger:   logger,
		stopChan: make(chan struct{}),
	}

	if opts.Store != nil {
		persisted, err := opts.Store.Load()
		if err != nil {
			logger.Warnf("cache: loading persisted entries failed, starting empty: %v", err)
		} else {
			now := time.Now()
			for key, se := range persisted {
				if now.After(se.ExpiresAt) {
					continue
				}
				c.slow[key] = &entry{
					data:         se.Data,
					compressed:   se.Compressed,
					createdAt:    se.CreatedAt,
					expiresAt:    se.ExpiresAt,
					sizeEstimate: se.SizeEstimate,
				}
			}
			logger.Debugf("cache: loaded %d persisted entries", len(c.slow))
		}
	}

	if opts.CleanupInterval > 0 {
		go c.sweepLoop(opts.CleanupInterval)
	}
	return c
}

// Get returns the cached value for key. An entry past its TTL is treated as
// absent and removed. Slow-tier hits are promoted into the fast tier.
func (c *Cache[T]) Get(key string) (T, bool) {
	var zero T
	c.mu.Lock()

	now := time.Now()
	if e, ok := c.fast[key]; ok {
		if e.expired(now) {
			delete(c.fast, key)
			delete(c.slow, key)
			c.misses++
			c.mu.Unlock()
			return zero, false
		}
		e.lastAccessedAt = now
		e.accessCount++
		c.hits++
		data, compressed := e.data, e.compressed
		c.mu.Unlock()
		if value, ok := c.decode(data, compressed); ok {
			return value, true
		}
		c.dropCorrupt(key, e)
		return zero, false
	}

	if e, ok := c.slow[key]; ok {
		if e.expired(now) {
			delete(c.slow, key)
			c.misses++
			c.mu.Unlock()
			return zero, false
		}
		e.lastAccessedAt = now
		e.accessCount++
		c.promoteLocked(key, e)
		c.hits++
		data, compressed := e.data, e.compressed
		c.mu.Unlock()
		if value, ok := c.decode(data, compressed); ok {
			return value, true
		}
		c.dropCorrupt(key, e)
		return zero, false
	}

	c.misses++
	c.mu.Unlock()
	return zero, false
}

// dropCorrupt removes an undecodable entry from both tiers so the failure
// does not repeat on every lookup, and reclassifies the recorded hit as a
// miss. The identity check skips entries replaced by a concurrent Set.
func (c *Cache[T]) dropCorrupt(key string, e *entry) {
	c.mu.Lock()
	if cur, ok := c.fast[key]; ok && cur == e {
		delete(c.fast, key)
	}
	if cur, ok := c.slow[key]; ok && cur == e {
		delete(c.slow, key)
	}
	c.hits--
	c.misses++
	c.mu.Unlock()
}

// Set stores value under key with the given TTL (<= 0 selects the default).
// The value is msgpack-encoded; payloads above the compression threshold are
// gzipped before storage.
func (c *Cache[T]) Set(key string, value T, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.opts.DefaultTTL
	}
	encoded, err := msgpack.Marshal(value)
	if err != nil {
		return err
	}

	size := len(encoded)
	compressed := false
	if size > c.opts.CompressionThreshold {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(encoded); err == nil && zw.Close() == nil {
			encoded = buf.Bytes()
			compressed = true
		} else {
			zw.Close()
		}
	}

	now := time.Now()
	e := &entry{
		data:           encoded,
		compressed:     compressed,
		createdAt:      now,
		expiresAt:      now.Add(ttl),
		lastAccessedAt: now,
		sizeEstimate:   size,
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.fast[key]; !exists && len(c.fast) >= c.opts.FastCapacity {
		c.evictFastLRULocked()
	}
	c.fast[key] = e

	if _, exists := c.slow[key]; !exists && len(c.slow) >= c.opts.SlowCapacity {
		c.evictSlowOldestLocked()
	}
	c.slow[key] = e
	return nil
}

// Cleanup removes every expired entry from both tiers and best-effort
// persists the surviving slow tier. Returns the number of entries removed.
func (c *Cache[T]) Cleanup() int {
	c.mu.Lock()
	now := time.Now()
	removed := 0
	for key, e := range c.fast {
		if e.expired(now) {
			delete(c.fast, key)
			removed++
		}
	}
	for key, e := range c.slow {
		if e.expired(now) {
			delete(c.slow, key)
			removed++
		}
	}
	snapshot := c.slowSnapshotLocked()
	c.mu.Unlock()

	c.persist(snapshot)
	return removed
}

// Clear empties both tiers and resets hit/miss accounting.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	c.fast = make(map[string]*entry)
	c.slow = make(map[string]*entry)
	c.hits = 0
	c.misses = 0
	c.mu.Unlock()
	c.persist(map[string]StoredEntry{})
}

// Stats returns current sizes and hit-rate accounting.
func (c *Cache[T]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var mem int64
	for _, e := range c.fast {
		mem += int64(len(e.data))
	}
	for _, e := range c.slow {
		mem += int64(len(e.data))
	}

	s := Stats{
		FastSize:             len(c.fast),
		SlowSize:             len(c.slow),
		FastCapacity:         c.opts.FastCapacity,
		SlowCapacity:         c.opts.SlowCapacity,
		TotalHits:            c.hits,
		TotalMisses:          c.misses,
		EstimatedMemoryBytes: mem,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// Close stops the background sweep, persists the slow tier, and closes the
// Store. Safe to call more than once.
func (c *Cache[T]) Close() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
		c.mu.Lock()
		snapshot := c.slowSnapshotLocked()
		c.mu.Unlock()
		c.persist(snapshot)
		if c.opts.Store != nil {
			if err := c.opts.Store.Close(); err != nil {
				c.logger.Warnf("cache: closing store: %v", err)
			}
		}
	})
}

// promoteLocked copies a slow-tier entry into the fast tier, evicting the
// fast tier's LRU victim when at capacity. Caller holds c.mu.
func (c *Cache[T]) promoteLocked(key string, e *entry) {
	if _, exists := c.fast[key]; !exists && len(c.fast) >= c.opts.FastCapacity {
		c.evictFastLRULocked()
	}
	c.fast[key] = e
}

// evictFastLRULocked removes the least recently accessed fast-tier entry.
// An O(n) scan is fine at the target scale of a few hundred entries.
func (c *Cache[T]) evictFastLRULocked() {
	var victim string
	var oldest time.Time
	for key, e := range c.fast {
		if victim == "" || e.lastAccessedAt.Before(oldest) {
			victim = key
			oldest = e.lastAccessedAt
		}
	}
	if victim != "" {
		delete(c.fast, victim)
	}
}

// evictSlowOldestLocked removes the oldest-by-creation slow-tier entry, a
// FIFO approximation of LRU that is acceptable given low slow-tier churn.
func (c *Cache[T]) evictSlowOldestLocked() {
	var victim string
	var oldest time.Time
	for key, e := range c.slow {
		if victim == "" || e.createdAt.Before(oldest) {
			victim = key
			oldest = e.createdAt
		}
	}
	if victim != "" {
		delete(c.slow, victim)
	}
}

func (c *Cache[T]) slowSnapshotLocked() map[string]StoredEntry {
	snapshot := make(map[string]StoredEntry, len(c.slow))
	for key, e := range c.slow {
		snapshot[key] = StoredEntry{
			Data:         e.data,
			Compressed:   e.compressed,
			CreatedAt:    e.createdAt,
			ExpiresAt:    e.expiresAt,
			SizeEstimate: e.sizeEstimate,
		}
	}
	return snapshot
}

// persist writes the slow tier to the Store. Persistence failures degrade
// the cache to memory-only; they are logged and never surfaced to callers.
func (c *Cache[T]) persist(snapshot map[string]StoredEntry) {
	if c.opts.Store == nil {
		return
	}
	if err := c.opts.Store.Save(snapshot); err != nil {
		c.logger.Warnf("cache: persisting %d entries failed: %v", len(snapshot), err)
	}
}

func (c *Cache[T]) decode(data []byte, compressed bool) (T, bool) {
	var value T
	payload := data
	if compressed {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			c.logger.Warnf("cache: corrupt compressed entry: %v", err)
			return value, false
		}
		payload, err = io.ReadAll(zr)
		zr.Close()
		if err != nil {
			c.logger.Warnf("cache: decompressing entry: %v", err)
			return value, false
		}
	}
	if err := msgpack.Unmarshal(payload, &value); err != nil {
		c.logger.Warnf("cache: decoding entry: %v", err)
		return value, false
	}
	return value, true
}

func (c *Cache[T]) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			if removed := c.Cleanup(); removed > 0 {
				c.logger.Debugf("cache: sweep removed %d expired entries", removed)
			}
		}
	}
}
