// Package cache stores rendered output keyed by document content and data
// context, with optional gzip compression and TTL expiry.
package cache

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"
)

// DefaultTTL is how long entries live when Options.TTL is zero.
const DefaultTTL = time.Hour

// ErrUnkeyable is returned by Key when the data context cannot be encoded.
var ErrUnkeyable = errors.New("data context is not JSON-encodable")

// Entry is a stored render result.
type Entry struct {
	Value      []byte
	Compressed bool
	CreatedAt  time.Time
}

// Store persists entries by key. Implementations must be safe for
// concurrent use.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Put(ctx context.Context, key string, e Entry) error
	Delete(ctx context.Context, key string) error
	// DeleteBefore removes entries created before cutoff and returns how many.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int, error)
	Clear(ctx context.Context) (int, error)
	Len(ctx context.Context) (int, error)
}

// Options configure a TemplateCache.
type Options struct {
	TTL      time.Duration
	Compress bool
	Now      func() time.Time
}

// Stats is a point-in-time view of cache counters.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Sets      int64 `json:"sets"`
	Evictions int64 `json:"evictions"`
	Entries   int   `json:"entries"`
}

// TemplateCache maps (document, data) pairs to rendered output. Storage
// failures are logged and treated as misses; they never reach the caller.
type TemplateCache struct {
	store    Store
	ttl      time.Duration
	compress bool
	now      func() time.Time
	log      *slog.Logger

	hits      atomic.Int64
	misses    atomic.Int64
	sets      atomic.Int64
	evictions atomic.Int64
}

// New wraps store in a TemplateCache.
func New(store Store, opts Options, log *slog.Logger) *TemplateCache {
	if log == nil {
		log = slog.Default()
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &TemplateCache{
		store:    store,
		ttl:      opts.TTL,
		compress: opts.Compress,
		now:      opts.Now,
		log:      log,
	}
}

// Key derives the cache key for doc rendered with data: SHA-256 over the
// document followed by the data encoded as JSON with sorted keys.
func Key(doc string, data map[string]any) (string, error) {
	if data == nil {
		data = map[string]any{}
	}
	enc, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnkeyable, err)
	}
	h := sha256.New()
	io.WriteString(h, doc)
	h.Write([]byte{0})
	h.Write(enc)
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// Get returns the cached output for (doc, data).
func (c *TemplateCache) Get(ctx context.Context, doc string, data map[string]any) (string, bool) {
	key, err := Key(doc, data)
	if err != nil {
		c.misses.Add(1)
		return "", false
	}
	e, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.Warn("cache read failed", "key", key, "error", err)
		c.misses.Add(1)
		return "", false
	}
	if !ok {
		c.misses.Add(1)
		return "", false
	}
	if c.now().Sub(e.CreatedAt) > c.ttl {
		c.drop(ctx, key, "expired")
		c.misses.Add(1)
		return "", false
	}
	out, err := decode(e)
	if err != nil {
		c.log.Warn("corrupt cache entry", "key", key, "error", err)
		c.drop(ctx, key, "corrupt")
		c.misses.Add(1)
		return "", false
	}
	c.hits.Add(1)
	return out, true
}

// Set stores output for (doc, data). A later Set for the same pair wins.
func (c *TemplateCache) Set(ctx context.Context, doc string, data map[string]any, output string) {
	key, err := Key(doc, data)
	if err != nil {
		c.log.Debug("skipping cache write", "error", err)
		return
	}
	e := Entry{Value: []byte(output), CreatedAt: c.now()}
	if c.compress {
		z, err := compress(e.Value)
		if err != nil {
			c.log.Warn("cache compression failed, storing raw", "error", err)
		} else {
			e.Value, e.Compressed = z, true
		}
	}
	if err := c.store.Put(ctx, key, e); err != nil {
		c.log.Warn("cache write failed", "key", key, "error", err)
		return
	}
	c.sets.Add(1)
}

// Clear removes every entry and returns how many were evicted.
func (c *TemplateCache) Clear(ctx context.Context) int {
	n, err := c.store.Clear(ctx)
	if err != nil {
		c.log.Warn("cache clear failed", "error", err)
	}
	c.evictions.Add(int64(n))
	return n
}

// Sweep removes expired entries and returns how many were evicted.
func (c *TemplateCache) Sweep(ctx context.Context) int {
	n, err := c.store.DeleteBefore(ctx, c.now().Add(-c.ttl))
	if err != nil {
		c.log.Warn("cache sweep failed", "error", err)
	}
	c.evictions.Add(int64(n))
	return n
}

// StartSweeper runs Sweep every interval until ctx is done.
func (c *TemplateCache) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = c.ttl / 2
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := c.Sweep(ctx); n > 0 {
					c.log.Debug("swept expired cache entries", "evicted", n)
				}
			}
		}
	}()
}

// Stats returns current counters.
func (c *TemplateCache) Stats(ctx context.Context) Stats {
	n, err := c.store.Len(ctx)
	if err != nil {
		c.log.Warn("cache size unavailable", "error", err)
	}
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Sets:      c.sets.Load(),
		Evictions: c.evictions.Load(),
		Entries:   n,
	}
}

func (c *TemplateCache) drop(ctx context.Context, key, reason string) {
	if err := c.store.Delete(ctx, key); err != nil {
		c.log.Warn("cache delete failed", "key", key, "reason", reason, "error", err)
		return
	}
	c.evictions.Add(1)
}

func compress(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(b); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(e Entry) (string, error) {
	if !e.Compressed {
		return string(e.Value), nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(e.Value))
	if err != nil {
		return "", fmt.Errorf("open gzip: %w", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return "", fmt.Errorf("read gzip: %w", err)
	}
	return string(out), nil
}
