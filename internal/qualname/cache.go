package qualname

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeebo/xxh3"
	"golang.org/x/sync/singleflight"
)

// Entry is the cached result of building one file.
type Entry struct {
	Path    string
	Mapping *Mapping
	Lines   LineTable
	// Hash is the xxh3 digest of the content the entry was built from.
	Hash    string
	BuiltAt time.Time
}

// CacheStats counts cache traffic since the cache was created.
type CacheStats struct {
	Hits   int64
	Misses int64
	Builds int64
}

// Cache holds one Entry per canonical path. Entries are built at most once
// per key at a time; concurrent misses on the same path share one build.
type Cache struct {
	opts     Options
	readFile func(string) ([]byte, error)

	mu      sync.RWMutex
	entries map[string]*Entry
	group   singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
	builds atomic.Int64
}

// DefaultCache backs Default.
var DefaultCache = NewCache(Options{})

// NewCache returns an empty cache whose entries are built with opts.
func NewCache(opts Options) *Cache {
	return &Cache{
		opts:     opts,
		readFile: os.ReadFile,
		entries:  make(map[string]*Entry),
	}
}

// Get returns the entry for path, reading and parsing the file on a miss.
// path must already be canonical. Read and syntax errors are returned as
// they come from the filesystem and the parser; nothing is cached for them.
func (c *Cache) Get(ctx context.Context, path string) (*Entry, error) {
	if e := c.lookup(path); e != nil {
		c.hits.Add(1)
		return e, nil
	}
	c.misses.Add(1)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch := c.group.DoChan(path, func() (any, error) {
		if e := c.lookup(path); e != nil {
			return e, nil
		}
		e, err := c.build(path)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[path] = e
		c.mu.Unlock()
		return e, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		e, _ := res.Val.(*Entry)
		return e, nil
	}
}

// Options returns the normalized options entries are built with.
func (c *Cache) Options() Options {
	return c.opts.Normalized()
}

// Peek returns the cached entry for path without building it.
func (c *Cache) Peek(path string) (*Entry, bool) {
	e := c.lookup(path)
	return e, e != nil
}

func (c *Cache) lookup(path string) *Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[path]
}

func (c *Cache) build(path string) (*Entry, error) {
	source, err := c.readFile(path)
	if err != nil {
		return nil, err
	}
	c.builds.Add(1)

	mapping, lines, err := BuildWithOptions(source, c.opts)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	e := &Entry{
		Path:    path,
		Mapping: mapping,
		Lines:   lines,
		Hash:    ContentHash(source),
		BuiltAt: time.Now(),
	}
	slog.Debug("qualname.build", "path", path, "definitions", len(mapping.defs), "hash", e.Hash)
	return e, nil
}

// Forget drops the entry for path. Other entries are untouched.
func (c *Cache) Forget(path string) {
	c.mu.Lock()
	delete(c.entries, path)
	c.mu.Unlock()
	c.group.Forget(path)
}

// Reset drops every entry. Stats are kept.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.entries = make(map[string]*Entry)
	c.mu.Unlock()
}

// Len returns the number of cached files.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() CacheStats {
	return CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Builds: c.builds.Load(),
	}
}

// ContentHash returns the hex xxh3 digest used for Entry.Hash.
func ContentHash(data []byte) string {
	return fmt.Sprintf("%016x", xxh3.Hash(data))
}
