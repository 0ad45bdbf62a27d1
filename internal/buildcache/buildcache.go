// SPDX-License-Identifier: MPL-2.0

// Package buildcache persists per-module build records between builds so
// unchanged modules can skip recompilation.
//
// The cache is durable workspace state, loaded once at the start of a build
// and saved once at the end. Corruption never aborts a build: a damaged file
// degrades to an empty cache (full rebuild) plus a recoverable warning.
package buildcache

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// formatVersion guards against records written by an incompatible layout.
// A mismatch is treated like corruption: empty cache, warning, full rebuild.
const formatVersion = 1

// Record is one per-module cache entry. It is reusable only while the stored
// fingerprint equals the module's current fingerprint and the object still
// exists on disk.
type Record struct {
	Fingerprint string    `toml:"fingerprint"`
	Object      string    `toml:"object"`
	BuiltAt     time.Time `toml:"built_at"`
	Success     bool      `toml:"success"`
}

// Cache maps tool names to their last-successful-build records.
type Cache struct {
	Version int               `toml:"version"`
	Tools   map[string]Record `toml:"tools"`
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{Version: formatVersion, Tools: make(map[string]Record)}
}

// Lookup returns the record for a tool, if present.
func (c *Cache) Lookup(name string) (Record, bool) {
	rec, ok := c.Tools[name]
	return rec, ok
}

// Put stores a record for a tool.
func (c *Cache) Put(name string, rec Record) {
	if c.Tools == nil {
		c.Tools = make(map[string]Record)
	}
	c.Tools[name] = rec
}

// Reusable reports whether the cached record for name allows skipping
// compilation for the given current fingerprint.
func (c *Cache) Reusable(name, fingerprint string) (Record, bool) {
	rec, ok := c.Tools[name]
	if !ok || !rec.Success || rec.Fingerprint != fingerprint {
		return Record{}, false
	}
	if _, err := os.Stat(rec.Object); err != nil {
		return Record{}, false
	}
	return rec, true
}

// Prune drops records for tools that are no longer registered.
func (c *Cache) Prune(registered map[string]bool) {
	for name := range c.Tools {
		if !registered[name] {
			delete(c.Tools, name)
		}
	}
}

// Load reads the cache from path. A missing file is a normal first run and
// yields an empty cache. An unreadable or corrupt file also yields an empty
// cache together with a non-nil warning; Load never fails the build.
func Load(path string) (*Cache, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return New(), fmt.Errorf("build cache unreadable, forcing full rebuild: %w", err)
	}

	var c Cache
	if err := toml.Unmarshal(data, &c); err != nil {
		return New(), fmt.Errorf("build cache corrupt, forcing full rebuild: %w", err)
	}
	if c.Version != formatVersion {
		return New(), fmt.Errorf("build cache version %d not supported, forcing full rebuild", c.Version)
	}
	if c.Tools == nil {
		c.Tools = make(map[string]Record)
	}
	return &c, nil
}

// Save writes the cache to path atomically (temp file + rename), so a
// concurrent reader never observes a torn file.
func Save(path string, c *Cache) error {
	c.Version = formatVersion

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode build cache: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".cache.toml.tmp-*")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmp.Name()

	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if werr != nil || cerr != nil {
		os.Remove(tmpName)
		if werr != nil {
			return fmt.Errorf("write temp cache file: %w", werr)
		}
		return fmt.Errorf("close temp cache file: %w", cerr)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace build cache: %w", err)
	}
	return nil
}
