// Package cache keeps recently built index fragments keyed by source file
// identity so that reconstruction does not re-embed unchanged files.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"pdfchat/internal/vectorstore/memory"
)

// DefaultSize bounds the number of cached fragments.
const DefaultSize = 5

// Cache is a bounded LRU of index fragments keyed by path and content fingerprint.
type Cache struct {
	entries *lru.Cache[string, *memory.Index]
}

// New creates a cache holding at most size fragments.
func New(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	entries, err := lru.New[string, *memory.Index](size)
	if err != nil {
		return nil, err
	}
	return &Cache{entries: entries}, nil
}

// Key identifies a fragment by source path and the SHA-256 of its bytes.
func Key(path string, data []byte) string {
	sum := sha256.Sum256(data)
	return path + "#" + hex.EncodeToString(sum[:])
}

// Get returns the fragment for path built from exactly data.
func (c *Cache) Get(path string, data []byte) (*memory.Index, bool) {
	return c.entries.Get(Key(path, data))
}

// Put stores the fragment built from path's bytes.
func (c *Cache) Put(path string, data []byte, idx *memory.Index) {
	c.entries.Add(Key(path, data), idx)
}

// Invalidate drops every fragment built from path, whatever its content.
func (c *Cache) Invalidate(path string) {
	prefix := path + "#"
	for _, k := range c.entries.Keys() {
		if strings.HasPrefix(k, prefix) {
			c.entries.Remove(k)
		}
	}
}

// Purge empties the cache.
func (c *Cache) Purge() { c.entries.Purge() }

// Len returns the number of cached fragments.
func (c *Cache) Len() int { return c.entries.Len() }
