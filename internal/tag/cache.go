package tag

import (
	"sync"
	"sync/atomic"

	"github.com/zeebo/blake3"

	"github.com/roach88/idlc/internal/ir"
)

// Cache memoizes form tags. Entries for generic instances are keyed on the
// full substitution (a fingerprint of every argument tag), never on the
// prototype alone, so distinct instantiations never collapse.
//
// Thread-safety: all methods are safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[cacheKey]Tag
	hits    atomic.Int64
	misses  atomic.Int64
}

type cacheKey struct {
	form        *ir.Form
	format      ir.Format
	fingerprint [32]byte
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[cacheKey]Tag)}
}

// Fingerprint digests the canonical expressions of args. The separator
// byte keeps ["a", "bc"] and ["ab", "c"] apart.
func Fingerprint(args []Tag) [32]byte {
	var buf []byte
	for _, a := range args {
		buf = append(buf, Expr(a)...)
		buf = append(buf, 0x00)
	}
	return blake3.Sum256(buf)
}

func (c *Cache) get(form *ir.Form, f ir.Format, args []Tag) (Tag, bool) {
	if c == nil {
		return nil, false
	}
	k := cacheKey{form: form, format: f, fingerprint: Fingerprint(args)}
	c.mu.RLock()
	t, ok := c.entries[k]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return t, ok
}

func (c *Cache) put(form *ir.Form, f ir.Format, args []Tag, t Tag) {
	if c == nil {
		return
	}
	k := cacheKey{form: form, format: f, fingerprint: Fingerprint(args)}
	c.mu.Lock()
	c.entries[k] = t
	c.mu.Unlock()
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns hit and miss counters.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
