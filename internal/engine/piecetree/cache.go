package piecetree

// DefaultSearchCacheSize is the number of recent lookups remembered.
const DefaultSearchCacheSize = 10

// cacheEntry records a resolved node with its absolute start offset and,
// when known, the 1-based line on which its piece starts.
type cacheEntry struct {
	node      int
	start     int
	startLine int // 0 if unknown
}

// searchCache is a small FIFO of recent lookups consulted before descending
// the tree. Entries are pruned on every edit, never expired.
type searchCache struct {
	limit   int
	entries []cacheEntry
}

func newSearchCache(limit int) *searchCache {
	if limit < 0 {
		limit = 0
	}
	return &searchCache{limit: limit, entries: make([]cacheEntry, 0, limit)}
}

// get returns the newest entry whose piece contains offset.
func (c *searchCache) get(nodes []node, offset int) (cacheEntry, bool) {
	for i := len(c.entries) - 1; i >= 0; i-- {
		e := c.entries[i]
		if e.start <= offset && offset < e.start+nodes[e.node].piece.Length {
			return e, true
		}
	}
	return cacheEntry{}, false
}

// getLine returns the newest entry whose piece contains the start of line
// lineNo after its own first line.
func (c *searchCache) getLine(nodes []node, lineNo int) (cacheEntry, bool) {
	for i := len(c.entries) - 1; i >= 0; i-- {
		e := c.entries[i]
		if e.startLine > 0 && e.startLine < lineNo && lineNo <= e.startLine+nodes[e.node].piece.LineFeeds {
			return e, true
		}
	}
	return cacheEntry{}, false
}

// set records e, evicting the oldest entry when full.
func (c *searchCache) set(e cacheEntry) {
	if c.limit == 0 {
		return
	}
	if len(c.entries) >= c.limit {
		copy(c.entries, c.entries[1:])
		c.entries = c.entries[:len(c.entries)-1]
	}
	c.entries = append(c.entries, e)
}

// validate drops entries starting at or after offset.
func (c *searchCache) validate(offset int) {
	kept := c.entries[:0]
	for _, e := range c.entries {
		if e.start < offset {
			kept = append(kept, e)
		}
	}
	c.entries = kept
}

// forget drops entries referring to node x.
func (c *searchCache) forget(x int) {
	kept := c.entries[:0]
	for _, e := range c.entries {
		if e.node != x {
			kept = append(kept, e)
		}
	}
	c.entries = kept
}

func (c *searchCache) clear() {
	c.entries = c.entries[:0]
}

func (c *searchCache) len() int {
	return len(c.entries)
}
