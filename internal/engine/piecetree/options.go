package piecetree

// Option configures a Tree during creation.
type Option func(*Tree)

// WithChunkSize sets the insert size above which text is stored in new
// original chunks. It also bounds fast-path appends.
func WithChunkSize(size int) Option {
	return func(t *Tree) {
		if size > 0 {
			t.chunkSize = size
		}
	}
}

// WithSearchCacheSize sets the number of lookups remembered.
// Zero disables the cache.
func WithSearchCacheSize(size int) Option {
	return func(t *Tree) {
		if size >= 0 {
			t.cacheSize = size
		}
	}
}

// WithInvariantChecks makes every mutation validate the whole tree and
// panic with an *InvariantError on failure. Intended for tests and debugging.
func WithInvariantChecks(enabled bool) Option {
	return func(t *Tree) {
		t.checkInvariants = enabled
	}
}
