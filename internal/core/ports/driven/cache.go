package driven

import "github.com/Chandra-mohn/coqu/internal/core/domain"

// CacheMeta is the self-describing header of one cache entry.
type CacheMeta struct {
	SourcePath  string `msgpack:"source_path"`
	SourceHash  string `msgpack:"source_hash"`
	Lines       int    `msgpack:"lines"`
	CachedAt    int64  `msgpack:"cached_at"`
	Format      string `msgpack:"format"`
	ToolVersion string `msgpack:"-"`
}

// CacheEntry is the versioned record stored per program.
type CacheEntry struct {
	Meta  CacheMeta
	Index *domain.StructuralIndex
	AST   *domain.AST
}

// CacheStats summarizes the on-disk cache.
type CacheStats struct {
	Files      int
	TotalBytes int64
	Hits       int
	Misses     int
	Saves      int
}

// CacheStore is the content-addressed AST cache. Keys are hex-encoded
// SHA-256 hashes of the raw source bytes.
type CacheStore interface {
	// Get returns the entry for hash, or (nil, nil) on a miss. Entries
	// with a mismatched magic or codec version are misses.
	Get(hash string) (*CacheEntry, error)

	// Put writes the entry atomically (tmp file, fsync, rename).
	Put(hash string, entry *CacheEntry) error

	// Delete unlinks the entry for hash.
	Delete(hash string) error

	// Stats returns file count, total bytes, and hit counters.
	Stats() (CacheStats, error)

	// Clear removes every entry and returns the number removed.
	Clear() (int, error)

	// EnforceQuota evicts least-recently-used entries by mtime until the
	// store is under maxBytes; ties are broken larger-first. A maxBytes
	// of 0 means unlimited.
	EnforceQuota(maxBytes int64) (int, error)
}
