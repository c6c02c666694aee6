// Package cache implements the content-addressed AST store. One file
// per program, named by the hex SHA-256 of the raw source bytes, written
// atomically and guarded by a directory lock file for writers. Readers
// never lock: rename is atomic on the target platform, so a concurrent
// get sees the old entry.
package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Chandra-mohn/coqu/internal/core/domain"
	"github.com/Chandra-mohn/coqu/internal/core/ports/driven"
	"github.com/Chandra-mohn/coqu/internal/logger"
)

// extension of cache entry files.
const extension = ".ast"

// Ensure Store implements the port.
var _ driven.CacheStore = (*Store)(nil)

// Store is the on-disk cache manager.
type Store struct {
	dir         string
	toolVersion string

	mu     sync.Mutex
	hits   int
	misses int
	saves  int
}

// New creates the cache directory if needed and removes stale .tmp
// leftovers from an earlier crash. The lock file is created on the first
// write.
func New(dir, toolVersion string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCache, err)
	}
	s := &Store{dir: dir, toolVersion: toolVersion}
	s.removeStaleTemp()
	return s, nil
}

// Dir returns the cache directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(hash string) string {
	return filepath.Join(s.dir, hash+extension)
}

// Get returns the entry for hash or (nil, nil) on a miss. A mismatched
// magic or codec version is a miss, not an error.
func (s *Store) Get(hash string) (*driven.CacheEntry, error) {
	data, err := os.ReadFile(s.path(hash))
	if err != nil {
		s.count(&s.misses)
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrCache, err)
	}
	entry, err := decode(data)
	if err != nil {
		s.count(&s.misses)
		if err == domain.ErrCodecVersion {
			logger.Debug("cache: rejecting %s (codec mismatch)", hash[:12])
			return nil, nil
		}
		// A torn or corrupt entry degrades to a rebuild.
		logger.Debug("cache: unreadable entry %s: %v", hash[:12], err)
		return nil, nil
	}
	if entry.Meta.SourceHash != hash {
		s.count(&s.misses)
		return nil, nil
	}
	s.count(&s.hits)
	return entry, nil
}

// Put writes the entry atomically: tmp file, fsync, rename. Writers
// serialize on the cache lock file.
func (s *Store) Put(hash string, entry *driven.CacheEntry) error {
	entry.Meta.ToolVersion = s.toolVersion
	data, err := encode(entry)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", domain.ErrCache, err)
	}

	unlock, err := s.lock()
	if err != nil {
		return err
	}
	defer unlock()

	tmp := s.path(hash) + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCache, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("%w: %v", domain.ErrCache, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("%w: %v", domain.ErrCache, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %v", domain.ErrCache, err)
	}
	if err := os.Rename(tmp, s.path(hash)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %v", domain.ErrCache, err)
	}
	s.count(&s.saves)
	logger.Debug("cache: wrote %s (%d bytes)", hash[:12], len(data))
	return nil
}

// Delete unlinks the entry for hash.
func (s *Store) Delete(hash string) error {
	err := os.Remove(s.path(hash))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", domain.ErrCache, err)
	}
	return nil
}

// Stats returns file count, total bytes, and hit counters.
func (s *Store) Stats() (driven.CacheStats, error) {
	s.mu.Lock()
	stats := driven.CacheStats{Hits: s.hits, Misses: s.misses, Saves: s.saves}
	s.mu.Unlock()

	entries, err := s.entries()
	if err != nil {
		return stats, err
	}
	for _, e := range entries {
		stats.Files++
		stats.TotalBytes += e.size
	}
	return stats, nil
}

// Clear removes every entry and returns the number removed.
func (s *Store) Clear() (int, error) {
	entries, err := s.entries()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, e := range entries {
		if os.Remove(e.path) == nil {
			removed++
		}
	}
	return removed, nil
}

// EnforceQuota evicts least-recently-used entries (by mtime, ties broken
// larger-first) until total size is under maxBytes.
func (s *Store) EnforceQuota(maxBytes int64) (int, error) {
	if maxBytes <= 0 {
		return 0, nil
	}
	entries, err := s.entries()
	if err != nil {
		return 0, err
	}
	var total int64
	for _, e := range entries {
		total += e.size
	}
	if total <= maxBytes {
		return 0, nil
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].mtime.Equal(entries[j].mtime) {
			return entries[i].mtime.Before(entries[j].mtime)
		}
		return entries[i].size > entries[j].size
	})

	evicted := 0
	for _, e := range entries {
		if total <= maxBytes {
			break
		}
		if os.Remove(e.path) == nil {
			total -= e.size
			evicted++
		}
	}
	logger.Debug("cache: evicted %d entries enforcing %d-byte quota", evicted, maxBytes)
	return evicted, nil
}

type fileInfo struct {
	path  string
	size  int64
	mtime time.Time
}

func (s *Store) entries() ([]fileInfo, error) {
	dirents, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCache, err)
	}
	var out []fileInfo
	for _, d := range dirents {
		if d.IsDir() || !strings.HasSuffix(d.Name(), extension) {
			continue
		}
		info, err := d.Info()
		if err != nil {
			continue
		}
		out = append(out, fileInfo{
			path:  filepath.Join(s.dir, d.Name()),
			size:  info.Size(),
			mtime: info.ModTime(),
		})
	}
	return out, nil
}

func (s *Store) removeStaleTemp() {
	dirents, err := os.ReadDir(s.dir)
	if err != nil {
		return
	}
	for _, d := range dirents {
		if strings.HasSuffix(d.Name(), ".tmp") {
			os.Remove(filepath.Join(s.dir, d.Name()))
		}
	}
}

func (s *Store) count(field *int) {
	s.mu.Lock()
	*field++
	s.mu.Unlock()
}
