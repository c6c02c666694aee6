package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/Chandra-mohn/coqu/internal/core/domain"
)

// lock takes the writer lock on the cache directory's lock file and
// returns the release function. Readers do not lock; the single-process
// assumption means contention only happens between concurrent batch
// loads in one process plus the occasional second invocation.
func (s *Store) lock() (func(), error) {
	path := filepath.Join(s.dir, "lock")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("%w: lock: %v", domain.ErrCache, err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: lock: %v", domain.ErrCache, err)
	}
	return func() {
		syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		f.Close()
	}, nil
}
