package domain

import "errors"

// Domain errors represent core failure kinds.
// These are distinct from infrastructure errors.
var (
	// ErrUsage indicates an unknown command or a bad flag combination.
	ErrUsage = errors.New("usage error")

	// ErrNotLoaded indicates the named program is not in the workspace.
	ErrNotLoaded = errors.New("program not loaded")

	// ErrFileAccess indicates a missing path or denied permission.
	// The load fails and the workspace is untouched.
	ErrFileAccess = errors.New("file access error")

	// ErrDecoding indicates source bytes could not be decoded after the
	// Latin-1 fallback.
	ErrDecoding = errors.New("decoding error")

	// ErrCyclicCopy indicates a COPY chain revisited a copybook name.
	ErrCyclicCopy = errors.New("cyclic copy")

	// ErrCache indicates an I/O failure on cache read or write.
	// Reads degrade to a rebuild; writes are logged and dropped.
	ErrCache = errors.New("cache error")

	// ErrQuery wraps query execution failures for exit-code mapping.
	ErrQuery = errors.New("query error")

	// ErrInterrupted indicates cancellation at a safe point.
	// No side effects are persisted.
	ErrInterrupted = errors.New("interrupted")

	// ErrCodecVersion indicates a cache entry written by an incompatible
	// codec version. Treated as a miss by the cache manager.
	ErrCodecVersion = errors.New("incompatible codec version")
)
