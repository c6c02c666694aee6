// Package driving defines the interfaces external collaborators (the
// CLI, the REPL, scripts) use to drive the core.
package driving

import (
	"context"

	"github.com/Chandra-mohn/coqu/internal/core/domain"
	"github.com/Chandra-mohn/coqu/internal/core/ports/driven"
)

// WorkspaceService owns the loaded programs, the copybook search roots,
// and the cache lifecycle.
type WorkspaceService interface {
	// Load reads, normalizes, preprocesses, and indexes one source
	// file, consulting the cache by content hash first. full forces the
	// grammar-based parse at load time. Load is cancellable at the
	// documented safe points via ctx.
	Load(ctx context.Context, path string, full bool) (*domain.Program, error)

	// LoadGlob loads every file matching the pattern, parallelizing at
	// file granularity. Returns the programs loaded and the per-file
	// errors encountered.
	LoadGlob(ctx context.Context, pattern string) ([]*domain.Program, []error)

	// LoadDir loads every COBOL source under dir.
	LoadDir(ctx context.Context, dir string) ([]*domain.Program, []error)

	// Unload removes the named program. UnloadAll removes everything
	// and returns the count.
	Unload(name string) error
	UnloadAll() int

	// Reload rebuilds the named program bypassing the cache read (but
	// writing the new entry). ReloadAll reloads every loaded program.
	Reload(ctx context.Context, name string) (*domain.Program, error)
	ReloadAll(ctx context.Context) ([]*domain.Program, []error)

	// Get returns a loaded program by workspace name.
	Get(name string) (*domain.Program, bool)

	// Programs returns read-only views of all loaded programs in load
	// order; List returns their summaries.
	Programs() []*domain.Program
	List() []domain.Summary

	// Copybook search root management. Mutation requires that no load
	// is active; the service enforces this with its own mutex.
	AddCopyPath(path string) error
	CopyPaths() []string
	ClearCopyPaths()

	// EnsureAST runs the full parse for a program on demand, honoring
	// the configured parse mode.
	EnsureAST(ctx context.Context, name string) (*domain.AST, error)

	// Analyze runs chunk analysis for a span of the named program,
	// preferring AST-derived edges when a parse already happened.
	Analyze(prog *domain.Program, source string, span domain.Span) domain.ChunkAnalysis

	// Phase is the read-only load-phase indicator for external UIs.
	Phase() domain.Phase

	// Cache surface for the /cache commands.
	CacheStats() (driven.CacheStats, error)
	CacheClear(name string) (int, error)
	CacheRebuild(ctx context.Context) ([]*domain.Program, []error)

	// Settings returns the effective settings snapshot; SetParseMode
	// and SetDebug adjust the mutable ones.
	Settings() domain.Settings
	SetParseMode(mode domain.ParseMode) error
	SetDebug(on bool)

	// Close releases the file watcher and other resources.
	Close()
}
