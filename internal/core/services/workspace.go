// Package services implements the core services behind the driving
// ports. The workspace service owns Programs exclusively; queries
// borrow read-only views.
package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Chandra-mohn/coqu/internal/adapters/driven/copybook"
	"github.com/Chandra-mohn/coqu/internal/core/domain"
	"github.com/Chandra-mohn/coqu/internal/core/ports/driven"
	"github.com/Chandra-mohn/coqu/internal/core/ports/driving"
	"github.com/Chandra-mohn/coqu/internal/logger"
	"github.com/Chandra-mohn/coqu/internal/parser/chunk"
	"github.com/Chandra-mohn/coqu/internal/parser/format"
	"github.com/Chandra-mohn/coqu/internal/parser/frontend"
	"github.com/Chandra-mohn/coqu/internal/parser/indexer"
	"github.com/Chandra-mohn/coqu/internal/parser/preprocess"
	"github.com/Chandra-mohn/coqu/internal/parser/reader"
)

// cobolExtensions are the file extensions LoadDir picks up.
var cobolExtensions = []string{".cbl", ".cob", ".CBL", ".COB"}

// Ensure Workspace implements the driving port.
var _ driving.WorkspaceService = (*Workspace)(nil)

// Workspace is the program registry and load pipeline.
type Workspace struct {
	mu       sync.Mutex
	programs map[string]*domain.Program
	order    []string

	resolver *copybook.Resolver
	watcher  *copybook.Watcher
	cache    driven.CacheStore
	front    *frontend.Frontend

	settings domain.Settings
	phase    atomic.Value

	// loadActive guards copy-path mutation: search paths may change
	// only while no load runs.
	loadActive sync.WaitGroup
	loading    atomic.Int32
}

// NewWorkspace wires the workspace from its collaborators. cache may be
// nil to disable caching (cache errors also degrade to this).
func NewWorkspace(settings domain.Settings, cache driven.CacheStore) *Workspace {
	w := &Workspace{
		programs: make(map[string]*domain.Program),
		resolver: copybook.NewResolver(settings.CopybookPaths),
		cache:    cache,
		front:    frontend.New(settings.DiagnosticLimit, settings.MemoryLimit),
		settings: settings,
	}
	w.phase.Store(domain.PhaseIdle)

	watcher, err := copybook.NewWatcher(w.markStale)
	if err != nil {
		logger.Debug("workspace: file watcher unavailable: %v", err)
	} else {
		w.watcher = watcher
	}
	return w
}

// Phase returns the current load-phase indicator.
func (w *Workspace) Phase() domain.Phase {
	return w.phase.Load().(domain.Phase)
}

func (w *Workspace) setPhase(p domain.Phase) {
	w.phase.Store(p)
}

// Load runs the pipeline: read -> normalize -> hash -> cache get, and on
// a miss preprocess -> index -> cache put. Cancellation is honored after
// format detection and after structural indexing; a cancelled load
// leaves no cache entry and no Program behind.
func (w *Workspace) Load(ctx context.Context, path string, full bool) (*domain.Program, error) {
	w.loading.Add(1)
	w.loadActive.Add(1)
	defer func() {
		w.loading.Add(-1)
		w.loadActive.Done()
		w.setPhase(domain.PhaseIdle)
	}()

	abs, err := filepath.Abs(path)
	if err == nil {
		path = abs
	}

	w.setPhase(domain.PhaseLoading)
	start := time.Now()
	src, err := reader.Read(path)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(src.Raw)
	hash := hex.EncodeToString(sum[:])

	srcFormat, normalized := format.Apply(src.Lines)
	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}

	prog := &domain.Program{
		Path:       path,
		Hash:       hash,
		Lines:      src.LineCount(),
		Format:     srcFormat,
		Source:     src.Lines,
		Normalized: normalized,
		LoadedAt:   time.Now(),
	}

	if entry := w.cacheGet(hash); entry != nil {
		prog.Index = entry.Index
		prog.AST = entry.AST
		prog.FromCache = true
		logger.Debug("workspace: %s served from cache", filepath.Base(path))
	} else {
		if err := w.build(ctx, prog); err != nil {
			return nil, err
		}
	}

	if full && prog.AST == nil && w.settings.ParseMode != domain.ParseModeIndexOnly {
		if ast, err := w.parseFull(prog); err == nil {
			prog.AST = ast
			w.cachePut(prog)
		} else {
			logger.Warn("full parse of %s: %v", prog.Name, err)
		}
	}

	prog.ParseTime = time.Since(start)
	w.adopt(prog)
	return prog, nil
}

// build runs preprocess + index for a cache miss and writes the entry.
func (w *Workspace) build(ctx context.Context, prog *domain.Program) error {
	pre := preprocess.New(w.resolver)
	res := pre.Run(prog.Path, prog.Normalized)
	prog.Expanded = res.Lines
	prog.Origins = res.Origins
	prog.Warnings = append(prog.Warnings, res.Warnings...)

	w.setPhase(domain.PhaseIndexing)
	prog.Index = indexer.Index(prog.Normalized)
	mergeCopyStatus(prog.Index, res.Copies)

	if err := checkCancelled(ctx); err != nil {
		return err
	}

	if w.settings.ParseMode == domain.ParseModeFull {
		if ast, err := w.parseFull(prog); err == nil {
			prog.AST = ast
		} else {
			logger.Warn("full parse of %s: %v", filepath.Base(prog.Path), err)
		}
	}

	w.setPhase(domain.PhaseCaching)
	w.cachePut(prog)
	return nil
}

// mergeCopyStatus overlays the preprocessor's resolution results onto
// the indexer's COPY records, matched by name and line.
func mergeCopyStatus(ix *domain.StructuralIndex, resolved []domain.CopyDirective) {
	for i := range ix.Copies {
		for _, r := range resolved {
			if r.Name == ix.Copies[i].Name && r.Line == ix.Copies[i].Line {
				ix.Copies[i].Status = r.Status
				ix.Copies[i].ResolvedPath = r.ResolvedPath
				break
			}
		}
	}
}

// adopt installs the program under a unique workspace name. Reloading
// the same path replaces the old program by pointer swap; the old one
// stays queryable until the swap.
func (w *Workspace) adopt(prog *domain.Program) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for name, existing := range w.programs {
		if existing.Path == prog.Path {
			prog.Name = name
			w.programs[name] = prog
			w.watchPath(prog.Path)
			return
		}
	}

	base := strings.ToUpper(strings.TrimSuffix(filepath.Base(prog.Path), filepath.Ext(prog.Path)))
	name := base
	for i := 2; ; i++ {
		if _, taken := w.programs[name]; !taken {
			break
		}
		name = fmt.Sprintf("%s-%d", base, i)
	}
	prog.Name = name
	w.programs[name] = prog
	w.order = append(w.order, name)
	w.watchPath(prog.Path)
}

func (w *Workspace) watchPath(path string) {
	if w.watcher != nil {
		w.watcher.Add(path)
	}
}

// markStale flags programs whose source changed on disk.
func (w *Workspace) markStale(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, prog := range w.programs {
		if prog.Path == path {
			prog.Stale = true
		}
	}
}

// LoadGlob loads every match of the pattern with a worker pool capped at
// the logical CPU count.
func (w *Workspace) LoadGlob(ctx context.Context, pattern string) ([]*domain.Program, []error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, []error{fmt.Errorf("%w: bad pattern %q: %v", domain.ErrUsage, pattern, err)}
	}
	if len(matches) == 0 {
		return nil, []error{fmt.Errorf("%w: no files match %q", domain.ErrFileAccess, pattern)}
	}
	return w.loadMany(ctx, matches)
}

// LoadDir loads every COBOL source file directly under dir.
func (w *Workspace) LoadDir(ctx context.Context, dir string) ([]*domain.Program, []error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, []error{fmt.Errorf("%w: %v", domain.ErrFileAccess, err)}
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		for _, ext := range cobolExtensions {
			if strings.HasSuffix(e.Name(), ext) {
				paths = append(paths, filepath.Join(dir, e.Name()))
				break
			}
		}
	}
	if len(paths) == 0 {
		return nil, []error{fmt.Errorf("%w: no COBOL sources in %s", domain.ErrFileAccess, dir)}
	}
	return w.loadMany(ctx, paths)
}

func (w *Workspace) loadMany(ctx context.Context, paths []string) ([]*domain.Program, []error) {
	var (
		resMu sync.Mutex
		progs []*domain.Program
		errs  []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for _, path := range paths {
		g.Go(func() error {
			prog, err := w.Load(gctx, path, false)
			resMu.Lock()
			defer resMu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", path, err))
				return nil
			}
			progs = append(progs, prog)
			return nil
		})
	}
	g.Wait()
	sort.Slice(progs, func(i, j int) bool { return progs[i].Path < progs[j].Path })
	return progs, errs
}

// Unload removes the named program. The cache entry is retained.
func (w *Workspace) Unload(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	key := strings.ToUpper(name)
	prog, ok := w.programs[key]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotLoaded, name)
	}
	if w.watcher != nil {
		w.watcher.Remove(prog.Path)
	}
	delete(w.programs, key)
	for i, n := range w.order {
		if n == key {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
	return nil
}

// UnloadAll removes every program and returns the count.
func (w *Workspace) UnloadAll() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := len(w.programs)
	if w.watcher != nil {
		for _, prog := range w.programs {
			w.watcher.Remove(prog.Path)
		}
	}
	w.programs = make(map[string]*domain.Program)
	w.order = nil
	return n
}

// Reload rebuilds one program, bypassing the cache read but writing the
// new entry.
func (w *Workspace) Reload(ctx context.Context, name string) (*domain.Program, error) {
	prog, ok := w.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotLoaded, name)
	}
	if w.cache != nil {
		// Dropping the entry forces a rebuild on the next pipeline run.
		if err := w.cache.Delete(prog.Hash); err != nil {
			logger.Debug("workspace: cache delete on reload: %v", err)
		}
	}
	return w.Load(ctx, prog.Path, prog.AST != nil)
}

// ReloadAll reloads every loaded program.
func (w *Workspace) ReloadAll(ctx context.Context) ([]*domain.Program, []error) {
	var progs []*domain.Program
	var errs []error
	for _, name := range w.names() {
		prog, err := w.Reload(ctx, name)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		progs = append(progs, prog)
	}
	return progs, errs
}

// Get returns a loaded program by name, case-insensitively.
func (w *Workspace) Get(name string) (*domain.Program, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	prog, ok := w.programs[strings.ToUpper(name)]
	return prog, ok
}

// Programs returns the loaded programs in load order.
func (w *Workspace) Programs() []*domain.Program {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]*domain.Program, 0, len(w.order))
	for _, name := range w.order {
		out = append(out, w.programs[name])
	}
	return out
}

// List returns summaries of the loaded programs.
func (w *Workspace) List() []domain.Summary {
	progs := w.Programs()
	out := make([]domain.Summary, len(progs))
	for i, p := range progs {
		out[i] = p.Summarize()
	}
	return out
}

func (w *Workspace) names() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.order...)
}

// AddCopyPath appends a copybook search root. Paths may only change
// while no load is active.
func (w *Workspace) AddCopyPath(path string) error {
	if w.loading.Load() > 0 {
		w.loadActive.Wait()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrFileAccess, err)
	}
	w.resolver.AddPath(abs)
	return nil
}

// CopyPaths returns the ordered search roots.
func (w *Workspace) CopyPaths() []string {
	return w.resolver.Paths()
}

// ClearCopyPaths removes every search root.
func (w *Workspace) ClearCopyPaths() {
	if w.loading.Load() > 0 {
		w.loadActive.Wait()
	}
	w.resolver.SetPaths(nil)
}

// EnsureAST parses the named program in full, on demand. Honors the
// parse mode: index-only never parses.
func (w *Workspace) EnsureAST(ctx context.Context, name string) (*domain.AST, error) {
	prog, ok := w.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotLoaded, name)
	}
	if prog.AST != nil {
		return prog.AST, nil
	}
	if w.settings.ParseMode == domain.ParseModeIndexOnly {
		return nil, nil
	}
	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}
	ast, err := w.parseFull(prog)
	if err != nil {
		return nil, err
	}
	prog.AST = ast
	w.cachePut(prog)
	return ast, nil
}

func (w *Workspace) parseFull(prog *domain.Program) (*domain.AST, error) {
	w.ensureExpanded(prog)
	return w.front.ParseFull(prog.Path, prog.Expanded)
}

// ensureExpanded recomputes the preprocessor stream for cache-hydrated
// programs that never ran it this session.
func (w *Workspace) ensureExpanded(prog *domain.Program) {
	if prog.Expanded != nil {
		return
	}
	res := preprocess.New(w.resolver).Run(prog.Path, prog.Normalized)
	prog.Expanded = res.Lines
	prog.Origins = res.Origins
}

// Analyze extracts semantic references for a span, preferring
// AST-derived edges when a segment parse is available.
func (w *Workspace) Analyze(prog *domain.Program, source string, span domain.Span) domain.ChunkAnalysis {
	lines := prog.Chunk(span)
	if prog.AST != nil && w.settings.ParseMode != domain.ParseModeIndexOnly {
		if seg, err := w.front.ParseSegment(source, lines); err == nil && seg.Root != nil && !seg.Degraded {
			return chunk.AnalyzeAST(source, seg, span.Start)
		}
	}
	return chunk.Analyze(source, lines, span.Start)
}

// cacheGet tolerates cache failures by degrading to a rebuild.
func (w *Workspace) cacheGet(hash string) *driven.CacheEntry {
	if w.cache == nil {
		return nil
	}
	entry, err := w.cache.Get(hash)
	if err != nil {
		logger.Debug("workspace: cache read: %v", err)
		return nil
	}
	return entry
}

// cachePut logs and drops write errors.
func (w *Workspace) cachePut(prog *domain.Program) {
	if w.cache == nil {
		return
	}
	entry := &driven.CacheEntry{
		Meta: driven.CacheMeta{
			SourcePath: prog.Path,
			SourceHash: prog.Hash,
			Lines:      prog.Lines,
			CachedAt:   time.Now().Unix(),
			Format:     string(prog.Format),
		},
		Index: prog.Index,
		AST:   prog.AST,
	}
	if err := w.cache.Put(prog.Hash, entry); err != nil {
		logger.Warn("cache write failed: %v", err)
		return
	}
	if w.settings.CacheMaxBytes > 0 {
		w.cache.EnforceQuota(w.settings.CacheMaxBytes)
	}
}

// CacheStats exposes cache counters for /cache status.
func (w *Workspace) CacheStats() (driven.CacheStats, error) {
	if w.cache == nil {
		return driven.CacheStats{}, nil
	}
	return w.cache.Stats()
}

// CacheClear drops one program's entry, or all entries when name is
// empty. Returns the number removed.
func (w *Workspace) CacheClear(name string) (int, error) {
	if w.cache == nil {
		return 0, nil
	}
	if name == "" {
		return w.cache.Clear()
	}
	prog, ok := w.Get(name)
	if !ok {
		return 0, fmt.Errorf("%w: %s", domain.ErrNotLoaded, name)
	}
	if err := w.cache.Delete(prog.Hash); err != nil {
		return 0, err
	}
	return 1, nil
}

// CacheRebuild clears the cache and reloads everything.
func (w *Workspace) CacheRebuild(ctx context.Context) ([]*domain.Program, []error) {
	if w.cache != nil {
		w.cache.Clear()
	}
	return w.ReloadAll(ctx)
}

// Settings returns the effective settings snapshot.
func (w *Workspace) Settings() domain.Settings {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.settings
}

// SetParseMode switches the full-parse policy.
func (w *Workspace) SetParseMode(mode domain.ParseMode) error {
	if !mode.IsValid() {
		return fmt.Errorf("%w: parse mode %q", domain.ErrUsage, mode)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.settings.ParseMode = mode
	return nil
}

// SetDebug toggles debug diagnostics.
func (w *Workspace) SetDebug(on bool) {
	w.mu.Lock()
	w.settings.Debug = on
	w.mu.Unlock()
	logger.SetDebug(on)
}

// Close releases the file watcher.
func (w *Workspace) Close() {
	if w.watcher != nil {
		w.watcher.Close()
	}
}

func checkCancelled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", domain.ErrInterrupted, ctx.Err())
	default:
		return nil
	}
}
