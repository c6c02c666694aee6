package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chandra-mohn/coqu/internal/adapters/driven/cache"
	"github.com/Chandra-mohn/coqu/internal/core/domain"
)

func fixture(name string) string {
	return filepath.Join("..", "..", "..", "testdata", name)
}

func newTestWorkspace(t *testing.T, withCache bool) *Workspace {
	t.Helper()
	settings := domain.DefaultSettings()
	if !withCache {
		ws := NewWorkspace(settings, nil)
		t.Cleanup(ws.Close)
		return ws
	}
	store, err := cache.New(t.TempDir(), "test")
	require.NoError(t, err)
	ws := NewWorkspace(settings, store)
	t.Cleanup(ws.Close)
	return ws
}

func TestLoad_SampleProgram(t *testing.T) {
	ws := newTestWorkspace(t, false)

	prog, err := ws.Load(context.Background(), fixture("sample.cbl"), false)
	require.NoError(t, err)

	assert.Equal(t, "SAMPLE", prog.Name)
	assert.Equal(t, "SAMPLE", prog.ProgramID())
	assert.Equal(t, domain.FormatStandard, prog.Format)
	assert.Len(t, prog.Index.Divisions, 4)
	assert.Equal(t, 1, prog.Index.Divisions[0].Span.Start)
	assert.Len(t, prog.Index.Paragraphs, 7)
	assert.NotEmpty(t, prog.Hash)
	assert.Nil(t, prog.AST, "full parse is deferred in auto mode")
}

func TestLoad_UnresolvedCopybookWarning(t *testing.T) {
	ws := newTestWorkspace(t, false)

	prog, err := ws.Load(context.Background(), fixture("sample.cbl"), false)
	require.NoError(t, err)

	require.Len(t, prog.Warnings, 1)
	assert.Contains(t, prog.Warnings[0], "DATEUTIL")

	require.Len(t, prog.Index.Copies, 1)
	assert.Equal(t, domain.CopyUnresolved, prog.Index.Copies[0].Status)
}

func TestLoad_ResolvedCopybook(t *testing.T) {
	settings := domain.DefaultSettings()
	abs, err := filepath.Abs(fixture("copybooks"))
	require.NoError(t, err)
	settings.CopybookPaths = []string{abs}
	ws := NewWorkspace(settings, nil)
	t.Cleanup(ws.Close)

	prog, err := ws.Load(context.Background(), fixture("sample.cbl"), false)
	require.NoError(t, err)

	assert.Empty(t, prog.Warnings)
	require.Len(t, prog.Index.Copies, 1)
	assert.Equal(t, domain.CopyResolved, prog.Index.Copies[0].Status)
	assert.NotEmpty(t, prog.Index.Copies[0].ResolvedPath)

	// The expanded stream carries the copybook body.
	assert.Contains(t, strings.Join(prog.Expanded, "\n"), "DATE-WORK-AREA")
}

func TestLoad_MissingFile(t *testing.T) {
	ws := newTestWorkspace(t, false)
	_, err := ws.Load(context.Background(), fixture("missing.cbl"), false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrFileAccess))
	assert.Empty(t, ws.List(), "workspace untouched on failed load")
}

func TestLoad_SecondLoadHitsCache(t *testing.T) {
	ws := newTestWorkspace(t, true)
	ctx := context.Background()

	first, err := ws.Load(ctx, fixture("sample.cbl"), false)
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := ws.Load(ctx, fixture("sample.cbl"), false)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Index, second.Index)
	assert.Equal(t, first.Hash, second.Hash)
}

func TestLoad_IdenticalIndexAcrossLoads(t *testing.T) {
	wsA := newTestWorkspace(t, false)
	wsB := newTestWorkspace(t, false)
	ctx := context.Background()

	a, err := wsA.Load(ctx, fixture("sample.cbl"), false)
	require.NoError(t, err)
	b, err := wsB.Load(ctx, fixture("sample.cbl"), false)
	require.NoError(t, err)

	assert.Equal(t, a.Hash, b.Hash)
	assert.Equal(t, a.Index, b.Index)
}

func TestLoad_Cancelled(t *testing.T) {
	ws := newTestWorkspace(t, true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ws.Load(ctx, fixture("sample.cbl"), false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInterrupted))
	assert.Empty(t, ws.List())

	stats, err := ws.CacheStats()
	require.NoError(t, err)
	assert.Zero(t, stats.Files, "cancelled load leaves no cache entry")
}

func TestUnload_RestoresWorkspace(t *testing.T) {
	ws := newTestWorkspace(t, false)
	ctx := context.Background()

	before := ws.List()
	_, err := ws.Load(ctx, fixture("sample.cbl"), false)
	require.NoError(t, err)
	require.NoError(t, ws.Unload("sample"))
	assert.Equal(t, before, ws.List())

	err = ws.Unload("sample")
	assert.True(t, errors.Is(err, domain.ErrNotLoaded))
}

func TestReload_SameProgram(t *testing.T) {
	ws := newTestWorkspace(t, true)
	ctx := context.Background()

	first, err := ws.Load(ctx, fixture("sample.cbl"), false)
	require.NoError(t, err)

	second, err := ws.Reload(ctx, "SAMPLE")
	require.NoError(t, err)
	assert.Equal(t, first.Name, second.Name)
	assert.Equal(t, first.Hash, second.Hash)
	assert.Equal(t, first.Index, second.Index)
	assert.False(t, second.FromCache, "reload bypasses the cache read")

	third, err := ws.Reload(ctx, "SAMPLE")
	require.NoError(t, err)
	assert.Equal(t, second.Index, third.Index)
	assert.Len(t, ws.List(), 1, "reload replaces, not duplicates")
}

func TestLoad_NameCollisionUniquified(t *testing.T) {
	ws := newTestWorkspace(t, false)
	ctx := context.Background()

	dirA, dirB := t.TempDir(), t.TempDir()
	src, err := os.ReadFile(fixture("caller.cbl"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dirA, "dup.cbl"), src, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dirB, "dup.cbl"), src, 0o644))

	a, err := ws.Load(ctx, filepath.Join(dirA, "dup.cbl"), false)
	require.NoError(t, err)
	b, err := ws.Load(ctx, filepath.Join(dirB, "dup.cbl"), false)
	require.NoError(t, err)

	assert.Equal(t, "DUP", a.Name)
	assert.Equal(t, "DUP-2", b.Name)
}

func TestLoadDir(t *testing.T) {
	ws := newTestWorkspace(t, false)
	abs, err := filepath.Abs(filepath.Join("..", "..", "..", "testdata"))
	require.NoError(t, err)

	progs, errs := ws.LoadDir(context.Background(), abs)
	assert.Empty(t, errs)
	assert.Len(t, progs, 2)
}

func TestAnalyze_SampleValidateParagraph(t *testing.T) {
	ws := newTestWorkspace(t, false)
	prog, err := ws.Load(context.Background(), fixture("sample.cbl"), false)
	require.NoError(t, err)

	p := prog.Index.Paragraph("2100-VALIDATE")
	require.NotNil(t, p)

	analysis := ws.Analyze(prog, p.Name, p.Span)
	calls := analysis.OfKind(domain.RefCallLiteral)
	require.Len(t, calls, 1)
	assert.Equal(t, "AUDITLOG", calls[0].Target)
	assert.Empty(t, analysis.OfKind(domain.RefPerform, domain.RefPerformThru))
}

func TestSetParseMode(t *testing.T) {
	ws := newTestWorkspace(t, false)
	require.NoError(t, ws.SetParseMode(domain.ParseModeIndexOnly))
	assert.Equal(t, domain.ParseModeIndexOnly, ws.Settings().ParseMode)

	err := ws.SetParseMode(domain.ParseMode("bogus"))
	assert.True(t, errors.Is(err, domain.ErrUsage))
}

func TestCopyPaths(t *testing.T) {
	ws := newTestWorkspace(t, false)
	dir := t.TempDir()
	require.NoError(t, ws.AddCopyPath(dir))
	assert.Equal(t, []string{dir}, ws.CopyPaths())
	ws.ClearCopyPaths()
	assert.Empty(t, ws.CopyPaths())
}

func TestPhase_IdleWhenNotLoading(t *testing.T) {
	ws := newTestWorkspace(t, false)
	assert.Equal(t, domain.PhaseIdle, ws.Phase())
}
