package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chandra-mohn/coqu/internal/core/domain"
	"github.com/Chandra-mohn/coqu/internal/core/ports/driven"
)

func hashOf(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func sampleEntry(hash string) *driven.CacheEntry {
	return &driven.CacheEntry{
		Meta: driven.CacheMeta{
			SourcePath: "/src/sample.cbl",
			SourceHash: hash,
			Lines:      120,
			CachedAt:   time.Now().Unix(),
			Format:     "standard",
		},
		Index: &domain.StructuralIndex{
			Divisions: []domain.Division{
				{Name: "IDENTIFICATION", Span: domain.Span{Start: 1, End: 4}},
				{Name: "PROCEDURE", Span: domain.Span{Start: 5, End: 120}},
			},
			Paragraphs: []domain.Paragraph{
				{Name: "0000-MAIN", Division: "PROCEDURE", Span: domain.Span{Start: 6, End: 40}},
			},
			Copies: []domain.CopyDirective{
				{Name: "DATEUTIL", Line: 3, Status: domain.CopyUnresolved},
			},
			TotalLines: 120,
		},
	}
}

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), "test-version")
	require.NoError(t, err)
	return s
}

func TestStore_RoundTrip(t *testing.T) {
	s := newStore(t)
	hash := hashOf("source-a")
	entry := sampleEntry(hash)

	require.NoError(t, s.Put(hash, entry))

	got, err := s.Get(hash)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entry.Index, got.Index)
	assert.Equal(t, entry.Meta.SourcePath, got.Meta.SourcePath)
	assert.Equal(t, entry.Meta.Lines, got.Meta.Lines)
	assert.Equal(t, "test-version", got.Meta.ToolVersion)
	assert.Nil(t, got.AST)
}

func TestStore_RoundTripWithAST(t *testing.T) {
	s := newStore(t)
	hash := hashOf("source-ast")
	entry := sampleEntry(hash)
	entry.AST = &domain.AST{
		Root: &domain.Node{
			Kind: domain.NodeProgram,
			Children: []*domain.Node{
				{Kind: domain.NodeStatement, Name: "PERFORM",
					Start: domain.Pos{Line: 6, Col: 12}, End: domain.Pos{Line: 6, Col: 30}},
			},
		},
		Diagnostics: []domain.Diagnostic{{Line: 9, Col: 2, Message: "unexpected token"}},
	}

	require.NoError(t, s.Put(hash, entry))
	got, err := s.Get(hash)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entry.AST, got.AST)
}

func TestStore_MissOnUnknownHash(t *testing.T) {
	s := newStore(t)
	got, err := s.Get(hashOf("never-stored"))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_BadMagicIsMiss(t *testing.T) {
	s := newStore(t)
	hash := hashOf("tampered")
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), hash+extension), []byte("XXXX garbage"), 0o600))

	got, err := s.Get(hash)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_CodecVersionMismatchIsMiss(t *testing.T) {
	s := newStore(t)
	hash := hashOf("versioned")
	require.NoError(t, s.Put(hash, sampleEntry(hash)))

	// Flip the codec version bytes right after the magic.
	path := filepath.Join(s.Dir(), hash+extension)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[4], data[5] = 0xFF, 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o600))

	got, err := s.Get(hash)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_Delete(t *testing.T) {
	s := newStore(t)
	hash := hashOf("deleted")
	require.NoError(t, s.Put(hash, sampleEntry(hash)))
	require.NoError(t, s.Delete(hash))

	got, err := s.Get(hash)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Deleting a missing entry is not an error.
	assert.NoError(t, s.Delete(hash))
}

func TestStore_StatsAndClear(t *testing.T) {
	s := newStore(t)
	for _, content := range []string{"a", "b", "c"} {
		hash := hashOf(content)
		require.NoError(t, s.Put(hash, sampleEntry(hash)))
	}

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Files)
	assert.Greater(t, stats.TotalBytes, int64(0))
	assert.Equal(t, 3, stats.Saves)

	n, err := s.Clear()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	stats, err = s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Files)
}

func TestStore_EnforceQuota(t *testing.T) {
	s := newStore(t)
	old := hashOf("oldest")
	mid := hashOf("middle")
	newest := hashOf("newest")
	for _, h := range []string{old, mid, newest} {
		require.NoError(t, s.Put(h, sampleEntry(h)))
	}

	// Age the entries so eviction order is deterministic.
	now := time.Now()
	require.NoError(t, os.Chtimes(filepath.Join(s.Dir(), old+extension), now.Add(-2*time.Hour), now.Add(-2*time.Hour)))
	require.NoError(t, os.Chtimes(filepath.Join(s.Dir(), mid+extension), now.Add(-time.Hour), now.Add(-time.Hour)))

	stats, err := s.Stats()
	require.NoError(t, err)
	perEntry := stats.TotalBytes / 3

	evicted, err := s.EnforceQuota(perEntry + 1)
	require.NoError(t, err)
	assert.Equal(t, 2, evicted)

	got, err := s.Get(newest)
	require.NoError(t, err)
	assert.NotNil(t, got)
	gone, err := s.Get(old)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestStore_UnlimitedQuota(t *testing.T) {
	s := newStore(t)
	hash := hashOf("kept")
	require.NoError(t, s.Put(hash, sampleEntry(hash)))
	evicted, err := s.EnforceQuota(0)
	require.NoError(t, err)
	assert.Zero(t, evicted)
}

func TestStore_StaleTempRemovedOnStartup(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "deadbeef.ast.tmp")
	require.NoError(t, os.WriteFile(stale, []byte("partial"), 0o600))

	_, err := New(dir, "v")
	require.NoError(t, err)
	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
}

func TestStore_HashMismatchInsideEntryIsMiss(t *testing.T) {
	s := newStore(t)
	right := hashOf("right")
	wrong := hashOf("wrong")
	require.NoError(t, s.Put(right, sampleEntry(right)))

	// Copy the entry under a different hash name; the embedded hash no
	// longer matches the key.
	data, err := os.ReadFile(filepath.Join(s.Dir(), right+extension))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), wrong+extension), data, 0o600))

	got, err := s.Get(wrong)
	require.NoError(t, err)
	assert.Nil(t, got)
}
