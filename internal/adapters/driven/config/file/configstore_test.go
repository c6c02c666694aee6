package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigStore_EmptyWhenMissing(t *testing.T) {
	store, err := NewConfigStore(t.TempDir(), "")
	require.NoError(t, err)
	assert.Equal(t, "", store.GetString("general.parse_mode"))
	assert.False(t, store.GetBool("general.debug"))
	assert.Zero(t, store.GetInt("repl.history_size"))
	assert.Nil(t, store.GetStringSlice("copybooks.paths"))
}

func TestConfigStore_ReadsNestedTables(t *testing.T) {
	dir := t.TempDir()
	content := `
[general]
parse_mode = "index-only"
memory_limit = "512MB"
debug = true

[copybooks]
paths = ["/opt/copylib", "/srv/shared/copybooks"]

[cache]
directory = "/var/cache/coqu"
max_size = "1GB"

[repl]
highlight = true
history_size = 500
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0o600))

	store, err := NewConfigStore(dir, "")
	require.NoError(t, err)

	assert.Equal(t, "index-only", store.GetString("general.parse_mode"))
	assert.Equal(t, "512MB", store.GetString("general.memory_limit"))
	assert.True(t, store.GetBool("general.debug"))
	assert.Equal(t, []string{"/opt/copylib", "/srv/shared/copybooks"}, store.GetStringSlice("copybooks.paths"))
	assert.Equal(t, "/var/cache/coqu", store.GetString("cache.directory"))
	assert.Equal(t, "1GB", store.GetString("cache.max_size"))
	assert.True(t, store.GetBool("repl.highlight"))
	assert.Equal(t, 500, store.GetInt("repl.history_size"))
}

func TestConfigStore_SetPersists(t *testing.T) {
	dir := t.TempDir()
	store, err := NewConfigStore(dir, "")
	require.NoError(t, err)

	require.NoError(t, store.Set("general.debug", true))
	require.NoError(t, store.Set("cache.max_size", "2GB"))

	reloaded, err := NewConfigStore(dir, "")
	require.NoError(t, err)
	assert.True(t, reloaded.GetBool("general.debug"))
	assert.Equal(t, "2GB", reloaded.GetString("cache.max_size"))
}

func TestConfigStore_ExplicitPathOverrides(t *testing.T) {
	dir := t.TempDir()
	alt := filepath.Join(dir, "alt.toml")
	require.NoError(t, os.WriteFile(alt, []byte("[general]\ndebug = true\n"), 0o600))

	store, err := NewConfigStore(dir, alt)
	require.NoError(t, err)
	assert.True(t, store.GetBool("general.debug"))
}

func TestConfigStore_WrongTypeReturnsZero(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"),
		[]byte("[general]\ndebug = \"yes\"\n"), 0o600))

	store, err := NewConfigStore(dir, "")
	require.NoError(t, err)
	assert.False(t, store.GetBool("general.debug"))
	assert.Equal(t, "yes", store.GetString("general.debug"))
}
