package reader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chandra-mohn/coqu/internal/core/domain"
)

func TestDecode_UTF8(t *testing.T) {
	res, err := Decode("mem", []byte("LINE-1\nLINE-2\n"))
	require.NoError(t, err)
	assert.Equal(t, EncodingUTF8, res.Encoding)
	assert.Equal(t, []string{"LINE-1", "LINE-2"}, res.Lines)
	assert.Equal(t, 2, res.LineCount())
}

func TestDecode_Latin1Fallback(t *testing.T) {
	// 0xC9 is É in Latin-1 but invalid as a standalone UTF-8 byte.
	res, err := Decode("mem", []byte("CAF\xc9\n"))
	require.NoError(t, err)
	assert.Equal(t, EncodingLatin1, res.Encoding)
	assert.Equal(t, []string{"CAFÉ"}, res.Lines)
}

func TestDecode_NulByteFails(t *testing.T) {
	_, err := Decode("mem", []byte("AB\x00CD"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDecoding))
	assert.Contains(t, err.Error(), "offset 2")
}

func TestRead_MissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "nope.cbl"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrFileAccess))
}

func TestRead_RawBytesPreserved(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.cbl")
	content := []byte("       IDENTIFICATION DIVISION.\r\n       PROGRAM-ID. A.\r\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	res, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, content, res.Raw)
	assert.Len(t, res.Lines, 2)
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"no trailing newline", "A\nB", []string{"A", "B"}},
		{"trailing newline", "A\nB\n", []string{"A", "B"}},
		{"crlf", "A\r\nB\r\n", []string{"A", "B"}},
		{"bare cr", "A\rB", []string{"A", "B"}},
		{"blank lines kept", "A\n\nB", []string{"A", "", "B"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitLines(tt.in))
		})
	}
}
