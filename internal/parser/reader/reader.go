// Package reader loads COBOL source files. It detects the text encoding
// (UTF-8 with a Latin-1 fallback), normalizes line endings, and exposes
// the raw bytes for content hashing.
package reader

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/Chandra-mohn/coqu/internal/core/domain"
	"github.com/Chandra-mohn/coqu/internal/logger"
)

// Encoding identifies the decoded source encoding.
type Encoding string

// Supported encodings. EBCDIC is a declared future extension.
const (
	EncodingUTF8   Encoding = "utf-8"
	EncodingLatin1 Encoding = "latin-1"
)

// Result is one loaded source file.
type Result struct {
	// Path is the path the file was read from.
	Path string

	// Raw holds the exact bytes on disk; the content hash is computed
	// over these.
	Raw []byte

	// Lines are the decoded source lines with line endings stripped.
	Lines []string

	// Encoding is the encoding that succeeded.
	Encoding Encoding
}

// LineCount returns the number of logical lines.
func (r *Result) LineCount() int {
	return len(r.Lines)
}

// Read loads and decodes the file at path.
func Read(path string) (*Result, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrFileAccess, path, err)
	}
	return Decode(path, raw)
}

// Decode decodes raw source bytes. UTF-8 is attempted first; on invalid
// UTF-8 the bytes are reinterpreted as Latin-1. Interior NUL bytes mean
// the file is not text under either encoding and fail the load with the
// offending byte offset.
func Decode(path string, raw []byte) (*Result, error) {
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		return nil, fmt.Errorf("%w: %s: undecodable byte at offset %d", domain.ErrDecoding, path, i)
	}

	enc := EncodingUTF8
	text := raw
	if !utf8.Valid(raw) {
		enc = EncodingLatin1
		text = latin1ToUTF8(raw)
		logger.Debug("reader: %s is not valid UTF-8, decoded as Latin-1", path)
	}

	return &Result{
		Path:     path,
		Raw:      raw,
		Lines:    SplitLines(string(text)),
		Encoding: enc,
	}, nil
}

// SplitLines splits source text into lines, tolerating CRLF and bare CR
// endings. A trailing newline does not produce an empty final line.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimSuffix(text, "\n")
	return strings.Split(text, "\n")
}

func latin1ToUTF8(raw []byte) []byte {
	buf := make([]byte, 0, len(raw)+len(raw)/8)
	for _, b := range raw {
		if b < utf8.RuneSelf {
			buf = append(buf, b)
		} else {
			buf = utf8.AppendRune(buf, rune(b))
		}
	}
	return buf
}
