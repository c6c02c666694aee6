package cache

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/Chandra-mohn/coqu/internal/core/domain"
	"github.com/Chandra-mohn/coqu/internal/core/ports/driven"
)

// Cache entry layout, bit-exact across versions:
//
//	magic "COQU" (4 bytes)
//	uint16 BE codec version
//	uint32 BE length + tool-version string
//	uint32 BE length + msgpack header {source_path, source_hash, lines, cached_at, format}
//	uint32 BE length + msgpack index record
//	optional uint32 BE length + msgpack AST record
//
// Readers validate magic and codec version; mismatches are misses so
// entries from older tool versions are rejected cleanly.
var magic = []byte("COQU")

// codecVersion is bumped whenever the record layout changes.
const codecVersion uint16 = 1

type metaRecord struct {
	SourcePath string `msgpack:"source_path"`
	SourceHash string `msgpack:"source_hash"`
	Lines      int    `msgpack:"lines"`
	CachedAt   int64  `msgpack:"cached_at"`
	Format     string `msgpack:"format"`
}

// encode serializes an entry into the framed layout.
func encode(entry *driven.CacheEntry) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(magic)
	if err := binary.Write(&buf, binary.BigEndian, codecVersion); err != nil {
		return nil, err
	}
	if err := writeFrame(&buf, []byte(entry.Meta.ToolVersion)); err != nil {
		return nil, err
	}

	meta, err := msgpack.Marshal(metaRecord{
		SourcePath: entry.Meta.SourcePath,
		SourceHash: entry.Meta.SourceHash,
		Lines:      entry.Meta.Lines,
		CachedAt:   entry.Meta.CachedAt,
		Format:     entry.Meta.Format,
	})
	if err != nil {
		return nil, err
	}
	if err := writeFrame(&buf, meta); err != nil {
		return nil, err
	}

	index, err := msgpack.Marshal(entry.Index)
	if err != nil {
		return nil, err
	}
	if err := writeFrame(&buf, index); err != nil {
		return nil, err
	}

	if entry.AST != nil {
		ast, err := msgpack.Marshal(entry.AST)
		if err != nil {
			return nil, err
		}
		if err := writeFrame(&buf, ast); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// decode parses a framed record. Magic and codec-version mismatches
// return domain.ErrCodecVersion so callers treat the entry as a miss.
func decode(data []byte) (*driven.CacheEntry, error) {
	r := bytes.NewReader(data)

	head := make([]byte, len(magic))
	if _, err := io.ReadFull(r, head); err != nil || !bytes.Equal(head, magic) {
		return nil, domain.ErrCodecVersion
	}
	var ver uint16
	if err := binary.Read(r, binary.BigEndian, &ver); err != nil || ver != codecVersion {
		return nil, domain.ErrCodecVersion
	}

	toolVersion, err := readFrame(r)
	if err != nil {
		return nil, fmt.Errorf("%w: truncated tool version", domain.ErrCache)
	}

	metaBytes, err := readFrame(r)
	if err != nil {
		return nil, fmt.Errorf("%w: truncated header", domain.ErrCache)
	}
	var meta metaRecord
	if err := msgpack.Unmarshal(metaBytes, &meta); err != nil {
		return nil, fmt.Errorf("%w: header: %v", domain.ErrCache, err)
	}

	indexBytes, err := readFrame(r)
	if err != nil {
		return nil, fmt.Errorf("%w: truncated index", domain.ErrCache)
	}
	var index domain.StructuralIndex
	if err := msgpack.Unmarshal(indexBytes, &index); err != nil {
		return nil, fmt.Errorf("%w: index: %v", domain.ErrCache, err)
	}

	entry := &driven.CacheEntry{
		Meta: driven.CacheMeta{
			SourcePath:  meta.SourcePath,
			SourceHash:  meta.SourceHash,
			Lines:       meta.Lines,
			CachedAt:    meta.CachedAt,
			Format:      meta.Format,
			ToolVersion: string(toolVersion),
		},
		Index: &index,
	}

	if r.Len() > 0 {
		astBytes, err := readFrame(r)
		if err != nil {
			return nil, fmt.Errorf("%w: truncated AST", domain.ErrCache)
		}
		var ast domain.AST
		if err := msgpack.Unmarshal(astBytes, &ast); err != nil {
			return nil, fmt.Errorf("%w: AST: %v", domain.ErrCache, err)
		}
		entry.AST = &ast
	}
	return entry, nil
}

func writeFrame(buf *bytes.Buffer, payload []byte) error {
	if err := binary.Write(buf, binary.BigEndian, uint32(len(payload))); err != nil {
		return err
	}
	_, err := buf.Write(payload)
	return err
}

func readFrame(r *bytes.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	if int(n) > r.Len() {
		return nil, io.ErrUnexpectedEOF
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}
