package domain

// Origin identifies the pre-preprocessor home of one expanded line.
type Origin struct {
	File string `msgpack:"file"`
	Line int    `msgpack:"line"`
}

// OriginMap maps each post-preprocessor line (1-based index into the
// expanded stream) back to the (file, line) it came from. Lines expanded
// from copybook bodies map to the copybook file; every other line maps to
// the root source.
type OriginMap struct {
	Entries []Origin `msgpack:"entries"`
}

// Resolve returns the origin of the given expanded line, or a zero Origin
// when the line is out of range.
func (m *OriginMap) Resolve(expandedLine int) Origin {
	if expandedLine < 1 || expandedLine > len(m.Entries) {
		return Origin{}
	}
	return m.Entries[expandedLine-1]
}

// Append records the origin of the next expanded line.
func (m *OriginMap) Append(file string, line int) {
	m.Entries = append(m.Entries, Origin{File: file, Line: line})
}

// Len returns the number of expanded lines mapped.
func (m *OriginMap) Len() int {
	return len(m.Entries)
}
