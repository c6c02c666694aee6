package domain

import "strings"

// Span is an inclusive 1-based line range in the original, pre-expansion
// source.
type Span struct {
	Start int `msgpack:"start"`
	End   int `msgpack:"end"`
}

// Contains reports whether line falls inside the span.
func (s Span) Contains(line int) bool {
	return line >= s.Start && line <= s.End
}

// Lines returns the number of lines covered by the span.
func (s Span) Lines() int {
	if s.End < s.Start {
		return 0
	}
	return s.End - s.Start + 1
}

// Division is a COBOL division header and its extent.
type Division struct {
	Name string `msgpack:"name"`
	Span Span   `msgpack:"span"`
}

// Section is a COBOL section within a division.
type Section struct {
	Name     string `msgpack:"name"`
	Division string `msgpack:"division"`
	Span     Span   `msgpack:"span"`
}

// Paragraph is a procedure paragraph. Section is empty for paragraphs that
// precede the first section of the PROCEDURE DIVISION.
type Paragraph struct {
	Name     string `msgpack:"name"`
	Section  string `msgpack:"section"`
	Division string `msgpack:"division"`
	Span     Span   `msgpack:"span"`
}

// DataItem is a structural-only data description entry.
type DataItem struct {
	Level   int    `msgpack:"level"`
	Name    string `msgpack:"name"`
	Line    int    `msgpack:"line"`
	Picture string `msgpack:"picture"`
	Parent  string `msgpack:"parent"`
	Section string `msgpack:"section"`
}

// CopyStatus is the resolution state of a COPY directive.
type CopyStatus string

// Copy directive resolution states.
const (
	CopyResolved   CopyStatus = "Resolved"
	CopyUnresolved CopyStatus = "Unresolved"
	CopyCyclic     CopyStatus = "Cyclic"
)

// CopyDirective records one COPY statement found in the source.
type CopyDirective struct {
	Name         string     `msgpack:"name"`
	Library      string     `msgpack:"library"`
	Line         int        `msgpack:"line"`
	Replacing    string     `msgpack:"replacing"`
	Status       CopyStatus `msgpack:"status"`
	ResolvedPath string     `msgpack:"resolved_path"`
}

// ExecKind identifies the host language of an EXEC block.
type ExecKind string

// Exec block kinds.
const (
	ExecSQL  ExecKind = "SQL"
	ExecCICS ExecKind = "CICS"
	ExecDLI  ExecKind = "DLI"
)

// ExecBlock is an EXEC ... END-EXEC block captured verbatim.
type ExecBlock struct {
	Kind ExecKind `msgpack:"kind"`
	Span Span     `msgpack:"span"`
	Body string   `msgpack:"body"`
}

// CommentClass distinguishes where a comment sits relative to code.
type CommentClass string

// Comment classifications. A comment block immediately preceding a
// division, section, paragraph, or data-item header is a header comment;
// a comment between code lines is inline; anything else is orphan.
const (
	CommentHeader CommentClass = "header"
	CommentInline CommentClass = "inline"
	CommentOrphan CommentClass = "orphan"
)

// Comment is a comment line (indicator `*` or `/` in column 7).
type Comment struct {
	Line  int          `msgpack:"line"`
	Col   int          `msgpack:"col"`
	Text  string       `msgpack:"text"`
	Class CommentClass `msgpack:"class"`
	For   string       `msgpack:"for"`
}

// FileEntry is a FILE-CONTROL or file-description entry (SELECT, FD, SD).
type FileEntry struct {
	Kind string `msgpack:"kind"`
	Name string `msgpack:"name"`
	Line int    `msgpack:"line"`
}

// IDEntry is an IDENTIFICATION DIVISION entry (PROGRAM-ID, AUTHOR, ...).
type IDEntry struct {
	Kind  string `msgpack:"kind"`
	Value string `msgpack:"value"`
	Line  int    `msgpack:"line"`
}

// StructuralIndex is the immutable line-span skeleton of one program,
// built by the structural indexer without full parsing. All line numbers
// reference the original, pre-expansion source.
type StructuralIndex struct {
	Divisions  []Division      `msgpack:"divisions"`
	Sections   []Section       `msgpack:"sections"`
	Paragraphs []Paragraph     `msgpack:"paragraphs"`
	DataItems  []DataItem      `msgpack:"data_items"`
	Copies     []CopyDirective `msgpack:"copies"`
	ExecBlocks []ExecBlock     `msgpack:"exec_blocks"`
	Comments   []Comment       `msgpack:"comments"`
	Files      []FileEntry     `msgpack:"files"`
	IDEntries  []IDEntry       `msgpack:"id_entries"`
	TotalLines int             `msgpack:"total_lines"`
}

// Division returns the named division, matched case-insensitively with or
// without the " DIVISION" suffix.
func (ix *StructuralIndex) Division(name string) *Division {
	want := normalizeUnit(name, " DIVISION")
	for i := range ix.Divisions {
		if normalizeUnit(ix.Divisions[i].Name, " DIVISION") == want {
			return &ix.Divisions[i]
		}
	}
	return nil
}

// Section returns the named section, matched case-insensitively with or
// without the " SECTION" suffix.
func (ix *StructuralIndex) Section(name string) *Section {
	want := normalizeUnit(name, " SECTION")
	for i := range ix.Sections {
		if normalizeUnit(ix.Sections[i].Name, " SECTION") == want {
			return &ix.Sections[i]
		}
	}
	return nil
}

// Paragraph returns the named paragraph, matched case-insensitively.
func (ix *StructuralIndex) Paragraph(name string) *Paragraph {
	want := strings.ToUpper(name)
	for i := range ix.Paragraphs {
		if ix.Paragraphs[i].Name == want {
			return &ix.Paragraphs[i]
		}
	}
	return nil
}

// DataItem returns the first data item with the given name.
func (ix *StructuralIndex) DataItem(name string) *DataItem {
	want := strings.ToUpper(name)
	for i := range ix.DataItems {
		if ix.DataItems[i].Name == want {
			return &ix.DataItems[i]
		}
	}
	return nil
}

// SectionParagraphs returns the paragraphs contained in the named section.
// A section with no paragraphs yields an empty, non-nil slice.
func (ix *StructuralIndex) SectionParagraphs(section string) []Paragraph {
	want := normalizeUnit(section, " SECTION")
	out := make([]Paragraph, 0)
	for _, p := range ix.Paragraphs {
		if normalizeUnit(p.Section, " SECTION") == want {
			out = append(out, p)
		}
	}
	return out
}

// ProgramID returns the PROGRAM-ID recorded in the IDENTIFICATION
// DIVISION, or the empty string.
func (ix *StructuralIndex) ProgramID() string {
	for _, e := range ix.IDEntries {
		if e.Kind == "PROGRAM-ID" {
			return e.Value
		}
	}
	return ""
}

func normalizeUnit(name, suffix string) string {
	u := strings.ToUpper(strings.TrimSpace(name))
	return strings.TrimSuffix(u, suffix)
}
