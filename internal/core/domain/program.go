package domain

import "time"

// SourceFormat classifies the column layout of a COBOL source file.
type SourceFormat string

// Detected source formats.
const (
	FormatStandard SourceFormat = "standard"
	FormatSequence SourceFormat = "sequence"
	FormatPanvalet SourceFormat = "panvalet"
)

// Phase is the read-only load-phase indicator exposed by the workspace
// for external UIs to poll.
type Phase string

// Workspace load phases.
const (
	PhaseIdle     Phase = "idle"
	PhaseLoading  Phase = "loading"
	PhaseIndexing Phase = "indexing"
	PhaseCaching  Phase = "caching"
)

// Program is one loaded COBOL compilation unit. Identity is the content
// hash; the program is replaced atomically on reload or hash mismatch.
type Program struct {
	// Name is the workspace key: file stem, uppercased, uniquified with
	// a numeric suffix on collision.
	Name string

	// Path is the canonical source path.
	Path string

	// Hash is the hex-encoded SHA-256 of the raw source bytes.
	Hash string

	// Lines is the line count of the original source.
	Lines int

	// Format is the detected source layout.
	Format SourceFormat

	// Source holds the original lines; Normalized holds the
	// format-normalized lines (same count, same numbering).
	Source     []string
	Normalized []string

	// Expanded is the post-preprocessor stream with Origins mapping each
	// expanded line back to its pre-expansion home.
	Expanded []string
	Origins  OriginMap

	// Index is the structural skeleton. Always present after load.
	Index *StructuralIndex

	// AST is set once a semantic query forces a full parse, or when the
	// load was invoked with full parsing.
	AST *AST

	// Warnings collects recoverable load conditions (unresolved and
	// cyclic copybooks).
	Warnings []string

	// FromCache reports whether the index was rehydrated from the cache.
	FromCache bool

	// LoadedAt and ParseTime record load metadata.
	LoadedAt  time.Time
	ParseTime time.Duration

	// Stale is set by the file watcher when the source changed on disk
	// after load. Queries still serve the loaded snapshot; /reload
	// refreshes it.
	Stale bool
}

// ProgramID returns the PROGRAM-ID captured by the indexer, or the
// workspace name when the source does not declare one.
func (p *Program) ProgramID() string {
	if id := p.Index.ProgramID(); id != "" {
		return id
	}
	return p.Name
}

// Body returns the original source lines for the given span, one line per
// element. Out-of-range lines are skipped.
func (p *Program) Body(span Span) []string {
	out := make([]string, 0, span.Lines())
	for line := span.Start; line <= span.End; line++ {
		if line >= 1 && line <= len(p.Source) {
			out = append(out, p.Source[line-1])
		}
	}
	return out
}

// Chunk returns the normalized text for a span as a single string slice,
// suitable for chunk analysis.
func (p *Program) Chunk(span Span) []string {
	out := make([]string, 0, span.Lines())
	for line := span.Start; line <= span.End; line++ {
		if line >= 1 && line <= len(p.Normalized) {
			out = append(out, p.Normalized[line-1])
		}
	}
	return out
}

// Summary is the listing row for one loaded program.
type Summary struct {
	Name      string
	ProgramID string
	Path      string
	Lines     int
	Format    SourceFormat
	FromCache bool
	Stale     bool
	ParseTime time.Duration
	Warnings  int
}

// Summarize builds the listing row for the program.
func (p *Program) Summarize() Summary {
	return Summary{
		Name:      p.Name,
		ProgramID: p.ProgramID(),
		Path:      p.Path,
		Lines:     p.Lines,
		Format:    p.Format,
		FromCache: p.FromCache,
		Stale:     p.Stale,
		ParseTime: p.ParseTime,
		Warnings:  len(p.Warnings),
	}
}
