// Package preprocess implements the COBOL-85 COPY and REPLACE
// directives over a normalized line stream. Expansion is recursive with
// cycle detection; every emitted line is mapped back to its
// pre-expansion (file, line) through the origin map. EXEC SQL/CICS/DLI
// bodies pass through untouched so the grammar can treat them as opaque.
package preprocess

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Chandra-mohn/coqu/internal/core/domain"
	"github.com/Chandra-mohn/coqu/internal/core/ports/driven"
	"github.com/Chandra-mohn/coqu/internal/logger"
)

var (
	copyRe = regexp.MustCompile(`(?is)\bCOPY\s+['"]?([A-Z0-9][A-Z0-9-]*)['"]?` +
		`(?:\s+(?:OF|IN)\s+([A-Z0-9][A-Z0-9-]*))?` +
		`(?:\s+(REPLACING\s+.*?))?\s*\.`)
	replaceOffRe = regexp.MustCompile(`(?i)\bREPLACE\s+OFF\s*\.`)
	replaceRe    = regexp.MustCompile(`(?is)\bREPLACE\s+(.+?)\s*\.`)
	pseudoRe     = regexp.MustCompile(`(?is)==(.+?)==\s+BY\s+==(.*?)==`)
	wordPairRe   = regexp.MustCompile(`(?i)([A-Z0-9][A-Z0-9-]*)\s+BY\s+([A-Z0-9][A-Z0-9-]*)`)
	execStartRe  = regexp.MustCompile(`(?i)\bEXEC\s+(SQL|CICS|DLI)\b`)
	execEndRe    = regexp.MustCompile(`(?i)\bEND-EXEC\b`)
)

// Result is the output of one preprocessor run.
type Result struct {
	// Lines is the expanded stream.
	Lines []string

	// Origins maps each expanded line to its pre-expansion home.
	Origins domain.OriginMap

	// Copies records the COPY directives of the root source with their
	// resolution status and root line numbers. Directives nested inside
	// copybooks are expanded but not recorded here.
	Copies []domain.CopyDirective

	// Warnings collects unresolved and cyclic copybook diagnostics.
	Warnings []string
}

// Preprocessor expands COPY and applies REPLACE over normalized lines.
// Output is a pure function of the source lines, the copybook contents,
// and the search paths at expansion time.
type Preprocessor struct {
	resolver driven.CopybookResolver

	replacements []pseudoPair // active REPLACE table
	expanding    []string     // names currently being expanded, for cycles
}

type pseudoPair struct {
	from, to string
	partial  bool // :TAG: partial-word form
}

// New creates a preprocessor using the given resolver. A nil resolver
// leaves every COPY unresolved.
func New(resolver driven.CopybookResolver) *Preprocessor {
	return &Preprocessor{resolver: resolver}
}

// Run expands the root source. file is the name recorded in the origin
// map for root lines.
func (p *Preprocessor) Run(file string, lines []string) *Result {
	p.replacements = nil
	p.expanding = nil
	res := &Result{}
	p.expand(file, lines, true, res)
	return res
}

// expand walks one file's lines, emitting into res. root marks the
// outermost source: only its COPY directives are recorded with root line
// numbers in res.Copies.
func (p *Preprocessor) expand(file string, lines []string, root bool, res *Result) {
	inExec := false
	i := 0
	for i < len(lines) {
		line := lines[i]
		lineNo := i + 1

		if inExec {
			res.Lines = append(res.Lines, line)
			res.Origins.Append(file, lineNo)
			if execEndRe.MatchString(line) {
				inExec = false
			}
			i++
			continue
		}
		if isCommentLine(line) {
			p.emit(res, file, lineNo, line)
			i++
			continue
		}
		if execStartRe.MatchString(line) {
			res.Lines = append(res.Lines, line)
			res.Origins.Append(file, lineNo)
			if !execEndRe.MatchString(line) {
				inExec = true
			}
			i++
			continue
		}

		if hasDirective(line) {
			stmt, consumed := gatherStatement(lines, i)
			if m := copyRe.FindStringSubmatchIndex(stmt); m != nil {
				p.handleCopy(file, lineNo, stmt, m, consumed, root, res)
				i += consumed
				continue
			}
			if replaceOffRe.MatchString(stmt) {
				p.replacements = nil
				p.emitPlaceholder(res, file, lineNo, "REPLACE OFF", consumed)
				i += consumed
				continue
			}
			if m := replaceRe.FindStringSubmatch(stmt); m != nil && strings.Contains(m[1], "==") {
				p.replacements = parsePairs(m[1])
				p.emitPlaceholder(res, file, lineNo, "REPLACE", consumed)
				i += consumed
				continue
			}
		}

		p.emit(res, file, lineNo, line)
		i++
	}
}

func (p *Preprocessor) handleCopy(file string, lineNo int, stmt string, m []int, consumed int, root bool, res *Result) {
	name := strings.ToUpper(stmt[m[2]:m[3]])
	library := ""
	if m[4] >= 0 {
		library = strings.ToUpper(stmt[m[4]:m[5]])
	}
	replacing := ""
	if m[6] >= 0 {
		replacing = strings.TrimSpace(stmt[m[6]:m[7]])
	}

	dir := domain.CopyDirective{
		Name:      name,
		Library:   library,
		Line:      lineNo,
		Replacing: replacing,
	}

	record := func(d domain.CopyDirective) {
		if root {
			res.Copies = append(res.Copies, d)
		}
	}

	// Cycle: the name is already on the expansion stack.
	for _, active := range p.expanding {
		if active == name {
			dir.Status = domain.CopyCyclic
			record(dir)
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("cyclic COPY %s at %s:%d, expansion skipped", name, file, lineNo))
			p.emitPlaceholder(res, file, lineNo, "COPY "+name+" (cyclic)", consumed)
			return
		}
	}

	var path string
	ok := false
	if p.resolver != nil {
		path, ok = p.resolver.Resolve(name, library)
	}
	if !ok {
		dir.Status = domain.CopyUnresolved
		record(dir)
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("copybook %s not found on search path (line %d)", name, lineNo))
		p.emitPlaceholder(res, file, lineNo, "COPY "+name+" (unresolved)", consumed)
		return
	}

	body, err := p.resolver.Read(path)
	if err != nil {
		dir.Status = domain.CopyUnresolved
		record(dir)
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("copybook %s: %v (line %d)", name, err, lineNo))
		p.emitPlaceholder(res, file, lineNo, "COPY "+name+" (unreadable)", consumed)
		return
	}

	dir.Status = domain.CopyResolved
	dir.ResolvedPath = path
	record(dir)
	logger.Debug("preprocess: COPY %s -> %s (%d lines)", name, path, len(body))

	if replacing != "" {
		body = applyReplacing(body, parsePairs(replacing))
	}

	p.expanding = append(p.expanding, name)
	p.expand(path, body, false, res)
	p.expanding = p.expanding[:len(p.expanding)-1]

	// The directive may have spanned several source lines; keep the
	// stream anchored by emitting one placeholder per consumed line
	// beyond the first.
	for extra := 1; extra < consumed; extra++ {
		p.emit(res, file, lineNo+extra, "      * COPY "+name+" (continued)")
	}
}

// emit appends one line after applying the active REPLACE table.
func (p *Preprocessor) emit(res *Result, file string, line int, text string) {
	if len(p.replacements) > 0 && !isCommentLine(text) {
		text = substitute(text, p.replacements)
	}
	res.Lines = append(res.Lines, text)
	res.Origins.Append(file, line)
}

// emitPlaceholder replaces a directive with comment lines so downstream
// line numbers stay anchored.
func (p *Preprocessor) emitPlaceholder(res *Result, file string, lineNo int, label string, consumed int) {
	for off := 0; off < consumed; off++ {
		res.Lines = append(res.Lines, "      * "+label)
		res.Origins.Append(file, lineNo+off)
	}
}

// hasDirective is a cheap filter before running the directive regexps.
func hasDirective(line string) bool {
	u := strings.ToUpper(line)
	return strings.Contains(u, "COPY ") || strings.Contains(u, "REPLACE ") ||
		strings.Contains(u, "REPLACE.")
}

// gatherStatement joins lines from start until one carries the
// terminating period, returning the joined text and the line count.
func gatherStatement(lines []string, start int) (string, int) {
	var sb strings.Builder
	for i := start; i < len(lines); i++ {
		if i > start {
			sb.WriteByte(' ')
		}
		sb.WriteString(strings.TrimSpace(lines[i]))
		if strings.Contains(lines[i], ".") {
			return sb.String(), i - start + 1
		}
		// A directive should terminate within a handful of lines.
		if i-start >= 7 {
			break
		}
	}
	return strings.TrimSpace(lines[start]), 1
}

func isCommentLine(line string) bool {
	t := strings.TrimLeft(line, " \t")
	return strings.HasPrefix(t, "*") || strings.HasPrefix(t, "/")
}
