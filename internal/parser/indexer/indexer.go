// Package indexer builds the structural skeleton of a COBOL program
// with a single linear pass of compiled regular expressions over the
// normalized source. It is designed for multi-million-line files where
// grammar-based parsing is too slow; any line that matches no pattern is
// ignored for structure and retained for search.
package indexer

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Chandra-mohn/coqu/internal/core/domain"
	"github.com/Chandra-mohn/coqu/internal/logger"
	"github.com/Chandra-mohn/coqu/internal/parser/format"
)

var (
	divisionRe = regexp.MustCompile(`(?i)^\s*(IDENTIFICATION|ID|ENVIRONMENT|DATA|PROCEDURE)\s+DIVISION\s*\.`)
	sectionRe  = regexp.MustCompile(`(?i)^\s*([A-Z0-9][A-Z0-9-]*)\s+SECTION\s*(?:USING\s+[^.]*)?\s*\.\s*$`)

	// Paragraph headers are a lone name ending the line with a period.
	// Names that equal verbs (MOVE.) still match because the pattern
	// requires end-of-line; leading-all-digit names (0000-MAIN) are
	// permitted.
	paragraphRe = regexp.MustCompile(`(?i)^\s*([A-Z0-9][A-Z0-9-]*)\s*\.\s*$`)

	dataItemRe = regexp.MustCompile(`(?i)^\s*(\d{1,2})\s+([A-Z0-9][A-Z0-9-]*)\b(.*)$`)
	pictureRe  = regexp.MustCompile(`(?i)\bPIC(?:TURE)?\s+(?:IS\s+)?([^\s.]+(?:\(\d+\))?[^\s.]*)`)

	copyLineRe = regexp.MustCompile(`(?i)\bCOPY\s+['"]?([A-Z0-9][A-Z0-9-]*)['"]?` +
		`(?:\s+(?:OF|IN)\s+([A-Z0-9][A-Z0-9-]*))?(\s+REPLACING\b[^.]*)?\s*\.?`)

	execStartRe = regexp.MustCompile(`(?i)\bEXEC\s+(SQL|CICS|DLI)\b`)
	execEndRe   = regexp.MustCompile(`(?i)\bEND-EXEC\b`)

	selectRe = regexp.MustCompile(`(?i)^\s*SELECT\s+([A-Z0-9][A-Z0-9-]*)`)
	fdRe     = regexp.MustCompile(`(?i)^\s*(FD|SD)\s+([A-Z0-9][A-Z0-9-]*)`)

	programIDRe = regexp.MustCompile(`(?i)^\s*PROGRAM-ID\s*[.\s]\s*([A-Z0-9][A-Z0-9-]*)`)
	idEntryRe   = regexp.MustCompile(`(?i)^\s*(AUTHOR|DATE-WRITTEN|DATE-COMPILED|INSTALLATION|SECURITY)\s*[.\s]`)
)

// Index scans normalized source lines and returns the structural
// skeleton. Line numbers in the result are 1-based positions in the
// given slice, which the caller keeps aligned with the original source.
func Index(lines []string) *domain.StructuralIndex {
	s := &scan{ix: &domain.StructuralIndex{TotalLines: len(lines)}}
	s.run(lines)
	s.finish(len(lines))
	logger.Debug("indexer: %d divisions, %d sections, %d paragraphs, %d data items",
		len(s.ix.Divisions), len(s.ix.Sections), len(s.ix.Paragraphs), len(s.ix.DataItems))
	return s.ix
}

type scan struct {
	ix *domain.StructuralIndex

	division string // current division name, "" before the first header
	section  string // current section name within the division

	headerLines map[int]string // header line -> entity name, for comments
	lineBlank   map[int]bool
	levelStack  []levelRef
	inExec      bool
	execKind    domain.ExecKind
	execStart   int
	execBody    []string
}

type levelRef struct {
	level int
	name  string
}

func (s *scan) run(lines []string) {
	s.headerLines = make(map[int]string)
	s.recordBlanks(lines)

	for i, line := range lines {
		no := i + 1

		if s.inExec {
			s.execBody = append(s.execBody, line)
			if execEndRe.MatchString(line) {
				s.endExec(no)
			}
			continue
		}

		if format.IsComment(line) {
			s.ix.Comments = append(s.ix.Comments, domain.Comment{
				Line: no,
				Col:  format.CommentCol(line),
				Text: format.CommentText(line),
			})
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		if m := execStartRe.FindStringSubmatch(line); m != nil {
			s.execKind = domain.ExecKind(strings.ToUpper(m[1]))
			s.execStart = no
			s.execBody = []string{line}
			if execEndRe.MatchString(line) {
				s.endExec(no)
			} else {
				s.inExec = true
			}
			continue
		}

		if m := copyLineRe.FindStringSubmatch(line); m != nil {
			s.ix.Copies = append(s.ix.Copies, domain.CopyDirective{
				Name:      strings.ToUpper(m[1]),
				Library:   strings.ToUpper(m[2]),
				Line:      no,
				Replacing: strings.TrimSpace(m[3]),
				Status:    domain.CopyUnresolved,
			})
			continue
		}

		if m := divisionRe.FindStringSubmatch(line); m != nil {
			name := strings.ToUpper(m[1])
			if name == "ID" {
				name = "IDENTIFICATION"
			}
			s.division = name
			s.section = ""
			s.levelStack = nil
			s.ix.Divisions = append(s.ix.Divisions, domain.Division{
				Name: name,
				Span: domain.Span{Start: no},
			})
			s.headerLines[no] = name + " DIVISION"
			continue
		}

		if m := sectionRe.FindStringSubmatch(line); m != nil {
			name := strings.ToUpper(m[1])
			s.section = name
			s.ix.Sections = append(s.ix.Sections, domain.Section{
				Name:     name,
				Division: s.division,
				Span:     domain.Span{Start: no},
			})
			s.headerLines[no] = name + " SECTION"
			continue
		}

		switch s.division {
		case "IDENTIFICATION":
			s.scanIdentification(no, line)
		case "ENVIRONMENT":
			s.scanEnvironment(no, line)
		case "DATA":
			s.scanData(no, line)
		case "PROCEDURE":
			s.scanProcedure(no, line)
		}
	}

	if s.inExec {
		// Unterminated EXEC block: close it at end of file.
		s.endExec(s.ix.TotalLines)
	}
}

func (s *scan) endExec(endLine int) {
	s.ix.ExecBlocks = append(s.ix.ExecBlocks, domain.ExecBlock{
		Kind: s.execKind,
		Span: domain.Span{Start: s.execStart, End: endLine},
		Body: strings.Join(s.execBody, "\n"),
	})
	s.inExec = false
	s.execBody = nil
}

func (s *scan) scanIdentification(no int, line string) {
	if m := programIDRe.FindStringSubmatch(line); m != nil {
		s.ix.IDEntries = append(s.ix.IDEntries, domain.IDEntry{
			Kind: "PROGRAM-ID", Value: strings.ToUpper(m[1]), Line: no,
		})
		return
	}
	if m := idEntryRe.FindStringSubmatch(line); m != nil {
		s.ix.IDEntries = append(s.ix.IDEntries, domain.IDEntry{
			Kind: strings.ToUpper(m[1]), Line: no,
		})
	}
}

func (s *scan) scanEnvironment(no int, line string) {
	if m := selectRe.FindStringSubmatch(line); m != nil {
		s.ix.Files = append(s.ix.Files, domain.FileEntry{
			Kind: "SELECT", Name: strings.ToUpper(m[1]), Line: no,
		})
	}
}

func (s *scan) scanData(no int, line string) {
	if m := fdRe.FindStringSubmatch(line); m != nil {
		s.ix.Files = append(s.ix.Files, domain.FileEntry{
			Kind: strings.ToUpper(m[1]), Name: strings.ToUpper(m[2]), Line: no,
		})
		return
	}
	m := dataItemRe.FindStringSubmatch(line)
	if m == nil {
		return
	}
	level, err := strconv.Atoi(m[1])
	if err != nil || level == 0 || (level > 49 && level != 66 && level != 77 && level != 88) {
		return
	}
	name := strings.ToUpper(m[2])
	rest := m[3]

	pic := ""
	if pm := pictureRe.FindStringSubmatch(rest); pm != nil {
		pic = pm[1]
	}

	item := domain.DataItem{
		Level:   level,
		Name:    name,
		Line:    no,
		Picture: pic,
		Section: s.section,
		Parent:  s.parentFor(level),
	}
	s.ix.DataItems = append(s.ix.DataItems, item)
	s.headerLines[no] = name
	s.pushLevel(level, name)
}

// parentFor finds the owning item by level nesting. Condition names (88)
// bind to the most recent non-88, non-66 item regardless of its level.
func (s *scan) parentFor(level int) string {
	if level == 88 {
		for i := len(s.levelStack) - 1; i >= 0; i-- {
			if s.levelStack[i].level != 88 && s.levelStack[i].level != 66 {
				return s.levelStack[i].name
			}
		}
		return ""
	}
	for i := len(s.levelStack) - 1; i >= 0; i-- {
		if s.levelStack[i].level < level {
			return s.levelStack[i].name
		}
	}
	return ""
}

func (s *scan) pushLevel(level int, name string) {
	if level == 88 || level == 66 {
		s.levelStack = append(s.levelStack, levelRef{level, name})
		return
	}
	// Pop entries at the same or deeper level before pushing.
	for len(s.levelStack) > 0 && s.levelStack[len(s.levelStack)-1].level >= level {
		s.levelStack = s.levelStack[:len(s.levelStack)-1]
	}
	s.levelStack = append(s.levelStack, levelRef{level, name})
}

func (s *scan) scanProcedure(no int, line string) {
	m := paragraphRe.FindStringSubmatch(line)
	if m == nil {
		return
	}
	name := strings.ToUpper(m[1])
	// A lone END-EXEC or scope terminator is not a paragraph.
	if strings.HasPrefix(name, "END-") || name == "EXIT" || name == "CONTINUE" || name == "GOBACK" {
		return
	}
	s.ix.Paragraphs = append(s.ix.Paragraphs, domain.Paragraph{
		Name:     name,
		Section:  s.section,
		Division: "PROCEDURE",
		Span:     domain.Span{Start: no},
	})
	s.headerLines[no] = name
}
