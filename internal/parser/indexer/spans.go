package indexer

import (
	"strings"

	"github.com/Chandra-mohn/coqu/internal/core/domain"
)

// finish computes line spans and classifies comments. Each header
// terminates its predecessor's span at the previous line; the last
// division (and the PROCEDURE DIVISION in particular) runs to the end of
// the file.
func (s *scan) finish(totalLines int) {
	ix := s.ix

	for i := range ix.Divisions {
		if i+1 < len(ix.Divisions) {
			ix.Divisions[i].Span.End = ix.Divisions[i+1].Span.Start - 1
		} else {
			ix.Divisions[i].Span.End = totalLines
		}
	}

	for i := range ix.Sections {
		if i+1 < len(ix.Sections) && ix.Sections[i+1].Division == ix.Sections[i].Division {
			ix.Sections[i].Span.End = ix.Sections[i+1].Span.Start - 1
		} else {
			ix.Sections[i].Span.End = s.containerEnd(ix.Sections[i].Span.Start, totalLines)
		}
	}

	for i := range ix.Paragraphs {
		if i+1 < len(ix.Paragraphs) {
			next := ix.Paragraphs[i+1].Span.Start - 1
			end := s.paragraphEnd(ix.Paragraphs[i], totalLines)
			if next < end {
				end = next
			}
			ix.Paragraphs[i].Span.End = end
		} else {
			ix.Paragraphs[i].Span.End = s.paragraphEnd(ix.Paragraphs[i], totalLines)
		}
	}

	s.classifyComments()
}

// containerEnd returns the end of the division enclosing the given line.
func (s *scan) containerEnd(line, totalLines int) int {
	for _, d := range s.ix.Divisions {
		if d.Span.Contains(line) {
			return d.Span.End
		}
	}
	return totalLines
}

// paragraphEnd bounds a paragraph by its enclosing section when it has
// one, otherwise by the PROCEDURE DIVISION.
func (s *scan) paragraphEnd(p domain.Paragraph, totalLines int) int {
	if p.Section != "" {
		for _, sec := range s.ix.Sections {
			if sec.Name == p.Section && sec.Span.Contains(p.Span.Start) {
				return sec.Span.End
			}
		}
	}
	return s.containerEnd(p.Span.Start, totalLines)
}

// classifyComments assigns header / inline / orphan classes. A comment
// block whose next non-blank, non-comment line is a structural header is
// a header comment for that entity; a comment with code on both sides is
// inline; anything else is orphan.
func (s *scan) classifyComments() {
	ix := s.ix
	if len(ix.Comments) == 0 {
		return
	}

	commentLines := make(map[int]bool, len(ix.Comments))
	for _, c := range ix.Comments {
		commentLines[c.Line] = true
	}

	for i := range ix.Comments {
		c := &ix.Comments[i]

		next := s.nextCodeLine(c.Line, commentLines)
		if next > 0 {
			if name, ok := s.headerLines[next]; ok {
				c.Class = domain.CommentHeader
				c.For = name
				continue
			}
		}

		prev := s.prevCodeLine(c.Line, commentLines)
		if prev > 0 && next > 0 {
			c.Class = domain.CommentInline
			continue
		}
		c.Class = domain.CommentOrphan
	}
}

func (s *scan) nextCodeLine(from int, commentLines map[int]bool) int {
	for line := from + 1; line <= s.ix.TotalLines; line++ {
		if commentLines[line] {
			continue
		}
		if s.lineBlank == nil || !s.lineBlank[line] {
			return line
		}
	}
	return 0
}

func (s *scan) prevCodeLine(from int, commentLines map[int]bool) int {
	for line := from - 1; line >= 1; line-- {
		if commentLines[line] {
			continue
		}
		if s.lineBlank == nil || !s.lineBlank[line] {
			return line
		}
	}
	return 0
}

// recordBlanks remembers which lines were blank so comment
// classification can skip them.
func (s *scan) recordBlanks(lines []string) {
	s.lineBlank = make(map[int]bool)
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			s.lineBlank[i+1] = true
		}
	}
}
