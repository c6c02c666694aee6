// Package chunk extracts semantic references (PERFORM, CALL, GO TO,
// MOVE) from a slice of COBOL source, typically one paragraph or
// section. It is regex-driven and does not require full parsing; when an
// AST is available for the segment the analyzer walks that instead.
package chunk

import (
	"regexp"
	"sort"
	"strings"

	"github.com/Chandra-mohn/coqu/internal/core/domain"
)

var (
	performThruRe = regexp.MustCompile(`(?i)\bPERFORM\s+([A-Z0-9][A-Z0-9-]{0,29})\s+(?:THRU|THROUGH)\s+([A-Z0-9][A-Z0-9-]{0,29})\b`)
	performRe     = regexp.MustCompile(`(?i)\bPERFORM\s+([A-Z0-9][A-Z0-9-]{0,29})\b`)
	callLiteralRe = regexp.MustCompile(`(?i)\bCALL\s+['"]([A-Z0-9][A-Z0-9-]*)['"]`)
	callIdentRe   = regexp.MustCompile(`(?i)\bCALL\s+([A-Z0-9][A-Z0-9-]+)\b`)
	gotoRe        = regexp.MustCompile(`(?i)\bGO\s+TO\s+([A-Z0-9][A-Z0-9-]{0,29})\b`)
	moveRe        = regexp.MustCompile(`(?i)\bMOVE\s+(?:CORRESPONDING\s+|CORR\s+)?(\S+)\s+TO\s+([A-Z0-9][A-Z0-9-]*(?:\s*,\s*[A-Z0-9][A-Z0-9-]*)*)`)
)

// performKeywords are words that follow PERFORM without naming a target.
var performKeywords = map[string]bool{
	"UNTIL": true, "VARYING": true, "TIMES": true, "WITH": true,
	"TEST": true, "BEFORE": true, "AFTER": true, "THRU": true,
	"THROUGH": true, "END-PERFORM": true,
}

// Analyze extracts references from the chunk. source names the chunk
// (paragraph or section) the references originate from; baseLine is the
// 1-based source line of the chunk's first line so reported lines land
// in the original file. References preserve source order.
func Analyze(source string, lines []string, baseLine int) domain.ChunkAnalysis {
	text := strings.ToUpper(strings.Join(lines, "\n"))
	var refs []domain.Reference

	add := func(kind domain.RefKind, target string, offset int) {
		refs = append(refs, domain.Reference{
			Source: source,
			Target: target,
			Kind:   kind,
			Line:   baseLine + strings.Count(text[:offset], "\n"),
		})
	}

	thruSpans := make([][2]int, 0)
	for _, m := range performThruRe.FindAllStringSubmatchIndex(text, -1) {
		first := text[m[2]:m[3]]
		second := text[m[4]:m[5]]
		if performKeywords[first] {
			continue
		}
		add(domain.RefPerform, first, m[2])
		add(domain.RefPerformThru, second, m[4])
		thruSpans = append(thruSpans, [2]int{m[0], m[1]})
	}

	for _, m := range performRe.FindAllStringSubmatchIndex(text, -1) {
		if within(thruSpans, m[0]) {
			continue
		}
		target := text[m[2]:m[3]]
		if performKeywords[target] || isNumeric(target) {
			continue
		}
		add(domain.RefPerform, target, m[2])
	}

	litSpans := make([][2]int, 0)
	for _, m := range callLiteralRe.FindAllStringSubmatchIndex(text, -1) {
		add(domain.RefCallLiteral, text[m[2]:m[3]], m[2])
		litSpans = append(litSpans, [2]int{m[0], m[1]})
	}
	for _, m := range callIdentRe.FindAllStringSubmatchIndex(text, -1) {
		if within(litSpans, m[0]) {
			continue
		}
		target := text[m[2]:m[3]]
		if target == "USING" || target == "BY" || target == "REFERENCE" ||
			target == "CONTENT" || target == "VALUE" {
			continue
		}
		add(domain.RefCallIdentifier, target, m[2])
	}

	for _, m := range gotoRe.FindAllStringSubmatchIndex(text, -1) {
		target := text[m[2]:m[3]]
		if target == "DEPENDING" {
			continue
		}
		add(domain.RefGoto, target, m[2])
	}

	for _, m := range moveRe.FindAllStringSubmatchIndex(text, -1) {
		from := text[m[2]:m[3]]
		if isWord(from) {
			add(domain.RefMoveFrom, strings.TrimRight(from, ","), m[2])
		}
		for _, to := range strings.Split(text[m[4]:m[5]], ",") {
			add(domain.RefMoveTo, strings.TrimSpace(to), m[4])
		}
	}

	sort.SliceStable(refs, func(i, j int) bool { return refs[i].Line < refs[j].Line })
	return domain.ChunkAnalysis{References: refs}
}

// AnalyzeAST derives the same edge set from a parsed segment. Statement
// classification already happened in the frontend, so this is a plain
// walk; the frontend's line numbers refer to the parsed slice and are
// rebased the same way as the regex path.
func AnalyzeAST(source string, ast *domain.AST, baseLine int) domain.ChunkAnalysis {
	var refs []domain.Reference
	if ast == nil || ast.Root == nil {
		return domain.ChunkAnalysis{}
	}

	for _, stmt := range ast.Root.Statements() {
		line := baseLine + stmt.Start.Line - 1
		names := childNames(stmt)
		switch stmt.Name {
		case "PERFORM":
			if len(names) > 0 && !performKeywords[names[0]] && !isNumeric(names[0]) {
				refs = append(refs, domain.Reference{Source: source, Target: names[0], Kind: domain.RefPerform, Line: line})
			}
			if i := indexOf(names, "THRU", "THROUGH"); i >= 0 && i+1 < len(names) {
				refs = append(refs, domain.Reference{Source: source, Target: names[i+1], Kind: domain.RefPerformThru, Line: line})
			}
		case "CALL":
			for _, c := range stmt.Children {
				if c.Kind == domain.NodeLiteral {
					refs = append(refs, domain.Reference{Source: source, Target: strings.Trim(c.Text, `'"`), Kind: domain.RefCallLiteral, Line: line})
					break
				}
				if c.Kind == domain.NodeName {
					refs = append(refs, domain.Reference{Source: source, Target: c.Text, Kind: domain.RefCallIdentifier, Line: line})
					break
				}
			}
		case "GO":
			if i := indexOf(names, "TO"); i >= 0 && i+1 < len(names) {
				refs = append(refs, domain.Reference{Source: source, Target: names[i+1], Kind: domain.RefGoto, Line: line})
			}
		case "MOVE":
			if i := indexOf(names, "TO"); i >= 0 && i+1 < len(names) {
				if i > 0 {
					refs = append(refs, domain.Reference{Source: source, Target: names[0], Kind: domain.RefMoveFrom, Line: line})
				}
				for _, t := range names[i+1:] {
					refs = append(refs, domain.Reference{Source: source, Target: t, Kind: domain.RefMoveTo, Line: line})
				}
			}
		}
	}
	return domain.ChunkAnalysis{References: refs}
}

func childNames(stmt *domain.Node) []string {
	var out []string
	for _, c := range stmt.Children {
		if c.Kind == domain.NodeName {
			out = append(out, strings.ToUpper(c.Text))
		}
	}
	return out
}

func indexOf(names []string, targets ...string) int {
	for i, n := range names {
		for _, t := range targets {
			if n == t {
				return i
			}
		}
	}
	return -1
}

func within(spans [][2]int, pos int) bool {
	for _, s := range spans {
		if pos >= s[0] && pos < s[1] {
			return true
		}
	}
	return false
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func isWord(s string) bool {
	s = strings.TrimRight(s, ",")
	for _, r := range s {
		if !(r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-') {
			return false
		}
	}
	return s != ""
}
