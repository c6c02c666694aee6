// Package format classifies the column layout of COBOL sources and
// strips non-code columns. Classification samples the leading non-empty
// lines; normalization is line-for-line and idempotent.
package format

import (
	"regexp"
	"strings"

	"github.com/Chandra-mohn/coqu/internal/core/domain"
	"github.com/Chandra-mohn/coqu/internal/logger"
)

// sampleSize is the number of non-empty lines examined for detection.
const sampleSize = 200

// Panvalet/Librarian prefixes: a short version number ("1.1", "07.141")
// with an optional area indicator, or a bare +/-/* marker in column 1,
// always followed by space.
var panvaletPrefix = regexp.MustCompile(`^(?:[\d.]{2,6}[A-B]? |[+*-] )`)

var seqDigits = regexp.MustCompile(`^\d{6}`)

// Detect classifies the source layout per the sampling rules:
// sequence when >=90% of sampled lines carry digit sequence numbers in
// columns 1-6, panvalet when >=5% carry version markers, standard
// otherwise.
func Detect(lines []string) domain.SourceFormat {
	sampled, seq, pan := 0, 0, 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		sampled++
		if seqDigits.MatchString(line) {
			seq++
		} else if panvaletPrefix.MatchString(line) {
			pan++
		}
		if sampled >= sampleSize {
			break
		}
	}
	if sampled == 0 {
		return domain.FormatStandard
	}
	switch {
	case seq*10 >= sampled*9:
		return domain.FormatSequence
	case pan*20 >= sampled:
		return domain.FormatPanvalet
	default:
		return domain.FormatStandard
	}
}

// Normalize strips non-code columns for the detected format. The result
// has the same line count and numbering as the input. Comment indicators
// in column 7 survive normalization.
func Normalize(lines []string, f domain.SourceFormat) []string {
	out := make([]string, len(lines))
	switch f {
	case domain.FormatSequence:
		for i, line := range lines {
			out[i] = stripSequence(line)
		}
	case domain.FormatPanvalet:
		for i, line := range lines {
			out[i] = stripPanvalet(line)
		}
	default:
		copy(out, lines)
	}
	return out
}

// Apply detects and normalizes in one step. Applying it to its own
// output is a no-op: normalized text no longer matches the sequence or
// Panvalet patterns and re-classifies as standard.
func Apply(lines []string) (domain.SourceFormat, []string) {
	f := Detect(lines)
	if f != domain.FormatStandard {
		logger.Debug("format: detected %s layout", f)
	}
	return f, Normalize(lines, f)
}

// stripSequence blanks columns 1-6 and truncates column 73 onward,
// keeping the indicator column and areas A/B in place.
func stripSequence(line string) string {
	if len(line) > 72 {
		line = line[:72]
	}
	if len(line) <= 6 {
		return ""
	}
	return "      " + line[6:]
}

// stripPanvalet blanks the version marker, preserving column positions.
func stripPanvalet(line string) string {
	loc := panvaletPrefix.FindStringIndex(line)
	if loc == nil {
		return line
	}
	return strings.Repeat(" ", loc[1]) + line[loc[1]:]
}

// IsComment reports whether a normalized line is a comment line: the
// first non-blank character is the `*` or `/` indicator.
func IsComment(line string) bool {
	t := strings.TrimLeft(line, " \t")
	return strings.HasPrefix(t, "*") || strings.HasPrefix(t, "/")
}

// CommentCol returns the 1-based column of the comment indicator, or 0.
func CommentCol(line string) int {
	for i, r := range line {
		if r == ' ' || r == '\t' {
			continue
		}
		if r == '*' || r == '/' {
			return i + 1
		}
		return 0
	}
	return 0
}

// CommentText returns the comment body with the indicator stripped.
func CommentText(line string) string {
	t := strings.TrimLeft(line, " \t")
	t = strings.TrimPrefix(t, "*")
	t = strings.TrimPrefix(t, "/")
	return strings.TrimSpace(t)
}
