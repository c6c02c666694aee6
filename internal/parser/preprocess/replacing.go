package preprocess

import (
	"regexp"
	"strings"
)

var partialTagRe = regexp.MustCompile(`^:[A-Z0-9][A-Z0-9-]*:$`)

// parsePairs parses a REPLACING / REPLACE operand list into substitution
// pairs. Pseudo-text operands (==a== BY ==b==) are taken first; the
// remainder of the clause is scanned for the bare word-for-word form.
func parsePairs(clause string) []pseudoPair {
	var pairs []pseudoPair

	rest := clause
	for _, m := range pseudoRe.FindAllStringSubmatch(clause, -1) {
		from := collapseSpaces(m[1])
		to := collapseSpaces(m[2])
		pairs = append(pairs, pseudoPair{
			from:    from,
			to:      to,
			partial: partialTagRe.MatchString(strings.ToUpper(from)),
		})
	}
	rest = pseudoRe.ReplaceAllString(rest, "")

	for _, m := range wordPairRe.FindAllStringSubmatch(rest, -1) {
		if strings.EqualFold(m[1], "REPLACING") || strings.EqualFold(m[2], "REPLACING") {
			continue
		}
		pairs = append(pairs, pseudoPair{from: m[1], to: m[2]})
	}
	return pairs
}

// applyReplacing substitutes every pair across the copybook body. The
// scope is the current COPY expansion only.
func applyReplacing(body []string, pairs []pseudoPair) []string {
	if len(pairs) == 0 {
		return body
	}
	out := make([]string, len(body))
	for i, line := range body {
		out[i] = substitute(line, pairs)
	}
	return out
}

// substitute applies the pairs to one line. Pseudo-text matching is
// whitespace-insensitive: whitespace runs inside the pseudo-text match
// any whitespace run in the source. The :TAG: partial-word form
// substitutes inside words.
func substitute(line string, pairs []pseudoPair) string {
	for _, pair := range pairs {
		if pair.partial {
			line = replaceInsensitive(line, pair.from, pair.to)
			continue
		}
		line = pair.regexp().ReplaceAllString(line, pair.to)
	}
	return line
}

// regexp builds the whitespace-insensitive, word-bounded matcher for a
// non-partial pair.
func (p pseudoPair) regexp() *regexp.Regexp {
	tokens := strings.Fields(p.from)
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = regexp.QuoteMeta(t)
	}
	expr := strings.Join(quoted, `\s+`)
	if isWordy(p.from) {
		expr = `\b` + expr + `\b`
	}
	return regexp.MustCompile(`(?i)` + expr)
}

// replaceInsensitive is a case-insensitive plain-text replacement used
// for :TAG: partial words.
func replaceInsensitive(line, from, to string) string {
	re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(from))
	return re.ReplaceAllString(line, to)
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func isWordy(s string) bool {
	for _, r := range s {
		if !(r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' || r == ' ') {
			return false
		}
	}
	return s != ""
}
