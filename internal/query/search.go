package query

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Chandra-mohn/coqu/internal/core/domain"
	"github.com/Chandra-mohn/coqu/internal/core/ports/driving"
)

var findHandler = &handler{
	name:  "find",
	help:  "Search normalized source lines with a regular expression",
	usage: `find <regex> [--in <division|section|paragraph>] [--program <name>]`,
	run: func(e *Engine, q parsedQuery) driving.Result {
		pattern := q.arg(0)
		if pattern == "" {
			return driving.Result{Err: fmt.Errorf("%w: regex required", domain.ErrUsage)}
		}
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return driving.Result{Err: fmt.Errorf("%w: bad regex: %v", domain.ErrUsage, err)}
		}
		progs, perr := e.programs(q)
		if perr != nil {
			return driving.Result{Err: perr}
		}

		items := make([]driving.Item, 0)
		for _, prog := range progs {
			span := domain.Span{Start: 1, End: len(prog.Normalized)}
			if scope := q.value("in"); scope != "" {
				s, serr := resolveScope(prog, scope)
				if serr != nil {
					continue
				}
				span = s
			}
			for line := span.Start; line <= span.End && line <= len(prog.Normalized); line++ {
				if re.MatchString(prog.Normalized[line-1]) {
					items = append(items, driving.Item{
						Name:     qualify(progs, prog, fmt.Sprintf("line %d", line)),
						Location: fmt.Sprintf("line %d", line),
						Fields: []driving.Field{
							{Key: "Text", Value: strings.TrimSpace(prog.Source[line-1])},
						},
					})
				}
			}
		}
		return driving.Result{Items: items}
	},
}

// resolveScope maps a --in argument to a span: a division, section or
// paragraph name.
func resolveScope(prog *domain.Program, scope string) (domain.Span, error) {
	if d := prog.Index.Division(scope); d != nil {
		return d.Span, nil
	}
	if s := prog.Index.Section(scope); s != nil {
		return s.Span, nil
	}
	if p := prog.Index.Paragraph(scope); p != nil {
		return p.Span, nil
	}
	return domain.Span{}, fmt.Errorf("%w: unknown scope %q", domain.ErrUsage, scope)
}

var referencesHandler = &handler{
	name:  "references",
	help:  "List references to an identifier, split into reads and writes",
	usage: "references <name> [--writes] [--reads] [--program <name>]",
	run: func(e *Engine, q parsedQuery) driving.Result {
		name := q.arg(0)
		if name == "" {
			return driving.Result{Err: fmt.Errorf("%w: identifier required", domain.ErrUsage)}
		}
		progs, err := e.programs(q)
		if err != nil {
			return driving.Result{Err: err}
		}
		items := make([]driving.Item, 0)
		for _, prog := range progs {
			for _, ref := range findReferences(prog, name, q.has("writes"), q.has("reads")) {
				items = append(items, driving.Item{
					Name:   qualify(progs, prog, strings.ToUpper(name)),
					Fields: []driving.Field{{Key: "At", Value: ref}},
				})
			}
		}
		return driving.Result{Items: items}
	},
}
