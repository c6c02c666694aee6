package query

import (
	"fmt"
	"strings"

	"github.com/Chandra-mohn/coqu/internal/core/domain"
	"github.com/Chandra-mohn/coqu/internal/core/ports/driving"
)

var commentsHandler = &handler{
	name:  "comments",
	help:  "List comment lines by classification",
	usage: "comments [--header] [--orphan] [--for <element>] [--program <name>]",
	run: func(e *Engine, q parsedQuery) driving.Result {
		progs, err := e.programs(q)
		if err != nil {
			return driving.Result{Err: err}
		}
		wantFor := strings.ToUpper(q.value("for"))

		items := make([]driving.Item, 0)
		for _, prog := range progs {
			for _, c := range prog.Index.Comments {
				if q.has("header") && c.Class != domain.CommentHeader {
					continue
				}
				if q.has("orphan") && c.Class != domain.CommentOrphan {
					continue
				}
				if wantFor != "" {
					target := strings.ToUpper(c.For)
					if target != wantFor &&
						strings.TrimSuffix(target, " DIVISION") != wantFor &&
						strings.TrimSuffix(target, " SECTION") != wantFor {
						continue
					}
				}
				fields := []driving.Field{
					{Key: "Class", Value: string(c.Class)},
				}
				if c.For != "" {
					fields = append(fields, driving.Field{Key: "For", Value: c.For})
				}
				items = append(items, driving.Item{
					Name:     qualify(progs, prog, c.Text),
					Location: fmt.Sprintf("line %d", c.Line),
					Fields:   fields,
				})
			}
		}
		return driving.Result{Items: items}
	},
}

// coverageHandler distills the parse-coverage report: how much of the
// source the index accounts for.
var coverageHandler = &handler{
	name:  "coverage",
	help:  "Report how many source lines the structural index accounts for",
	usage: "coverage [<program>]",
	run: func(e *Engine, q parsedQuery) driving.Result {
		progs, err := e.programs(q)
		if err != nil {
			return driving.Result{Err: err}
		}
		if name := q.arg(0); name != "" {
			prog, ok := e.ws.Get(name)
			if !ok {
				return driving.Result{Err: fmt.Errorf("%w: %s", domain.ErrNotLoaded, name)}
			}
			progs = []*domain.Program{prog}
		}

		items := make([]driving.Item, 0, len(progs))
		for _, prog := range progs {
			covered := make([]bool, prog.Lines+1)
			mark := func(span domain.Span) {
				for l := span.Start; l <= span.End && l < len(covered); l++ {
					if l >= 1 {
						covered[l] = true
					}
				}
			}
			for _, d := range prog.Index.Divisions {
				mark(d.Span)
			}
			for _, c := range prog.Index.Comments {
				mark(domain.Span{Start: c.Line, End: c.Line})
			}
			blank := 0
			for _, line := range prog.Source {
				if strings.TrimSpace(line) == "" {
					blank++
				}
			}
			count := 0
			for _, c := range covered[1:] {
				if c {
					count++
				}
			}
			pct := 0.0
			if prog.Lines > 0 {
				pct = float64(count) * 100 / float64(prog.Lines)
			}
			items = append(items, driving.Item{
				Name: prog.Name,
				Fields: []driving.Field{
					{Key: "Lines", Value: fmt.Sprintf("%d", prog.Lines)},
					{Key: "Indexed", Value: fmt.Sprintf("%d (%.1f%%)", count, pct)},
					{Key: "Blank", Value: fmt.Sprintf("%d", blank)},
					{Key: "Divisions", Value: fmt.Sprintf("%d", len(prog.Index.Divisions))},
					{Key: "Sections", Value: fmt.Sprintf("%d", len(prog.Index.Sections))},
					{Key: "Paragraphs", Value: fmt.Sprintf("%d", len(prog.Index.Paragraphs))},
					{Key: "DataItems", Value: fmt.Sprintf("%d", len(prog.Index.DataItems))},
				},
			})
		}
		return driving.Result{Items: items}
	},
}
