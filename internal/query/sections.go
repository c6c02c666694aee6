package query

import (
	"fmt"
	"strings"

	"github.com/Chandra-mohn/coqu/internal/core/domain"
	"github.com/Chandra-mohn/coqu/internal/core/ports/driving"
)

var sectionsHandler = &handler{
	name:  "sections",
	help:  "List sections, optionally within one division",
	usage: "sections [--division <name>] [--program <name>]",
	run: func(e *Engine, q parsedQuery) driving.Result {
		progs, err := e.programs(q)
		if err != nil {
			return driving.Result{Err: err}
		}
		wantDiv := strings.ToUpper(strings.TrimSuffix(strings.ToUpper(q.value("division")), " DIVISION"))
		var items []driving.Item
		for _, prog := range progs {
			for _, s := range prog.Index.Sections {
				if wantDiv != "" && s.Division != wantDiv {
					continue
				}
				items = append(items, driving.Item{
					Name:     qualify(progs, prog, s.Name+" SECTION"),
					Location: location(s.Span),
					Fields:   []driving.Field{{Key: "Division", Value: s.Division}},
				})
			}
		}
		return driving.Result{Items: items}
	},
}

var sectionHandler = &handler{
	name:  "section",
	help:  "Show one section, optionally with its source body",
	usage: "section <name> [--body] [--program <name>]",
	run: func(e *Engine, q parsedQuery) driving.Result {
		name := q.arg(0)
		if name == "" {
			return driving.Result{Err: fmt.Errorf("%w: section name required", domain.ErrUsage)}
		}
		progs, err := e.programs(q)
		if err != nil {
			return driving.Result{Err: err}
		}
		var items []driving.Item
		for _, prog := range progs {
			s := prog.Index.Section(name)
			if s == nil {
				continue
			}
			paras := prog.Index.SectionParagraphs(s.Name)
			item := driving.Item{
				Name:     qualify(progs, prog, s.Name+" SECTION"),
				Location: location(s.Span),
				Fields: []driving.Field{
					{Key: "Division", Value: s.Division},
					{Key: "Paragraphs", Value: fmt.Sprintf("%d", len(paras))},
				},
			}
			items = append(items, bodyItem(item, prog, s.Span, q.has("body")))
		}
		return driving.Result{Items: items}
	},
}
