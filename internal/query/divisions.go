package query

import (
	"fmt"

	"github.com/Chandra-mohn/coqu/internal/core/domain"
	"github.com/Chandra-mohn/coqu/internal/core/ports/driving"
)

var divisionsHandler = &handler{
	name:  "divisions",
	help:  "List divisions of the loaded programs",
	usage: "divisions [--program <name>]",
	run: func(e *Engine, q parsedQuery) driving.Result {
		progs, err := e.programs(q)
		if err != nil {
			return driving.Result{Err: err}
		}
		var items []driving.Item
		for _, prog := range progs {
			for _, d := range prog.Index.Divisions {
				items = append(items, driving.Item{
					Name:     qualify(progs, prog, d.Name+" DIVISION"),
					Location: location(d.Span),
				})
			}
		}
		return driving.Result{Items: items}
	},
}

var divisionHandler = &handler{
	name:  "division",
	help:  "Show one division, optionally with its source body",
	usage: "division <name> [--body] [--program <name>]",
	run: func(e *Engine, q parsedQuery) driving.Result {
		name := q.arg(0)
		if name == "" {
			return driving.Result{Err: fmt.Errorf("%w: division name required", domain.ErrUsage)}
		}
		progs, err := e.programs(q)
		if err != nil {
			return driving.Result{Err: err}
		}
		var items []driving.Item
		for _, prog := range progs {
			d := prog.Index.Division(name)
			if d == nil {
				continue
			}
			item := driving.Item{
				Name:     qualify(progs, prog, d.Name+" DIVISION"),
				Location: location(d.Span),
				Fields: []driving.Field{
					{Key: "Lines", Value: fmt.Sprintf("%d", d.Span.Lines())},
				},
			}
			items = append(items, bodyItem(item, prog, d.Span, q.has("body")))
		}
		return driving.Result{Items: items}
	},
}
