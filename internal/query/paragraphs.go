package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/Chandra-mohn/coqu/internal/core/domain"
	"github.com/Chandra-mohn/coqu/internal/core/ports/driving"
)

var paragraphsHandler = &handler{
	name:  "paragraphs",
	help:  "List procedure paragraphs, optionally within one section",
	usage: "paragraphs [--section <name>] [--program <name>]",
	run: func(e *Engine, q parsedQuery) driving.Result {
		progs, err := e.programs(q)
		if err != nil {
			return driving.Result{Err: err}
		}
		wantSec := strings.TrimSuffix(strings.ToUpper(q.value("section")), " SECTION")
		items := make([]driving.Item, 0)
		for _, prog := range progs {
			for _, p := range prog.Index.Paragraphs {
				if wantSec != "" && p.Section != wantSec {
					continue
				}
				item := driving.Item{
					Name:     qualify(progs, prog, p.Name),
					Location: location(p.Span),
				}
				if p.Section != "" {
					item.Fields = []driving.Field{{Key: "Section", Value: p.Section}}
				}
				items = append(items, item)
			}
		}
		// A program without a PROCEDURE DIVISION, or one organized
		// purely in sections, yields an empty result, not an error.
		return driving.Result{Items: items}
	},
}

var paragraphHandler = &handler{
	name:  "paragraph",
	help:  "Show one paragraph with optional body and semantic edges",
	usage: "paragraph <name> [--body] [--calls] [--called-by] [--analyze] [--exact] [--program <name>]",
	run: func(e *Engine, q parsedQuery) driving.Result {
		name := q.arg(0)
		if name == "" {
			return driving.Result{Err: fmt.Errorf("%w: paragraph name required", domain.ErrUsage)}
		}
		progs, err := e.programs(q)
		if err != nil {
			return driving.Result{Err: err}
		}

		var items []driving.Item
		for _, prog := range progs {
			p := prog.Index.Paragraph(name)
			if p == nil {
				continue
			}
			item := driving.Item{
				Name:     qualify(progs, prog, p.Name),
				Location: location(p.Span),
			}
			if p.Section != "" {
				item.Fields = append(item.Fields, driving.Field{Key: "Section", Value: p.Section})
			}

			if q.has("analyze") || q.has("calls") {
				if q.has("exact") {
					// Force the grammar-based parse so the analyzer
					// works from AST-derived edges.
					if _, err := e.ws.EnsureAST(context.Background(), prog.Name); err != nil {
						return driving.Result{Err: fmt.Errorf("%w: %v", domain.ErrQuery, err)}
					}
				}
				analysis := e.ws.Analyze(prog, p.Name, p.Span)
				for _, ref := range analysis.References {
					if q.has("calls") &&
						ref.Kind != domain.RefPerform && ref.Kind != domain.RefPerformThru &&
						ref.Kind != domain.RefCallLiteral && ref.Kind != domain.RefCallIdentifier {
						continue
					}
					item.Fields = append(item.Fields, driving.Field{
						Key:   string(ref.Kind),
						Value: fmt.Sprintf("%s (line %d)", ref.Target, ref.Line),
					})
				}
			}

			if q.has("called-by") {
				for _, edge := range e.callersOf(progs, p.Name) {
					item.Fields = append(item.Fields, driving.Field{
						Key:   "called-by",
						Value: edge,
					})
				}
			}

			items = append(items, bodyItem(item, prog, p.Span, q.has("body")))
		}
		return driving.Result{Items: items}
	},
}

// callersOf scans every paragraph of the scope for perform or goto edges
// targeting the given name.
func (e *Engine) callersOf(progs []*domain.Program, target string) []string {
	want := strings.ToUpper(target)
	var out []string
	for _, prog := range progs {
		for _, p := range prog.Index.Paragraphs {
			if p.Name == want {
				continue
			}
			analysis := e.ws.Analyze(prog, p.Name, p.Span)
			for _, ref := range analysis.References {
				if ref.Target != want {
					continue
				}
				switch ref.Kind {
				case domain.RefPerform, domain.RefPerformThru, domain.RefGoto:
					out = append(out, fmt.Sprintf("%s (%s, line %d)", qualify(progs, prog, p.Name), ref.Kind, ref.Line))
				}
			}
		}
	}
	return out
}
