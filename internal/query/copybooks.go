package query

import (
	"fmt"
	"strings"

	"github.com/Chandra-mohn/coqu/internal/core/domain"
	"github.com/Chandra-mohn/coqu/internal/core/ports/driving"
	"github.com/Chandra-mohn/coqu/internal/parser/reader"
)

var copybooksHandler = &handler{
	name:  "copybooks",
	help:  "List COPY directives with their resolution status",
	usage: "copybooks [--program <name>]",
	run: func(e *Engine, q parsedQuery) driving.Result {
		progs, err := e.programs(q)
		if err != nil {
			return driving.Result{Err: err}
		}
		items := make([]driving.Item, 0)
		for _, prog := range progs {
			for _, c := range prog.Index.Copies {
				fields := []driving.Field{
					{Key: "Status", Value: string(c.Status)},
				}
				if c.Library != "" {
					fields = append(fields, driving.Field{Key: "Library", Value: c.Library})
				}
				if c.ResolvedPath != "" {
					fields = append(fields, driving.Field{Key: "Path", Value: c.ResolvedPath})
				}
				if c.Replacing != "" {
					fields = append(fields, driving.Field{Key: "Replacing", Value: c.Replacing})
				}
				items = append(items, driving.Item{
					Name:     qualify(progs, prog, c.Name),
					Location: fmt.Sprintf("line %d", c.Line),
					Fields:   fields,
				})
			}
		}
		return driving.Result{Items: items}
	},
}

var copybookHandler = &handler{
	name:  "copybook",
	help:  "Show one copybook, its contents, or its users",
	usage: "copybook <name> [--contents] [--used-by]",
	run: func(e *Engine, q parsedQuery) driving.Result {
		name := strings.ToUpper(q.arg(0))
		if name == "" {
			return driving.Result{Err: fmt.Errorf("%w: copybook name required", domain.ErrUsage)}
		}
		progs, err := e.programs(q)
		if err != nil {
			return driving.Result{Err: err}
		}

		var items []driving.Item
		for _, prog := range progs {
			for _, c := range prog.Index.Copies {
				if c.Name != name {
					continue
				}
				item := driving.Item{
					Name:     c.Name,
					Location: fmt.Sprintf("line %d", c.Line),
					Fields: []driving.Field{
						{Key: "Program", Value: prog.Name},
						{Key: "Status", Value: string(c.Status)},
					},
				}
				if c.ResolvedPath != "" {
					item.Fields = append(item.Fields, driving.Field{Key: "Path", Value: c.ResolvedPath})
					if q.has("contents") {
						if body := copybookContents(prog, c); body != nil {
							item.Body = body
						}
					}
				}
				items = append(items, item)
			}
		}
		return driving.Result{Items: items}
	},
}

// copybookContents pulls the expanded lines whose origin is the
// resolved copybook file, falling back to reading the file itself when
// the program was rehydrated from cache without an expansion.
func copybookContents(prog *domain.Program, c domain.CopyDirective) []string {
	if prog.Expanded != nil {
		var out []string
		for i, line := range prog.Expanded {
			if prog.Origins.Resolve(i+1).File == c.ResolvedPath {
				out = append(out, line)
			}
		}
		if out != nil {
			return out
		}
	}
	res, err := reader.Read(c.ResolvedPath)
	if err != nil {
		return nil
	}
	return res.Lines
}

var copybookDepsHandler = &handler{
	name:  "copybook-deps",
	help:  "Show the program-to-copybook dependency graph",
	usage: "copybook-deps [--format dot]",
	run: func(e *Engine, q parsedQuery) driving.Result {
		progs, err := e.programs(q)
		if err != nil {
			return driving.Result{Err: err}
		}

		if q.value("format") == "dot" {
			var b strings.Builder
			b.WriteString("digraph copybooks {\n")
			b.WriteString("  rankdir=LR;\n")
			for _, prog := range progs {
				for _, c := range prog.Index.Copies {
					style := ""
					if c.Status != domain.CopyResolved {
						style = " [style=dashed]"
					}
					fmt.Fprintf(&b, "  %q -> %q%s;\n", prog.Name, c.Name, style)
				}
			}
			b.WriteString("}")
			return driving.Result{Message: b.String(), Count: -1}
		}

		var items []driving.Item
		for _, prog := range progs {
			for _, c := range prog.Index.Copies {
				items = append(items, driving.Item{
					Name: fmt.Sprintf("%s -> %s", prog.Name, c.Name),
					Fields: []driving.Field{
						{Key: "Status", Value: string(c.Status)},
					},
				})
			}
		}
		return driving.Result{Items: items}
	},
}

var whereUsedHandler = &handler{
	name:  "where-used",
	help:  "List the programs that COPY a copybook",
	usage: "where-used <copybook>",
	run: func(e *Engine, q parsedQuery) driving.Result {
		name := strings.ToUpper(q.arg(0))
		if name == "" {
			return driving.Result{Err: fmt.Errorf("%w: copybook name required", domain.ErrUsage)}
		}
		progs, err := e.programs(q)
		if err != nil {
			return driving.Result{Err: err}
		}
		items := make([]driving.Item, 0)
		for _, prog := range progs {
			for _, c := range prog.Index.Copies {
				if c.Name != name {
					continue
				}
				items = append(items, driving.Item{
					Name:     prog.Name,
					Location: fmt.Sprintf("line %d", c.Line),
					Fields:   []driving.Field{{Key: "Status", Value: string(c.Status)}},
				})
			}
		}
		return driving.Result{Items: items}
	},
}
