// Package query translates the command language into deterministic
// reads over the structural index and, for semantic queries, on-demand
// chunk analysis. Listing and body queries never trigger full parsing.
package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Chandra-mohn/coqu/internal/core/domain"
	"github.com/Chandra-mohn/coqu/internal/core/ports/driving"
)

// Ensure Engine implements the driving port.
var _ driving.QueryService = (*Engine)(nil)

// handler executes one query command.
type handler struct {
	name    string
	aliases []string
	help    string
	usage   string
	run     func(e *Engine, q parsedQuery) driving.Result
}

// Engine dispatches query commands against a workspace snapshot.
type Engine struct {
	ws       driving.WorkspaceService
	handlers map[string]*handler
	names    []string
}

// New builds the engine with every built-in command registered.
func New(ws driving.WorkspaceService) *Engine {
	e := &Engine{ws: ws, handlers: make(map[string]*handler)}
	for _, h := range builtins() {
		e.handlers[h.name] = h
		for _, a := range h.aliases {
			e.handlers[a] = h
		}
		e.names = append(e.names, h.name)
	}
	sort.Strings(e.names)
	return e
}

// Execute runs one pre-tokenized command. Unknown commands are usage
// errors; name lookups with no hit return structured empty results.
func (e *Engine) Execute(tokens []string) driving.Result {
	q := parseTokens(tokens, valueFlags)
	if q.command == "" {
		return driving.Result{Err: fmt.Errorf("%w: empty query", domain.ErrUsage)}
	}
	h, ok := e.handlers[q.command]
	if !ok {
		return driving.Result{Err: fmt.Errorf("%w: unknown command %q", domain.ErrUsage, q.command)}
	}

	res := h.run(e, q)
	res.CountOnly = q.has("count")
	res.LineNumbers = q.has("line-numbers")
	if res.Count == 0 {
		res.Count = len(res.Items)
	}
	return res
}

// Commands lists the unique command names.
func (e *Engine) Commands() []string {
	return append([]string(nil), e.names...)
}

// Help returns help for one command, or the full listing.
func (e *Engine) Help(command string) string {
	if command != "" {
		h, ok := e.handlers[strings.ToLower(command)]
		if !ok {
			return fmt.Sprintf("Unknown command: %s", command)
		}
		lines := []string{h.name}
		if len(h.aliases) > 0 {
			lines[0] += fmt.Sprintf(" (aliases: %s)", strings.Join(h.aliases, ", "))
		}
		lines = append(lines, "  "+h.help)
		if h.usage != "" {
			lines = append(lines, "  Usage: "+h.usage)
		}
		return strings.Join(lines, "\n")
	}

	var b strings.Builder
	b.WriteString("Query commands:\n")
	for _, name := range e.names {
		fmt.Fprintf(&b, "  %-16s %s\n", name, e.handlers[name].help)
	}
	b.WriteString("\nModifiers: --line-numbers --count, output redirection with > and >>.\n")
	b.WriteString("Use '/help <command>' for details.")
	return b.String()
}

// programs returns the query scope: the named program, or every loaded
// one.
func (e *Engine) programs(q parsedQuery) ([]*domain.Program, error) {
	if name := q.value("program"); name != "" {
		prog, ok := e.ws.Get(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotLoaded, name)
		}
		return []*domain.Program{prog}, nil
	}
	progs := e.ws.Programs()
	if len(progs) == 0 {
		return nil, fmt.Errorf("%w: no programs loaded", domain.ErrNotLoaded)
	}
	return progs, nil
}

// qualify prefixes an item name with the program name when more than
// one program is loaded.
func qualify(progs []*domain.Program, prog *domain.Program, name string) string {
	if len(progs) > 1 {
		return prog.Name + "." + name
	}
	return name
}

// location renders a span as "lines A-B" or "line A".
func location(span domain.Span) string {
	if span.End > span.Start {
		return fmt.Sprintf("lines %d-%d", span.Start, span.End)
	}
	return fmt.Sprintf("line %d", span.Start)
}

// bodyItem attaches --body output to an item.
func bodyItem(item driving.Item, prog *domain.Program, span domain.Span, want bool) driving.Item {
	if want {
		item.Body = prog.Body(span)
		item.BodyStart = span.Start
	}
	return item
}

// builtins assembles the command table; the handlers themselves live in
// the per-topic files of this package.
func builtins() []*handler {
	return []*handler{
		divisionsHandler, divisionHandler,
		sectionsHandler, sectionHandler,
		paragraphsHandler, paragraphHandler,
		workingStorageHandler, variableHandler, fileSectionHandler, linkageHandler,
		copybooksHandler, copybookHandler, copybookDepsHandler, whereUsedHandler,
		callsHandler, performsHandler, movesHandler, sqlHandler, cicsHandler,
		commentsHandler, findHandler, referencesHandler, coverageHandler,
	}
}
