package query

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Chandra-mohn/coqu/internal/core/domain"
	"github.com/Chandra-mohn/coqu/internal/core/ports/driving"
)

var moveTargetRe = regexp.MustCompile(`(?i)\bMOVE\b.*\bTO\b`)

// analyzeScope runs chunk analysis over every paragraph of the scope,
// falling back to whole-division analysis for section-organized
// programs with no paragraphs.
func analyzeScope(e *Engine, progs []*domain.Program, q parsedQuery) []scopedRef {
	wantPara := strings.ToUpper(q.value("paragraph"))
	var out []scopedRef
	for _, prog := range progs {
		if len(prog.Index.Paragraphs) == 0 {
			if proc := prog.Index.Division("PROCEDURE"); proc != nil && wantPara == "" {
				analysis := e.ws.Analyze(prog, "PROCEDURE DIVISION", proc.Span)
				for _, ref := range analysis.References {
					out = append(out, scopedRef{prog: prog, ref: ref})
				}
			}
			continue
		}
		for _, p := range prog.Index.Paragraphs {
			if wantPara != "" && p.Name != wantPara {
				continue
			}
			analysis := e.ws.Analyze(prog, p.Name, p.Span)
			for _, ref := range analysis.References {
				out = append(out, scopedRef{prog: prog, ref: ref})
			}
		}
	}
	return out
}

type scopedRef struct {
	prog *domain.Program
	ref  domain.Reference
}

var callsHandler = &handler{
	name:    "calls",
	aliases: []string{"call"},
	help:    "List CALL statements across the loaded programs",
	usage:   "calls [--external] [--program <name>]",
	run: func(e *Engine, q parsedQuery) driving.Result {
		progs, err := e.programs(q)
		if err != nil {
			return driving.Result{Err: err}
		}
		items := make([]driving.Item, 0)
		for _, sr := range analyzeScope(e, progs, q) {
			kind := sr.ref.Kind
			if kind != domain.RefCallLiteral && kind != domain.RefCallIdentifier {
				continue
			}
			if q.has("external") {
				// Only calls to the caller's own PROGRAM-ID are
				// skipped; calls to every other program, loaded or
				// not, are kept.
				if sr.ref.Target == sr.prog.ProgramID() {
					continue
				}
			}
			items = append(items, driving.Item{
				Name:     sr.ref.Target,
				Location: fmt.Sprintf("line %d", sr.ref.Line),
				Fields: []driving.Field{
					{Key: "Program", Value: sr.prog.Name},
					{Key: "From", Value: sr.ref.Source},
					{Key: "Kind", Value: string(kind)},
				},
			})
		}
		return driving.Result{Items: items}
	},
}

var performsHandler = &handler{
	name:    "performs",
	aliases: []string{"perform"},
	help:    "List PERFORM statements across the loaded programs",
	usage:   "performs [--thru] [--paragraph <name>] [--program <name>]",
	run: func(e *Engine, q parsedQuery) driving.Result {
		progs, err := e.programs(q)
		if err != nil {
			return driving.Result{Err: err}
		}
		items := make([]driving.Item, 0)
		for _, sr := range analyzeScope(e, progs, q) {
			switch sr.ref.Kind {
			case domain.RefPerform:
				if q.has("thru") {
					continue
				}
			case domain.RefPerformThru:
			default:
				continue
			}
			items = append(items, driving.Item{
				Name:     sr.ref.Target,
				Location: fmt.Sprintf("line %d", sr.ref.Line),
				Fields: []driving.Field{
					{Key: "Program", Value: sr.prog.Name},
					{Key: "From", Value: sr.ref.Source},
					{Key: "Kind", Value: string(sr.ref.Kind)},
				},
			})
		}
		return driving.Result{Items: items}
	},
}

var movesHandler = &handler{
	name:    "moves",
	aliases: []string{"move"},
	help:    "List MOVE statements, filterable by source or target",
	usage:   "moves [--to <v>] [--from <v>] [--paragraph <name>] [--program <name>]",
	run: func(e *Engine, q parsedQuery) driving.Result {
		progs, err := e.programs(q)
		if err != nil {
			return driving.Result{Err: err}
		}
		wantTo := strings.ToUpper(q.value("to"))
		wantFrom := strings.ToUpper(q.value("from"))

		items := make([]driving.Item, 0)
		for _, sr := range analyzeScope(e, progs, q) {
			switch sr.ref.Kind {
			case domain.RefMoveTo:
				if wantTo != "" && sr.ref.Target != wantTo {
					continue
				}
				if wantFrom != "" {
					continue
				}
			case domain.RefMoveFrom:
				if wantFrom != "" && sr.ref.Target != wantFrom {
					continue
				}
				if wantFrom == "" {
					// The to-edge of the same statement already
					// represents it in the default listing.
					continue
				}
			default:
				continue
			}
			items = append(items, driving.Item{
				Name:     sr.ref.Target,
				Location: fmt.Sprintf("line %d", sr.ref.Line),
				Fields: []driving.Field{
					{Key: "Program", Value: sr.prog.Name},
					{Key: "From", Value: sr.ref.Source},
					{Key: "Kind", Value: string(sr.ref.Kind)},
				},
			})
		}
		return driving.Result{Items: items}
	},
}

func execHandler(name string, kind domain.ExecKind, help string) *handler {
	return &handler{
		name:    name,
		aliases: []string{"exec-" + name},
		help:    help,
		usage:   name + " [--body] [--program <name>]",
		run: func(e *Engine, q parsedQuery) driving.Result {
			progs, err := e.programs(q)
			if err != nil {
				return driving.Result{Err: err}
			}
			items := make([]driving.Item, 0)
			for _, prog := range progs {
				for _, b := range prog.Index.ExecBlocks {
					if b.Kind != kind {
						continue
					}
					item := driving.Item{
						Name:     qualify(progs, prog, firstExecWord(b.Body)),
						Location: location(b.Span),
					}
					if q.has("body") {
						item.Body = strings.Split(b.Body, "\n")
						item.BodyStart = b.Span.Start
					}
					items = append(items, item)
				}
			}
			return driving.Result{Items: items}
		},
	}
}

var sqlHandler = execHandler("sql", domain.ExecSQL, "List EXEC SQL blocks")
var cicsHandler = execHandler("cics", domain.ExecCICS, "List EXEC CICS blocks")

// firstExecWord extracts the leading operation of an EXEC block body,
// e.g. SELECT, INSERT, LINK, READ.
func firstExecWord(body string) string {
	fields := strings.Fields(strings.ToUpper(body))
	for i, f := range fields {
		if (f == "SQL" || f == "CICS" || f == "DLI") && i+1 < len(fields) {
			return strings.Trim(fields[i+1], ".,()")
		}
	}
	return "EXEC"
}
