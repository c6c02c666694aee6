package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Chandra-mohn/coqu/internal/core/domain"
	"github.com/Chandra-mohn/coqu/internal/core/ports/driving"
)

// dataItemsIn lists the data items of one DATA DIVISION section.
func dataItemsIn(prog *domain.Program, section string, level int) []domain.DataItem {
	var out []domain.DataItem
	for _, d := range prog.Index.DataItems {
		if d.Section != section {
			continue
		}
		if level > 0 && d.Level != level {
			continue
		}
		out = append(out, d)
	}
	return out
}

func dataItemFields(d domain.DataItem) []driving.Field {
	fields := []driving.Field{
		{Key: "Level", Value: fmt.Sprintf("%02d", d.Level)},
	}
	if d.Picture != "" {
		fields = append(fields, driving.Field{Key: "PIC", Value: d.Picture})
	}
	if d.Parent != "" {
		fields = append(fields, driving.Field{Key: "Parent", Value: d.Parent})
	}
	return fields
}

func sectionItemsHandler(name, section, help string) *handler {
	return &handler{
		name:  name,
		help:  help,
		usage: name + " [--level <n>] [--program <name>]",
		run: func(e *Engine, q parsedQuery) driving.Result {
			progs, err := e.programs(q)
			if err != nil {
				return driving.Result{Err: err}
			}
			level := 0
			if v := q.value("level"); v != "" {
				level, err = strconv.Atoi(v)
				if err != nil {
					return driving.Result{Err: fmt.Errorf("%w: bad level %q", domain.ErrUsage, v)}
				}
			}
			items := make([]driving.Item, 0)
			for _, prog := range progs {
				for _, d := range dataItemsIn(prog, section, level) {
					items = append(items, driving.Item{
						Name:     qualify(progs, prog, d.Name),
						Location: fmt.Sprintf("line %d", d.Line),
						Fields:   dataItemFields(d),
					})
				}
			}
			return driving.Result{Items: items}
		},
	}
}

var workingStorageHandler = sectionItemsHandler(
	"working-storage", "WORKING-STORAGE", "List WORKING-STORAGE data items")

var fileSectionHandler = &handler{
	name:  "file-section",
	help:  "List FILE SECTION entries and file-control SELECTs",
	usage: "file-section [--program <name>]",
	run: func(e *Engine, q parsedQuery) driving.Result {
		progs, err := e.programs(q)
		if err != nil {
			return driving.Result{Err: err}
		}
		items := make([]driving.Item, 0)
		for _, prog := range progs {
			for _, f := range prog.Index.Files {
				items = append(items, driving.Item{
					Name:     qualify(progs, prog, f.Name),
					Location: fmt.Sprintf("line %d", f.Line),
					Fields:   []driving.Field{{Key: "Kind", Value: f.Kind}},
				})
			}
			for _, d := range dataItemsIn(prog, "FILE", 0) {
				items = append(items, driving.Item{
					Name:     qualify(progs, prog, d.Name),
					Location: fmt.Sprintf("line %d", d.Line),
					Fields:   dataItemFields(d),
				})
			}
		}
		return driving.Result{Items: items}
	},
}

var linkageHandler = sectionItemsHandler(
	"linkage", "LINKAGE", "List LINKAGE SECTION data items")

var variableHandler = &handler{
	name:  "variable",
	help:  "Show one data item, optionally with references to it",
	usage: "variable <name> [--body] [--references] [--program <name>]",
	run: func(e *Engine, q parsedQuery) driving.Result {
		name := q.arg(0)
		if name == "" {
			return driving.Result{Err: fmt.Errorf("%w: variable name required", domain.ErrUsage)}
		}
		progs, err := e.programs(q)
		if err != nil {
			return driving.Result{Err: err}
		}
		var items []driving.Item
		for _, prog := range progs {
			d := prog.Index.DataItem(name)
			if d == nil {
				continue
			}
			item := driving.Item{
				Name:     qualify(progs, prog, d.Name),
				Location: fmt.Sprintf("line %d", d.Line),
				Fields:   dataItemFields(*d),
			}
			if d.Section != "" {
				item.Fields = append(item.Fields, driving.Field{Key: "Section", Value: d.Section})
			}
			if q.has("references") {
				for _, ref := range findReferences(prog, d.Name, false, false) {
					item.Fields = append(item.Fields, driving.Field{Key: "Reference", Value: ref})
				}
			}
			if q.has("body") {
				span := domain.Span{Start: d.Line, End: d.Line}
				item = bodyItem(item, prog, span, true)
			}
			items = append(items, item)
		}
		return driving.Result{Items: items}
	},
}

// findReferences scans PROCEDURE DIVISION lines for occurrences of a
// name. writesOnly narrows to MOVE targets; readsOnly drops lines where
// the name appears only as a MOVE target.
func findReferences(prog *domain.Program, name string, writesOnly, readsOnly bool) []string {
	want := strings.ToUpper(name)
	proc := prog.Index.Division("PROCEDURE")
	if proc == nil {
		return nil
	}

	var out []string
	for line := proc.Span.Start; line <= proc.Span.End && line <= len(prog.Normalized); line++ {
		text := strings.ToUpper(prog.Normalized[line-1])
		col := wordIndex(text, want)
		if col < 0 {
			continue
		}
		if writesOnly || readsOnly {
			isWrite := moveTargetRe.MatchString(text) && strings.Contains(afterTo(text), want)
			if writesOnly && !isWrite {
				continue
			}
			if readsOnly && isWrite && !strings.Contains(beforeTo(text), want) {
				continue
			}
		}
		out = append(out, fmt.Sprintf("line %d: %s", line, strings.TrimSpace(prog.Source[line-1])))
	}
	return out
}

// wordIndex finds a whole-word occurrence of want in text.
func wordIndex(text, want string) int {
	from := 0
	for {
		i := strings.Index(text[from:], want)
		if i < 0 {
			return -1
		}
		i += from
		before := i == 0 || !isNameChar(text[i-1])
		afterIdx := i + len(want)
		after := afterIdx >= len(text) || !isNameChar(text[afterIdx])
		if before && after {
			return i
		}
		from = i + 1
	}
}

func isNameChar(c byte) bool {
	return c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-'
}

func afterTo(text string) string {
	if i := strings.Index(text, " TO "); i >= 0 {
		return text[i+4:]
	}
	return ""
}

func beforeTo(text string) string {
	if i := strings.Index(text, " TO "); i >= 0 {
		return text[:i]
	}
	return text
}
