// Package frontend drives the grammar-based lexer+parser over a segment
// or a whole expanded stream, producing the tagged-variant AST. The
// grammar is treated as an opaque dependency with a stable interface;
// swapping the generator for another with equivalent semantics must not
// affect callers.
package frontend

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ava12/llx"
	"github.com/ava12/llx/lexer"
	"github.com/ava12/llx/parser"
	"github.com/ava12/llx/source"

	"github.com/Chandra-mohn/coqu/internal/core/domain"
	"github.com/Chandra-mohn/coqu/internal/logger"
	"github.com/Chandra-mohn/coqu/internal/parser/format"
)

var (
	divisionHeaderRe = regexp.MustCompile(`(?i)^\s*(IDENTIFICATION|ID|ENVIRONMENT|DATA|PROCEDURE)\s+DIVISION`)
	execSpanRe       = regexp.MustCompile(`(?i)\bEXEC\s+(?:SQL|CICS|DLI)\b`)
	execEndRe        = regexp.MustCompile(`(?i)\bEND-EXEC\b`)
)

// Frontend drives full and segment parses.
type Frontend struct {
	// DiagnosticLimit flags the AST degraded when exceeded. Zero means
	// the default of 100.
	DiagnosticLimit int

	// MemoryLimit is the advisory byte ceiling for full parses; 0 means
	// unlimited.
	MemoryLimit int64
}

// New returns a frontend with the given diagnostic threshold.
func New(diagLimit int, memLimit int64) *Frontend {
	if diagLimit <= 0 {
		diagLimit = 100
	}
	return &Frontend{DiagnosticLimit: diagLimit, MemoryLimit: memLimit}
}

// ParseFull parses the entire expanded stream of a program.
func (f *Frontend) ParseFull(name string, expanded []string) (*domain.AST, error) {
	if f.MemoryLimit > 0 {
		var total int64
		for _, l := range expanded {
			total += int64(len(l)) + 1
		}
		if total > f.MemoryLimit {
			return nil, fmt.Errorf("source exceeds memory limit (%d bytes): full parse skipped", f.MemoryLimit)
		}
	}
	return f.parse(name, expanded, 0)
}

// ParseSegment parses a slice of the stream, typically one paragraph or
// section. A synthetic PROCEDURE DIVISION header is prepended when the
// slice does not begin with a division header, so the grammar accepts a
// paragraph body in isolation; positions are mapped back to the slice.
func (f *Frontend) ParseSegment(name string, lines []string) (*domain.AST, error) {
	synthetic := 0
	if len(lines) > 0 && !divisionHeaderRe.MatchString(lines[0]) {
		lines = append([]string{"PROCEDURE DIVISION."}, lines...)
		synthetic = 1
	}
	return f.parse(name, lines, synthetic)
}

// parse runs the grammar with error recovery: an offending line is
// recorded as a diagnostic and blanked, then the parse restarts. The
// AST is flagged degraded beyond the diagnostic threshold.
func (f *Frontend) parse(name string, lines []string, synthetic int) (*domain.AST, error) {
	p, err := grammarParser()
	if err != nil {
		return nil, fmt.Errorf("grammar build: %w", err)
	}

	work := prepare(lines)
	ast := &domain.AST{}

	for attempt := 0; ; attempt++ {
		root, err := runParser(p, name, work)
		if err == nil {
			ast.Root = rebase(root, synthetic)
			break
		}

		diag := toDiagnostic(err)
		ast.Diagnostics = append(ast.Diagnostics, diag)
		if diag.Line <= 0 || diag.Line > len(work) || attempt >= f.DiagnosticLimit {
			// The error cannot be localized to a line, or the retry
			// limit is spent; return what we have.
			ast.Degraded = true
			logger.Debug("frontend: giving up after %d diagnostics", len(ast.Diagnostics))
			break
		}
		logger.Debug("frontend: diagnostic at %s:%d:%d, retrying", name, diag.Line, diag.Col)
		work[diag.Line-1] = ""
	}

	// Diagnostic lines are shifted back onto the caller's slice as well.
	for i := range ast.Diagnostics {
		if ast.Diagnostics[i].Line > synthetic {
			ast.Diagnostics[i].Line -= synthetic
		}
	}

	if len(ast.Diagnostics) > f.DiagnosticLimit {
		ast.Degraded = true
	}
	return ast, nil
}

// prepare blanks the lines the grammar treats as opaque: comment lines
// and EXEC block bodies (the indexer captured them verbatim already).
// The final sentence gets a terminating period when missing.
func prepare(lines []string) []string {
	work := make([]string, len(lines))
	inExec := false
	for i, line := range lines {
		switch {
		case inExec:
			work[i] = ""
			if execEndRe.MatchString(line) {
				inExec = false
			}
		case format.IsComment(line):
			work[i] = ""
		case execSpanRe.MatchString(line):
			work[i] = ""
			inExec = !execEndRe.MatchString(line)
		default:
			work[i] = line
		}
	}
	for i := len(work) - 1; i >= 0; i-- {
		t := strings.TrimSpace(work[i])
		if t == "" {
			continue
		}
		if !strings.HasSuffix(t, ".") {
			work[i] = work[i] + " ."
		}
		break
	}
	return work
}

func runParser(p *parser.Parser, name string, lines []string) (*domain.Node, error) {
	text := strings.Join(lines, "\n")
	q := source.NewQueue().Append(source.New(name, []byte(text)))
	hooks := &parser.Hooks{
		NonTerms: parser.NonTermHooks{
			parser.AnyNonTerm: newNodeBuilder,
		},
	}
	result, err := p.Parse(q, hooks)
	if err != nil {
		return nil, err
	}
	node, _ := result.(*domain.Node)
	return node, nil
}

// toDiagnostic converts a parser error into a diagnostic record. llx
// reports the expected token set in the message text.
func toDiagnostic(err error) domain.Diagnostic {
	if le, ok := err.(*llx.Error); ok {
		return domain.Diagnostic{
			Line:    le.Line,
			Col:     le.Col,
			Message: le.Message,
		}
	}
	return domain.Diagnostic{Message: err.Error()}
}

// rebase strips the synthetic header and shifts positions back onto the
// caller's slice.
func rebase(root *domain.Node, synthetic int) *domain.Node {
	if root == nil || synthetic == 0 {
		return root
	}
	kept := root.Children[:0:0]
	for _, c := range root.Children {
		if c.Start.Line <= synthetic {
			continue
		}
		kept = append(kept, c)
	}
	root.Children = kept
	root.Walk(func(n *domain.Node) bool {
		if n.Start.Line > 0 {
			n.Start.Line -= synthetic
		}
		if n.End.Line > 0 {
			n.End.Line -= synthetic
		}
		return true
	})
	return root
}

// --- AST construction hooks ---

// statementVerbs starts a new statement node inside a sentence.
var statementVerbs = map[string]bool{
	"MOVE": true, "PERFORM": true, "CALL": true, "GO": true, "IF": true,
	"ELSE": true, "EVALUATE": true, "WHEN": true, "DISPLAY": true,
	"ACCEPT": true, "COMPUTE": true, "ADD": true, "SUBTRACT": true,
	"MULTIPLY": true, "DIVIDE": true, "STRING": true, "UNSTRING": true,
	"INSPECT": true, "INITIALIZE": true, "SET": true, "OPEN": true,
	"CLOSE": true, "READ": true, "WRITE": true, "REWRITE": true,
	"DELETE": true, "START": true, "STOP": true, "EXIT": true,
	"CONTINUE": true, "RETURN": true, "SEARCH": true, "SORT": true,
	"MERGE": true, "GOBACK": true,
}

type nodeBuilder struct {
	name     string
	children []*domain.Node
}

func newNodeBuilder(nonTerm string, _ *lexer.Token, _ *parser.ParseContext) (parser.NonTermHookInstance, error) {
	return &nodeBuilder{name: nonTerm}, nil
}

func (b *nodeBuilder) HandleNonTerm(_ string, result interface{}) error {
	switch v := result.(type) {
	case *domain.Node:
		if v != nil {
			b.children = append(b.children, v)
		}
	case []*domain.Node:
		b.children = append(b.children, v...)
	}
	return nil
}

func (b *nodeBuilder) HandleToken(token *lexer.Token) error {
	kind := domain.NodeOperator
	switch token.TypeName() {
	case "space", lexer.EofTokenName:
		// Aside and end-of-input tokens carry no structure.
		return nil
	case "word":
		kind = domain.NodeName
	case "string":
		kind = domain.NodeLiteral
	case "number":
		kind = domain.NodeNumber
	}
	text := token.Text()
	b.children = append(b.children, &domain.Node{
		Kind:  kind,
		Text:  text,
		Start: domain.Pos{Line: token.Line(), Col: token.Col()},
		End:   domain.Pos{Line: token.Line(), Col: token.Col() + len(text) - 1},
	})
	return nil
}

func (b *nodeBuilder) EndNonTerm() (interface{}, error) {
	switch b.name {
	case "item":
		if len(b.children) == 1 {
			return b.children[0], nil
		}
		return nil, nil
	case "sentence":
		return b.buildSentence(), nil
	case "program":
		root := &domain.Node{Kind: domain.NodeProgram, Children: b.children}
		setSpan(root)
		return root, nil
	default:
		return b.children, nil
	}
}

// buildSentence groups the sentence's tokens into statement nodes, one
// per leading verb. Tokens before the first verb (a paragraph header
// name, for instance) stay directly under the sentence.
func (b *nodeBuilder) buildSentence() *domain.Node {
	sentence := &domain.Node{Kind: domain.NodeSentence}
	var stmt *domain.Node
	for _, child := range b.children {
		if child.Kind == domain.NodeName && statementVerbs[strings.ToUpper(child.Text)] {
			if stmt != nil {
				setSpan(stmt)
			}
			stmt = &domain.Node{
				Kind:  domain.NodeStatement,
				Name:  strings.ToUpper(child.Text),
				Start: child.Start,
				End:   child.End,
			}
			sentence.Children = append(sentence.Children, stmt)
			continue
		}
		if stmt != nil {
			stmt.Children = append(stmt.Children, child)
		} else {
			sentence.Children = append(sentence.Children, child)
		}
	}
	if stmt != nil {
		setSpan(stmt)
	}
	setSpan(sentence)
	return sentence
}

// setSpan widens a node's span to cover its children.
func setSpan(n *domain.Node) {
	for _, c := range n.Children {
		if n.Start.Line == 0 || c.Start.Line < n.Start.Line ||
			(c.Start.Line == n.Start.Line && c.Start.Col < n.Start.Col) {
			n.Start = c.Start
		}
		if c.End.Line > n.End.Line ||
			(c.End.Line == n.End.Line && c.End.Col > n.End.Col) {
			n.End = c.End
		}
	}
}
