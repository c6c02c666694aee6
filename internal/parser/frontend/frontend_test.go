package frontend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chandra-mohn/coqu/internal/core/domain"
)

func TestGrammarBuilds(t *testing.T) {
	p, err := grammarParser()
	require.NoError(t, err)
	require.NotNil(t, p)
}

func TestParseSegment_Paragraph(t *testing.T) {
	f := New(0, 0)
	lines := []string{
		"       2100-VALIDATE.",
		"           MOVE SPACES TO WS-FILE-STATUS",
		"           CALL 'AUDITLOG' USING CUSTOMER-RECORD.",
	}
	ast, err := f.ParseSegment("seg", lines)
	require.NoError(t, err)
	require.NotNil(t, ast.Root)
	assert.False(t, ast.Degraded)

	stmts := ast.Root.Statements()
	var verbs []string
	for _, s := range stmts {
		verbs = append(verbs, s.Name)
	}
	assert.Contains(t, verbs, "MOVE")
	assert.Contains(t, verbs, "CALL")

	// Positions refer to the caller's slice, not the synthetic header.
	for _, s := range stmts {
		assert.GreaterOrEqual(t, s.Start.Line, 1)
		assert.LessOrEqual(t, s.Start.Line, len(lines))
	}
}

func TestParseSegment_StatementChildren(t *testing.T) {
	f := New(0, 0)
	ast, err := f.ParseSegment("seg", []string{"           PERFORM 100-STEP THRU 100-EXIT."})
	require.NoError(t, err)
	require.NotNil(t, ast.Root)

	stmts := ast.Root.Statements()
	require.Len(t, stmts, 1)
	assert.Equal(t, "PERFORM", stmts[0].Name)

	var names []string
	for _, c := range stmts[0].Children {
		if c.Kind == domain.NodeName {
			names = append(names, c.Text)
		}
	}
	assert.Equal(t, []string{"100-STEP", "THRU", "100-EXIT"}, names)
}

func TestParseSegment_LiteralChild(t *testing.T) {
	f := New(0, 0)
	ast, err := f.ParseSegment("seg", []string{"           CALL 'AUDITLOG'."})
	require.NoError(t, err)
	stmts := ast.Root.Statements()
	require.Len(t, stmts, 1)
	require.NotEmpty(t, stmts[0].Children)
	assert.Equal(t, domain.NodeLiteral, stmts[0].Children[0].Kind)
	assert.Equal(t, "'AUDITLOG'", stmts[0].Children[0].Text)
}

func TestParseSegment_CommentsAndExecSkipped(t *testing.T) {
	f := New(0, 0)
	lines := []string{
		"      * a comment the grammar never sees",
		"           EXEC SQL",
		"               SELECT 1 FROM SYSIBM.SYSDUMMY1",
		"           END-EXEC.",
		"           MOVE A TO B.",
	}
	ast, err := f.ParseSegment("seg", lines)
	require.NoError(t, err)
	require.NotNil(t, ast.Root)
	assert.Empty(t, ast.Diagnostics)

	stmts := ast.Root.Statements()
	require.Len(t, stmts, 1)
	assert.Equal(t, "MOVE", stmts[0].Name)
}

func TestParseSegment_MissingFinalPeriod(t *testing.T) {
	f := New(0, 0)
	ast, err := f.ParseSegment("seg", []string{"           MOVE A TO B"})
	require.NoError(t, err)
	require.NotNil(t, ast.Root)
	require.Len(t, ast.Root.Statements(), 1)
}

func TestParseSegment_RecoversFromBadLine(t *testing.T) {
	f := New(0, 0)
	lines := []string{
		"           MOVE A TO B.",
		"           ~~~ @@@ ~~~",
		"           MOVE C TO D.",
	}
	ast, err := f.ParseSegment("seg", lines)
	require.NoError(t, err)
	require.NotNil(t, ast.Root)
	assert.NotEmpty(t, ast.Diagnostics)

	var verbs []string
	for _, s := range ast.Root.Statements() {
		verbs = append(verbs, s.Name)
	}
	assert.Contains(t, verbs, "MOVE")
}

func TestParseFull_MemoryLimit(t *testing.T) {
	f := New(0, 16)
	_, err := f.ParseFull("big", []string{"           MOVE A TO B.", "           MOVE C TO D."})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "memory limit")
}

func TestParseFull_WholeProgram(t *testing.T) {
	f := New(0, 0)
	lines := []string{
		"       IDENTIFICATION DIVISION.",
		"       PROGRAM-ID. T.",
		"       PROCEDURE DIVISION.",
		"       MAIN-PARA.",
		"           PERFORM SUB-PARA",
		"           STOP RUN.",
		"       SUB-PARA.",
		"           DISPLAY 'HI'.",
	}
	ast, err := f.ParseFull("t.cbl", lines)
	require.NoError(t, err)
	require.NotNil(t, ast.Root)
	assert.Equal(t, domain.NodeProgram, ast.Root.Kind)
	assert.NotEmpty(t, ast.Root.Statements())
}
