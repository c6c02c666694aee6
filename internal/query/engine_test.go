package query

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chandra-mohn/coqu/internal/core/domain"
	"github.com/Chandra-mohn/coqu/internal/core/ports/driving"
	"github.com/Chandra-mohn/coqu/internal/core/services"
)

func fixture(name string) string {
	return filepath.Join("..", "..", "testdata", name)
}

func engineWith(t *testing.T, fixtures ...string) *Engine {
	t.Helper()
	ws := services.NewWorkspace(domain.DefaultSettings(), nil)
	t.Cleanup(ws.Close)
	for _, f := range fixtures {
		_, err := ws.Load(context.Background(), fixture(f), false)
		require.NoError(t, err)
	}
	return New(ws)
}

func names(res driving.Result) []string {
	out := make([]string, len(res.Items))
	for i, item := range res.Items {
		out[i] = item.Name
	}
	return out
}

func fieldValues(item driving.Item, key string) []string {
	var out []string
	for _, f := range item.Fields {
		if f.Key == key {
			out = append(out, f.Value)
		}
	}
	return out
}

func TestExecute_Divisions(t *testing.T) {
	e := engineWith(t, "sample.cbl")
	res := e.Execute([]string{"divisions"})

	require.NoError(t, res.Err)
	assert.Equal(t, []string{
		"IDENTIFICATION DIVISION", "ENVIRONMENT DIVISION",
		"DATA DIVISION", "PROCEDURE DIVISION",
	}, names(res))
	assert.Equal(t, "1", firstLine(res.Items[0].Location))
}

// firstLine pulls the starting line out of a location string.
func firstLine(loc string) string {
	loc = strings.TrimPrefix(loc, "lines ")
	loc = strings.TrimPrefix(loc, "line ")
	if i := strings.Index(loc, "-"); i >= 0 {
		return loc[:i]
	}
	return loc
}

func TestExecute_Paragraphs(t *testing.T) {
	e := engineWith(t, "sample.cbl")
	res := e.Execute([]string{"paragraphs"})

	require.NoError(t, res.Err)
	assert.Equal(t, []string{
		"0000-MAIN-PARA", "1000-INIT-PARA", "1100-READ-FIRST",
		"2000-PROCESS-PARA", "2100-VALIDATE", "2200-UPDATE",
		"3000-CLEANUP-PARA",
	}, names(res))
}

func TestExecute_ParagraphAnalyze(t *testing.T) {
	e := engineWith(t, "sample.cbl")
	res := e.Execute([]string{"paragraph", "2100-VALIDATE", "--analyze"})

	require.NoError(t, res.Err)
	require.Len(t, res.Items, 1)
	item := res.Items[0]
	assert.Equal(t, []string{"AUDITLOG (line 55)"}, fieldValues(item, "call-literal"))
	assert.Empty(t, fieldValues(item, "perform"))
	assert.Empty(t, fieldValues(item, "perform-thru"))
}

func TestExecute_CallsExternal(t *testing.T) {
	e := engineWith(t, "caller.cbl")
	res := e.Execute([]string{"calls", "--external"})

	require.NoError(t, res.Err)
	require.Len(t, res.Items, 2)
	assert.Equal(t, []string{"SAMPLE", "UTILITY"}, names(res))
	assert.Equal(t, "line 14", res.Items[0].Location)
	assert.Equal(t, "line 16", res.Items[1].Location)
}

func TestExecute_FindMoves(t *testing.T) {
	e := engineWith(t, "sample.cbl")
	res := e.Execute([]string{"find", `MOVE\s+SPACES\s+TO`})

	require.NoError(t, res.Err)
	require.Len(t, res.Items, 3)
	// Hits come back in source order with original line numbers.
	lines := make([]string, len(res.Items))
	for i, item := range res.Items {
		lines[i] = item.Location
	}
	assert.Equal(t, []string{"line 39", "line 53", "line 62"}, lines)
}

func TestExecute_FindSubsetOfNaiveScan(t *testing.T) {
	e := engineWith(t, "sample.cbl")
	res := e.Execute([]string{"find", "CUSTOMER-FILE"})
	require.NoError(t, res.Err)
	assert.NotEmpty(t, res.Items)
	// Every reported line really matches.
	ws := services.NewWorkspace(domain.DefaultSettings(), nil)
	t.Cleanup(ws.Close)
	prog, err := ws.Load(context.Background(), fixture("sample.cbl"), false)
	require.NoError(t, err)
	for _, item := range res.Items {
		n, serr := strconv.Atoi(firstLine(item.Location))
		require.NoError(t, serr)
		assert.Contains(t, strings.ToUpper(prog.Source[n-1]), "CUSTOMER-FILE")
	}
}

func TestExecute_WorkingStorage(t *testing.T) {
	e := engineWith(t, "sample.cbl")
	res := e.Execute([]string{"working-storage"})
	require.NoError(t, res.Err)
	assert.Contains(t, names(res), "WS-FILE-STATUS")
	assert.Contains(t, names(res), "WS-EOF")

	res = e.Execute([]string{"working-storage", "--level", "1"})
	require.NoError(t, res.Err)
	for _, item := range res.Items {
		assert.Equal(t, []string{"01"}, fieldValues(item, "Level"))
	}
}

func TestExecute_Copybooks(t *testing.T) {
	e := engineWith(t, "sample.cbl")
	res := e.Execute([]string{"copybooks"})

	require.NoError(t, res.Err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "DATEUTIL", res.Items[0].Name)
	assert.Equal(t, []string{"Unresolved"}, fieldValues(res.Items[0], "Status"))
}

func TestExecute_WhereUsed(t *testing.T) {
	e := engineWith(t, "sample.cbl")
	res := e.Execute([]string{"where-used", "DATEUTIL"})
	require.NoError(t, res.Err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "SAMPLE", res.Items[0].Name)
}

func TestExecute_CopybookDepsDot(t *testing.T) {
	e := engineWith(t, "sample.cbl")
	res := e.Execute([]string{"copybook-deps", "--format", "dot"})
	require.NoError(t, res.Err)
	assert.Contains(t, res.Message, "digraph copybooks")
	assert.Contains(t, res.Message, `"SAMPLE" -> "DATEUTIL"`)
}

func TestExecute_SectionWithoutParagraphs(t *testing.T) {
	e := engineWith(t, "sample.cbl")
	// WORKING-STORAGE has no paragraphs; asking for them is an empty
	// result, not an error.
	res := e.Execute([]string{"paragraphs", "--section", "WORKING-STORAGE"})
	require.NoError(t, res.Err)
	assert.Empty(t, res.Items)
}

func TestExecute_UnknownCommand(t *testing.T) {
	e := engineWith(t, "sample.cbl")
	res := e.Execute([]string{"frobnicate"})
	require.Error(t, res.Err)
	assert.True(t, errors.Is(res.Err, domain.ErrUsage))
}

func TestExecute_QueryMissIsEmptyResult(t *testing.T) {
	e := engineWith(t, "sample.cbl")
	res := e.Execute([]string{"paragraph", "NO-SUCH-PARA"})
	require.NoError(t, res.Err)
	assert.Empty(t, res.Items)
}

func TestExecute_CountModifier(t *testing.T) {
	e := engineWith(t, "sample.cbl")
	res := e.Execute([]string{"paragraphs", "--count"})
	require.NoError(t, res.Err)
	assert.True(t, res.CountOnly)
	assert.Equal(t, 7, res.Count)
}

func TestExecute_Comments(t *testing.T) {
	e := engineWith(t, "sample.cbl")
	res := e.Execute([]string{"comments"})
	require.NoError(t, res.Err)
	assert.NotEmpty(t, res.Items)
}

func TestExecute_Coverage(t *testing.T) {
	e := engineWith(t, "sample.cbl")
	res := e.Execute([]string{"coverage"})
	require.NoError(t, res.Err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "SAMPLE", res.Items[0].Name)
}

func TestExecute_References(t *testing.T) {
	e := engineWith(t, "sample.cbl")
	res := e.Execute([]string{"references", "WS-FILE-STATUS"})
	require.NoError(t, res.Err)
	assert.NotEmpty(t, res.Items)

	writes := e.Execute([]string{"references", "WS-FILE-STATUS", "--writes"})
	require.NoError(t, writes.Err)
	assert.NotEmpty(t, writes.Items)
	assert.LessOrEqual(t, len(writes.Items), len(res.Items))
}

func TestExecute_DivisionBody(t *testing.T) {
	e := engineWith(t, "sample.cbl")
	res := e.Execute([]string{"division", "IDENTIFICATION", "--body", "--line-numbers"})
	require.NoError(t, res.Err)
	require.Len(t, res.Items, 1)
	assert.True(t, res.LineNumbers)
	assert.NotEmpty(t, res.Items[0].Body)
	assert.Equal(t, 1, res.Items[0].BodyStart)
	assert.Contains(t, res.Items[0].Body[0], "IDENTIFICATION DIVISION")
}
