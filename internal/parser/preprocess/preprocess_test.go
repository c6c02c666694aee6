package preprocess

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chandra-mohn/coqu/internal/core/domain"
)

// fakeResolver serves copybooks from memory.
type fakeResolver struct {
	books map[string][]string
}

func (f *fakeResolver) Resolve(name, library string) (string, bool) {
	key := strings.ToLower(name)
	if _, ok := f.books[key]; ok {
		return "/copy/" + key + ".cpy", true
	}
	return "", false
}

func (f *fakeResolver) Read(path string) ([]string, error) {
	key := strings.TrimSuffix(strings.TrimPrefix(path, "/copy/"), ".cpy")
	book, ok := f.books[key]
	if !ok {
		return nil, fmt.Errorf("no such copybook: %s", path)
	}
	return book, nil
}

func (f *fakeResolver) Paths() []string { return []string{"/copy"} }

func TestRun_ResolvedCopyExpands(t *testing.T) {
	resolver := &fakeResolver{books: map[string][]string{
		"payrec": {
			"       01  PAY-RECORD.",
			"           05  PAY-AMOUNT    PIC 9(7)V99.",
		},
	}}
	src := []string{
		"       WORKING-STORAGE SECTION.",
		"       COPY PAYREC.",
		"       01  WS-DONE    PIC X.",
	}

	res := New(resolver).Run("main.cbl", src)

	require.Len(t, res.Copies, 1)
	assert.Equal(t, domain.CopyResolved, res.Copies[0].Status)
	assert.Equal(t, "/copy/payrec.cpy", res.Copies[0].ResolvedPath)
	assert.Equal(t, 2, res.Copies[0].Line)
	assert.Empty(t, res.Warnings)

	joined := strings.Join(res.Lines, "\n")
	assert.Contains(t, joined, "PAY-AMOUNT")
	assert.NotContains(t, joined, "COPY PAYREC")

	// Origin map: expanded copybook lines point at the copybook file,
	// everything else at the root source.
	assert.Equal(t, domain.Origin{File: "main.cbl", Line: 1}, res.Origins.Resolve(1))
	assert.Equal(t, domain.Origin{File: "/copy/payrec.cpy", Line: 1}, res.Origins.Resolve(2))
	assert.Equal(t, domain.Origin{File: "main.cbl", Line: 3}, res.Origins.Resolve(4))
	assert.Equal(t, len(res.Lines), res.Origins.Len())
}

func TestRun_UnresolvedCopyPlaceholder(t *testing.T) {
	src := []string{
		"       WORKING-STORAGE SECTION.",
		"       COPY DATEUTIL.",
		"       01  WS-X    PIC X.",
	}

	res := New(&fakeResolver{}).Run("main.cbl", src)

	require.Len(t, res.Copies, 1)
	assert.Equal(t, domain.CopyUnresolved, res.Copies[0].Status)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "DATEUTIL")
	assert.Contains(t, res.Warnings[0], "line 2")

	// The directive became a single placeholder comment, keeping line
	// anchoring intact.
	require.Len(t, res.Lines, 3)
	assert.Contains(t, res.Lines[1], "COPY DATEUTIL")
	assert.True(t, strings.HasPrefix(strings.TrimSpace(res.Lines[1]), "*"))
	assert.Equal(t, domain.Origin{File: "main.cbl", Line: 3}, res.Origins.Resolve(3))
}

func TestRun_CyclicCopySkipped(t *testing.T) {
	resolver := &fakeResolver{books: map[string][]string{
		"cyc": {
			"       01  CYC-FIELD    PIC X.",
			"       COPY CYC.",
		},
	}}
	src := []string{"       COPY CYC."}

	res := New(resolver).Run("main.cbl", src)

	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "cyclic COPY CYC")
	// One expansion happened, the cycle edge did not.
	joined := strings.Join(res.Lines, "\n")
	assert.Equal(t, 1, strings.Count(joined, "CYC-FIELD"))
}

func TestRun_NestedCopy(t *testing.T) {
	resolver := &fakeResolver{books: map[string][]string{
		"outer": {"       COPY INNER."},
		"inner": {"       01  INNER-FIELD    PIC X."},
	}}
	src := []string{"       COPY OUTER."}

	res := New(resolver).Run("main.cbl", src)

	assert.Empty(t, res.Warnings)
	assert.Contains(t, strings.Join(res.Lines, "\n"), "INNER-FIELD")
	// Only the root directive is recorded against the root source.
	require.Len(t, res.Copies, 1)
	assert.Equal(t, "OUTER", res.Copies[0].Name)
}

func TestRun_ReplacingPseudoText(t *testing.T) {
	resolver := &fakeResolver{books: map[string][]string{
		"rec": {"       01  OLD-NAME    PIC X(10)."},
	}}
	src := []string{"       COPY REC REPLACING ==OLD-NAME== BY ==NEW-NAME==."}

	res := New(resolver).Run("main.cbl", src)

	joined := strings.Join(res.Lines, "\n")
	assert.Contains(t, joined, "NEW-NAME")
	assert.NotContains(t, joined, "OLD-NAME")
}

func TestRun_ReplacingPartialWord(t *testing.T) {
	resolver := &fakeResolver{books: map[string][]string{
		"generic": {
			"       01  :TAG:-COUNT    PIC 9(4).",
			"       01  :TAG:-TOTAL    PIC 9(8).",
		},
	}}
	src := []string{"       COPY GENERIC REPLACING ==:TAG:== BY ==WS==."}

	res := New(resolver).Run("main.cbl", src)

	joined := strings.Join(res.Lines, "\n")
	assert.Contains(t, joined, "WS-COUNT")
	assert.Contains(t, joined, "WS-TOTAL")
	assert.NotContains(t, joined, ":TAG:")
}

func TestRun_ReplacingWhitespaceInsensitive(t *testing.T) {
	resolver := &fakeResolver{books: map[string][]string{
		"rec": {"       MOVE  A   TO B."},
	}}
	src := []string{"       COPY REC REPLACING ==MOVE A TO B== BY ==CONTINUE==."}

	res := New(resolver).Run("main.cbl", src)
	assert.Contains(t, strings.Join(res.Lines, "\n"), "CONTINUE")
}

func TestRun_ReplaceDirective(t *testing.T) {
	src := []string{
		"       REPLACE ==WS-OLD== BY ==WS-NEW==.",
		"       MOVE WS-OLD TO WS-TARGET.",
		"       REPLACE OFF.",
		"       MOVE WS-OLD TO WS-TARGET.",
	}

	res := New(&fakeResolver{}).Run("main.cbl", src)

	require.Len(t, res.Lines, 4)
	assert.Contains(t, res.Lines[1], "WS-NEW")
	assert.NotContains(t, res.Lines[1], "WS-OLD")
	// After REPLACE OFF the table no longer applies.
	assert.Contains(t, res.Lines[3], "WS-OLD")
}

func TestRun_ExecBlockPassesThrough(t *testing.T) {
	resolver := &fakeResolver{books: map[string][]string{
		"x": {"       01  X    PIC X."},
	}}
	src := []string{
		"           EXEC SQL",
		"               SELECT NAME INTO :WS-NAME FROM COPY",
		"           END-EXEC.",
		"       COPY X.",
	}

	res := New(resolver).Run("main.cbl", src)

	// The COPY-looking text inside the EXEC body is untouched.
	assert.Contains(t, res.Lines[1], "FROM COPY")
	assert.Contains(t, strings.Join(res.Lines, "\n"), "01  X")
}

func TestRun_Deterministic(t *testing.T) {
	resolver := &fakeResolver{books: map[string][]string{
		"payrec": {"       01  PAY-RECORD    PIC X(80)."},
	}}
	src := []string{
		"       WORKING-STORAGE SECTION.",
		"       COPY PAYREC.",
		"       COPY MISSING.",
	}

	a := New(resolver).Run("main.cbl", src)
	b := New(resolver).Run("main.cbl", src)
	assert.Equal(t, a.Lines, b.Lines)
	assert.Equal(t, a.Origins, b.Origins)
	assert.Equal(t, a.Copies, b.Copies)
	assert.Equal(t, a.Warnings, b.Warnings)
}
