package frontend

import (
	"sync"

	"github.com/ava12/llx/langdef"
	"github.com/ava12/llx/parser"
)

// The grammar recognizes COBOL sentence structure: runs of words,
// literals, numbers, and operator characters terminated by a separator
// period. Statement classification happens in the frontend from the
// token stream, so the grammar stays dialect-agnostic. Token order
// matters: decimal numbers must win over words so a mid-line "3.14"
// does not end a sentence.
const grammarText = `
$space = /[ \r\n\t]+/;
$string = /(?:"[^"\n]*")|(?:'[^'\n]*')/;
$number = /\d+\.\d+/;
$word = /[A-Za-z0-9][A-Za-z0-9-]*/;
$dot = /\./;
$op = /[(),;:<>=*+\/&-]/;

!aside $space;

program = {sentence};
sentence = {item}, $dot;
item = $word | $string | $number | $op;
`

var (
	buildOnce  sync.Once
	sharedP    *parser.Parser
	buildError error
)

// grammarParser compiles the grammar once and returns the shared parser.
// The grammar text is static, so a build failure is a programming error
// surfaced on first use.
func grammarParser() (*parser.Parser, error) {
	buildOnce.Do(func() {
		g, err := langdef.ParseString("cobol", grammarText)
		if err != nil {
			buildError = err
			return
		}
		sharedP = parser.New(g)
	})
	return sharedP, buildError
}
