package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Chandra-mohn/coqu/internal/core/domain"
)

// Session executes command lines against the core. The REPL, the
// one-shot mode, and scripts all run through it.
type Session struct {
	app *app
	out io.Writer

	history []string
}

// NewSession creates a session writing to out.
func NewSession(a *app, out io.Writer) *Session {
	return &Session{app: a, out: out}
}

// Execute runs one command line. quit is set by /quit and friends; the
// returned error carries the domain kind for exit-code mapping.
func (s *Session) Execute(ctx context.Context, line string) (quit bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return false, nil
	}
	s.history = append(s.history, line)
	if len(s.history) > s.app.historySize {
		s.history = s.history[len(s.history)-s.app.historySize:]
	}

	tokens, err := tokenize(line)
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrUsage, err)
	}
	tokens, redirect, err := splitRedirect(tokens)
	if err != nil {
		return false, err
	}

	out := s.out
	if redirect != nil {
		f, ferr := redirect.open()
		if ferr != nil {
			return false, fmt.Errorf("%w: %v", domain.ErrFileAccess, ferr)
		}
		defer f.Close()
		out = f
	}

	if strings.HasPrefix(tokens[0], "@") {
		script := strings.TrimPrefix(tokens[0], "@")
		return false, s.RunScript(ctx, script)
	}
	if strings.HasPrefix(tokens[0], "/") {
		return s.meta(ctx, tokens, out)
	}

	res := s.app.engine.Execute(tokens)
	if res.Err != nil {
		if errors.Is(res.Err, domain.ErrUsage) {
			return false, res.Err
		}
		return false, fmt.Errorf("%w: %v", domain.ErrQuery, res.Err)
	}
	render(out, res)
	return false, nil
}

// History returns the commands executed this session.
func (s *Session) History() []string {
	return append([]string(nil), s.history...)
}

// tokenize splits a command line, honoring single and double quotes.
func tokenize(line string) ([]string, error) {
	var tokens []string
	var cur strings.Builder
	inQuote := byte(0)
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case inQuote != 0:
			if c == inQuote {
				inQuote = 0
			} else {
				cur.WriteByte(c)
			}
		case c == '\'' || c == '"':
			inQuote = c
		case c == ' ' || c == '\t':
			flush()
		case c == '#' && cur.Len() == 0:
			// Comment to end of line.
			flush()
			return tokens, nil
		default:
			cur.WriteByte(c)
		}
	}
	if inQuote != 0 {
		return nil, fmt.Errorf("unclosed quote")
	}
	flush()
	return tokens, nil
}

// redirection captures a trailing "> file" or ">> file".
type redirection struct {
	path   string
	append bool
}

func (r *redirection) open() (*os.File, error) {
	flags := os.O_WRONLY | os.O_CREATE
	if r.append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	return os.OpenFile(r.path, flags, 0o644)
}

// splitRedirect strips the redirection tokens off the command.
func splitRedirect(tokens []string) ([]string, *redirection, error) {
	for i, tok := range tokens {
		if tok != ">" && tok != ">>" {
			continue
		}
		if i+1 >= len(tokens) {
			return nil, nil, fmt.Errorf("%w: %s needs a file", domain.ErrUsage, tok)
		}
		return tokens[:i], &redirection{path: tokens[i+1], append: tok == ">>"}, nil
	}
	return tokens, nil, nil
}
