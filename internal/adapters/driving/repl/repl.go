// Package repl is the interactive prompt. It is a thin collaborator of
// the core: every line is handed to the session executor, and the only
// state the REPL owns is the on-disk command history.
package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/Chandra-mohn/coqu/internal/core/domain"
)

// Options configures one REPL run.
type Options struct {
	// Execute runs a command line; it returns true when the session
	// should end.
	Execute func(ctx context.Context, line string) (quit bool, err error)

	// History returns the session history for persistence.
	History func() []string

	// HistoryFile is the persisted history location; HistorySize caps
	// the retained lines.
	HistoryFile string
	HistorySize int

	// Highlight enables styled prompts and errors on terminals.
	Highlight bool
}

var (
	promptStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

// Run drives the prompt until /quit or EOF.
func Run(ctx context.Context, opts Options) error {
	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	styled := opts.Highlight && interactive

	if interactive {
		fmt.Println("coqu - COBOL query. /help for commands, /quit to exit.")
	}

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		if err := ctx.Err(); err != nil {
			saveHistory(opts)
			return fmt.Errorf("%w: %v", domain.ErrInterrupted, err)
		}
		if interactive {
			prompt := "coqu> "
			if styled {
				prompt = promptStyle.Render("coqu>") + " "
			}
			fmt.Print(prompt)
		}
		if !scanner.Scan() {
			break
		}

		quit, err := opts.Execute(ctx, scanner.Text())
		if err != nil {
			if errors.Is(err, domain.ErrInterrupted) {
				saveHistory(opts)
				return err
			}
			printError(styled, err)
		}
		if quit {
			break
		}
	}

	saveHistory(opts)
	if err := scanner.Err(); err != nil && err != io.EOF {
		return err
	}
	return nil
}

func printError(styled bool, err error) {
	msg := fmt.Sprintf("Error: %v", err)
	if styled {
		if errors.Is(err, domain.ErrUsage) {
			msg = warningStyle.Render(msg)
		} else {
			msg = errorStyle.Render(msg)
		}
	}
	fmt.Fprintln(os.Stderr, msg)
}

// saveHistory appends this session's commands, trimming the file to the
// configured size.
func saveHistory(opts Options) {
	if opts.HistoryFile == "" || opts.History == nil {
		return
	}
	session := opts.History()
	if len(session) == 0 {
		return
	}

	var lines []string
	if data, err := os.ReadFile(opts.HistoryFile); err == nil {
		for _, l := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
			if l != "" {
				lines = append(lines, l)
			}
		}
	}
	lines = append(lines, session...)
	if opts.HistorySize > 0 && len(lines) > opts.HistorySize {
		lines = lines[len(lines)-opts.HistorySize:]
	}
	os.WriteFile(opts.HistoryFile, []byte(strings.Join(lines, "\n")+"\n"), 0o600)
}
