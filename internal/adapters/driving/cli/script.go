package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/Chandra-mohn/coqu/internal/core/domain"
)

// RunScript executes a .coqu script: UTF-8 text, one command per line,
// `#` comments, blank lines ignored. Redirection applies per command.
// The first failing command stops the script.
func (s *Session) RunScript(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrFileAccess, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		quit, err := s.Execute(ctx, scanner.Text())
		if err != nil {
			return fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		if quit {
			return nil
		}
	}
	return scanner.Err()
}
