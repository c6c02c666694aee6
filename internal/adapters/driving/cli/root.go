package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/Chandra-mohn/coqu/internal/adapters/driving/repl"
	"github.com/Chandra-mohn/coqu/internal/core/domain"
)

// Exit codes for one-shot and script modes.
const (
	ExitOK          = 0
	ExitUsage       = 2
	ExitLoadError   = 3
	ExitQueryError  = 4
	ExitInterrupted = 130
)

var (
	flagConfig    string
	flagExec      string
	flagScript    string
	flagCopyPaths []string
	flagDebug     bool
	flagNoCache   bool
	flagParseMode string
)

var rootCmd = &cobra.Command{
	Use:   "coqu [file ...]",
	Short: "Query large COBOL programs interactively or from scripts",
	Long: `coqu indexes COBOL sources (including 2M+ line programs) and answers
structural and semantic questions about them: divisions, sections,
paragraphs, data items, CALL/PERFORM/MOVE edges, copybook usage.

With no --exec or --script, coqu loads the given files and starts the
interactive prompt.`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringVar(&flagConfig, "config", "", "configuration file (overrides COQU_CONFIG)")
	rootCmd.Flags().StringVarP(&flagExec, "exec", "e", "", "execute a single command and exit")
	rootCmd.Flags().StringVarP(&flagScript, "script", "s", "", "execute a .coqu script and exit")
	rootCmd.Flags().StringArrayVar(&flagCopyPaths, "copybook-path", nil, "additional copybook search root (repeatable)")
	rootCmd.Flags().BoolVar(&flagDebug, "debug", false, "enable debug diagnostics")
	rootCmd.Flags().BoolVar(&flagNoCache, "no-cache", false, "disable the AST cache")
	rootCmd.Flags().StringVar(&flagParseMode, "parse-mode", "", "auto, full, or index-only")
}

func run(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.ws.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	session := NewSession(a, cmd.OutOrStdout())

	for _, path := range args {
		if err := session.load(ctx, path, cmd.OutOrStdout()); err != nil {
			return err
		}
	}

	switch {
	case flagExec != "":
		_, err := session.Execute(ctx, flagExec)
		return err
	case flagScript != "":
		return session.RunScript(ctx, flagScript)
	default:
		return repl.Run(ctx, repl.Options{
			Execute:     session.Execute,
			History:     session.History,
			HistoryFile: a.historyFile,
			HistorySize: a.historySize,
			Highlight:   a.highlight,
		})
	}
}

// Execute runs the root command and maps errors to exit codes.
func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return ExitOK
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	switch {
	case errors.Is(err, domain.ErrInterrupted):
		return ExitInterrupted
	case errors.Is(err, domain.ErrUsage):
		return ExitUsage
	case errors.Is(err, domain.ErrFileAccess), errors.Is(err, domain.ErrDecoding),
		errors.Is(err, domain.ErrNotLoaded):
		return ExitLoadError
	case errors.Is(err, domain.ErrQuery):
		return ExitQueryError
	default:
		return ExitQueryError
	}
}
