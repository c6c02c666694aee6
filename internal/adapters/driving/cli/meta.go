package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/Chandra-mohn/coqu/internal/core/domain"
)

// meta dispatches the /-prefixed workspace and settings commands.
func (s *Session) meta(ctx context.Context, tokens []string, out io.Writer) (bool, error) {
	cmd := strings.TrimPrefix(strings.ToLower(tokens[0]), "/")
	args := tokens[1:]

	switch cmd {
	case "quit", "exit", "q":
		fmt.Fprintln(out, "Goodbye.")
		return true, nil

	case "load":
		if len(args) == 0 {
			return false, fmt.Errorf("%w: usage: /load <path|glob>", domain.ErrUsage)
		}
		return false, s.load(ctx, args[0], out)

	case "loaddir":
		if len(args) == 0 {
			return false, fmt.Errorf("%w: usage: /loaddir <dir>", domain.ErrUsage)
		}
		progs, errs := s.app.ws.LoadDir(ctx, args[0])
		s.reportLoads(out, progs, errs)
		if len(progs) == 0 && len(errs) > 0 {
			return false, fmt.Errorf("%w: %v", domain.ErrFileAccess, errs[0])
		}
		return false, nil

	case "unload":
		if len(args) == 0 {
			return false, fmt.Errorf("%w: usage: /unload <name|all>", domain.ErrUsage)
		}
		if strings.EqualFold(args[0], "all") {
			n := s.app.ws.UnloadAll()
			fmt.Fprintf(out, "Unloaded %d programs\n", n)
			return false, nil
		}
		if err := s.app.ws.Unload(args[0]); err != nil {
			return false, err
		}
		fmt.Fprintf(out, "Unloaded %s\n", strings.ToUpper(args[0]))
		return false, nil

	case "reload":
		if len(args) > 0 {
			prog, err := s.app.ws.Reload(ctx, args[0])
			if err != nil {
				return false, err
			}
			fmt.Fprintf(out, "Reloaded %s (%s)\n", prog.Name, prog.ParseTime.Round(timeUnit))
			return false, nil
		}
		progs, errs := s.app.ws.ReloadAll(ctx)
		fmt.Fprintf(out, "Reloaded %d programs\n", len(progs))
		for _, err := range errs {
			fmt.Fprintf(out, "  error: %v\n", err)
		}
		return false, nil

	case "list":
		return false, s.list(out, false)

	case "workspace":
		return false, s.list(out, hasFlag(args, "--verbose"))

	case "copypath":
		if len(args) == 0 {
			return false, fmt.Errorf("%w: usage: /copypath <path>", domain.ErrUsage)
		}
		if err := s.app.ws.AddCopyPath(args[0]); err != nil {
			return false, err
		}
		fmt.Fprintf(out, "Added copybook path: %s\n", args[0])
		return false, nil

	case "copylib":
		if hasFlag(args, "--clear") {
			s.app.ws.ClearCopyPaths()
			fmt.Fprintln(out, "Cleared copybook paths")
			return false, nil
		}
		paths := s.app.ws.CopyPaths()
		if len(paths) == 0 {
			fmt.Fprintln(out, "No copybook paths configured")
			return false, nil
		}
		fmt.Fprintln(out, "Copybook paths:")
		for _, p := range paths {
			fmt.Fprintf(out, "  %s\n", p)
		}
		return false, nil

	case "cache":
		return false, s.cacheCmd(ctx, args, out)

	case "set":
		return false, s.setCmd(args, out)

	case "help":
		topic := ""
		if len(args) > 0 {
			topic = args[0]
		}
		s.help(out, topic)
		return false, nil

	case "history":
		for i, line := range s.history {
			fmt.Fprintf(out, "%4d  %s\n", i+1, line)
		}
		return false, nil

	case "run":
		if len(args) == 0 {
			return false, fmt.Errorf("%w: usage: /run <script>", domain.ErrUsage)
		}
		return false, s.RunScript(ctx, args[0])

	default:
		return false, fmt.Errorf("%w: unknown command /%s", domain.ErrUsage, cmd)
	}
}

// load handles a single path or a glob pattern.
func (s *Session) load(ctx context.Context, pattern string, out io.Writer) error {
	if strings.ContainsAny(pattern, "*?[") {
		progs, errs := s.app.ws.LoadGlob(ctx, pattern)
		s.reportLoads(out, progs, errs)
		if len(progs) == 0 && len(errs) > 0 {
			return fmt.Errorf("%w: %v", domain.ErrFileAccess, errs[0])
		}
		return nil
	}
	prog, err := s.app.ws.Load(ctx, pattern, false)
	if err != nil {
		return err
	}
	s.reportLoads(out, []*domain.Program{prog}, nil)
	return nil
}

func (s *Session) reportLoads(out io.Writer, progs []*domain.Program, errs []error) {
	for _, p := range progs {
		suffix := fmt.Sprintf("parsed in %s", p.ParseTime.Round(timeUnit))
		if p.FromCache {
			suffix = "from cache"
		}
		fmt.Fprintf(out, "Loaded %s: %s (%d lines, %s)\n", p.Name, p.ProgramID(), p.Lines, suffix)
		for _, w := range p.Warnings {
			fmt.Fprintf(out, "  warning: %s\n", w)
		}
	}
	for _, err := range errs {
		fmt.Fprintf(out, "  error: %v\n", err)
	}
}

func (s *Session) list(out io.Writer, verbose bool) error {
	summaries := s.app.ws.List()
	if len(summaries) == 0 {
		fmt.Fprintln(out, "No programs loaded")
		return nil
	}
	fmt.Fprintln(out, "Loaded programs:")
	total := 0
	for _, sum := range summaries {
		flags := ""
		if sum.FromCache {
			flags += " (cached)"
		}
		if sum.Stale {
			flags += " (stale)"
		}
		fmt.Fprintf(out, "  %s: %s (%d lines)%s\n", sum.Name, sum.ProgramID, sum.Lines, flags)
		if verbose {
			fmt.Fprintf(out, "    Path: %s\n", sum.Path)
			fmt.Fprintf(out, "    Format: %s\n", sum.Format)
			fmt.Fprintf(out, "    Load time: %s\n", sum.ParseTime.Round(timeUnit))
			if sum.Warnings > 0 {
				fmt.Fprintf(out, "    Warnings: %d\n", sum.Warnings)
			}
		}
		total += sum.Lines
	}
	fmt.Fprintf(out, "\nTotal: %d programs, %d lines", len(summaries), total)
	if verbose {
		fmt.Fprintf(out, ", phase %s", s.app.ws.Phase())
	}
	fmt.Fprintln(out)
	return nil
}

func (s *Session) cacheCmd(ctx context.Context, args []string, out io.Writer) error {
	sub := "status"
	if len(args) > 0 {
		sub = strings.ToLower(args[0])
	}
	switch sub {
	case "status":
		stats, err := s.app.ws.CacheStats()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "Cache:")
		fmt.Fprintf(out, "  Files: %d\n", stats.Files)
		fmt.Fprintf(out, "  Size: %s\n", humanize.Bytes(uint64(stats.TotalBytes)))
		fmt.Fprintf(out, "  Hits: %d, misses: %d, saves: %d\n", stats.Hits, stats.Misses, stats.Saves)
		return nil
	case "clear":
		name := ""
		if len(args) > 1 {
			name = args[1]
		}
		n, err := s.app.ws.CacheClear(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Removed %d cache entries\n", n)
		return nil
	case "rebuild":
		progs, errs := s.app.ws.CacheRebuild(ctx)
		fmt.Fprintf(out, "Rebuilt %d programs\n", len(progs))
		for _, err := range errs {
			fmt.Fprintf(out, "  error: %v\n", err)
		}
		return nil
	default:
		return fmt.Errorf("%w: usage: /cache status|clear [<name>]|rebuild", domain.ErrUsage)
	}
}

func (s *Session) setCmd(args []string, out io.Writer) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: usage: /set debug on|off | /set parse-mode auto|full|index-only", domain.ErrUsage)
	}
	switch strings.ToLower(args[0]) {
	case "debug":
		on := strings.EqualFold(args[1], "on")
		if !on && !strings.EqualFold(args[1], "off") {
			return fmt.Errorf("%w: /set debug on|off", domain.ErrUsage)
		}
		s.app.ws.SetDebug(on)
		fmt.Fprintf(out, "Debug %s\n", args[1])
		return nil
	case "parse-mode":
		if err := s.app.ws.SetParseMode(domain.ParseMode(strings.ToLower(args[1]))); err != nil {
			return err
		}
		fmt.Fprintf(out, "Parse mode: %s\n", strings.ToLower(args[1]))
		return nil
	default:
		return fmt.Errorf("%w: unknown setting %q", domain.ErrUsage, args[0])
	}
}

func (s *Session) help(out io.Writer, topic string) {
	if topic != "" && !strings.HasPrefix(topic, "/") {
		fmt.Fprintln(out, s.app.engine.Help(strings.TrimPrefix(topic, "/")))
		return
	}
	fmt.Fprintln(out, "coqu - COBOL query")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Workspace commands:")
	for _, line := range []string{
		"/load <path|glob>      Load COBOL source",
		"/loaddir <dir>         Load every source in a directory",
		"/unload <name|all>     Remove programs from the workspace",
		"/reload [<name>]       Rebuild bypassing the cache",
		"/list                  List loaded programs",
		"/workspace [--verbose] Workspace details",
		"/copypath <path>       Add a copybook search root",
		"/copylib --list|--clear  Manage copybook roots",
		"/cache status|clear [<name>]|rebuild  Cache maintenance",
		"/set debug on|off      Toggle diagnostics",
		"/set parse-mode auto|full|index-only  Full-parse policy",
		"/run <script>          Execute a .coqu script (alias @<script>)",
		"/history               Show session history",
		"/help [<cmd>]          This help",
		"/quit                  Exit (aliases /exit, /q)",
	} {
		fmt.Fprintf(out, "  %s\n", line)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, s.app.engine.Help(""))
}

func hasFlag(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}
