package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/Chandra-mohn/coqu/internal/adapters/driven/cache"
	configfile "github.com/Chandra-mohn/coqu/internal/adapters/driven/config/file"
	"github.com/Chandra-mohn/coqu/internal/core/domain"
	"github.com/Chandra-mohn/coqu/internal/core/ports/driving"
	"github.com/Chandra-mohn/coqu/internal/core/services"
	"github.com/Chandra-mohn/coqu/internal/logger"
	"github.com/Chandra-mohn/coqu/internal/query"
)

// app wires the core for one invocation.
type app struct {
	ws       driving.WorkspaceService
	engine   driving.QueryService
	settings domain.Settings
	stateDir string

	highlight   bool
	historyFile string
	historySize int
}

// stateDir resolves the coqu state directory: COQU_HOME, else ~/.coqu.
func stateDir() string {
	if dir := os.Getenv("COQU_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".coqu"
	}
	return filepath.Join(home, ".coqu")
}

// newApp loads configuration and builds the workspace and query engine.
func newApp() (*app, error) {
	dir := stateDir()

	configPath := os.Getenv("COQU_CONFIG")
	if flagConfig != "" {
		configPath = flagConfig
	}
	store, err := configfile.NewConfigStore(dir, configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	settings := domain.DefaultSettings()
	settings.StateDir = dir

	if mode := store.GetString("general.parse_mode"); mode != "" {
		if m := domain.ParseMode(mode); m.IsValid() {
			settings.ParseMode = m
		}
	}
	if flagParseMode != "" {
		if m := domain.ParseMode(flagParseMode); m.IsValid() {
			settings.ParseMode = m
		} else {
			return nil, fmt.Errorf("%w: parse mode %q", domain.ErrUsage, flagParseMode)
		}
	}

	settings.Debug = store.GetBool("general.debug") ||
		os.Getenv("COQU_DEBUG") == "1" || flagDebug
	logger.SetDebug(settings.Debug)

	if limit := store.GetString("general.memory_limit"); limit != "" {
		if bytes, err := humanize.ParseBytes(limit); err == nil {
			settings.MemoryLimit = int64(bytes)
		} else {
			logger.Warn("config: bad memory_limit %q: %v", limit, err)
		}
	}

	settings.CacheDir = store.GetString("cache.directory")
	if settings.CacheDir == "" {
		settings.CacheDir = filepath.Join(dir, "cache")
	}
	if size := store.GetString("cache.max_size"); size != "" && size != "0" {
		if bytes, err := humanize.ParseBytes(size); err == nil {
			settings.CacheMaxBytes = int64(bytes)
		} else {
			logger.Warn("config: bad cache.max_size %q: %v", size, err)
		}
	}

	settings.CopybookPaths = store.GetStringSlice("copybooks.paths")
	for _, p := range flagCopyPaths {
		settings.CopybookPaths = append(settings.CopybookPaths, p)
	}
	// COQU_COPYLIB appends to the workspace paths; both separators are
	// accepted.
	if env := os.Getenv("COQU_COPYLIB"); env != "" {
		for _, p := range strings.FieldsFunc(env, func(r rune) bool { return r == ':' || r == ';' }) {
			if p != "" {
				settings.CopybookPaths = append(settings.CopybookPaths, p)
			}
		}
	}

	var cacheStore *cache.Store
	if !flagNoCache {
		cacheStore, err = cache.New(settings.CacheDir, Version)
		if err != nil {
			// Cache trouble degrades to uncached operation.
			logger.Warn("cache unavailable: %v", err)
			cacheStore = nil
		}
	}

	var ws *services.Workspace
	if cacheStore != nil {
		ws = services.NewWorkspace(settings, cacheStore)
	} else {
		ws = services.NewWorkspace(settings, nil)
	}

	historyFile := store.GetString("repl.history_file")
	if historyFile == "" {
		historyFile = filepath.Join(dir, "history")
	}
	historySize := store.GetInt("repl.history_size")
	if historySize <= 0 {
		historySize = 1000
	}

	return &app{
		ws:          ws,
		engine:      query.New(ws),
		settings:    settings,
		stateDir:    dir,
		highlight:   store.GetBool("repl.highlight"),
		historyFile: historyFile,
		historySize: historySize,
	}, nil
}
