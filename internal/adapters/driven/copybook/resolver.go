// Package copybook resolves COPY directives against the workspace
// search roots and watches loaded sources for on-disk changes.
package copybook

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Chandra-mohn/coqu/internal/core/ports/driven"
	"github.com/Chandra-mohn/coqu/internal/logger"
	"github.com/Chandra-mohn/coqu/internal/parser/format"
	"github.com/Chandra-mohn/coqu/internal/parser/reader"
)

// extensions tried when resolving a copybook name, in order.
var extensions = []string{".cpy", ".copy", ".CPY", ".COPY", ""}

// Ensure Resolver implements the port.
var _ driven.CopybookResolver = (*Resolver)(nil)

// Resolver maps copybook names to files under the ordered search roots.
// Copybook text is cached per path for the life of the resolver; the
// cache is keyed by path so a reload after a path change re-reads.
type Resolver struct {
	mu    sync.RWMutex
	roots []string
	texts map[string][]string
}

// NewResolver creates a resolver over the given search roots.
func NewResolver(roots []string) *Resolver {
	return &Resolver{
		roots: append([]string(nil), roots...),
		texts: make(map[string][]string),
	}
}

// AddPath appends a search root; duplicates are ignored.
func (r *Resolver) AddPath(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.roots {
		if existing == path {
			return
		}
	}
	r.roots = append(r.roots, path)
}

// SetPaths replaces the search roots.
func (r *Resolver) SetPaths(roots []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roots = append([]string(nil), roots...)
	r.texts = make(map[string][]string)
}

// Paths returns the ordered search roots currently in effect.
func (r *Resolver) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.roots...)
}

// Resolve finds the file for a copybook name. Each root is tried with
// the allowed extensions in lowercase and uppercase name forms; the
// first match wins. When a subdirectory of the root matches the library
// qualifier, it is tried before the root itself.
func (r *Resolver) Resolve(name, library string) (string, bool) {
	r.mu.RLock()
	roots := r.roots
	r.mu.RUnlock()

	for _, root := range roots {
		dirs := []string{root}
		if library != "" {
			for _, lib := range []string{strings.ToLower(library), strings.ToUpper(library)} {
				if d := filepath.Join(root, lib); isDir(d) {
					dirs = append([]string{d}, dirs...)
					break
				}
			}
		}
		for _, dir := range dirs {
			for _, ext := range extensions {
				for _, stem := range []string{strings.ToLower(name), strings.ToUpper(name)} {
					candidate := filepath.Join(dir, stem+ext)
					if isFile(candidate) {
						return candidate, true
					}
				}
			}
		}
	}
	return "", false
}

// Read returns the format-normalized lines of a copybook.
func (r *Resolver) Read(path string) ([]string, error) {
	r.mu.RLock()
	cached, ok := r.texts[path]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	res, err := reader.Read(path)
	if err != nil {
		return nil, err
	}
	_, normalized := format.Apply(res.Lines)

	r.mu.Lock()
	r.texts[path] = normalized
	r.mu.Unlock()
	logger.Debug("copybook: read %s (%d lines)", path, len(normalized))
	return normalized, nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
