package transfer

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/openmined/termhost/internal/hosterr"
	gitignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DefaultIgnoreLines are skipped in every expansion, in gitignore syntax.
var DefaultIgnoreLines = []string{
	".DS_Store",
}

// Unit is one file to transfer.
type Unit struct {
	// AbsPath is the file on disk.
	AbsPath string `json:"abs_path" yaml:"abs_path"`
	// RelPath is empty for a file selected directly. For a file found under a
	// selected directory it is "/" followed by the slash-separated path below that
	// directory, e.g. "/sub/b.txt".
	RelPath string `json:"rel_path" yaml:"rel_path"`
}

// Name is RelPath without its leading slash, or the base name for direct selections.
func (u Unit) Name() string {
	if u.RelPath != "" {
		return strings.TrimPrefix(u.RelPath, "/")
	}
	return filepath.Base(u.AbsPath)
}

type ExpanderOption func(*expanderConfig)

type expanderConfig struct {
	ignoreLines []string
	includes    []string
	scanLimit   int64
}

// WithIgnorePatterns adds gitignore-style patterns on top of DefaultIgnoreLines.
func WithIgnorePatterns(lines ...string) ExpanderOption {
	return func(c *expanderConfig) {
		c.ignoreLines = append(c.ignoreLines, lines...)
	}
}

// WithIncludePatterns keeps only discovered files whose path below the root matches
// one of the doublestar globs. Directly selected files are always kept.
func WithIncludePatterns(globs ...string) ExpanderOption {
	return func(c *expanderConfig) {
		c.includes = append(c.includes, globs...)
	}
}

// WithScanConcurrency bounds how many directories are read at once.
func WithScanConcurrency(n int) ExpanderOption {
	return func(c *expanderConfig) {
		if n > 0 {
			c.scanLimit = int64(n)
		}
	}
}

// Expander flattens a selection of files and directories into transfer units.
// It keeps no state between calls and is safe for concurrent use.
type Expander struct {
	ignore    *gitignore.GitIgnore
	includes  []string
	scanLimit int64
}

func NewExpander(opts ...ExpanderOption) (*Expander, error) {
	cfg := &expanderConfig{
		ignoreLines: append([]string(nil), DefaultIgnoreLines...),
		scanLimit:   int64(runtime.GOMAXPROCS(0) * 2),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	for _, glob := range cfg.includes {
		if !doublestar.ValidatePattern(glob) {
			return nil, fmt.Errorf("invalid include pattern %q", glob)
		}
	}

	return &Expander{
		ignore:    gitignore.CompileIgnoreLines(cfg.ignoreLines...),
		includes:  cfg.includes,
		scanLimit: cfg.scanLimit,
	}, nil
}

// Expand returns one unit per regular file reachable from roots, in root order and
// depth-first, lexical order within each directory. Sibling directories are read
// concurrently but the result does not depend on which read finishes first.
//
// The first failure stops the expansion. Units gathered from earlier roots are
// returned together with the error.
func (e *Expander) Expand(ctx context.Context, roots []string) ([]Unit, error) {
	sem := semaphore.NewWeighted(e.scanLimit)

	var units []Unit
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return units, hosterr.NewIOError("resolve", root, err)
		}

		info, err := os.Stat(abs)
		if err != nil {
			return units, hosterr.NewIOError("stat", abs, err)
		}

		switch {
		case info.Mode().IsRegular():
			units = append(units, Unit{AbsPath: abs})
		case info.IsDir():
			sub, err := e.expandDir(ctx, sem, abs, "")
			if err != nil {
				return units, err
			}
			units = append(units, sub...)
		default:
			slog.Debug("expand skipped root", "path", abs, "mode", info.Mode().String())
		}
	}

	slog.Debug("expand done", "roots", len(roots), "units", len(units))
	return units, nil
}

type entryKind int

const (
	kindSkip entryKind = iota
	kindFile
	kindDir
)

// expandDir returns the units below dir. rel is dir's own path below the root,
// "" for the root itself.
func (e *Expander) expandDir(ctx context.Context, sem *semaphore.Weighted, dir, rel string) ([]Unit, error) {
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	sem.Release(1)
	if err != nil {
		return nil, hosterr.NewIOError("readdir", dir, err)
	}

	// one slot per entry keeps the output in ReadDir's (lexical) order
	parts := make([][]Unit, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	var classifyErr error
	for i, entry := range entries {
		fullPath := filepath.Join(dir, entry.Name())
		entryRel := rel + "/" + entry.Name()

		kind, err := classify(fullPath, entry)
		if err != nil {
			classifyErr = err
			break
		}
		if kind == kindSkip || e.ignored(entryRel, kind == kindDir) {
			continue
		}

		switch kind {
		case kindFile:
			if e.included(entryRel) {
				parts[i] = []Unit{{AbsPath: fullPath, RelPath: entryRel}}
			}
		case kindDir:
			g.Go(func() error {
				sub, err := e.expandDir(gctx, sem, fullPath, entryRel)
				parts[i] = sub
				return err
			})
		}
	}

	waitErr := g.Wait()
	if classifyErr != nil {
		return nil, classifyErr
	}
	if waitErr != nil {
		return nil, waitErr
	}

	var units []Unit
	for _, part := range parts {
		units = append(units, part...)
	}
	return units, nil
}

// classify follows symlinks to regular files but never into directories.
func classify(fullPath string, entry fs.DirEntry) (entryKind, error) {
	mode := entry.Type()
	switch {
	case mode.IsRegular():
		return kindFile, nil
	case mode.IsDir():
		return kindDir, nil
	case mode&fs.ModeSymlink != 0:
		info, err := os.Stat(fullPath)
		if err != nil {
			return kindSkip, hosterr.NewIOError("stat", fullPath, err)
		}
		if info.Mode().IsRegular() {
			return kindFile, nil
		}
		return kindSkip, nil
	default:
		return kindSkip, nil
	}
}

func (e *Expander) ignored(rel string, isDir bool) bool {
	p := strings.TrimPrefix(rel, "/")
	if e.ignore.MatchesPath(p) {
		return true
	}
	// dir-only patterns ("build/") need the trailing slash to match
	return isDir && e.ignore.MatchesPath(p+"/")
}

func (e *Expander) included(rel string) bool {
	if len(e.includes) == 0 {
		return true
	}
	p := strings.TrimPrefix(rel, "/")
	for _, glob := range e.includes {
		if ok, _ := doublestar.Match(glob, p); ok {
			return true
		}
	}
	return false
}
