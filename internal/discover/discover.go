package discover

import (
	"bufio"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/DeusData/qualname/internal/lang"
	"github.com/gobwas/glob"
)

// IGNORE_PATTERNS are directory names to skip during discovery.
var IGNORE_PATTERNS = map[string]bool{
	".cache": true, ".eggs": true, ".git": true, ".hg": true,
	".idea": true, ".mypy_cache": true, ".nox": true,
	".pytest_cache": true, ".ruff_cache": true, ".svn": true,
	".tox": true, ".venv": true, ".vscode": true,
	"__pycache__": true, "build": true, "dist": true, "env": true,
	"htmlcov": true, "node_modules": true, "site-packages": true,
	"venv": true,
}

// IGNORE_SUFFIXES are file suffixes to skip.
var IGNORE_SUFFIXES = map[string]bool{
	".tmp": true, "~": true, ".pyc": true, ".pyo": true, ".so": true,
}

// IgnoreFileName is the per-repository ignore file, one glob per line.
const IgnoreFileName = ".qualnameignore"

// FileInfo represents a discovered source file.
type FileInfo struct {
	Path     string        // absolute path
	RelPath  string        // relative to repo root
	Language lang.Language // detected language
}

// Options configures file discovery.
type Options struct {
	IgnoreFile  string   // path to an ignore file (optional)
	ExcludeDirs []string // extra directory globs, e.g. from config
}

// compilePatterns compiles directory globs with '/' as separator, so "*"
// stays within one path segment and "**" spans several. Invalid patterns
// are dropped.
func compilePatterns(patterns []string) []glob.Glob {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(strings.TrimSuffix(p, "/"), '/')
		if err != nil {
			slog.Warn("discover.bad_pattern", "pattern", p, "err", err)
			continue
		}
		out = append(out, g)
	}
	return out
}

// shouldSkipDir returns true if the directory should be skipped during discovery.
// Patterns match either the directory name or its slash path from the root.
func shouldSkipDir(name, rel string, extraIgnore []glob.Glob) bool {
	if IGNORE_PATTERNS[name] {
		return true
	}
	for _, g := range extraIgnore {
		if g.Match(name) || g.Match(rel) {
			return true
		}
	}
	return false
}

// Discover walks a repository and returns all source files of registered
// languages.
func Discover(ctx context.Context, repoPath string, opts *Options) ([]FileInfo, error) {
	repoPath, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var extraIgnore []string
	if opts != nil && opts.IgnoreFile != "" {
		extraIgnore, _ = loadIgnoreFile(opts.IgnoreFile)
	} else {
		extraIgnore, _ = loadIgnoreFile(filepath.Join(repoPath, IgnoreFileName))
	}
	if opts != nil {
		extraIgnore = append(extraIgnore, opts.ExcludeDirs...)
	}
	skip := compilePatterns(extraIgnore)

	var files []FileInfo

	err = filepath.Walk(repoPath, func(path string, info os.FileInfo, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if walkErr != nil {
			return filepath.SkipDir
		}

		rel, _ := filepath.Rel(repoPath, path)

		if info.IsDir() {
			if rel != "." && shouldSkipDir(info.Name(), filepath.ToSlash(rel), skip) {
				return filepath.SkipDir
			}
			return nil
		}

		for suffix := range IGNORE_SUFFIXES {
			if strings.HasSuffix(path, suffix) {
				return nil
			}
		}

		if l, ok := lang.LanguageForExtension(filepath.Ext(path)); ok {
			files = append(files, FileInfo{
				Path:     path,
				RelPath:  filepath.ToSlash(rel),
				Language: l,
			})
		}
		return nil
	})

	return files, err
}

func loadIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			patterns = append(patterns, line)
		}
	}
	return patterns, scanner.Err()
}
