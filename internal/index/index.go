// Package index records the qualified names of every definition in a
// repository's Python files into the store, re-parsing only files whose
// content hash changed since the last run.
package index

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"github.com/DeusData/qualname/internal/config"
	"github.com/DeusData/qualname/internal/discover"
	"github.com/DeusData/qualname/internal/fqn"
	"github.com/DeusData/qualname/internal/qualname"
	"github.com/DeusData/qualname/internal/store"
)

// Indexer writes one repository's definitions into a store.
type Indexer struct {
	Store       *store.Store
	Resolver    *qualname.Resolver
	Config      *config.Config
	RepoPath    string
	ProjectName string
}

// Stats summarises one Run.
type Stats struct {
	Project     string        `json:"project"`
	Files       int           `json:"files"`
	Parsed      int           `json:"parsed"`
	Skipped     int           `json:"skipped"`
	Removed     int           `json:"removed"`
	Failed      int           `json:"failed"`
	Definitions int           `json:"definitions"`
	Elapsed     time.Duration `json:"elapsed_ns"`
}

// New creates an Indexer for repoPath. The repository's .qualnameconfig is
// loaded and always decides how files are built: r is used as is when its
// cache already matches, otherwise a resolver derived from it for the
// config's options. A nil r gets a private cache.
func New(s *store.Store, r *qualname.Resolver, repoPath string) *Indexer {
	cfg := config.Load(repoPath)
	if r == nil {
		r = qualname.NewResolver(qualname.WithCache(qualname.NewCache(cfg.QualnameOptions())))
	} else {
		r = r.ForOptions(cfg.QualnameOptions())
	}
	return &Indexer{
		Store:       s,
		Resolver:    r,
		Config:      cfg,
		RepoPath:    repoPath,
		ProjectName: ProjectNameFromPath(repoPath),
	}
}

// ProjectNameFromPath derives a unique project name from an absolute path
// by replacing path separators with dashes and trimming the leading dash.
func ProjectNameFromPath(absPath string) string {
	cleaned := filepath.ToSlash(filepath.Clean(absPath))
	name := strings.ReplaceAll(cleaned, "/", "-")
	name = strings.TrimLeft(name, "-")
	if name == "" {
		return "root"
	}
	return name
}

type fileResult struct {
	file discover.FileInfo
	hash string
	defs []qualname.Definition
	err  error
}

// Run indexes the repository. Files that fail to read or parse are logged
// and counted in Stats.Failed; they do not abort the run.
func (ix *Indexer) Run(ctx context.Context) (*Stats, error) {
	start := time.Now()
	slog.Info("index.start", "project", ix.ProjectName, "path", ix.RepoPath)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	files, err := discover.Discover(ctx, ix.RepoPath, &discover.Options{ExcludeDirs: ix.Config.Index.ExcludeDirs})
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}
	slog.Info("index.discovered", "files", len(files))

	stored, err := ix.Store.GetFileHashes(ix.ProjectName)
	if err != nil {
		return nil, err
	}

	changed, hashes, skipped := ix.classifyFiles(files, stored)
	slog.Info("index.classify", "changed", len(changed), "unchanged", skipped, "total", len(files))

	results, err := ix.parseFiles(ctx, changed, hashes)
	if err != nil {
		return nil, err
	}

	stats := &Stats{Project: ix.ProjectName, Files: len(files), Skipped: skipped}
	err = ix.Store.WithTransaction(func(tx *store.Store) error {
		if err := tx.UpsertProject(ix.ProjectName, ix.RepoPath); err != nil {
			return fmt.Errorf("upsert project: %w", err)
		}
		for _, r := range results {
			if r.err != nil {
				// Rows from the last good parse would no longer match the file.
				slog.Warn("index.file.err", "path", r.file.RelPath, "err", r.err)
				stats.Failed++
				if _, ok := stored[r.file.RelPath]; ok {
					if err := tx.DeleteDefinitionsByFile(ix.ProjectName, r.file.RelPath); err != nil {
						return err
					}
					if err := tx.DeleteFileHash(ix.ProjectName, r.file.RelPath); err != nil {
						return err
					}
				}
				continue
			}
			if err := tx.ReplaceDefinitions(ix.ProjectName, r.file.RelPath, ix.toRecords(r)); err != nil {
				return err
			}
			if err := tx.UpsertFileHash(ix.ProjectName, r.file.RelPath, r.hash); err != nil {
				return err
			}
			stats.Parsed++
		}
		removed, err := ix.removeDeletedFiles(tx, files, stored)
		stats.Removed = removed
		return err
	})
	if err != nil {
		return nil, err
	}

	stats.Definitions, _ = ix.Store.CountDefinitions(ix.ProjectName)
	stats.Elapsed = time.Since(start)
	slog.Info("index.done", "project", ix.ProjectName, "parsed", stats.Parsed,
		"skipped", stats.Skipped, "failed", stats.Failed, "definitions", stats.Definitions)
	return stats, nil
}

// classifyFiles hashes files in parallel and returns those whose hash
// differs from the stored one.
func (ix *Indexer) classifyFiles(files []discover.FileInfo, stored map[string]string) (changed []discover.FileInfo, hashes map[string]string, skipped int) {
	type hashResult struct {
		Hash string
		Err  error
	}

	results := make([]hashResult, len(files))
	g := new(errgroup.Group)
	g.SetLimit(ix.workers(len(files)))
	for i, f := range files {
		g.Go(func() error {
			hash, hashErr := fileHash(f.Path)
			results[i] = hashResult{Hash: hash, Err: hashErr}
			return nil
		})
	}
	_ = g.Wait()

	hashes = make(map[string]string, len(files))
	for i, f := range files {
		r := results[i]
		if r.Err == nil {
			hashes[f.RelPath] = r.Hash
			if old, ok := stored[f.RelPath]; ok && old == r.Hash {
				skipped++
				continue
			}
		}
		changed = append(changed, f)
	}
	return changed, hashes, skipped
}

// parseFiles builds mappings for files through the resolver's cache.
// A cached entry built from different content is dropped first.
func (ix *Indexer) parseFiles(ctx context.Context, files []discover.FileInfo, hashes map[string]string) ([]fileResult, error) {
	results := make([]fileResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.workers(len(files)))
	for i, f := range files {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			hash := hashes[f.RelPath]
			if e, ok := ix.Resolver.Peek(f.Path); ok && e.Hash != hash {
				ix.Resolver.Forget(f.Path)
			}
			defs, entry, err := ix.Resolver.Definitions(gctx, f.Path)
			if err == nil && hash == "" {
				hash = entry.Hash
			}
			results[i] = fileResult{file: f, hash: hash, defs: defs, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	// Cancellation surfaces as a per-file error when it lands mid-build.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (ix *Indexer) toRecords(r fileResult) []*store.Definition {
	records := make([]*store.Definition, 0, len(r.defs))
	for _, d := range r.defs {
		rec := &store.Definition{
			Line:          d.Line,
			StartLine:     d.StartLine,
			EndLine:       d.EndLine,
			Kind:          d.Kind.String(),
			Name:          d.Name,
			QualifiedName: d.Qualname,
			FullName:      fqn.Compute(ix.ProjectName, r.file.RelPath, d.Qualname),
		}
		if len(d.Scope) > 0 {
			rec.Properties = map[string]any{"scope": d.Scope}
		}
		records = append(records, rec)
	}
	return records
}

// removeDeletedFiles drops definitions for files that no longer exist on disk.
func (ix *Indexer) removeDeletedFiles(tx *store.Store, current []discover.FileInfo, stored map[string]string) (int, error) {
	currentSet := make(map[string]bool, len(current))
	for _, f := range current {
		currentSet[f.RelPath] = true
	}
	removed := 0
	for relPath := range stored {
		if currentSet[relPath] {
			continue
		}
		if err := tx.DeleteDefinitionsByFile(ix.ProjectName, relPath); err != nil {
			return removed, err
		}
		if err := tx.DeleteFileHash(ix.ProjectName, relPath); err != nil {
			return removed, err
		}
		slog.Info("index.removed", "file", relPath)
		removed++
	}
	return removed, nil
}

func (ix *Indexer) workers(n int) int {
	w := ix.Config.EffectiveWorkers()
	if w > n {
		w = n
	}
	if w < 1 {
		w = 1
	}
	return w
}

// fileHash streams a file through xxh3; the result matches
// qualname.ContentHash of the same bytes.
func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := xxh3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}
