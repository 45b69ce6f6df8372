// Package watcher keeps indexed projects current by polling their Python
// files and re-indexing when the tree changes.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/DeusData/qualname/internal/config"
	"github.com/DeusData/qualname/internal/discover"
	"github.com/DeusData/qualname/internal/store"
)

const (
	baseInterval = 2 * time.Second
	maxInterval  = 60 * time.Second
)

type fileStamp struct {
	modTime time.Time
	size    int64
}

type snapshot map[string]fileStamp

type projectState struct {
	snap     snapshot
	nextPoll time.Time
}

// RefreshFunc re-indexes the project rooted at root.
type RefreshFunc func(ctx context.Context, root string) error

// Watcher polls every project in a store. The first poll of a project only
// records a baseline.
type Watcher struct {
	store    *store.Store
	refresh  RefreshFunc
	projects map[string]*projectState
	now      func() time.Time
}

// New creates a Watcher over s that calls refresh on change.
func New(s *store.Store, refresh RefreshFunc) *Watcher {
	return &Watcher{
		store:    s,
		refresh:  refresh,
		projects: make(map[string]*projectState),
		now:      time.Now,
	}
}

// Run blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(baseInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Poll(ctx)
		}
	}
}

// Poll checks each project that is due and drops state for projects that
// were deleted from the store.
func (w *Watcher) Poll(ctx context.Context) {
	projects, err := w.store.ListProjects()
	if err != nil {
		slog.Warn("watcher.list_projects", "err", err)
		return
	}

	seen := make(map[string]bool, len(projects))
	now := w.now()
	for _, p := range projects {
		seen[p.Name] = true
		state, ok := w.projects[p.Name]
		if !ok {
			state = &projectState{}
			w.projects[p.Name] = state
		}
		if ok && now.Before(state.nextPoll) {
			continue
		}
		w.pollProject(ctx, p, state)
	}
	for name := range w.projects {
		if !seen[name] {
			delete(w.projects, name)
		}
	}
}

func (w *Watcher) pollProject(ctx context.Context, p *store.Project, state *projectState) {
	if _, err := os.Stat(p.RootPath); err != nil {
		slog.Warn("watcher.root_gone", "project", p.Name, "path", p.RootPath)
		state.nextPoll = w.now().Add(maxInterval)
		return
	}

	snap, err := takeSnapshot(ctx, p.RootPath)
	if err != nil {
		slog.Warn("watcher.snapshot", "project", p.Name, "err", err)
		state.nextPoll = w.now().Add(baseInterval)
		return
	}
	interval := pollInterval(len(snap))

	if state.snap == nil {
		slog.Debug("watcher.baseline", "project", p.Name, "files", len(snap))
		state.snap = snap
		state.nextPoll = w.now().Add(interval)
		return
	}

	changed := changedFiles(state.snap, snap)
	if len(changed) == 0 {
		state.nextPoll = w.now().Add(interval)
		return
	}

	slog.Info("watcher.changed", "project", p.Name, "changed", len(changed), "first", changed[0])
	if err := w.refresh(ctx, p.RootPath); err != nil {
		// Old snapshot is kept so the next poll retries.
		slog.Warn("watcher.refresh", "project", p.Name, "err", err)
		state.nextPoll = w.now().Add(interval)
		return
	}
	state.snap = snap
	state.nextPoll = w.now().Add(interval)
}

// takeSnapshot stamps every discovered file under root, honoring the
// project's configured exclusions.
func takeSnapshot(ctx context.Context, root string) (snapshot, error) {
	cfg := config.Load(root)
	files, err := discover.Discover(ctx, root, &discover.Options{ExcludeDirs: cfg.Index.ExcludeDirs})
	if err != nil {
		return nil, err
	}

	snap := make(snapshot, len(files))
	for _, f := range files {
		info, err := os.Stat(f.Path)
		if err != nil {
			continue
		}
		snap[f.RelPath] = fileStamp{modTime: info.ModTime(), size: info.Size()}
	}
	return snap, nil
}

// changedFiles lists, sorted, the paths added, removed or restamped between
// old and cur.
func changedFiles(old, cur snapshot) []string {
	var out []string
	for path, stamp := range cur {
		prev, ok := old[path]
		if !ok || prev.size != stamp.size || !prev.modTime.Equal(stamp.modTime) {
			out = append(out, path)
		}
	}
	for path := range old {
		if _, ok := cur[path]; !ok {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out
}

// pollInterval grows by a second per 250 files, from baseInterval up to
// maxInterval.
func pollInterval(fileCount int) time.Duration {
	d := baseInterval + time.Duration(fileCount/250)*time.Second
	return min(d, maxInterval)
}
