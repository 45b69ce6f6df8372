package watcher

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DeusData/qualname/internal/index"
	"github.com/DeusData/qualname/internal/qualname"
	"github.com/DeusData/qualname/internal/store"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.OpenMemory()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func writePy(t *testing.T, path, src string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(src), 0o600); err != nil {
		t.Fatal(err)
	}
}

// forceDue makes every project eligible for the next Poll.
func forceDue(w *Watcher) {
	for _, state := range w.projects {
		state.nextPoll = time.Time{}
	}
}

func TestChangedFiles(t *testing.T) {
	now := time.Now()
	base := snapshot{
		"a.py": {modTime: now, size: 10},
		"b.py": {modTime: now, size: 20},
	}

	tests := []struct {
		name string
		cur  snapshot
		want []string
	}{
		{"same", snapshot{"a.py": {now, 10}, "b.py": {now, 20}}, nil},
		{"resized", snapshot{"a.py": {now, 11}, "b.py": {now, 20}}, []string{"a.py"}},
		{"touched", snapshot{"a.py": {now, 10}, "b.py": {now.Add(time.Second), 20}}, []string{"b.py"}},
		{"removed", snapshot{"a.py": {now, 10}}, []string{"b.py"}},
		{"added", snapshot{"a.py": {now, 10}, "b.py": {now, 20}, "c.py": {now, 1}}, []string{"c.py"}},
		{"all", snapshot{"c.py": {now, 1}}, []string{"a.py", "b.py", "c.py"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := changedFiles(base, tt.cur); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("changedFiles = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPollInterval(t *testing.T) {
	tests := []struct {
		files int
		want  time.Duration
	}{
		{0, 2 * time.Second},
		{249, 2 * time.Second},
		{250, 3 * time.Second},
		{1000, 6 * time.Second},
		{100000, 60 * time.Second},
	}
	for _, tt := range tests {
		if got := pollInterval(tt.files); got != tt.want {
			t.Errorf("pollInterval(%d) = %v, want %v", tt.files, got, tt.want)
		}
	}
}

func TestTakeSnapshotHonorsConfig(t *testing.T) {
	dir := t.TempDir()
	writePy(t, filepath.Join(dir, "main.py"), "def main(): pass\n")
	if err := os.Mkdir(filepath.Join(dir, "gen"), 0o750); err != nil {
		t.Fatal(err)
	}
	writePy(t, filepath.Join(dir, "gen", "out.py"), "X = 1\n")
	writePy(t, filepath.Join(dir, ".qualnameconfig"), "index:\n  exclude_dirs: [gen]\n")

	snap, err := takeSnapshot(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap) != 1 {
		t.Fatalf("snapshot = %v, want only main.py", snap)
	}
	if st, ok := snap["main.py"]; !ok || st.size == 0 || st.modTime.IsZero() {
		t.Errorf("main.py stamp = %+v, %v", st, ok)
	}
}

func TestWatcherRefreshesOnChange(t *testing.T) {
	s := openStore(t)
	dir := t.TempDir()
	file := filepath.Join(dir, "main.py")
	writePy(t, file, "def main(): pass\n")
	if err := s.UpsertProject("proj", dir); err != nil {
		t.Fatal(err)
	}

	var calls atomic.Int32
	w := New(s, func(_ context.Context, root string) error {
		if root != dir {
			t.Errorf("refresh root = %q, want %q", root, dir)
		}
		calls.Add(1)
		return nil
	})
	ctx := context.Background()

	w.Poll(ctx)
	if calls.Load() != 0 {
		t.Fatalf("baseline poll refreshed %d times", calls.Load())
	}

	forceDue(w)
	w.Poll(ctx)
	if calls.Load() != 0 {
		t.Fatalf("unchanged poll refreshed %d times", calls.Load())
	}

	later := time.Now().Add(time.Second)
	if err := os.Chtimes(file, later, later); err != nil {
		t.Fatal(err)
	}
	forceDue(w)
	w.Poll(ctx)
	if calls.Load() != 1 {
		t.Errorf("changed poll refreshed %d times, want 1", calls.Load())
	}

	// Not due yet.
	w.Poll(ctx)
	if calls.Load() != 1 {
		t.Errorf("early poll refreshed %d times, want 1", calls.Load())
	}
}

func TestWatcherRetriesFailedRefresh(t *testing.T) {
	s := openStore(t)
	dir := t.TempDir()
	writePy(t, filepath.Join(dir, "a.py"), "def a(): pass\n")
	if err := s.UpsertProject("proj", dir); err != nil {
		t.Fatal(err)
	}

	var calls atomic.Int32
	w := New(s, func(context.Context, string) error {
		if calls.Add(1) == 1 {
			return os.ErrPermission
		}
		return nil
	})
	ctx := context.Background()
	w.Poll(ctx)

	writePy(t, filepath.Join(dir, "b.py"), "def b(): pass\n")
	forceDue(w)
	w.Poll(ctx)
	forceDue(w)
	w.Poll(ctx)
	if calls.Load() != 2 {
		t.Errorf("refresh calls = %d, want 2", calls.Load())
	}
	forceDue(w)
	w.Poll(ctx)
	if calls.Load() != 2 {
		t.Errorf("refresh after success = %d, want 2", calls.Load())
	}
}

func TestWatcherSkipsMissingRoot(t *testing.T) {
	s := openStore(t)
	if err := s.UpsertProject("ghost", "/nonexistent/path"); err != nil {
		t.Fatal(err)
	}
	var calls atomic.Int32
	w := New(s, func(context.Context, string) error {
		calls.Add(1)
		return nil
	})
	w.Poll(context.Background())
	if calls.Load() != 0 {
		t.Errorf("missing root refreshed %d times", calls.Load())
	}
	if st := w.projects["ghost"]; st == nil || st.snap != nil {
		t.Errorf("ghost state = %+v, want no snapshot", st)
	}
}

func TestWatcherDropsDeletedProjects(t *testing.T) {
	s := openStore(t)
	dir := t.TempDir()
	if err := s.UpsertProject("proj", dir); err != nil {
		t.Fatal(err)
	}
	w := New(s, func(context.Context, string) error { return nil })
	w.Poll(context.Background())
	if _, ok := w.projects["proj"]; !ok {
		t.Fatal("project not tracked")
	}
	if err := s.DeleteProject("proj"); err != nil {
		t.Fatal(err)
	}
	w.Poll(context.Background())
	if _, ok := w.projects["proj"]; ok {
		t.Error("deleted project still tracked")
	}
}

func TestWatcherReindexUpdatesResolver(t *testing.T) {
	s := openStore(t)
	dir := t.TempDir()
	file := filepath.Join(dir, "app.py")
	writePy(t, file, "def old(): pass\n")

	r := qualname.NewResolver()
	refresh := func(ctx context.Context, root string) error {
		_, err := index.New(s, r, root).Run(ctx)
		return err
	}
	ctx := context.Background()
	if err := refresh(ctx, dir); err != nil {
		t.Fatal(err)
	}

	w := New(s, refresh)
	w.Poll(ctx)

	writePy(t, file, "def renamed_function(): pass\n")
	forceDue(w)
	w.Poll(ctx)

	qn, err := r.Qualname(ctx, qualname.Target{Kind: qualname.KindFunction, File: file, Line: 1})
	if err != nil {
		t.Fatal(err)
	}
	if qn != "renamed_function" {
		t.Errorf("Qualname after refresh = %q, want renamed_function", qn)
	}
}

func TestWatcherCancellation(t *testing.T) {
	w := New(openStore(t), func(context.Context, string) error { return nil })
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not stop after cancellation")
	}
}
