package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/DeusData/qualname/internal/qualname"
	"github.com/DeusData/qualname/internal/store"
)

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func setupRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "app", "__init__.py"), "")
	mustWrite(t, filepath.Join(dir, "app", "server.py"), `class Server:
    @staticmethod
    @log_call
    def handler(self):
        pass

class Outer:
    def method(self):
        def inner(): pass
        return inner
`)
	mustWrite(t, filepath.Join(dir, "util.py"), "def helper():\n    pass\n")
	return dir
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunIndexesDefinitions(t *testing.T) {
	dir := setupRepo(t)
	s := openStore(t)
	ix := New(s, nil, dir)

	stats, err := ix.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Files != 3 || stats.Parsed != 3 || stats.Failed != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.Definitions != 6 {
		t.Errorf("Definitions = %d, want 6", stats.Definitions)
	}

	defs, err := s.DefinitionsForFile(ix.ProjectName, "app/server.py")
	if err != nil {
		t.Fatalf("DefinitionsForFile: %v", err)
	}
	byLine := map[int]*store.Definition{}
	for _, d := range defs {
		byLine[d.Line] = d
	}
	handler := byLine[4]
	if handler == nil || handler.QualifiedName != "Server.handler" || handler.StartLine != 2 {
		t.Fatalf("handler = %+v", handler)
	}
	if want := ix.ProjectName + ".app.server.Server.handler"; handler.FullName != want {
		t.Errorf("FullName = %q, want %q", handler.FullName, want)
	}
	inner := byLine[9]
	if inner == nil || inner.QualifiedName != "Outer.method.<locals>.inner" || inner.Kind != "function" {
		t.Errorf("inner = %+v", inner)
	}
}

func TestRunIncremental(t *testing.T) {
	dir := setupRepo(t)
	s := openStore(t)
	r := qualname.NewResolver()

	if _, err := New(s, r, dir).Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	stats, err := New(s, r, dir).Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if stats.Parsed != 0 || stats.Skipped != 3 {
		t.Errorf("unchanged rerun: %+v", stats)
	}

	// Change one file, delete another
	mustWrite(t, filepath.Join(dir, "util.py"), "def helper():\n    pass\n\ndef extra():\n    pass\n")
	if err := os.Remove(filepath.Join(dir, "app", "__init__.py")); err != nil {
		t.Fatal(err)
	}
	stats, err = New(s, r, dir).Run(context.Background())
	if err != nil {
		t.Fatalf("third Run: %v", err)
	}
	if stats.Parsed != 1 || stats.Skipped != 1 || stats.Removed != 1 {
		t.Errorf("incremental stats = %+v", stats)
	}
	if stats.Definitions != 7 {
		t.Errorf("Definitions = %d, want 7", stats.Definitions)
	}

	// The shared cache must reflect the new content.
	got, err := r.Qualname(context.Background(), qualname.Target{
		Kind: qualname.KindFunction, Name: "extra", File: filepath.Join(dir, "util.py"), Line: 4,
	})
	if err != nil || got != "extra" {
		t.Errorf("Qualname(extra) = %q, %v", got, err)
	}
}

func TestRunSyntaxErrorIsCounted(t *testing.T) {
	dir := setupRepo(t)
	mustWrite(t, filepath.Join(dir, "broken.py"), "def broken(:\n    return )\n")
	s := openStore(t)

	stats, err := New(s, nil, dir).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Failed != 1 || stats.Parsed != 3 {
		t.Errorf("stats = %+v", stats)
	}
	hashes, _ := s.GetFileHashes(ProjectNameFromPath(dir))
	if _, ok := hashes["broken.py"]; ok {
		t.Error("failed file should not record a hash")
	}
}

func TestRunHonoursConfig(t *testing.T) {
	dir := setupRepo(t)
	mustWrite(t, filepath.Join(dir, ".qualnameconfig"), "resolver:\n  locals_marker: \"<local>\"\nindex:\n  exclude_dirs: [app]\n  workers: 1\n")
	mustWrite(t, filepath.Join(dir, "nested.py"), "def f():\n    def g():\n        pass\n")
	s := openStore(t)

	ix := New(s, nil, dir)
	stats, err := ix.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Files != 2 {
		t.Errorf("Files = %d, want 2 (app excluded)", stats.Files)
	}
	found, err := s.FindByQualname(ix.ProjectName, "f.<local>.g")
	if err != nil || len(found) != 1 {
		t.Errorf("FindByQualname(f.<local>.g) = %v, %v", found, err)
	}
}

func TestRunHonoursConfigWithSharedResolver(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, ".qualnameconfig"), "resolver:\n  locals_marker: \"<L>\"\n")
	mustWrite(t, filepath.Join(dir, "nested.py"), "def f():\n    def g():\n        pass\n")
	plain := t.TempDir()
	mustWrite(t, filepath.Join(plain, "nested.py"), "def f():\n    def g():\n        pass\n")
	s := openStore(t)
	shared := qualname.NewResolver()

	ix := New(s, shared, dir)
	if ix.Resolver == shared {
		t.Fatal("configured repo should not use the unconfigured cache")
	}
	if _, err := ix.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if found, _ := s.FindByQualname(ix.ProjectName, "f.<L>.g"); len(found) != 1 {
		t.Errorf("FindByQualname(f.<L>.g) = %v", found)
	}
	if again := New(s, shared, dir); again.Resolver != ix.Resolver {
		t.Error("same options should reuse the derived resolver")
	}

	px := New(s, shared, plain)
	if px.Resolver != shared {
		t.Error("unconfigured repo should use the shared resolver")
	}
	if _, err := px.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if found, _ := s.FindByQualname(px.ProjectName, "f.<locals>.g"); len(found) != 1 {
		t.Errorf("FindByQualname(f.<locals>.g) = %v", found)
	}
}

func TestRunDropsDefinitionsOfFileThatStopsParsing(t *testing.T) {
	dir := setupRepo(t)
	s := openStore(t)
	ctx := context.Background()
	if _, err := New(s, nil, dir).Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	project := ProjectNameFromPath(dir)

	mustWrite(t, filepath.Join(dir, "util.py"), "def helper(:\n    pass\n")
	stats, err := New(s, nil, dir).Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Failed != 1 || stats.Definitions != 5 {
		t.Errorf("stats = %+v, want 1 failed and 5 definitions", stats)
	}
	if found, _ := s.FindByQualname(project, "helper"); len(found) != 0 {
		t.Errorf("stale rows for helper: %v", found)
	}
	hashes, _ := s.GetFileHashes(project)
	if _, ok := hashes["util.py"]; ok {
		t.Error("failed file kept its hash")
	}

	// Fixed again: picked up on the next run.
	mustWrite(t, filepath.Join(dir, "util.py"), "def helper():\n    pass\n")
	stats, err = New(s, nil, dir).Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Parsed != 1 || stats.Definitions != 6 {
		t.Errorf("stats = %+v, want 1 parsed and 6 definitions", stats)
	}
}

func TestRunCanceled(t *testing.T) {
	dir := setupRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(openStore(t), nil, dir).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run err = %v, want context.Canceled", err)
	}
}

func TestFileHashMatchesContentHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.py")
	content := "def a():\n    pass\n"
	mustWrite(t, path, content)
	got, err := fileHash(path)
	if err != nil {
		t.Fatalf("fileHash: %v", err)
	}
	if want := qualname.ContentHash([]byte(content)); got != want {
		t.Errorf("fileHash = %s, ContentHash = %s", got, want)
	}
}

func TestProjectNameFromPath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/home/user/repo", "home-user-repo"},
		{"/", "root"},
		{"/tmp/a/../b", "tmp-b"},
	}
	for _, tt := range tests {
		if got := ProjectNameFromPath(tt.in); got != tt.want {
			t.Errorf("ProjectNameFromPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
