package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/DeusData/qualname/internal/qualname"
)

func TestResolveCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.py")
	src := "class App:\n    @property\n    def name(self):\n        return 1\n"
	if err := os.WriteFile(path, []byte(src), 0o600); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	tests := []struct {
		args []string
		want string
	}{
		{[]string{path, "1", "class"}, "App"},
		{[]string{path, "2"}, "App.name"},
		{[]string{path, "3", "method"}, "App.name"},
	}
	for _, tt := range tests {
		got, err := resolve(ctx, tt.args)
		if err != nil {
			t.Fatalf("resolve(%v): %v", tt.args, err)
		}
		if got != tt.want {
			t.Errorf("resolve(%v) = %q, want %q", tt.args, got, tt.want)
		}
	}

	if _, err := resolve(ctx, []string{path, "4"}); !errors.Is(err, qualname.ErrUnresolvable) {
		t.Errorf("body line err = %v, want ErrUnresolvable", err)
	}
	if _, err := resolve(ctx, []string{path, "x"}); err == nil {
		t.Error("non-numeric line should fail")
	}
	if _, err := resolve(ctx, []string{path}); err == nil {
		t.Error("missing line should fail")
	}
}

func TestRunCommandUnknown(t *testing.T) {
	if err := runCommand(context.Background(), []string{"serve-http"}); err == nil {
		t.Error("unknown command should fail")
	}
}
