package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/DeusData/qualname/internal/config"
	"github.com/DeusData/qualname/internal/index"
	"github.com/DeusData/qualname/internal/qualname"
	"github.com/DeusData/qualname/internal/store"
	"github.com/DeusData/qualname/internal/tools"
	"github.com/DeusData/qualname/internal/watcher"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var version = "dev"

const usage = `usage:
  qualname                              serve MCP over stdio
  qualname resolve <file> <line> [kind] print the qualified name at a line
  qualname index <repo>                 index a repository into the store
  qualname --version`

func main() {
	tools.Version = version
	if len(os.Args) > 1 {
		if err := runCommand(context.Background(), os.Args[1:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	s, err := store.Open("qualname")
	if err != nil {
		log.Fatalf("store open err=%v", err)
	}

	srv := tools.NewServer(s, nil)

	ctx, cancel := context.WithCancel(context.Background())
	w := watcher.New(s, func(ctx context.Context, root string) error {
		_, err := srv.Reindex(ctx, root)
		return err
	})
	go w.Run(ctx)

	runErr := srv.MCPServer().Run(ctx, &mcp.StdioTransport{})
	cancel()
	s.Close()
	if runErr != nil {
		log.Fatalf("server err=%v", runErr)
	}
}

func runCommand(ctx context.Context, args []string) error {
	switch args[0] {
	case "--version":
		fmt.Println("qualname", version)
		return nil
	case "resolve":
		name, err := resolve(ctx, args[1:])
		if err != nil {
			return err
		}
		fmt.Println(name)
		return nil
	case "index":
		if len(args) != 2 {
			return fmt.Errorf("%s", usage)
		}
		return indexRepo(ctx, args[1])
	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
}

// resolve honors the .qualnameconfig next to the file.
func resolve(ctx context.Context, args []string) (string, error) {
	if len(args) < 2 || len(args) > 3 {
		return "", fmt.Errorf("%s", usage)
	}
	line, err := strconv.Atoi(args[1])
	if err != nil {
		return "", fmt.Errorf("line %q: %w", args[1], err)
	}
	kind := qualname.KindFunction
	if len(args) == 3 {
		if kind, err = qualname.ParseKind(args[2]); err != nil {
			return "", err
		}
	}

	cfg := config.Load(filepath.Dir(args[0]))
	r := qualname.NewResolver(qualname.WithCache(qualname.NewCache(cfg.QualnameOptions())))
	return r.Qualname(ctx, qualname.Target{Kind: kind, File: args[0], Line: line})
}

func indexRepo(ctx context.Context, repo string) error {
	absPath, err := filepath.Abs(repo)
	if err != nil {
		return err
	}
	s, err := store.Open("qualname")
	if err != nil {
		return fmt.Errorf("store open: %w", err)
	}
	defer s.Close()

	stats, err := index.New(s, nil, absPath).Run(ctx)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
