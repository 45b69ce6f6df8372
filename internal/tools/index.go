package tools

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/DeusData/qualname/internal/index"
	"github.com/DeusData/qualname/internal/store"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) handleIndexRepository(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}

	repoPath := getStringArg(args, "repo_path")
	if repoPath == "" {
		return errResult("repo_path is required"), nil
	}

	absPath, err := filepath.Abs(repoPath)
	if err != nil {
		return errResult(fmt.Sprintf("invalid path: %v", err)), nil
	}

	stats, err := s.Reindex(ctx, absPath)
	if err != nil {
		return errResult(fmt.Sprintf("indexing failed: %v", err)), nil
	}

	proj, _ := s.store.GetProject(stats.Project)
	indexedAt := store.Now()
	if proj != nil {
		indexedAt = proj.IndexedAt
	}

	return jsonResult(map[string]any{
		"project":     stats.Project,
		"files":       stats.Files,
		"parsed":      stats.Parsed,
		"skipped":     stats.Skipped,
		"removed":     stats.Removed,
		"failed":      stats.Failed,
		"definitions": stats.Definitions,
		"indexed_at":  indexedAt,
	}), nil
}

// Reindex runs the indexer over root. Runs are serialized so a tool call and
// the watcher never write the same project at once.
func (s *Server) Reindex(ctx context.Context, root string) (*index.Stats, error) {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	return index.New(s.store, s.resolver, root).Run(ctx)
}
