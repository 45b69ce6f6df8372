package tools

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/DeusData/qualname/internal/store"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const maxSearchLimit = 200

func (s *Server) handleFindDefinition(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	qn := getStringArg(args, "qualified_name")
	if qn == "" {
		return errResult("qualified_name is required"), nil
	}

	defs, err := s.store.FindByQualname(getStringArg(args, "project"), qn)
	if err != nil {
		return errResult(err.Error()), nil
	}
	if len(defs) == 0 {
		return errResult(fmt.Sprintf("definition not found: %s", qn)), nil
	}
	return jsonResult(map[string]any{
		"matches": s.describeDefinitions(defs),
	}), nil
}

func (s *Server) handleSearchDefinitions(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	pattern := getStringArg(args, "pattern")
	if pattern == "" {
		return errResult("pattern is required"), nil
	}
	limit := min(getIntArg(args, "limit", 50), maxSearchLimit)

	defs, err := s.store.SearchDefinitions(getStringArg(args, "project"), pattern, limit)
	if err != nil {
		return errResult(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"results": s.describeDefinitions(defs),
		"count":   len(defs),
	}), nil
}

func (s *Server) handleListProjects(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := s.store.ListProjects()
	if err != nil {
		return errResult(err.Error()), nil
	}
	out := make([]map[string]any, 0, len(projects))
	for _, p := range projects {
		count, _ := s.store.CountDefinitions(p.Name)
		out = append(out, map[string]any{
			"name":        p.Name,
			"root_path":   p.RootPath,
			"indexed_at":  p.IndexedAt,
			"definitions": count,
		})
	}
	return jsonResult(out), nil
}

func (s *Server) handleDeleteProject(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	name := getStringArg(args, "project_name")
	if name == "" {
		return errResult("project_name is required"), nil
	}

	proj, err := s.store.GetProject(name)
	if err != nil {
		return errResult(err.Error()), nil
	}
	if proj == nil {
		return errResult(fmt.Sprintf("project not found: %s", name)), nil
	}
	if err := s.store.DeleteProject(name); err != nil {
		return errResult(fmt.Sprintf("delete failed: %v", err)), nil
	}
	return jsonResult(map[string]any{"deleted": name}), nil
}

// describeDefinitions renders stored definitions with absolute file paths.
func (s *Server) describeDefinitions(defs []*store.Definition) []map[string]any {
	roots := map[string]string{}
	out := make([]map[string]any, 0, len(defs))
	for _, d := range defs {
		root, ok := roots[d.Project]
		if !ok {
			if p, _ := s.store.GetProject(d.Project); p != nil {
				root = p.RootPath
			}
			roots[d.Project] = root
		}
		file := d.RelPath
		if root != "" {
			file = filepath.Join(root, filepath.FromSlash(d.RelPath))
		}
		out = append(out, map[string]any{
			"project":        d.Project,
			"qualified_name": d.QualifiedName,
			"full_name":      d.FullName,
			"kind":           d.Kind,
			"file":           file,
			"line":           d.Line,
			"start_line":     d.StartLine,
			"end_line":       d.EndLine,
		})
	}
	return out
}
