package tools

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/DeusData/qualname/internal/config"
	"github.com/DeusData/qualname/internal/parser"
	"github.com/DeusData/qualname/internal/qualname"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) handleResolveQualname(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}

	kind, err := qualname.ParseKind(getStringArg(args, "kind"))
	if err != nil {
		return errResult(err.Error()), nil
	}
	target := qualname.Target{
		Kind:   kind,
		Name:   getStringArg(args, "name"),
		Native: getStringArg(args, "native_qualname"),
		File:   getStringArg(args, "file_path"),
		Line:   getIntArg(args, "line", 0),
	}
	if target.Native == "" && target.File == "" {
		return errResult("file_path is required"), nil
	}

	res, err := s.resolverFor(target.File).Resolve(ctx, target)
	if err != nil {
		return errResult(describeSourceErr(err)), nil
	}
	if !res.Resolved() {
		return jsonResult(map[string]any{
			"resolved": false,
			"reason":   string(res.Reason),
			"name":     res.Fallback,
			"file":     res.Path,
			"line":     target.Line,
		}), nil
	}
	return jsonResult(map[string]any{
		"resolved":       true,
		"qualified_name": res.Name,
		"origin":         res.Origin.String(),
		"file":           res.Path,
		"line":           res.Line,
	}), nil
}

func (s *Server) handleListDefinitions(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	file := getStringArg(args, "file_path")
	if file == "" {
		return errResult("file_path is required"), nil
	}

	defs, entry, err := s.resolverFor(file).Definitions(ctx, file)
	if err != nil {
		return errResult(describeSourceErr(err)), nil
	}

	out := make([]map[string]any, 0, len(defs))
	for _, d := range defs {
		out = append(out, map[string]any{
			"qualified_name": d.Qualname,
			"name":           d.Name,
			"kind":           d.Kind.String(),
			"line":           d.Line,
			"start_line":     d.StartLine,
			"end_line":       d.EndLine,
		})
	}
	return jsonResult(map[string]any{
		"file":        entry.Path,
		"hash":        entry.Hash,
		"definitions": out,
	}), nil
}

// resolverFor honors the .qualnameconfig next to file, as the resolve
// command does.
func (s *Server) resolverFor(file string) *qualname.Resolver {
	if file == "" {
		return s.resolver
	}
	return s.resolver.ForOptions(config.Load(filepath.Dir(file)).QualnameOptions())
}

// describeSourceErr keeps the underlying message but names the failure class.
func describeSourceErr(err error) string {
	var synErr *parser.SyntaxError
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Sprintf("source file not found: %v", err)
	case errors.As(err, &synErr):
		return fmt.Sprintf("source file does not parse: %v", err)
	default:
		return err.Error()
	}
}
