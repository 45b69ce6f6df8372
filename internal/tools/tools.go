package tools

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/DeusData/qualname/internal/qualname"
	"github.com/DeusData/qualname/internal/store"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Version is reported to MCP clients.
var Version = "dev"

// Server wraps the MCP server with tool handlers.
type Server struct {
	mcp      *mcp.Server
	store    *store.Store
	resolver *qualname.Resolver
	indexMu  sync.Mutex
}

// NewServer creates a new MCP server with all tools registered. A nil
// resolver means qualname.Default.
func NewServer(s *store.Store, r *qualname.Resolver) *Server {
	if r == nil {
		r = qualname.Default
	}
	srv := &Server{
		store:    s,
		resolver: r,
		mcp: mcp.NewServer(
			&mcp.Implementation{
				Name:    "qualname",
				Version: Version,
			},
			nil,
		),
	}
	srv.registerTools()
	return srv
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

func (s *Server) registerTools() {
	s.mcp.AddTool(&mcp.Tool{
		Name:        "resolve_qualname",
		Description: "Resolve the dotted qualified name (e.g. 'Outer.method.<locals>.inner') of a Python function, method or class from its source file and the first line the runtime reports for it. Decorator lines before the def/class line are skipped, so either the decorator line or the keyword line may be given.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"file_path": {
					"type": "string",
					"description": "Path of the defining source file"
				},
				"line": {
					"type": "integer",
					"description": "1-based first line reported for the object"
				},
				"kind": {
					"type": "string",
					"description": "Object kind",
					"enum": ["function", "method", "class"]
				},
				"name": {
					"type": "string",
					"description": "The object's own __name__ (optional, used in error messages)"
				},
				"native_qualname": {
					"type": "string",
					"description": "__qualname__ if the runtime exposes it; returned unchanged without reading the file"
				}
			},
			"required": ["file_path", "line"]
		}`),
	}, s.handleResolveQualname)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "list_definitions",
		Description: "List every function and class definition in a Python file with the line it is recorded at, its syntactic start line and its qualified name.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"file_path": {
					"type": "string",
					"description": "Path of the Python source file"
				}
			},
			"required": ["file_path"]
		}`),
	}, s.handleListDefinitions)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "index_repository",
		Description: "Index every Python file of a repository: record the qualified name of each definition in the local store. Unchanged files (by content hash) are skipped on re-index.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"repo_path": {
					"type": "string",
					"description": "Path to the repository to index"
				}
			},
			"required": ["repo_path"]
		}`),
	}, s.handleIndexRepository)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "find_definition",
		Description: "Find where an indexed definition lives, by in-file qualified name ('Server.handler') or full name ('project.pkg.module.Server.handler').",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"qualified_name": {
					"type": "string",
					"description": "Qualified or full name to look up"
				},
				"project": {
					"type": "string",
					"description": "Restrict to one project (optional)"
				}
			},
			"required": ["qualified_name"]
		}`),
	}, s.handleFindDefinition)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "search_definitions",
		Description: "Search indexed definitions by a glob on their full name (e.g. '*.Server.*', '*<locals>*').",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"pattern": {
					"type": "string",
					"description": "Glob over full names: * matches any run, ? one character"
				},
				"project": {
					"type": "string",
					"description": "Restrict to one project (optional)"
				},
				"limit": {
					"type": "integer",
					"description": "Max results (default 50, max 200)"
				}
			},
			"required": ["pattern"]
		}`),
	}, s.handleSearchDefinitions)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "list_projects",
		Description: "List all indexed projects with their indexed_at timestamp, root path and definition count.",
		InputSchema: json.RawMessage(`{"type": "object"}`),
	}, s.handleListProjects)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "delete_project",
		Description: "Delete an indexed project and all its definitions and file hashes. This action is irreversible.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"project_name": {
					"type": "string",
					"description": "Name of the project to delete"
				}
			},
			"required": ["project_name"]
		}`),
	}, s.handleDeleteProject)
}

// jsonResult marshals data to JSON and returns as tool result.
func jsonResult(data any) *mcp.CallToolResult {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errResult("json marshal err=" + err.Error())
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(b)},
		},
	}
}

// errResult returns a tool result indicating an error.
func errResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}

// parseArgs unmarshals the raw JSON arguments into a map.
func parseArgs(req *mcp.CallToolRequest) (map[string]any, error) {
	if req.Params == nil || len(req.Params.Arguments) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(req.Params.Arguments, &m); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	return m, nil
}

// getStringArg extracts a string argument from parsed args.
func getStringArg(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// getIntArg extracts an integer argument with a default value.
func getIntArg(args map[string]any, key string, defaultVal int) int {
	v, ok := args[key]
	if !ok {
		return defaultVal
	}
	f, ok := v.(float64) // JSON numbers decode as float64
	if !ok {
		return defaultVal
	}
	return int(f)
}
