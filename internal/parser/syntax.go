package parser

import (
	"fmt"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// SyntaxError reports the first ERROR or MISSING node in a parsed tree.
// Line and Column are 1-based.
type SyntaxError struct {
	Line    int
	Column  int
	Snippet string
	Missing bool
}

func (e *SyntaxError) Error() string {
	if e.Missing {
		return fmt.Sprintf("syntax error at %d:%d: missing %q", e.Line, e.Column, e.Snippet)
	}
	return fmt.Sprintf("syntax error at %d:%d near %q", e.Line, e.Column, e.Snippet)
}

// CheckSyntax returns a *SyntaxError when the tree-sitter parse recovered
// from malformed input. Tree-sitter never fails outright, so callers that
// need strict parsing must call this after Parse.
func CheckSyntax(tree *tree_sitter.Tree, source []byte) error {
	root := tree.RootNode()
	if root == nil || !root.HasError() {
		return nil
	}

	var bad *tree_sitter.Node
	Walk(root, func(n *tree_sitter.Node) bool {
		if bad != nil {
			return false
		}
		if n.IsError() || n.IsMissing() {
			bad = n
			return false
		}
		return n.HasError()
	})
	if bad == nil {
		return &SyntaxError{Line: StartLine(root), Column: 1}
	}

	snippet := NodeText(bad, source)
	if bad.IsMissing() {
		snippet = bad.Kind()
	}
	if len(snippet) > 40 {
		snippet = snippet[:40] + "..."
	}
	return &SyntaxError{
		Line:    StartLine(bad),
		Column:  int(bad.StartPosition().Column) + 1,
		Snippet: snippet,
		Missing: bad.IsMissing(),
	}
}
