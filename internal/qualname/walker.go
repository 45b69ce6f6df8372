package qualname

import (
	"fmt"
	"sort"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/qualname/internal/lang"
	"github.com/DeusData/qualname/internal/parser"
)

// Options tunes how a file's mapping is built.
type Options struct {
	Language lang.Language
	// LocalsMarker overrides the language's local-scope segment.
	LocalsMarker string
	// MaxDecoratorLines caps how many decorator lines are skipped when
	// re-anchoring a definition. Zero means bounded only by file length.
	MaxDecoratorLines int
}

func (o Options) withDefaults() (Options, *lang.LanguageSpec, error) {
	if o.Language == "" {
		o.Language = lang.Python
	}
	spec := lang.ForLanguage(o.Language)
	if spec == nil {
		return o, nil, fmt.Errorf("unsupported language: %s", o.Language)
	}
	if o.LocalsMarker == "" {
		o.LocalsMarker = spec.LocalsMarker
	}
	if o.MaxDecoratorLines < 0 {
		o.MaxDecoratorLines = 0
	}
	return o, spec, nil
}

// Normalized fills in the defaults Build would apply, so two Options that
// build identical mappings compare equal.
func (o Options) Normalized() Options {
	if n, _, err := o.withDefaults(); err == nil {
		return n
	}
	return o
}

// Definition is one function or class definition found in a file.
type Definition struct {
	Name string
	Kind Kind
	// StartLine is the syntactic start reported by the parser. For a
	// decorated definition it is the line of the first decorator.
	StartLine int
	// Line is where the definition was recorded after skipping decorator
	// lines that do not mention the name and keyword.
	Line    int
	EndLine int
	// Scope holds the enclosing segments, outermost first.
	Scope    []string
	Qualname string
}

// Mapping maps definition lines to qualified names for one file.
// It is not modified after Build returns.
type Mapping struct {
	names map[int]string
	defs  []Definition
}

// Lookup returns the qualified name recorded at line.
func (m *Mapping) Lookup(line int) (string, bool) {
	if m == nil {
		return "", false
	}
	qn, ok := m.names[line]
	return qn, ok
}

// Len returns the number of distinct recorded lines.
func (m *Mapping) Len() int {
	if m == nil {
		return 0
	}
	return len(m.names)
}

// Lines returns the recorded lines in ascending order.
func (m *Mapping) Lines() []int {
	lines := make([]int, 0, len(m.names))
	for l := range m.names {
		lines = append(lines, l)
	}
	sort.Ints(lines)
	return lines
}

// Definitions returns every definition visited, in source order.
func (m *Mapping) Definitions() []Definition {
	out := make([]Definition, len(m.defs))
	copy(out, m.defs)
	return out
}

// Build parses Python source and maps each definition line to its
// qualified name.
func Build(source []byte) (*Mapping, LineTable, error) {
	return BuildWithOptions(source, Options{})
}

// BuildWithOptions is Build with explicit options. A source file that does
// not parse cleanly yields a *parser.SyntaxError.
func BuildWithOptions(source []byte, opts Options) (*Mapping, LineTable, error) {
	opts, spec, err := opts.withDefaults()
	if err != nil {
		return nil, nil, err
	}

	tree, err := parser.Parse(opts.Language, source)
	if err != nil {
		return nil, nil, err
	}
	defer tree.Close()

	if err := parser.CheckSyntax(tree, source); err != nil {
		return nil, nil, err
	}

	w := &walker{
		spec:   spec,
		opts:   opts,
		source: source,
		lines:  NewLineTable(source),
		result: &Mapping{names: make(map[int]string)},
	}
	w.visit(tree.RootNode())
	return w.result, w.lines, nil
}

type walker struct {
	spec   *lang.LanguageSpec
	opts   Options
	source []byte
	lines  LineTable
	stack  []string
	result *Mapping
}

func (w *walker) visit(node *tree_sitter.Node) {
	if node == nil {
		return
	}
	kind := node.Kind()
	switch {
	case w.spec.IsDecorated(kind):
		def := node.ChildByFieldName("definition")
		for i := uint(0); i < node.ChildCount(); i++ {
			child := node.Child(i)
			if child == nil {
				continue
			}
			if def != nil && child.Id() == def.Id() {
				w.visitDefinition(child, parser.StartLine(node))
				continue
			}
			w.visit(child)
		}
	case w.spec.IsFunction(kind), w.spec.IsClass(kind):
		w.visitDefinition(node, parser.StartLine(node))
	default:
		w.visitChildren(node)
	}
}

func (w *walker) visitChildren(node *tree_sitter.Node) {
	for i := uint(0); i < node.ChildCount(); i++ {
		w.visit(node.Child(i))
	}
}

// visitDefinition records a function or class anchored at startLine, then
// walks its body with the definition's segments on the stack.
func (w *walker) visitDefinition(node *tree_sitter.Node, startLine int) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		w.visitChildren(node)
		return
	}
	name := parser.NodeText(nameNode, w.source)

	isFunc := w.spec.IsFunction(node.Kind())
	kind, keyword := KindClass, w.spec.ClassKeyword
	if isFunc {
		kind, keyword = KindFunction, w.spec.FunctionKeyword
	}

	w.stack = append(w.stack, name)
	w.record(Definition{
		Name:      name,
		Kind:      kind,
		StartLine: startLine,
		EndLine:   parser.EndLine(node),
	}, keyword)

	pushed := 1
	if isFunc {
		w.stack = append(w.stack, w.opts.LocalsMarker)
		pushed++
	}
	w.visitChildren(node)
	w.stack = w.stack[:len(w.stack)-pushed]
}

func (w *walker) record(def Definition, keyword string) {
	def.Line = w.settle(def.Name, keyword, def.StartLine)
	def.Qualname = strings.Join(w.stack, ".")
	def.Scope = append([]string(nil), w.stack[:len(w.stack)-1]...)
	w.result.names[def.Line] = def.Qualname
	w.result.defs = append(w.result.defs, def)
}

// settle moves line forward past decorator lines until it reaches a line
// mentioning both name and keyword. The containment test is a substring
// match, so a decorator line that happens to contain both stops the walk.
func (w *walker) settle(name, keyword string, line int) int {
	for skipped := 0; ; skipped++ {
		text := w.lines.Line(line)
		if strings.Contains(text, name) && strings.Contains(text, keyword) {
			return line
		}
		if !w.lines.IsDecorator(line, w.spec.DecoratorMarker) {
			return line
		}
		if line >= w.lines.Len() {
			return line
		}
		if w.opts.MaxDecoratorLines > 0 && skipped >= w.opts.MaxDecoratorLines {
			return line
		}
		line++
	}
}
