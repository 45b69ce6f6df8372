package lang

// Language represents a supported programming language.
type Language string

const (
	Python Language = "python"
)

// AllLanguages returns all supported languages.
func AllLanguages() []Language {
	return []Language{Python}
}

// LanguageSpec defines the tree-sitter node types and source tokens the
// qualified-name walker needs for a language.
type LanguageSpec struct {
	Language       Language
	FileExtensions []string

	FunctionNodeTypes []string
	ClassNodeTypes    []string
	// DecoratedNodeTypes wrap a definition together with its decorators.
	// The wrapper's start line is what the parser reports as the definition's
	// syntactic start.
	DecoratedNodeTypes []string
	DecoratorNodeTypes []string

	// DecoratorMarker prefixes a decorator line (e.g. "@").
	DecoratorMarker string
	// FunctionKeyword and ClassKeyword must appear on a definition's line.
	FunctionKeyword string
	ClassKeyword    string
	// LocalsMarker is the segment pushed for names local to a function body.
	LocalsMarker string
}

// registry maps file extensions to language specs.
var registry = map[string]*LanguageSpec{}

// Register adds a LanguageSpec to the global registry.
func Register(spec *LanguageSpec) {
	for _, ext := range spec.FileExtensions {
		registry[ext] = spec
	}
}

// ForExtension returns the LanguageSpec for a file extension (e.g. ".py").
func ForExtension(ext string) *LanguageSpec {
	return registry[ext]
}

// ForLanguage returns the LanguageSpec for a language.
func ForLanguage(lang Language) *LanguageSpec {
	for _, spec := range registry {
		if spec.Language == lang {
			return spec
		}
	}
	return nil
}

// LanguageForExtension returns the Language for a file extension.
func LanguageForExtension(ext string) (Language, bool) {
	spec := registry[ext]
	if spec == nil {
		return "", false
	}
	return spec.Language, true
}

// IsFunction reports whether kind is one of the language's function node kinds.
func (s *LanguageSpec) IsFunction(kind string) bool {
	return contains(s.FunctionNodeTypes, kind)
}

// IsClass reports whether kind is one of the language's class node kinds.
func (s *LanguageSpec) IsClass(kind string) bool {
	return contains(s.ClassNodeTypes, kind)
}

// IsDecorated reports whether kind wraps a decorated definition.
func (s *LanguageSpec) IsDecorated(kind string) bool {
	return contains(s.DecoratedNodeTypes, kind)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
