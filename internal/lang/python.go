package lang

func init() {
	Register(&LanguageSpec{
		Language:           Python,
		FileExtensions:     []string{".py", ".pyi"},
		FunctionNodeTypes:  []string{"function_definition"},
		ClassNodeTypes:     []string{"class_definition"},
		DecoratedNodeTypes: []string{"decorated_definition"},
		DecoratorNodeTypes: []string{"decorator"},
		DecoratorMarker:    "@",
		FunctionKeyword:    "def",
		ClassKeyword:       "class",
		LocalsMarker:       "<locals>",
	})
}
