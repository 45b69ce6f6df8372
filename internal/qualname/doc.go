// Package qualname derives the dotted qualified name of a Python function,
// method or class (e.g. "Outer.method.<locals>.inner") from the file that
// defines it and the first line the runtime reports for it.
//
// A file is parsed once with tree-sitter into a Mapping from definition line
// to qualified name. Mappings are kept in a Cache keyed by canonical path for
// the life of the Cache; they are never invalidated when the file changes.
package qualname
