package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// Definition is one function or class recorded for a project file.
type Definition struct {
	ID        int64
	Project   string
	RelPath   string
	Line      int
	StartLine int
	EndLine   int
	Kind      string
	Name      string
	// QualifiedName is the in-file dotted name, e.g. Outer.method.<locals>.inner.
	QualifiedName string
	// FullName prefixes QualifiedName with project and module.
	FullName   string
	Properties map[string]any
}

const definitionCols = `id, project, rel_path, line, start_line, end_line, kind, name, qualified_name, full_name, properties`

// ReplaceDefinitions swaps a file's definitions for defs.
func (s *Store) ReplaceDefinitions(project, relPath string, defs []*Definition) error {
	if _, err := s.q.Exec("DELETE FROM definitions WHERE project=? AND rel_path=?", project, relPath); err != nil {
		return fmt.Errorf("delete definitions: %w", err)
	}
	for start := 0; start < len(defs); start += definitionsBatchSize {
		end := min(start+definitionsBatchSize, len(defs))
		if err := s.insertDefinitionChunk(project, relPath, defs[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// Formula-derived batch size: SQLite has a 999 bind variable limit.
const numDefinitionCols = 10
const definitionsBatchSize = 999 / numDefinitionCols

func (s *Store) insertDefinitionChunk(project, relPath string, batch []*Definition) error {
	if len(batch) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString(`INSERT OR REPLACE INTO definitions
		(project, rel_path, line, start_line, end_line, kind, name, qualified_name, full_name, properties) VALUES `)
	args := make([]any, 0, len(batch)*numDefinitionCols)
	for i, d := range batch {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, project, relPath, d.Line, d.StartLine, d.EndLine, d.Kind, d.Name,
			d.QualifiedName, d.FullName, marshalProps(d.Properties))
	}
	if _, err := s.q.Exec(sb.String(), args...); err != nil {
		return fmt.Errorf("insert definitions: %w", err)
	}
	return nil
}

// DeleteDefinitionsByFile removes a file's definitions.
func (s *Store) DeleteDefinitionsByFile(project, relPath string) error {
	_, err := s.q.Exec("DELETE FROM definitions WHERE project=? AND rel_path=?", project, relPath)
	return err
}

// DefinitionsForFile returns a file's definitions ordered by line.
func (s *Store) DefinitionsForFile(project, relPath string) ([]*Definition, error) {
	rows, err := s.q.Query(`SELECT `+definitionCols+`
		FROM definitions WHERE project=? AND rel_path=? ORDER BY line, id`, project, relPath)
	if err != nil {
		return nil, fmt.Errorf("definitions for file: %w", err)
	}
	defer rows.Close()
	return scanDefinitions(rows)
}

// FindByQualname looks a definition up by in-file or full name. An empty
// project searches every project.
func (s *Store) FindByQualname(project, name string) ([]*Definition, error) {
	query := `SELECT ` + definitionCols + ` FROM definitions WHERE (qualified_name=? OR full_name=?)`
	args := []any{name, name}
	if project != "" {
		query += " AND project=?"
		args = append(args, project)
	}
	query += " ORDER BY project, rel_path, line"
	rows, err := s.q.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("find by qualname: %w", err)
	}
	defer rows.Close()
	return scanDefinitions(rows)
}

// SearchDefinitions matches full names against a glob pattern
// ("*" and "**" match any run, "?" one character).
func (s *Store) SearchDefinitions(project, pattern string, limit int) ([]*Definition, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + definitionCols + ` FROM definitions WHERE full_name LIKE ? ESCAPE '\'`
	args := []any{globToLike(pattern)}
	if project != "" {
		query += " AND project=?"
		args = append(args, project)
	}
	query += " ORDER BY full_name LIMIT ?"
	args = append(args, limit)
	rows, err := s.q.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("search definitions: %w", err)
	}
	defer rows.Close()
	return scanDefinitions(rows)
}

// CountDefinitions returns the number of definitions stored for a project.
func (s *Store) CountDefinitions(project string) (int, error) {
	var count int
	err := s.q.QueryRow("SELECT COUNT(*) FROM definitions WHERE project=?", project).Scan(&count)
	return count, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// globToLike turns * and ? into LIKE wildcards; literal % and _ are escaped.
func globToLike(pattern string) string {
	result := likeEscaper.Replace(pattern)
	result = strings.ReplaceAll(result, "**", "%")
	result = strings.ReplaceAll(result, "*", "%")
	result = strings.ReplaceAll(result, "?", "_")
	return result
}

func scanDefinitions(rows *sql.Rows) ([]*Definition, error) {
	var result []*Definition
	for rows.Next() {
		var d Definition
		var props string
		if err := rows.Scan(&d.ID, &d.Project, &d.RelPath, &d.Line, &d.StartLine, &d.EndLine,
			&d.Kind, &d.Name, &d.QualifiedName, &d.FullName, &props); err != nil {
			return nil, err
		}
		d.Properties = unmarshalProps(props)
		result = append(result, &d)
	}
	return result, rows.Err()
}
