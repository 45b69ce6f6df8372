package fqn

import (
	"path/filepath"
	"strings"
)

// ModuleName returns the dotted Python module name for a repo-relative path.
// Examples:
//   - pkg/service/orders.py -> pkg.service.orders
//   - pkg/service/__init__.py -> pkg.service
func ModuleName(relPath string) string {
	relPath = strings.TrimSuffix(relPath, filepath.Ext(relPath))
	parts := strings.Split(filepath.ToSlash(relPath), "/")

	// For Python __init__.py, drop the __init__ part
	if len(parts) > 0 && parts[len(parts)-1] == "__init__" {
		parts = parts[:len(parts)-1]
	}
	return strings.Join(parts, ".")
}

// Compute returns the project-wide name for a definition.
// Format: <project>.<module>.<qualname>
// Examples:
//   - myproject.pkg.server.Server.handler
//   - myproject.pkg.Outer.method.<locals>.inner
func Compute(project, relPath, qualname string) string {
	all := []string{}
	if project != "" {
		all = append(all, project)
	}
	if mod := ModuleName(relPath); mod != "" {
		all = append(all, mod)
	}
	if qualname != "" {
		all = append(all, qualname)
	}
	return strings.Join(all, ".")
}

// ModuleQN returns the qualified name for a module (file without definition name).
func ModuleQN(project, relPath string) string {
	return Compute(project, relPath, "")
}
