// Package workspace manages the droid CLI's config tree: skill and command
// templates, droid definitions, and the MCP server registry. Everything here
// is plain file CRUD; the engine never depends on it.
package workspace

import (
	"errors"
	"strings"
)

// ErrInvalidName rejects names that are empty or would escape the workspace
var ErrInvalidName = errors.New("invalid name")

// Manager performs CRUD over one workspace directory
type Manager struct {
	dir string
}

// NewManager creates a Manager rooted at dir (typically ~/.factory)
func NewManager(dir string) *Manager {
	return &Manager{dir: dir}
}

// Dir returns the workspace root
func (m *Manager) Dir() string {
	return m.dir
}

// validName accepts plain path-segment names only
func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\\")
}
