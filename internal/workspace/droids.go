package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Droid is one custom droid definition file
type Droid struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

const droidTemplate = "---\nname: %s\ndescription: A custom droid\n---\n\n# %s\n\nDroid instructions here.\n"

// ListDroids returns every .md droid definition. A missing droids directory
// yields an empty list.
func (m *Manager) ListDroids() []Droid {
	droids := []Droid{}

	entries, err := os.ReadDir(filepath.Join(m.dir, "droids"))
	if err != nil {
		return droids
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".md") {
			continue
		}
		droids = append(droids, Droid{
			Name: strings.TrimSuffix(name, ".md"),
			Path: filepath.Join(m.dir, "droids", name),
		})
	}
	return droids
}

// CreateDroid scaffolds a droid definition with a front-matter stub
func (m *Manager) CreateDroid(name string) error {
	if !validName(name) {
		return ErrInvalidName
	}
	droidsDir := filepath.Join(m.dir, "droids")
	if err := os.MkdirAll(droidsDir, 0755); err != nil {
		return fmt.Errorf("failed to create droids directory: %w", err)
	}
	content := fmt.Sprintf(droidTemplate, name, name)
	if err := os.WriteFile(filepath.Join(droidsDir, name+".md"), []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write droid file: %w", err)
	}
	return nil
}

// DeleteDroid removes a droid definition
func (m *Manager) DeleteDroid(name string) error {
	if !validName(name) {
		return ErrInvalidName
	}
	if err := os.Remove(filepath.Join(m.dir, "droids", name+".md")); err != nil {
		return fmt.Errorf("failed to delete droid: %w", err)
	}
	return nil
}
