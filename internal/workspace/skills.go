package workspace

import (
	"fmt"
	"os"
	"path/filepath"
)

// Skill is one skill directory containing a SKILL.md
type Skill struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

const skillTemplate = "# %s\n\nDescribe your skill instructions here.\n"

// ListSkills returns every skill directory holding a SKILL.md. A missing
// skills directory yields an empty list.
func (m *Manager) ListSkills() []Skill {
	skills := []Skill{}

	entries, err := os.ReadDir(filepath.Join(m.dir, "skills"))
	if err != nil {
		return skills
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		skillFile := filepath.Join(m.dir, "skills", entry.Name(), "SKILL.md")
		if info, err := os.Stat(skillFile); err == nil && info.Mode().IsRegular() {
			skills = append(skills, Skill{Name: entry.Name(), Path: skillFile})
		}
	}
	return skills
}

// CreateSkill scaffolds a new skill directory with a SKILL.md stub
func (m *Manager) CreateSkill(name string) error {
	if !validName(name) {
		return ErrInvalidName
	}
	skillDir := filepath.Join(m.dir, "skills", name)
	if err := os.MkdirAll(skillDir, 0755); err != nil {
		return fmt.Errorf("failed to create skill directory: %w", err)
	}
	content := fmt.Sprintf(skillTemplate, name)
	if err := os.WriteFile(filepath.Join(skillDir, "SKILL.md"), []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write SKILL.md: %w", err)
	}
	return nil
}

// DeleteSkill removes a skill directory and everything in it
func (m *Manager) DeleteSkill(name string) error {
	if !validName(name) {
		return ErrInvalidName
	}
	if err := os.RemoveAll(filepath.Join(m.dir, "skills", name)); err != nil {
		return fmt.Errorf("failed to delete skill: %w", err)
	}
	return nil
}
