package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Command is one slash-command template file
type Command struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

const commandTemplate = "# /%s\n\nCommand instructions here.\n"

// ListCommands returns every .md command template. A missing commands
// directory yields an empty list.
func (m *Manager) ListCommands() []Command {
	commands := []Command{}

	entries, err := os.ReadDir(filepath.Join(m.dir, "commands"))
	if err != nil {
		return commands
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".md") {
			continue
		}
		commands = append(commands, Command{
			Name: strings.TrimSuffix(name, ".md"),
			Path: filepath.Join(m.dir, "commands", name),
		})
	}
	return commands
}

// CreateCommand scaffolds a new command template
func (m *Manager) CreateCommand(name string) error {
	if !validName(name) {
		return ErrInvalidName
	}
	commandsDir := filepath.Join(m.dir, "commands")
	if err := os.MkdirAll(commandsDir, 0755); err != nil {
		return fmt.Errorf("failed to create commands directory: %w", err)
	}
	content := fmt.Sprintf(commandTemplate, name)
	if err := os.WriteFile(filepath.Join(commandsDir, name+".md"), []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write command file: %w", err)
	}
	return nil
}

// DeleteCommand removes a command template
func (m *Manager) DeleteCommand(name string) error {
	if !validName(name) {
		return ErrInvalidName
	}
	if err := os.Remove(filepath.Join(m.dir, "commands", name+".md")); err != nil {
		return fmt.Errorf("failed to delete command: %w", err)
	}
	return nil
}

// ReadCommand returns a command template's content
func (m *Manager) ReadCommand(name string) (string, error) {
	if !validName(name) {
		return "", ErrInvalidName
	}
	data, err := os.ReadFile(filepath.Join(m.dir, "commands", name+".md"))
	if err != nil {
		return "", fmt.Errorf("failed to read command: %w", err)
	}
	return string(data), nil
}

// UpdateCommand replaces a command template's content
func (m *Manager) UpdateCommand(name, content string) error {
	if !validName(name) {
		return ErrInvalidName
	}
	path := filepath.Join(m.dir, "commands", name+".md")
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("failed to update command: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to update command: %w", err)
	}
	return nil
}
