package workspace

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// MCPServer is one entry of the mcpServers registry in mcp.json
type MCPServer struct {
	Name    string            `json:"name"`
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env"`
}

// ErrMCPServerNotFound indicates the named server is not registered
var ErrMCPServerNotFound = errors.New("mcp server not found")

func (m *Manager) mcpPath() string {
	return filepath.Join(m.dir, "mcp.json")
}

// readMCPConfig loads mcp.json preserving every top-level field. A missing
// or unreadable file yields a fresh config.
func (m *Manager) readMCPConfig() map[string]json.RawMessage {
	config := map[string]json.RawMessage{}
	data, err := os.ReadFile(m.mcpPath())
	if err != nil {
		return config
	}
	if err := json.Unmarshal(data, &config); err != nil {
		return map[string]json.RawMessage{}
	}
	return config
}

func (m *Manager) readServers(config map[string]json.RawMessage) map[string]map[string]any {
	servers := map[string]map[string]any{}
	if raw, ok := config["mcpServers"]; ok {
		// Failed decode is treated as an empty registry
		json.Unmarshal(raw, &servers)
	}
	return servers
}

func (m *Manager) writeMCPConfig(config map[string]json.RawMessage, servers map[string]map[string]any) error {
	raw, err := json.Marshal(servers)
	if err != nil {
		return fmt.Errorf("failed to encode mcp servers: %w", err)
	}
	config["mcpServers"] = raw

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode mcp config: %w", err)
	}
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return fmt.Errorf("failed to create workspace directory: %w", err)
	}
	if err := os.WriteFile(m.mcpPath(), data, 0644); err != nil {
		return fmt.Errorf("failed to write mcp config: %w", err)
	}
	return nil
}

// ListMCPServers returns every registered MCP server. Any read or parse
// problem yields an empty list.
func (m *Manager) ListMCPServers() []MCPServer {
	servers := m.readServers(m.readMCPConfig())

	out := []MCPServer{}
	for name, cfg := range servers {
		server := MCPServer{Name: name, Args: []string{}, Env: map[string]string{}}
		if cmd, ok := cfg["command"].(string); ok {
			server.Command = cmd
		}
		if args, ok := cfg["args"].([]any); ok {
			for _, a := range args {
				if s, ok := a.(string); ok {
					server.Args = append(server.Args, s)
				}
			}
		}
		if env, ok := cfg["env"].(map[string]any); ok {
			for k, v := range env {
				if s, ok := v.(string); ok {
					server.Env[k] = s
				}
			}
		}
		out = append(out, server)
	}
	return out
}

// AddMCPServer registers a server with a command and arguments
func (m *Manager) AddMCPServer(name, command string, args []string) error {
	if !validName(name) {
		return ErrInvalidName
	}
	if command == "" {
		return fmt.Errorf("command is required")
	}

	config := m.readMCPConfig()
	servers := m.readServers(config)

	entry := map[string]any{"command": command}
	if args == nil {
		args = []string{}
	}
	entry["args"] = args
	servers[name] = entry

	return m.writeMCPConfig(config, servers)
}

// RemoveMCPServer deletes a server entry; removing an absent one is a no-op
func (m *Manager) RemoveMCPServer(name string) error {
	if !validName(name) {
		return ErrInvalidName
	}

	config := m.readMCPConfig()
	servers := m.readServers(config)
	if _, ok := servers[name]; !ok {
		return nil
	}
	delete(servers, name)
	return m.writeMCPConfig(config, servers)
}

// UpdateMCPServer replaces a server's whole config object
func (m *Manager) UpdateMCPServer(name string, cfg map[string]any) error {
	if !validName(name) {
		return ErrInvalidName
	}
	if cfg == nil {
		cfg = map[string]any{}
	}

	config := m.readMCPConfig()
	servers := m.readServers(config)
	servers[name] = cfg
	return m.writeMCPConfig(config, servers)
}
