package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	// Store configuration
	Store StoreConfig

	// Usage endpoint configuration
	Usage UsageConfig

	// Workspace (droid CLI config tree) configuration
	Workspace WorkspaceConfig

	// HTTP server configuration
	HTTP HTTPConfig
}

// StoreConfig holds encrypted key store configuration
type StoreConfig struct {
	// DataDir holds keys.enc, current and list_cache.b64
	DataDir string
}

// UsageConfig holds remote usage endpoint configuration
type UsageConfig struct {
	Endpoint       string
	TimeoutSeconds int
	UserAgent      string
}

// WorkspaceConfig holds the location of the droid CLI config tree
type WorkspaceConfig struct {
	Dir string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Host               string
	Port               int
	WebDir             string
	CORSAllowedOrigins string
	TimeoutSeconds     int
}

// DefaultUsageEndpoint is the metering endpoint queried per key
const DefaultUsageEndpoint = "https://app.factory.ai/api/organization/members/chat-usage"

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// Load loads configuration from environment variables
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	cfg := &Config{
		Store: StoreConfig{
			DataDir: getEnvString("DROIDKEY_DATA_DIR", filepath.Join(homeDir, ".droidkey")),
		},
		Usage: UsageConfig{
			Endpoint:       getEnvString("DROIDKEY_USAGE_ENDPOINT", DefaultUsageEndpoint),
			TimeoutSeconds: getEnvInt("DROIDKEY_USAGE_TIMEOUT_SECONDS", 4),
			UserAgent:      getEnvString("DROIDKEY_USAGE_USER_AGENT", defaultUserAgent),
		},
		Workspace: WorkspaceConfig{
			Dir: getEnvString("DROIDKEY_WORKSPACE_DIR", filepath.Join(homeDir, ".factory")),
		},
		HTTP: HTTPConfig{
			Host:               getEnvString("DROIDKEY_HTTP_HOST", "127.0.0.1"),
			Port:               getEnvInt("DROIDKEY_HTTP_PORT", 8753),
			WebDir:             getEnvString("DROIDKEY_WEB_DIR", "web"),
			CORSAllowedOrigins: getEnvString("DROIDKEY_CORS_ALLOWED_ORIGINS", "*"),
			TimeoutSeconds:     getEnvInt("DROIDKEY_HTTP_TIMEOUT_SECONDS", 60),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Store.DataDir == "" {
		return fmt.Errorf("DROIDKEY_DATA_DIR must not be empty")
	}
	if c.Usage.Endpoint == "" {
		return fmt.Errorf("DROIDKEY_USAGE_ENDPOINT must not be empty")
	}
	if c.Usage.TimeoutSeconds <= 0 {
		return fmt.Errorf("DROIDKEY_USAGE_TIMEOUT_SECONDS must be positive, got %d", c.Usage.TimeoutSeconds)
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("DROIDKEY_HTTP_PORT must be in [1, 65535], got %d", c.HTTP.Port)
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("DROIDKEY_HTTP_TIMEOUT_SECONDS must be positive, got %d", c.HTTP.TimeoutSeconds)
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

// NewTestConfig creates a Config with default values for testing
func NewTestConfig(dataDir, workspaceDir string) *Config {
	return &Config{
		Store: StoreConfig{
			DataDir: dataDir,
		},
		Usage: UsageConfig{
			Endpoint:       DefaultUsageEndpoint,
			TimeoutSeconds: 4,
			UserAgent:      defaultUserAgent,
		},
		Workspace: WorkspaceConfig{
			Dir: workspaceDir,
		},
		HTTP: HTTPConfig{
			Host:               "127.0.0.1",
			Port:               8753,
			WebDir:             "web",
			CORSAllowedOrigins: "*",
			TimeoutSeconds:     60,
		},
	}
}
