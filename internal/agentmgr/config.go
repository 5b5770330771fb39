// Package agentmgr manages client-side subprocess connections to ACP
// agents: which agent binaries are known, how to launch one, and the live
// connections currently open.
package agentmgr

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// AgentConfig describes one launchable ACP agent.
type AgentConfig struct {
	Name        string            `json:"name"`
	DisplayName string            `json:"displayName"`
	Command     string            `json:"command"`
	Args        []string          `json:"args"`
	Env         map[string]string `json:"env,omitempty"`
	Description string            `json:"description,omitempty"`
	AutoDetect  bool              `json:"autoDetect"`
}

// MCPServerConfig describes an MCP server that can be attached to a session
// at creation time. acpkit carries this through as opaque configuration
// (SPEC_FULL.md §5.5); it does not launch MCP servers itself.
type MCPServerConfig struct {
	Name    string            `json:"name"`
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// AppSettings holds application-wide preferences for the reference client.
type AppSettings struct {
	Theme        string `json:"theme"`
	DefaultAgent string `json:"defaultAgent"`
	DefaultCWD   string `json:"defaultCwd"`
	AutoApprove  bool   `json:"autoApprove"`
}

// Config is the top-level client configuration file.
type Config struct {
	Agents     []AgentConfig     `json:"agents"`
	MCPServers []MCPServerConfig `json:"mcpServers,omitempty"`
	Settings   AppSettings       `json:"settings"`
}

// ConfigPath returns the default configuration file path,
// os.UserConfigDir()/acpkit/config.json.
func ConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(dir, "acpkit", "config.json")
}

// DefaultConfig returns a Config populated with well-known ACP agents and
// sensible default settings.
func DefaultConfig() *Config {
	return &Config{
		Agents: WellKnownAgents(),
		Settings: AppSettings{
			Theme:        "dark",
			DefaultAgent: "acp-agent",
			DefaultCWD:   "",
			AutoApprove:  false,
		},
	}
}

// LoadConfig reads the configuration from path. If the file does not exist,
// a default configuration is created, written to disk, and returned.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			if writeErr := SaveConfig(path, cfg); writeErr != nil {
				return nil, fmt.Errorf("agentmgr: create default config: %w", writeErr)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("agentmgr: read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("agentmgr: parse config: %w", err)
	}
	return &cfg, nil
}

// SaveConfig writes the configuration to path, creating parent directories
// as needed.
func SaveConfig(path string, config *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("agentmgr: create config dir: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("agentmgr: marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("agentmgr: write config: %w", err)
	}
	return nil
}
