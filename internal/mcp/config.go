// Package mcp manages connections to Model Context Protocol tool servers:
// config loading from two scopes, connection lifecycle, tool catalog
// discovery, and live status reporting.
package mcp

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
)

// ServerConfig declares one MCP server. Exactly one of Command (stdio
// transport) or URL (streamable HTTP / SSE transport) must be set.
type ServerConfig struct {
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Cwd     string            `json:"cwd,omitempty"`
	Env     map[string]string `json:"env,omitempty"`

	URL     string            `json:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`

	Disabled bool `json:"disabled,omitempty"`

	// TimeoutMS bounds the connection attempt; 0 means the default.
	TimeoutMS int `json:"timeout,omitempty"`
}

// Validate checks the config names a usable transport.
func (c *ServerConfig) Validate() error {
	if c.Command == "" && c.URL == "" {
		return fmt.Errorf("server config needs either a command or a url")
	}
	if c.Command != "" && c.URL != "" {
		return fmt.Errorf("server config cannot have both a command and a url")
	}
	return nil
}

// configFile is the on-disk shape of an MCP registry file.
type configFile struct {
	MCPServers map[string]*ServerConfig `json:"mcpServers"`
}

// LoadConfigs reads the global and project registry files and merges them:
// project entries replace global entries of the same name wholesale (no
// field-level merging). Missing files contribute nothing; a malformed file
// is an error so a typo cannot silently drop servers.
func LoadConfigs(globalPath, projectPath string) (map[string]*ServerConfig, error) {
	merged := make(map[string]*ServerConfig)

	for _, path := range []string{globalPath, projectPath} {
		if path == "" {
			continue
		}
		servers, err := loadConfigFile(path)
		if err != nil {
			return nil, err
		}
		for name, cfg := range servers {
			merged[name] = cfg
		}
	}
	return merged, nil
}

func loadConfigFile(path string) (map[string]*ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var file configFile
	if err := json.Unmarshal(jsonc.ToJSON(data), &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return file.MCPServers, nil
}
