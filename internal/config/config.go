package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/sidekick-dev/sidekick/pkg/types"
)

// Load merges configuration from all sources, later sources winning:
//
//  1. Global config (~/.config/sidekick/sidekick.json or .jsonc)
//  2. Project config (<dir>/.sidekick/sidekick.json or .jsonc)
//  3. SIDEKICK_CONFIG file override
//  4. Environment variables
//
// Files may be JSONC and may use {env:VAR} / {file:path} placeholders.
// A missing file is not an error; a malformed one is skipped.
func Load(directory string) (*types.Config, error) {
	cfg := &types.Config{
		Provider: make(map[string]types.ProviderConfig),
	}

	loaded := make(map[string]bool)
	loadOnce := func(path, baseDir string) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return
		}
		if loaded[abs] {
			return
		}
		if loadFile(path, cfg, baseDir) == nil {
			loaded[abs] = true
		}
	}

	globalDir := GetPaths().Config
	loadOnce(filepath.Join(globalDir, "sidekick.json"), globalDir)
	loadOnce(filepath.Join(globalDir, "sidekick.jsonc"), globalDir)

	if directory != "" {
		projectDir := filepath.Join(directory, ".sidekick")
		loadOnce(filepath.Join(projectDir, "sidekick.json"), projectDir)
		loadOnce(filepath.Join(projectDir, "sidekick.jsonc"), projectDir)
	}

	if path := os.Getenv("SIDEKICK_CONFIG"); path != "" {
		loadOnce(path, filepath.Dir(path))
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func loadFile(path string, cfg *types.Config, baseDir string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	data = jsonc.ToJSON(data)
	data = interpolate(data, baseDir)

	var fileCfg types.Config
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		return err
	}

	merge(cfg, &fileCfg)
	return nil
}

var (
	envPattern  = regexp.MustCompile(`\{env:([^}]+)\}`)
	filePattern = regexp.MustCompile(`\{file:([^}]+)\}`)
)

// interpolate expands {env:VAR} and {file:path} placeholders in raw config
// bytes. File contents are escaped for embedding in a JSON string.
func interpolate(data []byte, baseDir string) []byte {
	str := string(data)

	str = envPattern.ReplaceAllStringFunc(str, func(match string) string {
		name := envPattern.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})

	str = filePattern.ReplaceAllStringFunc(str, func(match string) string {
		path := filePattern.FindStringSubmatch(match)[1]
		if strings.HasPrefix(path, "~/") {
			path = filepath.Join(os.Getenv("HOME"), path[2:])
		} else if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return match
		}
		escaped := strings.ReplaceAll(string(content), `\`, `\\`)
		escaped = strings.ReplaceAll(escaped, `"`, `\"`)
		escaped = strings.ReplaceAll(escaped, "\n", `\n`)
		escaped = strings.ReplaceAll(escaped, "\r", `\r`)
		escaped = strings.ReplaceAll(escaped, "\t", `\t`)
		return escaped
	})

	return []byte(str)
}

// merge overlays source onto target. Scalars replace when non-empty; maps
// merge per key so a project file can adjust a single provider without
// restating the rest.
func merge(target, source *types.Config) {
	if source.DefaultModel != "" {
		target.DefaultModel = source.DefaultModel
	}
	if source.LogLevel != "" {
		target.LogLevel = source.LogLevel
	}

	for name, p := range source.Provider {
		if target.Provider == nil {
			target.Provider = make(map[string]types.ProviderConfig)
		}
		target.Provider[name] = p
	}

	if source.Tools != nil {
		if target.Tools == nil {
			target.Tools = &types.ToolPolicyConfig{}
		}
		mergePolicy(target.Tools, source.Tools)
	}
}

func mergePolicy(target, source *types.ToolPolicyConfig) {
	if source.Default != "" {
		target.Default = source.Default
	}
	for k, v := range source.Categories {
		if target.Categories == nil {
			target.Categories = make(map[string]types.ToolAvailability)
		}
		target.Categories[k] = v
	}
	for k, v := range source.Servers {
		if target.Servers == nil {
			target.Servers = make(map[string]types.ToolAvailability)
		}
		target.Servers[k] = v
	}
	for k, v := range source.Overrides {
		if target.Overrides == nil {
			target.Overrides = make(map[string]types.ToolAvailability)
		}
		target.Overrides[k] = v
	}
}

// applyEnvOverrides fills provider keys from well-known environment
// variables without clobbering values set in config files.
func applyEnvOverrides(cfg *types.Config) {
	providerEnv := map[string]string{
		"anthropic": "ANTHROPIC_API_KEY",
		"openai":    "OPENAI_API_KEY",
		"gemini":    "GEMINI_API_KEY",
	}
	for provider, envVar := range providerEnv {
		key := os.Getenv(envVar)
		if key == "" {
			continue
		}
		if cfg.Provider == nil {
			cfg.Provider = make(map[string]types.ProviderConfig)
		}
		p := cfg.Provider[provider]
		if p.APIKey == "" {
			p.APIKey = key
			cfg.Provider[provider] = p
		}
	}

	if model := os.Getenv("SIDEKICK_MODEL"); model != "" {
		cfg.DefaultModel = model
	}
	if level := os.Getenv("SIDEKICK_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
}

// Save writes the configuration to path, creating parent directories.
func Save(cfg *types.Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
