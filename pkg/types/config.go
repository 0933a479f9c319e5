package types

// Config is the merged application configuration (global scope overlaid by
// project scope, then environment overrides).
type Config struct {
	// DefaultModel is "provider/model", used when a chat has no own config.
	DefaultModel string `json:"defaultModel,omitempty"`

	Provider map[string]ProviderConfig `json:"provider,omitempty"`
	Tools    *ToolPolicyConfig         `json:"tools,omitempty"`

	// LogLevel overrides the serve-time log level ("debug", "info", ...).
	LogLevel string `json:"logLevel,omitempty"`
}

// ProviderConfig configures one LLM provider. The API key here is a
// fallback for environments without a keyring; the secret store wins.
type ProviderConfig struct {
	APIKey   string `json:"apiKey,omitempty"`
	BaseURL  string `json:"baseUrl,omitempty"`
	Disabled bool   `json:"disabled,omitempty"`
}

// ToolAvailability is the resolved enable state of a tool.
type ToolAvailability string

const (
	ToolAlwaysAvailable       ToolAvailability = "always"
	ToolRequiresAuthorization ToolAvailability = "requires-auth"
	ToolDisabled              ToolAvailability = "disabled"
)

// ToolPolicyConfig holds the three-tier tool enable policy. Most specific
// wins: Overrides (per tool id) over Categories/Servers (per group) over
// Default. Unconfigured tools resolve to "always".
type ToolPolicyConfig struct {
	Default    ToolAvailability            `json:"default,omitempty"`
	Categories map[string]ToolAvailability `json:"categories,omitempty"`
	Servers    map[string]ToolAvailability `json:"servers,omitempty"`
	Overrides  map[string]ToolAvailability `json:"overrides,omitempty"`
}
