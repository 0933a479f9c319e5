package tool

import "github.com/sidekick-dev/sidekick/pkg/types"

// Policy resolves tool availability from the three configuration tiers.
// Most specific wins: a per-tool override beats the tool's category or
// server default, which beats the global default. A tool nothing mentions
// is always available.
type Policy struct {
	cfg *types.ToolPolicyConfig
}

// NewPolicy wraps a policy config. A nil config permits everything.
func NewPolicy(cfg *types.ToolPolicyConfig) *Policy {
	return &Policy{cfg: cfg}
}

// Resolve returns the availability of the tool with the given id and
// grouping key (built-in category or server name).
func (p *Policy) Resolve(id, category string) types.ToolAvailability {
	if p == nil || p.cfg == nil {
		return types.ToolAlwaysAvailable
	}

	if status, ok := p.cfg.Overrides[id]; ok && status != "" {
		return status
	}
	if status, ok := p.cfg.Categories[category]; ok && status != "" {
		return status
	}
	if status, ok := p.cfg.Servers[category]; ok && status != "" {
		return status
	}
	if p.cfg.Default != "" {
		return p.cfg.Default
	}
	return types.ToolAlwaysAvailable
}

// Usable reports whether the tool may be offered to the model. Tools that
// require authorization still count as usable; only disabled ones drop out.
func (p *Policy) Usable(id, category string) bool {
	return p.Resolve(id, category) != types.ToolDisabled
}
