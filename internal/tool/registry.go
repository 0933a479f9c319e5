package tool

import (
	"sync"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/sidekick-dev/sidekick/internal/logging"
	"github.com/sidekick-dev/sidekick/pkg/types"
)

// Registry aggregates local built-in tools with externally registered ones
// and answers availability-filtered queries.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	workDir string
}

// NewRegistry creates an empty registry scoped to a working directory.
func NewRegistry(workDir string) *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		workDir: workDir,
	}
}

// DefaultRegistry creates a registry with all built-in tools registered.
func DefaultRegistry(workDir string) *Registry {
	r := NewRegistry(workDir)
	r.Register(NewReadFileTool(workDir))
	r.Register(NewWriteFileTool(workDir))
	r.Register(NewListDirTool(workDir))
	r.Register(NewGlobTool(workDir))
	r.Register(NewFetchTool())
	r.Register(NewHashTool())
	r.Register(NewBase64Tool())
	r.Register(NewUUIDTool())
	return r
}

// Register adds or replaces a tool. Re-registering the same id is how
// refreshed external catalogs update in place.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	logging.Debug().Str("tool", t.ID()).Str("category", t.Category()).Msg("registering tool")
	r.tools[t.ID()] = t
}

// Unregister removes a tool by id.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, id)
}

// UnregisterCategory removes every tool in a category, used when an
// external server disconnects.
func (r *Registry) UnregisterCategory(category string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, t := range r.tools {
		if t.Category() == category {
			delete(r.tools, id)
		}
	}
}

// Get returns the tool with the given id.
func (r *Registry) Get(id string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[id]
	return t, ok
}

// List returns all registered tools, policy applied or not depending on the
// caller: a nil policy returns everything.
func (r *Registry) List(policy *Policy) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		if policy != nil && !policy.Usable(t.ID(), t.Category()) {
			continue
		}
		tools = append(tools, t)
	}
	return tools
}

// Statuses resolves the availability of every registered tool, for UI
// display. Disabled tools are included here even though List drops them.
func (r *Registry) Statuses(policy *Policy) map[string]types.ToolAvailability {
	r.mu.RLock()
	defer r.mu.RUnlock()

	statuses := make(map[string]types.ToolAvailability, len(r.tools))
	for id, t := range r.tools {
		statuses[id] = policy.Resolve(id, t.Category())
	}
	return statuses
}

// EinoTools returns the policy-filtered toolset in eino form, ready to bind
// to a chat model.
func (r *Registry) EinoTools(policy *Policy) []einotool.BaseTool {
	usable := r.List(policy)
	tools := make([]einotool.BaseTool, 0, len(usable))
	for _, t := range usable {
		tools = append(tools, t.EinoTool())
	}
	return tools
}

// ToolInfos returns eino tool infos for the policy-filtered toolset.
func (r *Registry) ToolInfos(policy *Policy) []*schema.ToolInfo {
	usable := r.List(policy)
	infos := make([]*schema.ToolInfo, 0, len(usable))
	for _, t := range usable {
		infos = append(infos, &schema.ToolInfo{
			Name:        t.ID(),
			Desc:        t.Description(),
			ParamsOneOf: schema.NewParamsOneOfByParams(schemaToParams(t.Parameters())),
		})
	}
	return infos
}

// WorkDir returns the registry's working directory.
func (r *Registry) WorkDir() string {
	return r.workDir
}
