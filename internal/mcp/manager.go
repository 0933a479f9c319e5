package mcp

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sidekick-dev/sidekick/internal/event"
	"github.com/sidekick-dev/sidekick/internal/logging"
	"github.com/sidekick-dev/sidekick/internal/tool"
)

// defaultConnectTimeout bounds a connection attempt; an attempt that does
// not complete in time is recorded as failed. No automatic retry loop runs
// behind it.
const defaultConnectTimeout = 12 * time.Second

// ServerState is the lifecycle state of one configured server.
type ServerState string

const (
	StateDisabled   ServerState = "disabled"
	StateConnecting ServerState = "connecting"
	StateConnected  ServerState = "connected"
	StateFailed     ServerState = "failed"
)

// CatalogTool is one discovered tool, as reported in status.
type CatalogTool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ServerStatus is the derived per-server record: recomputed from merged
// config plus the live connection map, never persisted.
type ServerStatus struct {
	Name      string        `json:"name"`
	State     ServerState   `json:"state"`
	Enabled   bool          `json:"enabled"`
	Connected bool          `json:"connected"`
	Tools     []CatalogTool `json:"tools,omitempty"`
	LastError string        `json:"lastError,omitempty"`
}

// session is the slice of the SDK client session the manager uses,
// abstracted so tests can fake a server without spawning one.
type session interface {
	ListTools(ctx context.Context, params *sdkmcp.ListToolsParams) (*sdkmcp.ListToolsResult, error)
	CallTool(ctx context.Context, params *sdkmcp.CallToolParams) (*sdkmcp.CallToolResult, error)
	Close() error
}

// dialFunc opens a transport session for one server config.
type dialFunc func(ctx context.Context, name string, cfg *ServerConfig) (session, error)

// serverConn is the live record for one configured server.
type serverConn struct {
	name    string
	config  *ServerConfig
	session session

	tools []*sdkmcp.Tool

	// connectErr marks a failed connection. catalogErr marks a healthy
	// transport whose tool listing failed: connected-with-error, eligible
	// for a catalog-only retry.
	connectErr string
	catalogErr string
}

// Manager owns every MCP server connection. The connection map is guarded
// as one critical section: ReloadAll fully completes (close old, open new)
// before any aggregation query observes the new view.
type Manager struct {
	globalPath  string
	projectPath string
	registry    *tool.Registry
	bus         *event.Bus
	client      *sdkmcp.Client
	dial        dialFunc

	mu      sync.RWMutex
	servers map[string]*serverConn
}

// NewManager creates a manager reading configs from the two given registry
// files. Call ReloadAll to perform the initial connect.
func NewManager(globalPath, projectPath string, registry *tool.Registry, bus *event.Bus) *Manager {
	m := &Manager{
		globalPath:  globalPath,
		projectPath: projectPath,
		registry:    registry,
		bus:         bus,
		servers:     make(map[string]*serverConn),
		client: sdkmcp.NewClient(&sdkmcp.Implementation{
			Name:    "sidekick",
			Version: "1.0.0",
		}, nil),
	}
	m.dial = m.dialReal
	return m
}

// ReloadAll tears down every open connection, re-reads the merged config,
// and reconnects from scratch. No diffing: config changes always go through
// the full cycle.
func (m *Manager) ReloadAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, conn := range m.servers {
		m.closeLocked(conn)
	}
	m.servers = make(map[string]*serverConn)

	configs, err := LoadConfigs(m.globalPath, m.projectPath)
	if err != nil {
		m.publishStatusLocked()
		return err
	}

	for name, cfg := range configs {
		m.servers[name] = m.connect(ctx, name, cfg)
	}
	m.publishStatusLocked()
	return nil
}

// Retry re-attempts a single server without touching the others. A server
// that is connected but missing its catalog retries only the catalog fetch;
// anything else reconnects from scratch.
func (m *Manager) Retry(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, ok := m.servers[name]
	if !ok {
		return fmt.Errorf("unknown server: %s", name)
	}

	if conn.session != nil && conn.catalogErr != "" {
		m.fetchCatalog(ctx, conn)
	} else {
		m.closeLocked(conn)
		m.servers[name] = m.connect(ctx, name, conn.config)
	}
	m.publishStatusLocked()

	if conn := m.servers[name]; conn.connectErr != "" {
		return fmt.Errorf("connect %s: %s", name, conn.connectErr)
	} else if conn.catalogErr != "" {
		return fmt.Errorf("catalog %s: %s", name, conn.catalogErr)
	}
	return nil
}

// connect opens one server and fetches its catalog. Always returns a
// record; failure is encoded in the record's error fields.
func (m *Manager) connect(ctx context.Context, name string, cfg *ServerConfig) *serverConn {
	conn := &serverConn{name: name, config: cfg}

	if cfg.Disabled {
		return conn
	}
	if err := cfg.Validate(); err != nil {
		conn.connectErr = err.Error()
		return conn
	}

	timeout := defaultConnectTimeout
	if cfg.TimeoutMS > 0 {
		timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	sess, err := m.dial(dialCtx, name, cfg)
	if err != nil {
		conn.connectErr = err.Error()
		logging.Warn().Str("server", name).Err(err).Msg("mcp connect failed")
		return conn
	}
	conn.session = sess

	m.fetchCatalog(ctx, conn)
	return conn
}

// fetchCatalog lists the server's tools and registers them. The transport
// stays open on failure so a later retry can re-fetch just the catalog.
func (m *Manager) fetchCatalog(ctx context.Context, conn *serverConn) {
	listCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	var result *sdkmcp.ListToolsResult
	op := func() error {
		var err error
		result, err = conn.session.ListTools(listCtx, nil)
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), listCtx)

	if err := backoff.Retry(op, policy); err != nil {
		conn.tools = nil
		conn.catalogErr = err.Error()
		logging.Warn().Str("server", conn.name).Err(err).Msg("mcp catalog fetch failed")
		return
	}

	conn.tools = result.Tools
	conn.catalogErr = ""
	m.registerTools(conn)
	logging.Info().Str("server", conn.name).Int("tools", len(conn.tools)).Msg("mcp server connected")
}

// registerTools replaces the server's entries in the tool registry.
func (m *Manager) registerTools(conn *serverConn) {
	if m.registry == nil {
		return
	}
	m.registry.UnregisterCategory(conn.name)
	for _, t := range conn.tools {
		m.registry.Register(newServerTool(m, conn.name, t))
	}
	m.notifyToolsChanged(conn.name)
}

// closeLocked shuts one connection and drops its registered tools.
func (m *Manager) closeLocked(conn *serverConn) {
	if conn.session != nil {
		_ = conn.session.Close()
		conn.session = nil
	}
	if m.registry != nil {
		m.registry.UnregisterCategory(conn.name)
		m.notifyToolsChanged(conn.name)
	}
}

// notifyToolsChanged tells subscribers the aggregated toolset moved after a
// server's tools were (un)registered.
func (m *Manager) notifyToolsChanged(server string) {
	if m.bus != nil {
		m.bus.Publish(event.TopicToolStatus, map[string]string{"source": "mcp:" + server})
	}
}

// Status projects the current per-server view. Pure: it never opens or
// closes a connection as a side effect.
func (m *Manager) Status() []ServerStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statusLocked()
}

func (m *Manager) statusLocked() []ServerStatus {
	statuses := make([]ServerStatus, 0, len(m.servers))
	for name, conn := range m.servers {
		s := ServerStatus{
			Name:      name,
			Enabled:   !conn.config.Disabled,
			Connected: conn.session != nil,
		}
		switch {
		case conn.config.Disabled:
			s.State = StateDisabled
		case conn.connectErr != "":
			s.State = StateFailed
			s.LastError = conn.connectErr
		case conn.session == nil:
			s.State = StateConnecting
		default:
			s.State = StateConnected
			s.LastError = conn.catalogErr
			for _, t := range conn.tools {
				s.Tools = append(s.Tools, CatalogTool{Name: t.Name, Description: t.Description})
			}
		}
		statuses = append(statuses, s)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses
}

func (m *Manager) publishStatusLocked() {
	if m.bus != nil {
		m.bus.PublishRetained(event.TopicMCPStatus, m.statusLocked())
	}
}

// CallTool invokes a tool on a connected server by its original name.
func (m *Manager) CallTool(ctx context.Context, serverName, toolName string, args map[string]any) (string, error) {
	m.mu.RLock()
	conn, ok := m.servers[serverName]
	var sess session
	if ok {
		sess = conn.session
	}
	m.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("unknown server: %s", serverName)
	}
	if sess == nil {
		return "", fmt.Errorf("server not connected: %s", serverName)
	}

	result, err := sess.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      toolName,
		Arguments: args,
	})
	if err != nil {
		return "", err
	}

	var out strings.Builder
	for _, content := range result.Content {
		if text, ok := content.(*sdkmcp.TextContent); ok {
			out.WriteString(text.Text)
		}
	}
	if result.IsError {
		msg := out.String()
		if msg == "" {
			msg = "tool execution failed"
		}
		return "", fmt.Errorf("tool error: %s", msg)
	}
	return out.String(), nil
}

// Close tears down every connection.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, conn := range m.servers {
		m.closeLocked(conn)
	}
	m.servers = make(map[string]*serverConn)
	return nil
}

// dialReal opens a transport with the SDK client: a spawned subprocess for
// command servers, streamable HTTP with an SSE fallback for url servers.
func (m *Manager) dialReal(ctx context.Context, name string, cfg *ServerConfig) (session, error) {
	if cfg.Command != "" {
		cmd := exec.Command(cfg.Command, cfg.Args...)
		cmd.Dir = cfg.Cwd
		cmd.Env = os.Environ()
		for k, v := range cfg.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
		return m.client.Connect(ctx, &sdkmcp.CommandTransport{Command: cmd}, nil)
	}

	httpClient := clientWithHeaders(cfg.Headers)
	transports := []sdkmcp.Transport{
		&sdkmcp.StreamableClientTransport{Endpoint: cfg.URL, HTTPClient: httpClient},
		&sdkmcp.SSEClientTransport{Endpoint: cfg.URL, HTTPClient: httpClient},
	}

	var lastErr error
	for _, transport := range transports {
		sess, err := m.client.Connect(ctx, transport, nil)
		if err == nil {
			return sess, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// clientWithHeaders wraps the default HTTP client so every request carries
// the configured headers. Timeouts come from per-request contexts.
func clientWithHeaders(headers map[string]string) *http.Client {
	client := &http.Client{}
	if len(headers) == 0 {
		return client
	}
	client.Transport = &headerRoundTripper{headers: headers, next: http.DefaultTransport}
	return client
}

type headerRoundTripper struct {
	headers map[string]string
	next    http.RoundTripper
}

func (h *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	cloned := req.Clone(req.Context())
	for k, v := range h.headers {
		cloned.Header.Set(k, v)
	}
	return h.next.RoundTrip(cloned)
}
