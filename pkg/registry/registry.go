package registry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tarsygate/llmgate/pkg/mcp"
)

// Registry discovers and caches agent/skill descriptors. It is
// process-local, not shared, and never executes anything it discovers —
// only describes it.
type Registry struct {
	agentsRoot string
	skillsRoot string
	ttl        time.Duration
	logger     *slog.Logger

	mcpClient    *mcp.Client
	mcpServerIDs []string

	mu       sync.RWMutex
	cached   List
	lastScan time.Time
}

// New builds a Registry over the configured agent/skill roots.
func New(agentsRoot, skillsRoot string, ttl time.Duration, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		agentsRoot: agentsRoot,
		skillsRoot: skillsRoot,
		ttl:        ttl,
		logger:     logger,
	}
}

// List returns the current agent/skill descriptors, rescanning if the
// cache has exceeded its TTL.
func (r *Registry) List() List {
	r.mu.RLock()
	fresh := r.ttl <= 0 || time.Since(r.lastScan) < r.ttl
	cached := r.cached
	r.mu.RUnlock()

	if fresh && !r.lastScan.IsZero() {
		return cached
	}

	return r.Refresh()
}

// AttachMCP enables live MCP tool-listing augmentation: Refresh will probe
// each of serverIDs for its current tools and fold the result into
// List.MCPTools. Calling this is optional; a Registry with no attached
// client just reports empty MCPTools.
func (r *Registry) AttachMCP(client *mcp.Client, serverIDs []string) {
	r.mcpClient = client
	r.mcpServerIDs = serverIDs
}

// FailedMCPServers reports configured MCP servers that failed to connect,
// keyed by server ID with the connection error as the value, for
// healthHandler to surface. Empty when no MCP client is attached.
func (r *Registry) FailedMCPServers() map[string]string {
	if r.mcpClient == nil {
		return nil
	}
	return r.mcpClient.FailedServers()
}

// Refresh forces a rescan of both roots, replacing the cache.
func (r *Registry) Refresh() List {
	agents, agentWarnings := scanAgents(r.agentsRoot)
	skills, skillWarnings := scanSkills(r.skillsRoot)

	for _, w := range agentWarnings {
		r.logger.Warn("registry scan issue", "detail", w)
	}
	for _, w := range skillWarnings {
		r.logger.Warn("registry scan issue", "detail", w)
	}

	list := List{Agents: agents, Skills: skills, MCPTools: r.refreshMCPTools()}

	r.mu.Lock()
	r.cached = list
	r.lastScan = time.Now()
	r.mu.Unlock()

	return list
}

// refreshMCPTools lists tools from every attached MCP server, tolerating
// individual server failures the same way scanAgents/scanSkills tolerate a
// malformed file: log and move on, never fail the whole refresh.
func (r *Registry) refreshMCPTools() map[string][]string {
	if r.mcpClient == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	byServer, err := r.mcpClient.ListAllTools(ctx)
	if err != nil {
		r.logger.Warn("mcp tool listing failed", "error", err)
	}

	names := make(map[string][]string, len(r.mcpServerIDs))
	for serverID, tools := range byServer {
		toolNames := make([]string, len(tools))
		for i, t := range tools {
			toolNames[i] = t.Name
		}
		names[serverID] = toolNames
	}
	return names
}

// LastScan reports when the cache was last populated.
func (r *Registry) LastScan() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastScan
}

// ValidateAgents reports which requested agent names are not registered.
func (r *Registry) ValidateAgents(names []string) []string {
	list := r.List()
	known := make(map[string]bool, len(list.Agents))
	for _, a := range list.Agents {
		known[a.Name] = true
	}
	return missingNames(names, known)
}

// ValidateSkills reports which requested skill names are not registered.
func (r *Registry) ValidateSkills(names []string) []string {
	list := r.List()
	known := make(map[string]bool, len(list.Skills))
	for _, s := range list.Skills {
		known[s.Name] = true
	}
	return missingNames(names, known)
}

func missingNames(names []string, known map[string]bool) []string {
	var missing []string
	for _, n := range names {
		if !known[n] {
			missing = append(missing, n)
		}
	}
	return missing
}

// EnrichPrompt prepends an enumerated description block for the named
// agents/skills and appends an invocation-syntax hint. The enrichment is
// additive: it never rewrites basePrompt's own text.
func (r *Registry) EnrichPrompt(basePrompt string, agentNames, skillNames []string) string {
	if len(agentNames) == 0 && len(skillNames) == 0 {
		return basePrompt
	}

	list := r.List()
	byAgent := make(map[string]AgentDescriptor, len(list.Agents))
	for _, a := range list.Agents {
		byAgent[a.Name] = a
	}
	bySkill := make(map[string]SkillDescriptor, len(list.Skills))
	for _, s := range list.Skills {
		bySkill[s.Name] = s
	}

	var b strings.Builder
	b.WriteString("Available capabilities for this task:\n")
	for _, name := range agentNames {
		if a, ok := byAgent[name]; ok {
			fmt.Fprintf(&b, "- agent %q: %s\n", a.Name, a.Description)
		}
	}
	for _, name := range skillNames {
		if s, ok := bySkill[name]; ok {
			fmt.Fprintf(&b, "- skill %q: %s\n", s.Name, s.Description)
		}
	}
	b.WriteString("\n")
	b.WriteString(basePrompt)
	b.WriteString("\n\nInvoke an agent with @agent:<name> and a skill with @skill:<name>.\n")

	return b.String()
}
