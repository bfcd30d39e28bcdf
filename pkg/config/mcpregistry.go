package config

import "fmt"

// MCPServerRegistry is a read-only lookup over configured MCP servers,
// handed to pkg/mcp so it never needs to know about YAML shapes.
type MCPServerRegistry struct {
	byID map[string]MCPServerEntry
	ids  []string
}

// NewMCPServerRegistry builds a registry from the resolved server list.
// A nil or empty slice yields a registry with zero servers, not an error —
// MCP augmentation is optional.
func NewMCPServerRegistry(servers []MCPServerEntry) *MCPServerRegistry {
	r := &MCPServerRegistry{byID: make(map[string]MCPServerEntry, len(servers))}
	for _, s := range servers {
		r.byID[s.ID] = s
		r.ids = append(r.ids, s.ID)
	}
	return r
}

// Get returns the named server's configuration.
func (r *MCPServerRegistry) Get(id string) (MCPServerEntry, error) {
	s, ok := r.byID[id]
	if !ok {
		return MCPServerEntry{}, fmt.Errorf("mcp server %q not configured", id)
	}
	return s, nil
}

// ServerIDs returns every configured server ID.
func (r *MCPServerRegistry) ServerIDs() []string {
	return r.ids
}
