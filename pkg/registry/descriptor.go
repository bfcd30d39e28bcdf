// Package registry discovers agents and skills from a well-known pair of
// filesystem directories, caches the result with a coarse TTL, and answers
// the validation and prompt-enrichment questions AgenticExecutor and
// Policy need. It stands in for a dynamic plugin system: it only parses
// capability descriptors, never imports or executes anything, mirroring
// the teacher's MCP tool-cache discipline (lock ordering, never hold a
// lock across I/O) without ever invoking the tools it describes.
package registry

// AgentDescriptor describes one discovered agent definition.
type AgentDescriptor struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Tools       []string `yaml:"tools,omitempty"`
	AllowedTools []string `yaml:"allowed-tools,omitempty"`
	Model       string   `yaml:"model,omitempty"`
	SourcePath  string   `yaml:"-"`
}

// SkillDescriptor describes one discovered skill definition.
type SkillDescriptor struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Command     string `yaml:"command,omitempty"`
	SourcePath  string `yaml:"-"`
}

// List is the capabilities endpoint's payload shape.
type List struct {
	Agents   []AgentDescriptor
	Skills   []SkillDescriptor
	MCPTools map[string][]string // serverID -> tool names, empty unless MCP is configured
}
