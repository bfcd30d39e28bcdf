package config

import "time"

// GatewayYAMLConfig follows the teacher's top-level YAML document shape
// but carries llmgate's own fields.
type GatewayYAMLConfig struct {
	System     *SystemYAMLConfig       `yaml:"system"`
	WorkerPool *WorkerPoolConfig       `yaml:"worker_pool"`
	Router     *RouterYAMLConfig       `yaml:"router"`
	Registry   *RegistryConfig         `yaml:"registry"`
	DirectPath *DirectPathYAMLConfig   `yaml:"direct_path"`
	Pricing    map[string]PriceEntry   `yaml:"pricing"`
	Retention  *RetentionConfig        `yaml:"retention"`
	Policy     *PolicyDefaultsYAML     `yaml:"policy_defaults"`
	Agentic    *AgenticConfig          `yaml:"agentic"`
	MCP        *MCPConfig              `yaml:"mcp"`
}

// SystemYAMLConfig groups process-wide infrastructure settings.
type SystemYAMLConfig struct {
	ListenAddr       string   `yaml:"listen_addr"`
	AllowedWSOrigins []string `yaml:"allowed_ws_origins"`
	LogLevel         string   `yaml:"log_level"`
}

// WorkerPoolConfig configures the CLI subprocess scheduler.
type WorkerPoolConfig struct {
	MaxConcurrent     int           `yaml:"max_concurrent" validate:"required,min=1"`
	DefaultDeadline   time.Duration `yaml:"default_deadline"`
	WorkDir           string        `yaml:"work_dir"`
	CLIBinaryPath     string        `yaml:"cli_binary_path"`
	CapabilityConfig  string        `yaml:"capability_config_path,omitempty"`
	KillGracePeriod   time.Duration `yaml:"kill_grace_period"`
	StripEnvVar       string        `yaml:"strip_env_var"`
	UsePTY            bool          `yaml:"use_pty"`
	QueueCapacity     int           `yaml:"queue_capacity"`
	ReapInterval      time.Duration `yaml:"reap_interval"`
	TaskRetention     time.Duration `yaml:"task_retention"`
}

// RouterYAMLConfig overrides Router thresholds (defaults live in pkg/router).
type RouterYAMLConfig struct {
	LowWaterTokens  int `yaml:"low_water_tokens,omitempty"`
	MidWaterTokens  int `yaml:"mid_water_tokens,omitempty"`
	BigCtxThreshold int `yaml:"big_ctx_threshold,omitempty"`
	ShortLenBytes   int `yaml:"short_len_bytes,omitempty"`
}

// RegistryConfig configures agent/skill discovery roots.
type RegistryConfig struct {
	AgentsRoot string        `yaml:"agents_root" validate:"required"`
	SkillsRoot string        `yaml:"skills_root" validate:"required"`
	CacheTTL   time.Duration `yaml:"cache_ttl"`
}

// DirectPathYAMLConfig configures the non-subprocess completion path.
type DirectPathYAMLConfig struct {
	BaseURL    string        `yaml:"base_url,omitempty"`
	APIKeyEnv  string        `yaml:"api_key_env,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty"`
}

// PriceEntry is a per-tier price-per-million-tokens pair, parsed into
// decimal.Decimal by the pricing loader (kept as strings here so YAML
// stays human-typeable, e.g. "3.00").
type PriceEntry struct {
	InputPerMillion  string   `yaml:"input_per_million" validate:"required"`
	OutputPerMillion string   `yaml:"output_per_million" validate:"required"`
	Names            []string `yaml:"names,omitempty"`    // substrings that match this tier
	ModelID          string   `yaml:"model_id,omitempty"` // concrete API identifier DirectPath requests for this tier
}

// RetentionConfig configures background garbage collection.
type RetentionConfig struct {
	RateWindowHorizon time.Duration `yaml:"rate_window_horizon"`
	TaskRetention     time.Duration `yaml:"task_retention"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval"`
}

// PolicyDefaultsYAML seeds default permission-profile ceilings used when
// issuing a key via the admin tooling (out of scope here; the struct exists
// so key-issuance CLIs elsewhere in the org can share the shape).
type PolicyDefaultsYAML struct {
	MaxConcurrentTasks int           `yaml:"max_concurrent_tasks,omitempty"`
	MaxWallSeconds     int           `yaml:"max_wall_seconds,omitempty"`
	MaxCostUSD         string        `yaml:"max_cost_usd,omitempty"`
}

// AgenticConfig configures AgenticExecutor's workspace handling.
type AgenticConfig struct {
	WorkspaceRoot       string `yaml:"workspace_root" validate:"required"`
	ExecutionLogFile    string `yaml:"execution_log_file,omitempty"`
}

// MCPConfig lists the MCP servers Registry optionally probes for live tool
// listings, surfaced read-only through GET /v1/capabilities — the gateway
// never calls an MCP tool itself, only describes what is reachable.
type MCPConfig struct {
	Servers []MCPServerEntry `yaml:"servers,omitempty"`
}

// MCPServerEntry names one MCP server and how to reach it.
type MCPServerEntry struct {
	ID        string          `yaml:"id" validate:"required"`
	Transport TransportConfig `yaml:"transport"`
}

// TransportType selects how the MCP client's dialTransport dials an MCP server.
type TransportType string

const (
	TransportTypeStdio TransportType = "stdio"
	TransportTypeHTTP  TransportType = "http"
	TransportTypeSSE   TransportType = "sse"
)

// TransportConfig configures a single MCP server connection.
type TransportConfig struct {
	Type        TransportType     `yaml:"type" validate:"required"`
	Command     string            `yaml:"command,omitempty"`
	Args        []string          `yaml:"args,omitempty"`
	Env         map[string]string `yaml:"env,omitempty"`
	URL         string            `yaml:"url,omitempty"`
	BearerToken string            `yaml:"bearer_token,omitempty"`
	VerifySSL   *bool             `yaml:"verify_ssl,omitempty"`
	Timeout     int               `yaml:"timeout_seconds,omitempty"`
}
