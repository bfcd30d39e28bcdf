package api

// ChatMessage is one turn in a chat-completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionRequest is the body of POST /v1/chat/completions.
type ChatCompletionRequest struct {
	Model     string        `json:"model,omitempty"`
	Messages  []ChatMessage `json:"messages"`
	ProjectID string        `json:"project_id,omitempty"`
	Timeout   int           `json:"timeout,omitempty"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

// UsageResponse is the usage block embedded in completion responses.
type UsageResponse struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// ChatCompletionResponse is the body of a successful /v1/chat/completions reply.
type ChatCompletionResponse struct {
	ID        string        `json:"id"`
	Model     string        `json:"model"`
	Content   string        `json:"content"`
	Usage     UsageResponse `json:"usage"`
	Cost      string        `json:"cost"`
	ProjectID string        `json:"project_id,omitempty"`
}

// BatchPromptRequest is one entry in a batch request.
type BatchPromptRequest struct {
	ID     string `json:"id,omitempty"`
	Prompt string `json:"prompt"`
}

// BatchRequest is the body of POST /v1/batch.
type BatchRequest struct {
	Prompts   []BatchPromptRequest `json:"prompts"`
	Model     string                `json:"model,omitempty"`
	ProjectID string                `json:"project_id,omitempty"`
	Timeout   int                   `json:"timeout,omitempty"`
}

// BatchResultItem is one prompt's outcome within a batch response.
type BatchResultItem struct {
	ID      string        `json:"id"`
	Status  string        `json:"status"` // "completed" or "failed"
	Content string        `json:"content,omitempty"`
	Usage   UsageResponse `json:"usage,omitempty"`
	Cost    string        `json:"cost,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// BatchResponse is the body of a /v1/batch reply.
type BatchResponse struct {
	Total       int                `json:"total"`
	Completed   int                `json:"completed"`
	Failed      int                `json:"failed"`
	Results     []BatchResultItem  `json:"results"`
	TotalCost   string             `json:"total_cost"`
	TotalTokens int                `json:"total_tokens"`
}

// RouteRequest is the body of POST /v1/route.
type RouteRequest struct {
	Prompt     string `json:"prompt"`
	ContextSize int   `json:"context_size"`
	ProjectID  string `json:"project_id,omitempty"`
}

// RouteResponse is the body of a /v1/route reply.
type RouteResponse struct {
	RecommendedModel string `json:"recommended_model"`
	Reasoning        string `json:"reasoning"`
	BudgetStatus     string `json:"budget_status"`
}

// UsageByModel is one tier's aggregated usage within a window.
type UsageByModel struct {
	Tokens int    `json:"tokens"`
	Cost   string `json:"cost"`
}

// UsageResponseBody is the body of a GET /v1/usage reply.
type UsageResponseBody struct {
	ProjectID   string                  `json:"project_id"`
	Period      string                  `json:"period"`
	TotalTokens int                     `json:"total_tokens"`
	TotalCost   string                  `json:"total_cost"`
	ByModel     map[string]UsageByModel `json:"by_model"`
	Limit       *int64                  `json:"limit"`
	Remaining   *int64                  `json:"remaining"`
}

// TaskRequest is the body of POST /v1/task.
type TaskRequest struct {
	Description      string   `json:"description"`
	AllowTools       []string `json:"allow_tools,omitempty"`
	AllowAgents      []string `json:"allow_agents,omitempty"`
	AllowSkills      []string `json:"allow_skills,omitempty"`
	WorkingDirectory string   `json:"working_directory,omitempty"`
	Timeout          int      `json:"timeout,omitempty"`
	MaxCost          string   `json:"max_cost,omitempty"`
	ProjectID        string   `json:"project_id,omitempty"`
}

// ArtifactResponse describes one file an agentic task produced.
type ArtifactResponse struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// ExecutionLogEntry is one event in an agentic task's transcript.
type ExecutionLogEntry struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// TaskResponse is the body of a /v1/task reply.
type TaskResponse struct {
	Status       string              `json:"status"`
	Result       string              `json:"result,omitempty"`
	ExecutionLog []ExecutionLogEntry `json:"execution_log"`
	Artifacts    []ArtifactResponse  `json:"artifacts"`
	Usage        UsageResponse       `json:"usage"`
}

// ProcessRequest is the body of POST /v1/process (dual-path compatibility).
type ProcessRequest struct {
	Provider       string        `json:"provider"`
	ModelName      string        `json:"model_name"`
	Messages       []ChatMessage `json:"messages,omitempty"`
	SystemMessage  string        `json:"system_message,omitempty"`
	UserMessage    string        `json:"user_message,omitempty"`
	MaxTokens      int           `json:"max_tokens,omitempty"`
	Temperature    float64       `json:"temperature,omitempty"`
	UseCLI         bool          `json:"use_cli,omitempty"`
	ProjectID      string        `json:"project_id,omitempty"`
}

// ProcessMetadata is the metadata block of a /v1/process reply.
type ProcessMetadata struct {
	ActualModel string        `json:"actual_model"`
	Usage       UsageResponse `json:"usage"`
	CostUSD     string        `json:"cost_usd"`
	MappedFrom  string        `json:"mapped_from"`
}

// ProcessResponse is the body of a /v1/process reply.
type ProcessResponse struct {
	Content  string          `json:"content"`
	Model    string          `json:"model"`
	Provider string          `json:"provider"`
	Metadata ProcessMetadata `json:"metadata"`
}

// ProviderSummary is one entry of GET /v1/providers.
type ProviderSummary struct {
	Name      string   `json:"name"`
	Available bool     `json:"available"`
	Models    []string `json:"models"`
}

// ModelCapability describes one tier's declared capability for a provider.
type ModelCapability struct {
	MaxTokens         int  `json:"max_tokens"`
	ContextWindow     int  `json:"context_window"`
	SupportsFunctions bool `json:"supports_functions"`
	SupportsVision    bool `json:"supports_vision"`
}

// ProviderModelsResponse is the body of GET /v1/providers/{provider}/models.
type ProviderModelsResponse struct {
	Provider string                     `json:"provider"`
	Models   map[string]ModelCapability `json:"models"`
}

// CapabilityAgent is one entry of /v1/capabilities' agents list.
type CapabilityAgent struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tools       []string `json:"tools"`
	Model       string   `json:"model,omitempty"`
}

// CapabilitySkill is one entry of /v1/capabilities' skills list.
type CapabilitySkill struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Command     string `json:"command,omitempty"`
}

// CapabilitiesResponse is the body of GET /v1/capabilities.
type CapabilitiesResponse struct {
	Agents      []CapabilityAgent   `json:"agents"`
	Skills      []CapabilitySkill   `json:"skills"`
	AgentsCount int                 `json:"agents_count"`
	SkillsCount int                 `json:"skills_count"`
	MCPTools    map[string][]string `json:"mcp_tools,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string         `json:"status"`
	Version       string         `json:"version"`
	UptimeSeconds float64        `json:"uptime_seconds"`
	Services      map[string]any `json:"services"`
	Overall       string         `json:"overall"`
}

// ReadyResponse is the body of GET /ready.
type ReadyResponse struct {
	Ready  bool   `json:"ready"`
	Reason string `json:"reason,omitempty"`
}

// errorDetail is the shared error body shape: {"detail": "..."}.
type errorDetail struct {
	Detail string `json:"detail"`
}
