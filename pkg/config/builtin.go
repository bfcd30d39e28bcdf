package config

import "time"

// builtinGatewayConfig returns the base configuration every deployment
// starts from before user YAML layers and defaults are applied. It exists
// so a bare deployment with no config directory still has usable pricing
// and worker-pool settings, mirroring the teacher's builtin.go base layer.
func builtinGatewayConfig() GatewayYAMLConfig {
	return GatewayYAMLConfig{
		System: &SystemYAMLConfig{
			ListenAddr: ":8080",
			LogLevel:   "info",
		},
		WorkerPool: &WorkerPoolConfig{
			MaxConcurrent:   4,
			DefaultDeadline: 60 * time.Second,
			WorkDir:         "/tmp/llmgate-workspaces",
			KillGracePeriod: 5 * time.Second,
			StripEnvVar:     "CLAUDE_CODE_ENTRYPOINT",
			QueueCapacity:   256,
			ReapInterval:    30 * time.Second,
			TaskRetention:   10 * time.Minute,
		},
		Registry: &RegistryConfig{
			CacheTTL: 30 * time.Second,
		},
		DirectPath: &DirectPathYAMLConfig{
			BaseURL:   "https://api.anthropic.com",
			APIKeyEnv: "ANTHROPIC_API_KEY",
			Timeout:   30 * time.Second,
		},
		Pricing: map[string]PriceEntry{
			"small": {
				InputPerMillion:  "0.80",
				OutputPerMillion: "4.00",
				Names:            []string{"haiku"},
				ModelID:          "claude-3-5-haiku-20241022",
			},
			"medium": {
				InputPerMillion:  "3.00",
				OutputPerMillion: "15.00",
				Names:            []string{"sonnet"},
				ModelID:          "claude-sonnet-4-20250514",
			},
			"large": {
				InputPerMillion:  "15.00",
				OutputPerMillion: "75.00",
				Names:            []string{"opus"},
				ModelID:          "claude-opus-4-20250514",
			},
		},
		Retention: &RetentionConfig{
			RateWindowHorizon: 6 * time.Hour,
			TaskRetention:     10 * time.Minute,
			CleanupInterval:   5 * time.Minute,
		},
		Policy: &PolicyDefaultsYAML{
			MaxConcurrentTasks: 2,
			MaxWallSeconds:     300,
			MaxCostUSD:         "5.00",
		},
		Agentic: &AgenticConfig{
			WorkspaceRoot:    "/tmp/llmgate-workspaces",
			ExecutionLogFile: "execution_log.json",
		},
	}
}
