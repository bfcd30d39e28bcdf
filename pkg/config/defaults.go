package config

import "time"

// applyDefaults fills zero-valued fields with production-sane defaults,
// mirroring the teacher's pkg/config/defaults.go "fill what the user
// didn't specify" approach.
func applyDefaults(cfg *Config) {
	if cfg.System.ListenAddr == "" {
		cfg.System.ListenAddr = ":8080"
	}
	if cfg.System.LogLevel == "" {
		cfg.System.LogLevel = "info"
	}

	wp := &cfg.WorkerPool
	if wp.MaxConcurrent == 0 {
		wp.MaxConcurrent = 4
	}
	if wp.DefaultDeadline == 0 {
		wp.DefaultDeadline = 60 * time.Second
	}
	if wp.KillGracePeriod == 0 {
		wp.KillGracePeriod = 5 * time.Second
	}
	if wp.WorkDir == "" {
		wp.WorkDir = "/tmp/llmgate-workspaces"
	}
	if wp.StripEnvVar == "" {
		// Prevents the CLI from detecting it is already nested inside an
		// agent session and refusing to start.
		wp.StripEnvVar = "CLAUDE_CODE_ENTRYPOINT"
	}
	if wp.QueueCapacity == 0 {
		wp.QueueCapacity = 256
	}
	if wp.ReapInterval == 0 {
		wp.ReapInterval = 30 * time.Second
	}
	if wp.TaskRetention == 0 {
		wp.TaskRetention = 10 * time.Minute
	}

	if cfg.Registry.CacheTTL == 0 {
		cfg.Registry.CacheTTL = 30 * time.Second
	}

	if cfg.DirectPath.Timeout == 0 {
		cfg.DirectPath.Timeout = 30 * time.Second
	}
	if cfg.DirectPath.APIKeyEnv == "" {
		cfg.DirectPath.APIKeyEnv = "ANTHROPIC_API_KEY"
	}

	if cfg.Retention.RateWindowHorizon == 0 {
		cfg.Retention.RateWindowHorizon = 6 * time.Hour
	}
	if cfg.Retention.TaskRetention == 0 {
		cfg.Retention.TaskRetention = wp.TaskRetention
	}
	if cfg.Retention.CleanupInterval == 0 {
		cfg.Retention.CleanupInterval = 5 * time.Minute
	}

	if cfg.Agentic.WorkspaceRoot == "" {
		cfg.Agentic.WorkspaceRoot = wp.WorkDir
	}
	if cfg.Agentic.ExecutionLogFile == "" {
		cfg.Agentic.ExecutionLogFile = "execution_log.json"
	}
}
