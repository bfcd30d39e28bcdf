// Package config loads and validates llmgate's YAML configuration, the
// same layered load -> expand -> merge -> default -> validate pipeline the
// teacher's pkg/config uses, adapted to llmgate's own domain shape.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ResolvedPrice is a tier's price table with strings parsed into exact
// decimals, ready for Tracker's cost arithmetic.
type ResolvedPrice struct {
	InputPerMillion  decimal.Decimal
	OutputPerMillion decimal.Decimal
	Names            []string
	ModelID          string
}

// Config is the fully resolved, ready-to-use runtime configuration: the
// flattened, validated, defaulted result of loading a GatewayYAMLConfig.
type Config struct {
	System     SystemYAMLConfig
	WorkerPool WorkerPoolConfig
	Router     RouterYAMLConfig
	Registry   RegistryConfig
	DirectPath DirectPathYAMLConfig
	Pricing    map[string]ResolvedPrice
	Retention  RetentionConfig
	Policy     PolicyDefaultsYAML
	Agentic    AgenticConfig
	MCPServers []MCPServerEntry
}

// Initialize loads every *.yaml/*.yml file in configDir, expands ${VAR}
// environment placeholders, merges them over the built-in defaults, fills
// any remaining zero values, and validates the result.
//
// Steps performed, mirroring the teacher's loader:
//  1. Read YAML files from configDir (sorted, later files win on merge)
//  2. Expand environment variables
//  3. Parse YAML into GatewayYAMLConfig
//  4. Merge into the built-in base configuration
//  5. Resolve string prices into decimal.Decimal
//  6. Apply default values for anything still unset
//  7. Validate the final Config
func Initialize(configDir string) (*Config, error) {
	raw, err := loadYAMLFiles(configDir)
	if err != nil {
		return nil, fmt.Errorf("config: loading %s: %w", configDir, err)
	}

	merged := builtinGatewayConfig()
	for _, doc := range raw {
		var layer GatewayYAMLConfig
		expanded := expandEnv(doc)
		if err := yaml.Unmarshal(expanded, &layer); err != nil {
			return nil, fmt.Errorf("config: parsing yaml: %w", err)
		}
		if err := mergeYAMLConfig(&merged, &layer); err != nil {
			return nil, fmt.Errorf("config: merging layer: %w", err)
		}
	}

	cfg, err := resolve(&merged)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadYAMLFiles(dir string) ([][]byte, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var docs [][]byte
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", e.Name(), err)
		}
		docs = append(docs, b)
	}
	return docs, nil
}

// resolve flattens a GatewayYAMLConfig's pointer-typed sections into the
// value-typed Config, and parses pricing strings into decimals.
func resolve(raw *GatewayYAMLConfig) (*Config, error) {
	cfg := &Config{}

	if raw.System != nil {
		cfg.System = *raw.System
	}
	if raw.WorkerPool != nil {
		cfg.WorkerPool = *raw.WorkerPool
	}
	if raw.Router != nil {
		cfg.Router = *raw.Router
	}
	if raw.Registry != nil {
		cfg.Registry = *raw.Registry
	}
	if raw.DirectPath != nil {
		cfg.DirectPath = *raw.DirectPath
	}
	if raw.Retention != nil {
		cfg.Retention = *raw.Retention
	}
	if raw.Policy != nil {
		cfg.Policy = *raw.Policy
	}
	if raw.Agentic != nil {
		cfg.Agentic = *raw.Agentic
	}
	if raw.MCP != nil {
		cfg.MCPServers = raw.MCP.Servers
	}

	cfg.Pricing = make(map[string]ResolvedPrice, len(raw.Pricing))
	for tier, entry := range raw.Pricing {
		in, err := decimal.NewFromString(entry.InputPerMillion)
		if err != nil {
			return nil, fmt.Errorf("config: pricing[%s].input_per_million: %w", tier, err)
		}
		out, err := decimal.NewFromString(entry.OutputPerMillion)
		if err != nil {
			return nil, fmt.Errorf("config: pricing[%s].output_per_million: %w", tier, err)
		}
		cfg.Pricing[tier] = ResolvedPrice{
			InputPerMillion:  in,
			OutputPerMillion: out,
			Names:            entry.Names,
			ModelID:          entry.ModelID,
		}
	}

	return cfg, nil
}

// Stats summarizes the loaded configuration as a diagnostic map,
// mirroring the teacher's Config.Stats() diagnostic surface.
func (c *Config) Stats() map[string]any {
	return map[string]any{
		"listen_addr":     c.System.ListenAddr,
		"max_concurrent":  c.WorkerPool.MaxConcurrent,
		"agents_root":     c.Registry.AgentsRoot,
		"skills_root":     c.Registry.SkillsRoot,
		"pricing_tiers":   len(c.Pricing),
		"queue_capacity":  c.WorkerPool.QueueCapacity,
	}
}
