package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
)

// FSAccessMode bounds what the CLI child is allowed to touch on disk.
type FSAccessMode string

const (
	FSAccessNone      FSAccessMode = "none"
	FSAccessReadOnly  FSAccessMode = "readonly"
	FSAccessWorkspace FSAccessMode = "workspace"
)

// PermissionProfile is the per-key ceiling set Policy checks against.
// A single "*" entry in any allow-list is a wildcard permitting everything.
type PermissionProfile struct {
	APIKey             string
	AllowTools         []string
	AllowAgents        []string
	AllowSkills        []string
	MaxConcurrentTasks int
	MaxWallSeconds     int
	MaxCostUSD         decimal.Decimal
	FSAccessMode       FSAccessMode
	WorkspaceSizeLimit int64
}

// Allows reports whether name is permitted by list, honoring the "*"
// wildcard.
func Allows(list []string, name string) bool {
	for _, v := range list {
		if v == "*" || v == name {
			return true
		}
	}
	return false
}

// SetPermissionProfile upserts a key's permission profile.
func (s *Store) SetPermissionProfile(ctx context.Context, p PermissionProfile) error {
	const q = `
		INSERT INTO api_key_permissions
			(api_key, allow_tools, allow_agents, allow_skills, max_concurrent_tasks,
			 max_wall_seconds, max_cost_usd, fs_access_mode, workspace_size_limit)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (api_key) DO UPDATE SET
			allow_tools = EXCLUDED.allow_tools,
			allow_agents = EXCLUDED.allow_agents,
			allow_skills = EXCLUDED.allow_skills,
			max_concurrent_tasks = EXCLUDED.max_concurrent_tasks,
			max_wall_seconds = EXCLUDED.max_wall_seconds,
			max_cost_usd = EXCLUDED.max_cost_usd,
			fs_access_mode = EXCLUDED.fs_access_mode,
			workspace_size_limit = EXCLUDED.workspace_size_limit`
	_, err := s.db.ExecContext(ctx, q,
		p.APIKey, p.AllowTools, p.AllowAgents, p.AllowSkills,
		p.MaxConcurrentTasks, p.MaxWallSeconds, p.MaxCostUSD, string(p.FSAccessMode), p.WorkspaceSizeLimit)
	if err != nil {
		return storageErr(fmt.Errorf("set permission profile: %w", err))
	}
	return nil
}

// GetPermissionProfile fetches the profile bound to a key.
func (s *Store) GetPermissionProfile(ctx context.Context, apiKey string) (*PermissionProfile, error) {
	var p PermissionProfile
	var fsMode string
	p.APIKey = apiKey
	err := s.db.QueryRowContext(ctx, `
		SELECT allow_tools, allow_agents, allow_skills, max_concurrent_tasks,
		       max_wall_seconds, max_cost_usd, fs_access_mode, workspace_size_limit
		FROM api_key_permissions WHERE api_key = $1`, apiKey).
		Scan(&p.AllowTools, &p.AllowAgents, &p.AllowSkills,
			&p.MaxConcurrentTasks, &p.MaxWallSeconds, &p.MaxCostUSD, &fsMode, &p.WorkspaceSizeLimit)
	if err == sql.ErrNoRows {
		return nil, notFoundErr(fmt.Errorf("permission profile for %s", apiKey))
	}
	if err != nil {
		return nil, storageErr(fmt.Errorf("get permission profile: %w", err))
	}
	p.FSAccessMode = FSAccessMode(fsMode)
	return &p, nil
}
