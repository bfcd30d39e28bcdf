package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Window names the aggregation period getUsage reports over.
type Window string

const (
	WindowDay   Window = "day"
	WindowWeek  Window = "week"
	WindowMonth Window = "month"
)

// ModelUsage is one tier's slice of a usage summary.
type ModelUsage struct {
	Tokens int64
	Cost   decimal.Decimal
}

// UsageSummary answers getUsage: totals plus a per-tier breakdown and the
// project's ceiling (nil = unlimited).
type UsageSummary struct {
	ProjectID   string
	Period      Window
	TotalTokens int64
	TotalCost   decimal.Decimal
	ByModel     map[string]ModelUsage
	Limit       *int64
	Remaining   *int64
}

// SetProject upserts a project's name and monthly ceiling. monthlyLimit
// nil means unlimited.
func (s *Store) SetProject(ctx context.Context, id, name string, monthlyLimit *int64) error {
	const q = `
		INSERT INTO projects (id, name, monthly_limit)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, monthly_limit = EXCLUDED.monthly_limit`
	if _, err := s.db.ExecContext(ctx, q, id, name, monthlyLimit); err != nil {
		return storageErr(fmt.Errorf("set project %s: %w", id, err))
	}
	return nil
}

// projectLimit fetches a project's monthly_limit, creating it with an
// unlimited ceiling on first reference per the data model's "created on
// first reference or via admin" lifetime rule.
func projectLimit(ctx context.Context, q queryer, id string) (*int64, error) {
	var limit sql.NullInt64
	err := q.QueryRowContext(ctx,
		`SELECT monthly_limit FROM projects WHERE id = $1`, id).Scan(&limit)
	if err == sql.ErrNoRows {
		if _, insErr := q.ExecContext(ctx,
			`INSERT INTO projects (id, name, monthly_limit) VALUES ($1, $1, NULL)
			 ON CONFLICT (id) DO NOTHING`, id); insErr != nil {
			return nil, insErr
		}
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !limit.Valid {
		return nil, nil
	}
	v := limit.Int64
	return &v, nil
}

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx, letting the small
// helpers above run inside or outside a transaction.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// GetUsage aggregates committed (kind='actual') usage for a project over
// the given window and reports remaining headroom against its ceiling.
func (s *Store) GetUsage(ctx context.Context, projectID string, window Window) (UsageSummary, error) {
	since, err := windowStart(window)
	if err != nil {
		return UsageSummary{}, err
	}

	limit, err := projectLimit(ctx, s.db, projectID)
	if err != nil {
		return UsageSummary{}, storageErr(fmt.Errorf("get usage: %w", err))
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT model_tier, COALESCE(SUM(input_tokens+output_tokens),0), COALESCE(SUM(cost_usd),0)
		FROM usage_log
		WHERE project_id = $1 AND kind = 'actual' AND timestamp >= $2
		GROUP BY model_tier`, projectID, since)
	if err != nil {
		return UsageSummary{}, storageErr(fmt.Errorf("get usage: %w", err))
	}
	defer rows.Close()

	byModel := make(map[string]ModelUsage)
	var totalTokens int64
	totalCost := decimal.Zero
	for rows.Next() {
		var tier string
		var tokens int64
		var cost decimal.Decimal
		if err := rows.Scan(&tier, &tokens, &cost); err != nil {
			return UsageSummary{}, storageErr(err)
		}
		byModel[tier] = ModelUsage{Tokens: tokens, Cost: cost}
		totalTokens += tokens
		totalCost = totalCost.Add(cost)
	}
	if err := rows.Err(); err != nil {
		return UsageSummary{}, storageErr(err)
	}

	summary := UsageSummary{
		ProjectID:   projectID,
		Period:      window,
		TotalTokens: totalTokens,
		TotalCost:   totalCost,
		ByModel:     byModel,
		Limit:       limit,
	}
	if limit != nil {
		remaining := *limit - totalTokens
		summary.Remaining = &remaining
	}
	return summary, nil
}

func windowStart(w Window) (time.Time, error) {
	now := time.Now().UTC()
	switch w {
	case WindowDay:
		return now.Add(-24 * time.Hour), nil
	case WindowWeek:
		return now.Add(-7 * 24 * time.Hour), nil
	case WindowMonth, "":
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC), nil
	default:
		return time.Time{}, fmt.Errorf("ledger: unknown window %q", w)
	}
}
