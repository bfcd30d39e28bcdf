package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Reservation is the token returned by Admit; it must be passed to either
// Debit (to convert the reservation into a committed UsageRecord) or
// Release (to discard it without consuming budget) exactly once.
type Reservation struct {
	ID        string
	ProjectID string
}

// Admit checks whether current-month usage plus estTokens fits the
// project's ceiling and, if so, atomically records a reservation so a
// second concurrent Admit sees the increased total immediately. This is
// the row-lock-for-the-duration-of-admit-then-debit strategy: the project
// row is locked only for the few milliseconds it takes to read the
// aggregate and insert the reservation, not for the lifetime of the task.
func (s *Store) Admit(ctx context.Context, projectID string, estTokens int64) (*Reservation, bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, storageErr(fmt.Errorf("admit begin: %w", err))
	}
	defer tx.Rollback()

	var limit sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT monthly_limit FROM projects WHERE id = $1 FOR UPDATE`, projectID).Scan(&limit)
	if err == sql.ErrNoRows {
		if _, insErr := tx.ExecContext(ctx,
			`INSERT INTO projects (id, name, monthly_limit) VALUES ($1, $1, NULL)`, projectID); insErr != nil {
			return nil, false, storageErr(fmt.Errorf("admit create project: %w", insErr))
		}
		limit = sql.NullInt64{}
	} else if err != nil {
		return nil, false, storageErr(fmt.Errorf("admit read project: %w", err))
	}

	if limit.Valid {
		monthStart, werr := windowStart(WindowMonth)
		if werr != nil {
			return nil, false, storageErr(werr)
		}
		var committed int64
		if err := tx.QueryRowContext(ctx, `
			SELECT COALESCE(SUM(input_tokens+output_tokens),0) FROM usage_log
			WHERE project_id = $1 AND timestamp >= $2`, projectID, monthStart).Scan(&committed); err != nil {
			return nil, false, storageErr(fmt.Errorf("admit sum usage: %w", err))
		}

		if committed+estTokens > limit.Int64 {
			if err := tx.Commit(); err != nil {
				return nil, false, storageErr(err)
			}
			return nil, false, nil
		}
	}

	resID := uuid.NewString()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO usage_log (project_id, kind, reservation_id, model_tier, input_tokens, output_tokens, cost_usd)
		VALUES ($1, 'reservation', $2, 'pending', $3, 0, 0)`, projectID, resID, estTokens); err != nil {
		return nil, false, storageErr(fmt.Errorf("admit reserve: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return nil, false, storageErr(fmt.Errorf("admit commit: %w", err))
	}

	return &Reservation{ID: resID, ProjectID: projectID}, true, nil
}

// Debit converts a reservation into a committed UsageRecord with the
// actual model tier, token counts, and cost, atomically in one
// transaction so GetUsage never observes a state with both the
// reservation and the final record outstanding.
func (s *Store) Debit(ctx context.Context, res *Reservation, modelTier string, inputTokens, outputTokens int64, cost decimal.Decimal) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return storageErr(fmt.Errorf("debit begin: %w", err))
	}
	defer tx.Rollback()

	if res != nil && res.ID != "" {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM usage_log WHERE project_id = $1 AND kind = 'reservation' AND reservation_id = $2`,
			res.ProjectID, res.ID); err != nil {
			return storageErr(fmt.Errorf("debit clear reservation: %w", err))
		}
	}

	projectID := ""
	if res != nil {
		projectID = res.ProjectID
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO usage_log (project_id, kind, model_tier, input_tokens, output_tokens, cost_usd)
		VALUES ($1, 'actual', $2, $3, $4, $5)`,
		projectID, modelTier, inputTokens, outputTokens, cost); err != nil {
		return storageErr(fmt.Errorf("debit insert: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return storageErr(fmt.Errorf("debit commit: %w", err))
	}
	return nil
}

// DebitForProject is a convenience for callers that hold no per-call
// reservation (e.g. each prompt of a batch, where one admission covers the
// whole batch) but still must be accounted for.
func (s *Store) DebitForProject(ctx context.Context, projectID, modelTier string, inputTokens, outputTokens int64, cost decimal.Decimal) error {
	return s.Debit(ctx, &Reservation{ProjectID: projectID}, modelTier, inputTokens, outputTokens, cost)
}

// Release discards a reservation without recording usage, used when a
// task fails before producing any billable output.
func (s *Store) Release(ctx context.Context, res *Reservation) error {
	if res == nil || res.ID == "" {
		return nil
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM usage_log WHERE project_id = $1 AND kind = 'reservation' AND reservation_id = $2`,
		res.ProjectID, res.ID); err != nil {
		return storageErr(fmt.Errorf("release reservation: %w", err))
	}
	return nil
}

// BudgetExceededError is returned by higher layers (not Admit itself,
// which reports ok=false) when they need to surface a typed error instead
// of a boolean, e.g. RequestFlow's single error-adaptation point.
func BudgetExceededError(projectID string) error {
	return budgetExceededErr(projectID)
}
