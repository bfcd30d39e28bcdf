package api

import (
	"net/http"

	"github.com/google/uuid"
	echo "github.com/labstack/echo/v5"
	"github.com/shopspring/decimal"

	"github.com/tarsygate/llmgate/pkg/apierr"
	"github.com/tarsygate/llmgate/pkg/ledger"
	"github.com/tarsygate/llmgate/pkg/policy"
	"github.com/tarsygate/llmgate/pkg/tracker"
)

// batchHandler implements POST /v1/batch: a single admission covering the
// sum of every prompt's estimate, then each prompt runs independently —
// one prompt's failure becomes a failed result entry, not a failed batch.
func (s *Server) batchHandler(c *echo.Context) error {
	var req BatchRequest
	if err := c.Bind(&req); err != nil {
		return mapServiceError(apierr.BadRequest("body", "invalid json"))
	}
	if len(req.Prompts) == 0 {
		return mapServiceError(apierr.BadRequest("prompts", "must not be empty"))
	}

	ctx := c.Request().Context()

	decision, err := s.policy.Evaluate(ctx, policy.Request{
		TaskID:                  uuid.NewString(),
		APIKey:                  apiKeyFromRequest(c),
		RequestedTimeoutSeconds: req.Timeout,
	})
	if err != nil {
		return mapServiceError(err)
	}

	tier := tracker.Tier(req.Model)
	if tier == "" {
		tier = tracker.TierMedium
	}

	var estTotal int64
	for _, p := range req.Prompts {
		estTotal += estimateTokens(p.Prompt) + 1024
	}

	res, admitted, err := s.ledger.Admit(ctx, decision.Auth.ProjectID, estTotal)
	if err != nil {
		return mapServiceError(err)
	}
	if !admitted {
		return mapServiceError(ledger.BudgetExceededError(decision.Auth.ProjectID))
	}
	// Each prompt below debits its own actual usage via DebitForProject, so
	// the admission reservation itself is released rather than converted.
	defer func() { _ = s.ledger.Release(ctx, res) }()

	results := make([]BatchResultItem, len(req.Prompts))
	var completed, failed int
	totalCost := decimal.Zero
	var totalTokens int

	for i, p := range req.Prompts {
		id := p.ID
		if id == "" {
			id = uuid.NewString()
		}

		content, usage, err := s.complete(ctx, tier, []ChatMessage{{Role: "user", Content: p.Prompt}}, 4096, decision.EffectiveTimeoutSeconds, decision.Auth.ProjectID)
		if err != nil {
			failed++
			results[i] = BatchResultItem{ID: id, Status: "failed", Error: err.Error()}
			continue
		}

		if derr := s.ledger.DebitForProject(ctx, decision.Auth.ProjectID, string(usage.Tier), int64(usage.InputTokens), int64(usage.OutputTokens), usage.CostUSD); derr != nil {
			failed++
			results[i] = BatchResultItem{ID: id, Status: "failed", Error: derr.Error()}
			continue
		}

		recordCompletionCost(usage)
		completed++
		totalCost = totalCost.Add(usage.CostUSD)
		totalTokens += usage.TotalTokens
		results[i] = BatchResultItem{ID: id, Status: "completed", Content: content, Usage: toUsageResponse(usage), Cost: usage.CostUSD.String()}
	}

	return c.JSON(http.StatusOK, BatchResponse{
		Total:       len(req.Prompts),
		Completed:   completed,
		Failed:      failed,
		Results:     results,
		TotalCost:   totalCost.String(),
		TotalTokens: totalTokens,
	})
}
