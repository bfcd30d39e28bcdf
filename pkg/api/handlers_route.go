package api

import (
	"net/http"

	"github.com/google/uuid"
	echo "github.com/labstack/echo/v5"

	"github.com/tarsygate/llmgate/pkg/apierr"
	"github.com/tarsygate/llmgate/pkg/ledger"
	"github.com/tarsygate/llmgate/pkg/policy"
)

// routeHandler implements POST /v1/route: a pure routing decision with no
// completion, still gated by authenticate and rate-limit.
func (s *Server) routeHandler(c *echo.Context) error {
	var req RouteRequest
	if err := c.Bind(&req); err != nil {
		return mapServiceError(apierr.BadRequest("body", "invalid json"))
	}
	if req.Prompt == "" {
		return mapServiceError(apierr.BadRequest("prompt", "must not be empty"))
	}

	ctx := c.Request().Context()

	decision, err := s.policy.Evaluate(ctx, policy.Request{
		TaskID: uuid.NewString(),
		APIKey: apiKeyFromRequest(c),
	})
	if err != nil {
		return mapServiceError(err)
	}

	summary, err := s.ledger.GetUsage(ctx, decision.Auth.ProjectID, ledger.WindowMonth)
	if err != nil {
		return mapServiceError(err)
	}
	remaining, unlimited := 0, true
	budgetStatus := "unlimited"
	if summary.Remaining != nil {
		remaining, unlimited = int(*summary.Remaining), false
		budgetStatus = "ok"
		if remaining <= 0 {
			budgetStatus = "exhausted"
		}
	}

	rd := s.router.Select(req.Prompt, req.ContextSize, remaining, unlimited)

	return c.JSON(http.StatusOK, RouteResponse{
		RecommendedModel: string(rd.Tier),
		Reasoning:        rd.Reason,
		BudgetStatus:     budgetStatus,
	})
}

// usageHandler implements GET /v1/usage?project_id&period.
func (s *Server) usageHandler(c *echo.Context) error {
	ctx := c.Request().Context()

	if _, err := s.policy.Evaluate(ctx, policy.Request{
		TaskID: uuid.NewString(),
		APIKey: apiKeyFromRequest(c),
	}); err != nil {
		return mapServiceError(err)
	}

	projectID := c.QueryParam("project_id")
	if projectID == "" {
		return mapServiceError(apierr.BadRequest("project_id", "required"))
	}
	window := ledger.Window(c.QueryParam("period"))
	if window == "" {
		window = ledger.WindowMonth
	}

	summary, err := s.ledger.GetUsage(ctx, projectID, window)
	if err != nil {
		return mapServiceError(err)
	}

	byModel := make(map[string]UsageByModel, len(summary.ByModel))
	for tier, mu := range summary.ByModel {
		byModel[tier] = UsageByModel{Tokens: int(mu.Tokens), Cost: mu.Cost.String()}
	}

	return c.JSON(http.StatusOK, UsageResponseBody{
		ProjectID:   summary.ProjectID,
		Period:      string(summary.Period),
		TotalTokens: int(summary.TotalTokens),
		TotalCost:   summary.TotalCost.String(),
		ByModel:     byModel,
		Limit:       summary.Limit,
		Remaining:   summary.Remaining,
	})
}
