package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	echo "github.com/labstack/echo/v5"
	"github.com/shopspring/decimal"

	"github.com/tarsygate/llmgate/pkg/agentic"
	"github.com/tarsygate/llmgate/pkg/apierr"
	"github.com/tarsygate/llmgate/pkg/ledger"
	"github.com/tarsygate/llmgate/pkg/policy"
	"github.com/tarsygate/llmgate/pkg/tracker"
)

// taskHandler implements POST /v1/task: authenticate -> rate-limit ->
// validate-capabilities -> resource-gate -> AgenticExecutor -> debit ->
// audit. Policy's capability/resource checks run against the requested
// tools/agents/skills and timeout/cost ceiling before a workspace is ever
// created.
func (s *Server) taskHandler(c *echo.Context) error {
	var req TaskRequest
	if err := c.Bind(&req); err != nil {
		return mapServiceError(apierr.BadRequest("body", "invalid json"))
	}
	if req.Description == "" {
		return mapServiceError(apierr.BadRequest("description", "must not be empty"))
	}

	ctx := c.Request().Context()
	taskID := uuid.NewString()

	var maxCost decimal.Decimal
	if req.MaxCost != "" {
		parsed, err := decimal.NewFromString(req.MaxCost)
		if err != nil {
			return mapServiceError(apierr.BadRequest("max_cost", "not a decimal"))
		}
		maxCost = parsed
	}

	decision, err := s.policy.Evaluate(ctx, policy.Request{
		TaskID:                  taskID,
		APIKey:                  apiKeyFromRequest(c),
		Tools:                   req.AllowTools,
		Agents:                  req.AllowAgents,
		Skills:                  req.AllowSkills,
		RequestedTimeoutSeconds: req.Timeout,
		RequestedMaxCostUSD:     maxCost,
	})
	if err != nil {
		return mapServiceError(err)
	}

	estTokens := estimateTokens(req.Description) + 4096
	res, admitted, err := s.ledger.Admit(ctx, decision.Auth.ProjectID, estTokens)
	if err != nil {
		return mapServiceError(err)
	}
	if !admitted {
		return mapServiceError(ledger.BudgetExceededError(decision.Auth.ProjectID))
	}

	result, err := s.agentic.Execute(ctx, agentic.Request{
		TaskID:      taskID,
		ProjectID:   decision.Auth.ProjectID,
		Description: req.Description,
		Tools:       req.AllowTools,
		Agents:      req.AllowAgents,
		Skills:      req.AllowSkills,
		Model:       tracker.TierMedium,
		Deadline:    time.Duration(decision.EffectiveTimeoutSeconds) * time.Second,
		CostCeiling: decision.EffectiveMaxCostUSD,
	})
	if err != nil {
		_ = s.ledger.Release(ctx, res)
		return mapServiceError(err)
	}

	if err := s.ledger.Debit(ctx, res, string(result.Usage.Tier), int64(result.Usage.InputTokens), int64(result.Usage.OutputTokens), result.Usage.CostUSD); err != nil {
		return mapServiceError(err)
	}
	recordCompletionCost(result.Usage)

	artifacts := make([]ArtifactResponse, len(result.Artifacts))
	for i, a := range result.Artifacts {
		artifacts[i] = ArtifactResponse{Path: a.Path, Size: a.Size}
	}
	execLog := make([]ExecutionLogEntry, len(result.ExecutionLog))
	for i, e := range result.ExecutionLog {
		execLog[i] = ExecutionLogEntry{Type: e.Type, Name: e.Name}
	}

	status := "completed"
	if result.OverBudget {
		status = "over_budget"
	}

	return c.JSON(http.StatusOK, TaskResponse{
		Status:       status,
		Result:       result.Content,
		ExecutionLog: execLog,
		Artifacts:    artifacts,
		Usage:        toUsageResponse(result.Usage),
	})
}
