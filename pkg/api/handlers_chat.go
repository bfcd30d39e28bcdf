package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	echo "github.com/labstack/echo/v5"

	"github.com/tarsygate/llmgate/pkg/apierr"
	"github.com/tarsygate/llmgate/pkg/directpath"
	"github.com/tarsygate/llmgate/pkg/ledger"
	"github.com/tarsygate/llmgate/pkg/metrics"
	"github.com/tarsygate/llmgate/pkg/policy"
	"github.com/tarsygate/llmgate/pkg/tracker"
)

// recordCompletionCost folds one debited completion into the cumulative
// cost-by-tier counter every completion path (chat, batch, task, stream)
// reports through.
func recordCompletionCost(u tracker.Usage) {
	cost, _ := u.CostUSD.Float64()
	metrics.CompletionCostUSD.WithLabelValues(string(u.Tier)).Add(cost)
}

// apiKeyFromRequest extracts the bearer token Policy authenticates
// against, per the teacher's convention of a plain Authorization header
// rather than a custom scheme.
func apiKeyFromRequest(c *echo.Context) string {
	auth := c.Request().Header.Get("Authorization")
	return strings.TrimPrefix(auth, "Bearer ")
}

// estimateTokens is a crude, deterministic stand-in for a tokenizer: four
// bytes per token, which is what the admission check needs before the
// real usage is known.
func estimateTokens(s string) int64 {
	n := int64(len(s)) / 4
	if n < 1 {
		n = 1
	}
	return n
}

func joinMessages(msgs []ChatMessage) string {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}

// chatCompletionsHandler implements POST /v1/chat/completions: authenticate
// -> rate-limit -> route if model is unset or "auto" -> admit -> complete
// via DirectPath or the CLI worker pool -> debit -> audit -> reply.
func (s *Server) chatCompletionsHandler(c *echo.Context) error {
	var req ChatCompletionRequest
	if err := c.Bind(&req); err != nil {
		return mapServiceError(apierr.BadRequest("body", "invalid json"))
	}
	if len(req.Messages) == 0 {
		return mapServiceError(apierr.BadRequest("messages", "must not be empty"))
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

	prompt := joinMessages(req.Messages)

	tier := tracker.Tier(req.Model)
	if req.Model == "" || req.Model == "auto" {
		summary, err := s.ledger.GetUsage(ctx, decision.Auth.ProjectID, ledger.WindowMonth)
		if err != nil {
			return mapServiceError(err)
		}
		remaining, unlimited := 0, true
		if summary.Remaining != nil {
			remaining, unlimited = int(*summary.Remaining), false
		}
		rd := s.router.Select(prompt, len(prompt), remaining, unlimited)
		tier = rd.Tier
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	res, admitted, err := s.ledger.Admit(ctx, decision.Auth.ProjectID, estimateTokens(prompt)+int64(maxTokens))
	if err != nil {
		return mapServiceError(err)
	}
	if !admitted {
		return mapServiceError(ledger.BudgetExceededError(decision.Auth.ProjectID))
	}

	content, usage, completeErr := s.complete(ctx, tier, req.Messages, maxTokens, decision.EffectiveTimeoutSeconds, decision.Auth.ProjectID)
	if completeErr != nil {
		_ = s.ledger.Release(ctx, res)
		return mapServiceError(completeErr)
	}

	if err := s.ledger.Debit(ctx, res, string(usage.Tier), int64(usage.InputTokens), int64(usage.OutputTokens), usage.CostUSD); err != nil {
		return mapServiceError(err)
	}
	recordCompletionCost(usage)

	return c.JSON(http.StatusOK, ChatCompletionResponse{
		ID:        "chatcmpl-" + uuid.NewString(),
		Model:     usage.Model,
		Content:   content,
		Usage:     toUsageResponse(usage),
		Cost:      usage.CostUSD.String(),
		ProjectID: decision.Auth.ProjectID,
	})
}

// complete dispatches to DirectPath when configured, falling back to the
// CLI worker pool — the two-path completion engine RequestFlow describes.
func (s *Server) complete(ctx context.Context, tier tracker.Tier, messages []ChatMessage, maxTokens, timeoutSeconds int, projectID string) (string, tracker.Usage, error) {
	if s.direct != nil {
		dmsgs := make([]directpath.Message, len(messages))
		for i, m := range messages {
			dmsgs[i] = directpath.Message{Role: m.Role, Content: m.Content}
		}
		return s.direct.Complete(ctx, tier, "", dmsgs, maxTokens, 0)
	}

	deadline := time.Duration(timeoutSeconds) * time.Second
	if deadline <= 0 {
		deadline = 60 * time.Second
	}
	prompt := joinMessages(messages)
	taskID, err := s.pool.Submit(prompt, tier, projectID, deadline)
	if err != nil {
		return "", tracker.Usage{}, err
	}
	snap, err := s.pool.Wait(ctx, taskID)
	if err != nil {
		return "", tracker.Usage{}, err
	}
	if snap.Err != nil {
		return "", tracker.Usage{}, snap.Err
	}
	return snap.Result.Content, snap.Result.Usage, nil
}

func toUsageResponse(u tracker.Usage) UsageResponse {
	return UsageResponse{InputTokens: u.InputTokens, OutputTokens: u.OutputTokens, TotalTokens: u.TotalTokens}
}
