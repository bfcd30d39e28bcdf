package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	echo "github.com/labstack/echo/v5"

	"github.com/tarsygate/llmgate/pkg/agentic"
	"github.com/tarsygate/llmgate/pkg/ledger"
	"github.com/tarsygate/llmgate/pkg/policy"
	"github.com/tarsygate/llmgate/pkg/tracker"
	"github.com/google/uuid"
)

var streamUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// streamFrame is one client-sent WebSocket frame. Type dispatches to
// either a chat completion or an agentic task; every other field is
// interpreted the same way its HTTP sibling endpoint interprets it.
type streamFrame struct {
	Type      string        `json:"type"` // "chat" or "agentic_task"
	APIKey    string        `json:"api_key"`
	Messages  []ChatMessage `json:"messages,omitempty"`
	Model     string        `json:"model,omitempty"`
	MaxTokens int           `json:"max_tokens,omitempty"`

	Description string   `json:"description,omitempty"`
	AllowTools  []string `json:"allow_tools,omitempty"`
	AllowAgents []string `json:"allow_agents,omitempty"`
	AllowSkills []string `json:"allow_skills,omitempty"`
}

// streamEvent is one server-sent frame over the WebSocket.
type streamEvent struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// streamHandler implements WS /v1/stream: the client's first frame on a
// connection is typed ("chat" or "agentic_task") and dispatched the same
// way the matching HTTP endpoint would; the result (or error) is written
// back as a single typed frame, and the connection stays open for
// further frames until the client closes it.
func (s *Server) streamHandler(c *echo.Context) error {
	conn, err := streamUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	_ = conn.WriteJSON(streamEvent{Type: "connected"})

	ctx := c.Request().Context()

	for {
		var frame streamFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("stream read error", "error", err)
			}
			return nil
		}

		switch frame.Type {
		case "chat":
			s.streamChat(ctx, conn, frame)
		case "agentic_task":
			s.streamAgenticTask(ctx, conn, frame)
		default:
			_ = conn.WriteJSON(streamEvent{Type: "error", Error: "unknown frame type"})
		}
	}
}

// streamChat runs one chat completion and writes exactly one result or
// error frame, following the same admit -> complete -> debit sequence as
// chatCompletionsHandler.
func (s *Server) streamChat(ctx context.Context, conn *websocket.Conn, frame streamFrame) {
	decision, err := s.policy.Evaluate(ctx, policy.Request{
		TaskID: uuid.NewString(),
		APIKey: frame.APIKey,
	})
	if err != nil {
		_ = conn.WriteJSON(streamEvent{Type: "error", Error: err.Error()})
		return
	}

	if len(frame.Messages) == 0 {
		_ = conn.WriteJSON(streamEvent{Type: "error", Error: "messages must not be empty"})
		return
	}

	tier := tracker.Tier(frame.Model)
	if tier == "" {
		prompt := joinMessages(frame.Messages)
		rd := s.router.Select(prompt, len(prompt), 0, true)
		tier = rd.Tier
	}
	maxTokens := frame.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	prompt := joinMessages(frame.Messages)
	res, admitted, err := s.ledger.Admit(ctx, decision.Auth.ProjectID, estimateTokens(prompt)+int64(maxTokens))
	if err != nil {
		_ = conn.WriteJSON(streamEvent{Type: "error", Error: err.Error()})
		return
	}
	if !admitted {
		_ = conn.WriteJSON(streamEvent{Type: "error", Error: ledger.BudgetExceededError(decision.Auth.ProjectID).Error()})
		return
	}

	content, usage, err := s.complete(ctx, tier, frame.Messages, maxTokens, decision.EffectiveTimeoutSeconds, decision.Auth.ProjectID)
	if err != nil {
		_ = s.ledger.Release(ctx, res)
		_ = conn.WriteJSON(streamEvent{Type: "error", Error: err.Error()})
		return
	}
	if err := s.ledger.Debit(ctx, res, string(usage.Tier), int64(usage.InputTokens), int64(usage.OutputTokens), usage.CostUSD); err != nil {
		_ = conn.WriteJSON(streamEvent{Type: "error", Error: err.Error()})
		return
	}
	recordCompletionCost(usage)

	_ = conn.WriteJSON(streamEvent{Type: "chat_result", Data: ChatCompletionResponse{
		ID:      "chatcmpl-" + uuid.NewString(),
		Model:   usage.Model,
		Content: content,
		Usage:   toUsageResponse(usage),
		Cost:    usage.CostUSD.String(),
	}})
}

// streamAgenticTask runs one agentic task, emitting a started frame
// immediately (since a task may run long) followed by the terminal
// result or error frame.
func (s *Server) streamAgenticTask(ctx context.Context, conn *websocket.Conn, frame streamFrame) {
	decision, err := s.policy.Evaluate(ctx, policy.Request{
		TaskID: uuid.NewString(),
		APIKey: frame.APIKey,
		Tools:  frame.AllowTools,
		Agents: frame.AllowAgents,
		Skills: frame.AllowSkills,
	})
	if err != nil {
		_ = conn.WriteJSON(streamEvent{Type: "error", Error: err.Error()})
		return
	}

	if frame.Description == "" {
		_ = conn.WriteJSON(streamEvent{Type: "error", Error: "description must not be empty"})
		return
	}

	taskID := uuid.NewString()
	estTokens := estimateTokens(frame.Description) + 4096
	res, admitted, err := s.ledger.Admit(ctx, decision.Auth.ProjectID, estTokens)
	if err != nil {
		_ = conn.WriteJSON(streamEvent{Type: "error", Error: err.Error()})
		return
	}
	if !admitted {
		_ = conn.WriteJSON(streamEvent{Type: "error", Error: ledger.BudgetExceededError(decision.Auth.ProjectID).Error()})
		return
	}

	_ = conn.WriteJSON(streamEvent{Type: "task_started", Data: map[string]string{"task_id": taskID}})

	deadline := time.Duration(decision.EffectiveTimeoutSeconds) * time.Second
	result, err := s.agentic.Execute(ctx, agentic.Request{
		TaskID:      taskID,
		ProjectID:   decision.Auth.ProjectID,
		Description: frame.Description,
		Tools:       frame.AllowTools,
		Agents:      frame.AllowAgents,
		Skills:      frame.AllowSkills,
		Model:       tracker.TierMedium,
		Deadline:    deadline,
		CostCeiling: decision.EffectiveMaxCostUSD,
	})
	if err != nil {
		_ = s.ledger.Release(ctx, res)
		_ = conn.WriteJSON(streamEvent{Type: "error", Error: err.Error()})
		return
	}

	if err := s.ledger.Debit(ctx, res, string(result.Usage.Tier), int64(result.Usage.InputTokens), int64(result.Usage.OutputTokens), result.Usage.CostUSD); err != nil {
		_ = conn.WriteJSON(streamEvent{Type: "error", Error: err.Error()})
		return
	}
	recordCompletionCost(result.Usage)

	status := "completed"
	if result.OverBudget {
		status = "over_budget"
	}
	_ = conn.WriteJSON(streamEvent{Type: "task_result", Data: TaskResponse{
		Status: status,
		Result: result.Content,
		Usage:  toUsageResponse(result.Usage),
	}})
}
