package api

import (
	"net/http"

	"github.com/google/uuid"
	echo "github.com/labstack/echo/v5"

	"github.com/tarsygate/llmgate/pkg/apierr"
	"github.com/tarsygate/llmgate/pkg/ledger"
	"github.com/tarsygate/llmgate/pkg/policy"
	"github.com/tarsygate/llmgate/pkg/tracker"
)

// providerModelMap is the static provider/model-name -> tier table
// /v1/process uses to stay compatible with callers written against an
// older, provider-keyed API shape. Unknown provider/model pairs fall back
// to the medium tier rather than failing the request.
var providerModelMap = map[string]map[string]tracker.Tier{
	"anthropic": {
		"claude-3-5-haiku":   tracker.TierSmall,
		"claude-3-5-sonnet":  tracker.TierMedium,
		"claude-sonnet-4":    tracker.TierMedium,
		"claude-opus-4":      tracker.TierLarge,
		"claude-3-opus":      tracker.TierLarge,
	},
}

func mapProviderModel(provider, modelName string) (tracker.Tier, string) {
	if byModel, ok := providerModelMap[provider]; ok {
		for prefix, tier := range byModel {
			if len(modelName) >= len(prefix) && modelName[:len(prefix)] == prefix {
				return tier, prefix
			}
		}
	}
	return tracker.TierMedium, "default"
}

// processHandler implements POST /v1/process: the dual-path compatibility
// endpoint for callers migrating from a provider/model-name API shape. It
// maps provider+model_name to a tier via providerModelMap, then completes
// exactly like /v1/chat/completions, reporting the mapping decision back
// in metadata.mapped_from.
func (s *Server) processHandler(c *echo.Context) error {
	var req ProcessRequest
	if err := c.Bind(&req); err != nil {
		return mapServiceError(apierr.BadRequest("body", "invalid json"))
	}

	messages := req.Messages
	if len(messages) == 0 {
		if req.UserMessage == "" {
			return mapServiceError(apierr.BadRequest("user_message", "required when messages is empty"))
		}
		if req.SystemMessage != "" {
			messages = append(messages, ChatMessage{Role: "system", Content: req.SystemMessage})
		}
		messages = append(messages, ChatMessage{Role: "user", Content: req.UserMessage})
	}

	ctx := c.Request().Context()

	decision, err := s.policy.Evaluate(ctx, policy.Request{
		TaskID: uuid.NewString(),
		APIKey: apiKeyFromRequest(c),
	})
	if err != nil {
		return mapServiceError(err)
	}

	tier, mappedFrom := mapProviderModel(req.Provider, req.ModelName)

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	prompt := joinMessages(messages)
	res, admitted, err := s.ledger.Admit(ctx, decision.Auth.ProjectID, estimateTokens(prompt)+int64(maxTokens))
	if err != nil {
		return mapServiceError(err)
	}
	if !admitted {
		return mapServiceError(ledger.BudgetExceededError(decision.Auth.ProjectID))
	}

	content, usage, err := s.complete(ctx, tier, messages, maxTokens, decision.EffectiveTimeoutSeconds, decision.Auth.ProjectID)
	if err != nil {
		_ = s.ledger.Release(ctx, res)
		return mapServiceError(err)
	}

	if err := s.ledger.Debit(ctx, res, string(usage.Tier), int64(usage.InputTokens), int64(usage.OutputTokens), usage.CostUSD); err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, ProcessResponse{
		Content:  content,
		Model:    usage.Model,
		Provider: req.Provider,
		Metadata: ProcessMetadata{
			ActualModel: usage.Model,
			Usage:       toUsageResponse(usage),
			CostUSD:     usage.CostUSD.String(),
			MappedFrom:  mappedFrom,
		},
	})
}

// providersHandler implements GET /v1/providers.
func (s *Server) providersHandler(c *echo.Context) error {
	providers := make([]ProviderSummary, 0, len(providerModelMap))
	for name, models := range providerModelMap {
		names := make([]string, 0, len(models))
		for m := range models {
			names = append(names, m)
		}
		providers = append(providers, ProviderSummary{Name: name, Available: s.direct != nil, Models: names})
	}
	return c.JSON(http.StatusOK, providers)
}

// providerModelsHandler implements GET /v1/providers/{provider}/models,
// reporting each tier's resolved capability from the pricing table.
func (s *Server) providerModelsHandler(c *echo.Context) error {
	provider := c.Param("provider")
	byModel, ok := providerModelMap[provider]
	if !ok {
		return mapServiceError(apierr.BadRequest("provider", "unknown provider"))
	}

	models := make(map[string]ModelCapability, len(byModel))
	for name, tier := range byModel {
		_, priced := s.tracker.PriceFor(tier)
		models[name] = ModelCapability{
			MaxTokens:         modelMaxTokensForTier(tier),
			ContextWindow:     modelContextWindowForTier(tier),
			SupportsFunctions: true,
			SupportsVision:    tier == tracker.TierLarge && priced,
		}
	}

	return c.JSON(http.StatusOK, ProviderModelsResponse{Provider: provider, Models: models})
}

func modelMaxTokensForTier(tier tracker.Tier) int {
	switch tier {
	case tracker.TierSmall:
		return 4096
	case tracker.TierLarge:
		return 16384
	default:
		return 8192
	}
}

func modelContextWindowForTier(tier tracker.Tier) int {
	return 200000
}
