// Package tracker turns an LLM CLI's or DirectPath's raw JSON usage block
// into a normalized Usage record with an exact-decimal cost, the same
// boundary-parsing role the teacher's pkg/mcp/tokens.go (now retired) played
// for tool-call payloads, adapted to completion usage instead.
package tracker

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tarsygate/llmgate/pkg/config"
)

// Tier is one of the three abstract model classes, each with its own price.
type Tier string

const (
	TierSmall  Tier = "small"
	TierMedium Tier = "medium"
	TierLarge  Tier = "large"
)

// Usage is the normalized shape every completion path (CLI or DirectPath)
// produces, regardless of the physical model identifier involved.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
	Model        string
	Tier         Tier
	CostUSD      decimal.Decimal
}

// Kind distinguishes the tracker's error taxonomy so RequestFlow's single
// adaptation point can map each to the right HTTP status.
type Kind int

const (
	KindInvalidJSON Kind = iota
	KindMissingField
	KindUnknownModel
)

// Error is Tracker's typed error, carrying enough detail for logging and
// for the adaptation layer without losing the underlying cause.
type Error struct {
	Kind  Kind
	Field string
	Model string
	Err   error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindMissingField:
		return fmt.Sprintf("tracker: missing field %q", e.Field)
	case KindUnknownModel:
		return fmt.Sprintf("tracker: unknown model %q", e.Model)
	default:
		return fmt.Sprintf("tracker: invalid json: %v", e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// rawOutput is the subset of the CLI's/SDK's JSON output Tracker needs.
type rawOutput struct {
	Model string `json:"model"`
	Usage struct {
		InputTokens  *int `json:"input_tokens"`
		OutputTokens *int `json:"output_tokens"`
	} `json:"usage"`
}

// Tracker resolves model identifiers to tiers and prices using an
// injected table rather than module globals, so tests can swap in
// fixture pricing without touching process state.
type Tracker struct {
	prices map[string]config.ResolvedPrice // tier name -> price
}

// New builds a Tracker from the resolved pricing table loaded at startup.
func New(prices map[string]config.ResolvedPrice) *Tracker {
	return &Tracker{prices: prices}
}

// ParseJSON decodes a CLI/DirectPath JSON output blob into a normalized
// Usage, computing cost in exact decimal arithmetic.
func (t *Tracker) ParseJSON(raw []byte) (Usage, error) {
	var out rawOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return Usage{}, &Error{Kind: KindInvalidJSON, Err: err}
	}
	if out.Model == "" {
		return Usage{}, &Error{Kind: KindMissingField, Field: "model"}
	}
	if out.Usage.InputTokens == nil {
		return Usage{}, &Error{Kind: KindMissingField, Field: "usage.input_tokens"}
	}
	if out.Usage.OutputTokens == nil {
		return Usage{}, &Error{Kind: KindMissingField, Field: "usage.output_tokens"}
	}

	return t.Normalize(out.Model, *out.Usage.InputTokens, *out.Usage.OutputTokens)
}

// Normalize builds a Usage from already-extracted token counts, used by
// DirectPath which gets usage back as typed SDK fields rather than raw JSON.
func (t *Tracker) Normalize(model string, inputTokens, outputTokens int) (Usage, error) {
	tier, price, err := t.resolveTier(model)
	if err != nil {
		return Usage{}, err
	}

	cost := computeCost(inputTokens, outputTokens, price)

	return Usage{
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		TotalTokens:  inputTokens + outputTokens,
		Model:        model,
		Tier:         tier,
		CostUSD:      cost,
	}, nil
}

func (t *Tracker) resolveTier(model string) (Tier, config.ResolvedPrice, error) {
	lower := strings.ToLower(model)
	for tierName, price := range t.prices {
		for _, name := range price.Names {
			if strings.Contains(lower, strings.ToLower(name)) {
				return Tier(tierName), price, nil
			}
		}
	}
	return "", config.ResolvedPrice{}, &Error{Kind: KindUnknownModel, Model: model}
}

// million is the divisor in the per-million-token pricing formula.
var million = decimal.NewFromInt(1_000_000)

// computeCost applies cost = input*inputPrice/1e6 + output*outputPrice/1e6,
// rounded half-even to 6 decimal places. Floating point is never used: a
// large number of debits summed over a billing window must have zero drift.
func computeCost(inputTokens, outputTokens int, price config.ResolvedPrice) decimal.Decimal {
	inCost := decimal.NewFromInt(int64(inputTokens)).Mul(price.InputPerMillion).Div(million)
	outCost := decimal.NewFromInt(int64(outputTokens)).Mul(price.OutputPerMillion).Div(million)
	return inCost.Add(outCost).RoundBank(6)
}

// PriceFor exposes a tier's resolved price, used by the
// /v1/providers/{provider}/models handler.
func (t *Tracker) PriceFor(tier Tier) (config.ResolvedPrice, bool) {
	p, ok := t.prices[string(tier)]
	return p, ok
}
