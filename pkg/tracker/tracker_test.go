package tracker

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarsygate/llmgate/pkg/config"
)

func testPrices() map[string]config.ResolvedPrice {
	return map[string]config.ResolvedPrice{
		"small":  {InputPerMillion: decimal.NewFromFloat(0.80), OutputPerMillion: decimal.NewFromFloat(4.00), Names: []string{"haiku"}},
		"medium": {InputPerMillion: decimal.NewFromFloat(3.00), OutputPerMillion: decimal.NewFromFloat(15.00), Names: []string{"sonnet"}},
		"large":  {InputPerMillion: decimal.NewFromFloat(15.00), OutputPerMillion: decimal.NewFromFloat(75.00), Names: []string{"opus"}},
	}
}

func TestParseJSON_HappyPath(t *testing.T) {
	tr := New(testPrices())
	raw := []byte(`{"model":"claude-haiku-4-5","usage":{"input_tokens":5,"output_tokens":1}}`)

	usage, err := tr.ParseJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, TierSmall, usage.Tier)
	assert.Equal(t, 6, usage.TotalTokens)
	// 5*0.80/1e6 + 1*4.00/1e6 = 0.000004 + 0.000004 = 0.000008
	assert.True(t, decimal.NewFromFloat(0.000008).Equal(usage.CostUSD), "cost=%s", usage.CostUSD)
}

func TestParseJSON_UnknownModel(t *testing.T) {
	tr := New(testPrices())
	raw := []byte(`{"model":"mystery-model","usage":{"input_tokens":1,"output_tokens":1}}`)

	_, err := tr.ParseJSON(raw)
	require.Error(t, err)
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, KindUnknownModel, terr.Kind)
}

func TestParseJSON_MissingField(t *testing.T) {
	tr := New(testPrices())
	raw := []byte(`{"model":"claude-sonnet-4-5","usage":{"input_tokens":1}}`)

	_, err := tr.ParseJSON(raw)
	require.Error(t, err)
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, KindMissingField, terr.Kind)
	assert.Equal(t, "usage.output_tokens", terr.Field)
}

func TestParseJSON_InvalidJSON(t *testing.T) {
	tr := New(testPrices())
	_, err := tr.ParseJSON([]byte(`not json`))
	require.Error(t, err)
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, KindInvalidJSON, terr.Kind)
}

// TestParseJSON_Idempotent verifies round-tripping a previously produced
// usage record through ParseJSON again yields identical fields.
func TestParseJSON_Idempotent(t *testing.T) {
	tr := New(testPrices())
	raw := []byte(`{"model":"claude-opus-4-1","usage":{"input_tokens":1000,"output_tokens":500}}`)

	first, err := tr.ParseJSON(raw)
	require.NoError(t, err)

	roundTrip, err := json.Marshal(map[string]any{
		"model": first.Model,
		"usage": map[string]any{
			"input_tokens":  first.InputTokens,
			"output_tokens": first.OutputTokens,
		},
	})
	require.NoError(t, err)

	second, err := tr.ParseJSON(roundTrip)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestComputeCost_RoundsHalfEven(t *testing.T) {
	price := config.ResolvedPrice{
		InputPerMillion:  decimal.NewFromFloat(0.5),
		OutputPerMillion: decimal.NewFromFloat(0.5),
	}
	// 5*0.5/1e6 = 0.0000025, exactly halfway: half-even gives 0.000002
	// where half-up would give 0.000003.
	got := computeCost(5, 0, price)
	assert.Equal(t, "0.000002", got.String())
}
