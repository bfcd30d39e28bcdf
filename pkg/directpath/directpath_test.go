package directpath

import (
	"context"
	"net/http"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarsygate/llmgate/pkg/apierr"
	"github.com/tarsygate/llmgate/pkg/config"
	"github.com/tarsygate/llmgate/pkg/tracker"
)

func testPrices() map[string]config.ResolvedPrice {
	return map[string]config.ResolvedPrice{
		"small": {
			InputPerMillion:  decimal.NewFromInt(1),
			OutputPerMillion: decimal.NewFromInt(2),
			Names:            []string{"haiku"},
			ModelID:          "claude-3-5-haiku-20241022",
		},
	}
}

type fakeCreator struct {
	msg *anthropic.Message
	err error
}

func (f *fakeCreator) New(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	return f.msg, f.err
}

func TestComplete_HappyPath(t *testing.T) {
	msg := &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{
			{Type: "text", Text: "4"},
		},
		Usage: anthropic.Usage{InputTokens: 5, OutputTokens: 1},
	}
	client := newWithCreator(&fakeCreator{msg: msg}, testPrices(), tracker.New(testPrices()))

	content, usage, err := client.Complete(context.Background(), tracker.TierSmall, "", []Message{{Role: "user", Content: "2+2?"}}, 100, 0)
	require.NoError(t, err)
	assert.Equal(t, "4", content)
	assert.Equal(t, 5, usage.InputTokens)
	assert.Equal(t, 1, usage.OutputTokens)
	assert.Equal(t, tracker.TierSmall, usage.Tier)
}

func TestComplete_UnknownTier(t *testing.T) {
	client := newWithCreator(&fakeCreator{}, testPrices(), tracker.New(testPrices()))

	_, _, err := client.Complete(context.Background(), tracker.TierLarge, "", nil, 100, 0)
	assert.Error(t, err)
}

func TestComplete_MapsRateLimitError(t *testing.T) {
	apiErr := &anthropic.Error{StatusCode: http.StatusTooManyRequests}
	client := newWithCreator(&fakeCreator{err: apiErr}, testPrices(), tracker.New(testPrices()))

	_, _, err := client.Complete(context.Background(), tracker.TierSmall, "", []Message{{Role: "user", Content: "hi"}}, 10, 0)
	require.Error(t, err)
	var typed *apierr.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, apierr.KindUpstreamRateLimited, typed.Kind)
}

func TestComplete_MapsClientError(t *testing.T) {
	apiErr := &anthropic.Error{StatusCode: http.StatusBadRequest}
	client := newWithCreator(&fakeCreator{err: apiErr}, testPrices(), tracker.New(testPrices()))

	_, _, err := client.Complete(context.Background(), tracker.TierSmall, "", []Message{{Role: "user", Content: "hi"}}, 10, 0)
	require.Error(t, err)
	var typed *apierr.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, apierr.KindUpstreamRejected, typed.Kind)
}

func TestComplete_MapsTransportError(t *testing.T) {
	client := newWithCreator(&fakeCreator{err: context.DeadlineExceeded}, testPrices(), tracker.New(testPrices()))

	_, _, err := client.Complete(context.Background(), tracker.TierSmall, "", []Message{{Role: "user", Content: "hi"}}, 10, 0)
	require.Error(t, err)
	var typed *apierr.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, apierr.KindUpstreamUnavailable, typed.Kind)
}
