// Package directpath implements simple, low-latency completion against the
// Anthropic Messages API directly, bypassing the CLI subprocess entirely.
// It produces the same tracker.Usage shape WorkerPool's CLI path does, so
// RequestFlow can treat the two completion paths interchangeably everywhere
// except the routing decision itself.
package directpath

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/tarsygate/llmgate/pkg/apierr"
	"github.com/tarsygate/llmgate/pkg/config"
	"github.com/tarsygate/llmgate/pkg/tracker"
)

// MessageCreator abstracts the Anthropic Messages API's single blocking
// call so tests can substitute a fake without a live API key, the same
// adapter shape the pack's engine/loop.go uses for its streaming
// equivalent (MessageStreamer), narrowed here to the non-streaming call
// DirectPath actually needs.
type MessageCreator interface {
	New(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error)
}

// messageServiceAdapter wraps the real anthropic.MessageService.
type messageServiceAdapter struct {
	svc *anthropic.MessageService
}

func (a *messageServiceAdapter) New(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	return a.svc.New(ctx, params)
}

// Message is one turn in a DirectPath completion request.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// Client performs DirectPath completions against a persistent HTTP
// connection, kept open across requests for connection reuse.
type Client struct {
	creator MessageCreator
	prices  map[string]config.ResolvedPrice
	tracker *tracker.Tracker
	timeout time.Duration
}

// New builds a Client from the resolved DirectPath configuration. The API
// key is read from the environment variable named by cfg.APIKeyEnv rather
// than stored in the config tree.
func New(cfg config.DirectPathYAMLConfig, prices map[string]config.ResolvedPrice, tr *tracker.Tracker) (*Client, error) {
	apiKey := os.Getenv(cfg.APIKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("directpath: environment variable %s is not set", cfg.APIKeyEnv)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	sdkClient := anthropic.NewClient(opts...)
	return &Client{
		creator: &messageServiceAdapter{svc: &sdkClient.Messages},
		prices:  prices,
		tracker: tr,
		timeout: cfg.Timeout,
	}, nil
}

// newWithCreator builds a Client around an injected MessageCreator,
// letting tests exercise Complete's error mapping and usage normalization
// without a real HTTP round trip.
func newWithCreator(creator MessageCreator, prices map[string]config.ResolvedPrice, tr *tracker.Tracker) *Client {
	return &Client{creator: creator, prices: prices, tracker: tr}
}

// Complete issues a single blocking completion call and returns the reply
// content plus its normalized Usage. Errors are mapped per the gateway's
// error taxonomy: network/transport failures become UpstreamUnavailable,
// HTTP 4xx become UpstreamRejected(status,body), and HTTP 429 becomes
// UpstreamRateLimited, so RequestFlow's single adaptation point can turn
// any of them into the right response without inspecting this package's
// internals.
func (c *Client) Complete(ctx context.Context, tier tracker.Tier, system string, messages []Message, maxTokens int, temperature float64) (string, tracker.Usage, error) {
	price, ok := c.prices[string(tier)]
	if !ok || price.ModelID == "" {
		return "", tracker.Usage{}, fmt.Errorf("directpath: no model configured for tier %q", tier)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(price.ModelID),
		MaxTokens: int64(maxTokens),
		Messages:  toSDKMessages(messages),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if temperature > 0 {
		params.Temperature = anthropic.Float(temperature)
	}

	msg, err := c.creator.New(ctx, params)
	if err != nil {
		return "", tracker.Usage{}, mapUpstreamError(err)
	}

	content := extractText(msg)
	usage, err := c.tracker.Normalize(price.ModelID, int(msg.Usage.InputTokens), int(msg.Usage.OutputTokens))
	if err != nil {
		return "", tracker.Usage{}, err
	}

	return content, usage, nil
}

func toSDKMessages(messages []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == "assistant" {
			out = append(out, anthropic.NewAssistantMessage(block))
		} else {
			out = append(out, anthropic.NewUserMessage(block))
		}
	}
	return out
}

func extractText(msg *anthropic.Message) string {
	var out string
	for _, block := range msg.Content {
		if block.Type == "text" {
			out += block.AsText().Text
		}
	}
	return out
}

// mapUpstreamError classifies an error returned by the Anthropic SDK into
// the gateway's error taxonomy. *anthropic.Error carries the upstream's
// HTTP status; anything else is treated as a transport failure.
func mapUpstreamError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests:
			return apierr.UpstreamRateLimited()
		default:
			if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
				return apierr.UpstreamRejected(apiErr.StatusCode, apiErr.Error())
			}
		}
	}
	return apierr.UpstreamUnavailable(err)
}
