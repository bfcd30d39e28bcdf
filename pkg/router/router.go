// Package router chooses a model tier for a request from its prompt,
// estimated context size, and the caller's remaining budget. It is a pure
// function: the same inputs always produce the same decision, a top-down
// first-match-wins rule order with no hidden state.
package router

import (
	"strings"

	"github.com/tarsygate/llmgate/pkg/tracker"
)

// Thresholds holds the named constants the routing rules evaluate against.
// Configurable per deployment (and in tests) via pkg/config overrides.
type Thresholds struct {
	LowWaterTokens  int
	MidWaterTokens  int
	BigCtxThreshold int
	ShortLenBytes   int
}

// DefaultThresholds mirrors the approximate values named in the routing
// algorithm when a deployment does not override them.
var DefaultThresholds = Thresholds{
	LowWaterTokens:  1000,
	MidWaterTokens:  5000,
	BigCtxThreshold: 10000,
	ShortLenBytes:   100,
}

// shortPromptKeywords are substrings that suggest a cheap, mechanical ask.
var shortPromptKeywords = []string{"list", "count", "format", "show", "get", "create", "add"}

// complexPromptKeywords are substrings that suggest a task worth a bigger model.
var complexPromptKeywords = []string{"analyze", "architect", "debug", "design", "implement", "optimize"}

// Decision is Router's output: the chosen tier plus a human-readable
// explanation for the /v1/route diagnostic endpoint.
type Decision struct {
	Tier   tracker.Tier
	Reason string
}

// Router selects a tier via a fixed, top-down rule order. It holds no
// mutable state; Select never blocks and never errors.
type Router struct {
	thresholds Thresholds
}

// New builds a Router over the given thresholds. Zero-valued fields fall
// back to DefaultThresholds field-by-field.
func New(t Thresholds) *Router {
	if t.LowWaterTokens == 0 {
		t.LowWaterTokens = DefaultThresholds.LowWaterTokens
	}
	if t.MidWaterTokens == 0 {
		t.MidWaterTokens = DefaultThresholds.MidWaterTokens
	}
	if t.BigCtxThreshold == 0 {
		t.BigCtxThreshold = DefaultThresholds.BigCtxThreshold
	}
	if t.ShortLenBytes == 0 {
		t.ShortLenBytes = DefaultThresholds.ShortLenBytes
	}
	return &Router{thresholds: t}
}

// Select chooses a tier for the given prompt, estimated context size, and
// remaining project budget in tokens. When unlimited is true the project
// has no ceiling and remaining is ignored.
func (r *Router) Select(prompt string, ctxSize int, remaining int, unlimited bool) Decision {
	lower := strings.ToLower(prompt)
	th := r.thresholds

	if !unlimited && remaining <= th.LowWaterTokens {
		return Decision{Tier: tracker.TierSmall, Reason: "remaining budget below low water mark"}
	}

	if ctxSize > th.BigCtxThreshold {
		return Decision{Tier: tracker.TierLarge, Reason: "context size exceeds large-context threshold"}
	}

	if len(prompt) < th.ShortLenBytes && containsAny(lower, shortPromptKeywords) {
		return Decision{Tier: tracker.TierSmall, Reason: "short mechanical prompt"}
	}

	if containsAny(lower, complexPromptKeywords) && (unlimited || remaining >= th.MidWaterTokens) {
		return Decision{Tier: tracker.TierMedium, Reason: "complex-task keyword with sufficient budget"}
	}

	return Decision{Tier: tracker.TierMedium, Reason: "default tier"}
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
