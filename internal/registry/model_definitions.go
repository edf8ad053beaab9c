// Package registry provides static model metadata for the models this
// gateway exposes through the CodeAssist backend, grouped the way the
// Quota Ledger groups them for its per-model-family UI figures.
package registry

import (
	"sort"
	"strings"
)

// ThinkingSupport describes a model's extended-thinking capability, mirrored
// from the upstream CodeAssist model catalog. A nil ThinkingSupport on
// ModelInfo means the model does not support thinking at all.
type ThinkingSupport struct {
	// Levels lists the discrete thinking levels the model accepts (e.g.
	// "low", "medium", "high"). Empty when the model is budget-based only.
	Levels []string
	// Min and Max bound the numeric thinking budget in tokens. Both zero
	// when the model is level-based only.
	Min int
	Max int
	// ZeroAllowed reports whether a budget of exactly 0 (thinking off) is
	// a valid, distinct setting from simply omitting the field.
	ZeroAllowed bool
	// DynamicAllowed reports whether the model accepts the "auto"/dynamic
	// thinking budget (-1).
	DynamicAllowed bool
}

// ModelInfo describes one caller-visible model.
type ModelInfo struct {
	ID                  string           `json:"id"`
	Object              string           `json:"object"`
	OwnedBy             string           `json:"owned_by"`
	Thinking            *ThinkingSupport `json:"-"`
	MaxCompletionTokens int              `json:"max_completion_tokens,omitempty"`
	// UserDefined marks models registered from the gateway's own config
	// (openai-compatibility aliases) rather than the static catalog above.
	// Their thinking configuration is passed through without validation,
	// since the catalog has no capability data for them.
	UserDefined bool `json:"-"`
}

// models is the static catalog of models reachable through the CodeAssist
// backend. New model releases are added here; nothing else in the gateway
// needs to change since routing is keyed only by model ID string.
var models = []*ModelInfo{
	{
		ID: "gemini-3-pro-preview", Object: "model", OwnedBy: "google", MaxCompletionTokens: 65536,
		Thinking: &ThinkingSupport{Levels: []string{"low", "medium", "high"}, DynamicAllowed: true},
	},
	{
		ID: "gemini-3-flash-preview", Object: "model", OwnedBy: "google", MaxCompletionTokens: 65536,
		Thinking: &ThinkingSupport{Levels: []string{"low", "medium", "high"}, DynamicAllowed: true},
	},
	{
		ID: "gemini-3-pro-image-preview", Object: "model", OwnedBy: "google", MaxCompletionTokens: 8192,
	},
	{
		ID: "gemini-2.5-pro", Object: "model", OwnedBy: "google", MaxCompletionTokens: 65536,
		Thinking: &ThinkingSupport{Min: 128, Max: 32768, ZeroAllowed: false, DynamicAllowed: true},
	},
	{
		ID: "gemini-2.5-flash", Object: "model", OwnedBy: "google", MaxCompletionTokens: 65536,
		Thinking: &ThinkingSupport{Min: 0, Max: 24576, ZeroAllowed: true, DynamicAllowed: true},
	},
	{
		ID: "claude-sonnet-4-5", Object: "model", OwnedBy: "google", MaxCompletionTokens: 65536,
		Thinking: &ThinkingSupport{Min: 1024, Max: 32768, ZeroAllowed: false, DynamicAllowed: false},
	},
	{
		ID: "claude-opus-4-5", Object: "model", OwnedBy: "google", MaxCompletionTokens: 32768,
		Thinking: &ThinkingSupport{Min: 1024, Max: 32768, ZeroAllowed: false, DynamicAllowed: false},
	},
}

// GetModels returns the static model catalog sorted by ID.
func GetModels() []*ModelInfo {
	out := make([]*ModelInfo, len(models))
	copy(out, models)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LookupModelInfo searches the static catalog for a model by ID.
func LookupModelInfo(modelID string) *ModelInfo {
	for _, m := range models {
		if m.ID == modelID {
			return m
		}
	}
	return nil
}

// ModelGroup classifies a model ID into the coarse grouping the Quota
// Ledger uses for its per-group "requests remaining" UI figure. Matching is
// by case-insensitive substring so new model names in an existing family
// are covered automatically.
func ModelGroup(modelID string) string {
	lower := strings.ToLower(modelID)
	switch {
	case strings.Contains(lower, "banana"), strings.Contains(lower, "image"):
		return "banana"
	case strings.Contains(lower, "claude"):
		return "claude"
	case strings.Contains(lower, "gemini"):
		return "gemini"
	default:
		return "other"
	}
}
