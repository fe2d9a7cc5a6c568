// Package llm wraps the external chat-completion and embedding providers.
// The core never talks to a vendor SDK directly; it goes through Provider and
// Embedder so that stubs can be wired in for tests and offline runs.
package llm

import (
	"context"
)

// Provider is the interface for all chat-completion providers.
//
// Options keys understood by all implementations:
//   - "model":           string, overrides the provider default
//   - "temperature":     float64, generation temperature
//   - "response_format": map with "type": "json_object" to force JSON output
type Provider interface {
	GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error)
	// AdaptInstructions transforms raw instructions into model-specific formats
	AdaptInstructions(rawInstructions string) string
}

// JSONOptions returns an options map that forces JSON-object output at the
// given temperature. Used by the synthesizer and the concept extractor.
func JSONOptions(temperature float64) map[string]interface{} {
	return map[string]interface{}{
		"temperature": temperature,
		"response_format": map[string]interface{}{
			"type": "json_object",
		},
	}
}

// TextOptions returns an options map for free-text generation at the given
// temperature (focus-group discussion turns).
func TextOptions(temperature float64) map[string]interface{} {
	return map[string]interface{}{
		"temperature": temperature,
	}
}

func optString(options map[string]interface{}, key, fallback string) string {
	if val, ok := options[key].(string); ok && val != "" {
		return val
	}
	return fallback
}

func optFloat(options map[string]interface{}, key string, fallback float64) float64 {
	if val, ok := options[key].(float64); ok {
		return val
	}
	return fallback
}

func wantsJSON(options map[string]interface{}) bool {
	if val, ok := options["response_format"].(map[string]interface{}); ok {
		return val["type"] == "json_object"
	}
	return false
}
