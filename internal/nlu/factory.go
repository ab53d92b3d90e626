package nlu

import (
	"context"
	"fmt"

	"poagent/internal/config"
)

// NewAnalyzerFromConfig builds the advisory analyzer for the configured
// provider. LLM-backed providers are chained with the local pattern
// analyzer so extraction degrades instead of failing; provider "none"
// (or empty) runs the pattern analyzer alone.
func NewAnalyzerFromConfig(ctx context.Context, cfg config.NLUConfig) (Analyzer, error) {
	switch cfg.Provider {
	case "", "none":
		return NewChain(PatternAnalyzer{}), nil

	case "bedrock":
		client, err := NewBedrockClient(ctx, BedrockConfig{
			Region:  cfg.Region,
			ModelID: cfg.Model,
		})
		if err != nil {
			return nil, err
		}
		return NewChain(NewPromptAnalyzer(client), PatternAnalyzer{}), nil

	case "anthropic":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic provider requires an API key")
		}
		ac := DefaultAnthropicConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			ac.BaseURL = cfg.BaseURL
		}
		if cfg.Model != "" {
			ac.Model = cfg.Model
		}
		return NewChain(NewPromptAnalyzer(NewAnthropicClientWithConfig(ac)), PatternAnalyzer{}), nil

	default:
		return nil, fmt.Errorf("unknown nlu provider: %s (valid: bedrock, anthropic, none)", cfg.Provider)
	}
}
