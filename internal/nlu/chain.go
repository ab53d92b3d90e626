package nlu

import (
	"context"

	"poagent/internal/extract"
	"poagent/internal/logging"
)

// Chain runs analyzers in order and merges their entities, first writer
// wins per key. A failing analyzer is skipped, so the chain itself never
// returns an error.
type Chain struct {
	analyzers []Analyzer
	log       *logging.Logger
}

// NewChain builds a fallback chain. Earlier analyzers take precedence.
func NewChain(analyzers ...Analyzer) *Chain {
	return &Chain{
		analyzers: analyzers,
		log:       logging.Get(logging.CategoryNLU),
	}
}

// Analyze merges results across the chain. The first non-empty intent
// wins.
func (c *Chain) Analyze(ctx context.Context, text, stepLabel string) (Result, error) {
	merged := Result{Entities: Entities{}}
	for _, a := range c.analyzers {
		res, err := a.Analyze(ctx, text, stepLabel)
		if err != nil {
			c.log.Warn("analyzer failed at %s, falling through: %v", stepLabel, err)
			continue
		}
		if merged.Intent == "" {
			merged.Intent = res.Intent
		}
		for k, v := range res.Entities {
			if _, taken := merged.Entities[k]; !taken {
				merged.Entities[k] = v
			}
		}
	}
	return merged, nil
}

// PatternAnalyzer derives entities from the local regex extractors so
// the dialogue keeps working when no LLM provider is reachable.
type PatternAnalyzer struct{}

// Analyze runs the pattern extractors relevant to the given step.
func (PatternAnalyzer) Analyze(_ context.Context, text, stepLabel string) (Result, error) {
	entities := Entities{}

	switch stepLabel {
	case "SUPPLIER":
		if name, ok := extract.SupplierName(text); ok {
			entities["supplier_name"] = name
		}
	case "LINE_ITEM_DETAILS", "CONFIRM":
		if parts, ok := extract.LineItem(text); ok {
			entities["quantity"] = parts.Quantity
			entities["material_name"] = parts.Name
			entities["price"] = parts.Price
		}
	}

	intent := ""
	if extract.IsFinalize(text) {
		intent = "finalize"
	}
	return Result{Intent: intent, Entities: entities}, nil
}
